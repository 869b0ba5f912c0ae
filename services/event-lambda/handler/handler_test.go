package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/db"
	"github.com/ticketbooth-services/common/db/dbtest"
	"github.com/ticketbooth-services/common/inventory"
	"github.com/ticketbooth-services/common/jwt"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/services/event-lambda/repository"
	"github.com/ticketbooth-services/services/event-lambda/usecase"
)

type env struct {
	h    *EventHandler
	conn *db.DB
	auth *jwt.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()

	conn := dbtest.Open(t)
	auth := jwt.NewManager("test-secret", time.Hour)
	uc := usecase.NewEventUseCase(repository.NewEventRepository(conn), inventory.NewLedger(conn), logger.Discard())
	h := NewEventHandler(uc, auth, logger.Discard())
	h.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return &env{h: h, conn: conn, auth: auth}
}

func (e *env) bearer(t *testing.T, role string) map[string]string {
	t.Helper()
	token, err := e.auth.GenerateToken("staff-1", "Robin", role)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

const createBody = `{
	"name": "Spring Gala",
	"startAt": "2026-04-10T19:00",
	"endAt": "2026-04-10T23:00",
	"location": "Grand Ballroom",
	"ticketTypes": [
		{"classification": "General", "cost": "30.00", "quantity": 200},
		{"classification": "VIP", "cost": 95.5, "quantity": 20, "includesItem": true, "itemName": "Gift bag"}
	]
}`

func TestCreateEventRoute(t *testing.T) {
	e := newEnv(t)

	resp, err := e.h.Route(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Resource:   "/api/admin/events",
		Headers:    e.bearer(t, jwt.RoleAdmin),
		Body:       createBody,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ID          int64     `json:"id"`
			StartAt     time.Time `json:"startAt"`
			TicketTypes []struct {
				Classification string `json:"classification"`
				Cost           string `json:"cost"`
				Available      int    `json:"available"`
				IncludesItem   bool   `json:"includes_item"`
			} `json:"ticketTypes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.True(t, body.Success)
	assert.True(t, time.Date(2026, 4, 10, 19, 0, 0, 0, time.UTC).Equal(body.Data.StartAt))
	require.Len(t, body.Data.TicketTypes, 2)
	assert.Equal(t, "30", body.Data.TicketTypes[0].Cost)
	assert.Equal(t, "95.5", body.Data.TicketTypes[1].Cost)
	assert.True(t, body.Data.TicketTypes[1].IncludesItem)

	detail, err := e.h.Route(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Resource:       "/api/events/{eventId}/ticket-types",
		PathParameters: map[string]string{"eventId": strconv.FormatInt(body.Data.ID, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, detail.StatusCode)
	assert.Contains(t, detail.Body, `"available":200`)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"volunteer", e.bearer(t, jwt.RoleVolunteer), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.h.HandleCreateEvent(context.Background(), events.APIGatewayProxyRequest{
				Headers: tt.headers,
				Body:    createBody,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Zero(t, dbtest.Count(t, e.conn, `SELECT COUNT(*) FROM events`))
}

func TestCreateEventRejectsPastStart(t *testing.T) {
	e := newEnv(t)

	resp, err := e.h.HandleCreateEvent(context.Background(), events.APIGatewayProxyRequest{
		Headers: e.bearer(t, jwt.RoleAdmin),
		Body:    `{"name":"Old","startAt":"2025-01-01 10:00","endAt":"2025-01-01 12:00"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Body, "startAt")
}

func TestDeleteEventRouteConflictsWhenSold(t *testing.T) {
	e := newEnv(t)
	eventID := dbtest.SeedUpcomingEvent(t, e.conn, "Sold Out Show")
	typeID := dbtest.SeedTicketType(t, e.conn, eventID, dbtest.TicketType{Classification: "General", Quantity: 1})
	dbtest.SeedTicket(t, e.conn, typeID, dbtest.Ticket{})

	resp, err := e.h.Route(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodDelete,
		Resource:       "/api/admin/events/{eventId}",
		Headers:        e.bearer(t, jwt.RoleAdmin),
		PathParameters: map[string]string{"eventId": strconv.FormatInt(eventID, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "E3004", body["code"])
}

func TestUnknownEventRoute(t *testing.T) {
	e := newEnv(t)

	resp, err := e.h.Route(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPatch,
		Resource:   "/api/events",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateEventChecksMergedWindow(t *testing.T) {
	e := newEnv(t)
	// Under way at the handler's clock (09:00).
	eventID := dbtest.SeedEvent(t, e.conn, "Morning Session",
		time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	update := func(id int64, body string) events.APIGatewayProxyResponse {
		resp, err := e.h.Route(context.Background(), events.APIGatewayProxyRequest{
			HTTPMethod:     http.MethodPut,
			Resource:       "/api/admin/events/{eventId}",
			Headers:        e.bearer(t, jwt.RoleAdmin),
			PathParameters: map[string]string{"eventId": strconv.FormatInt(id, 10)},
			Body:           body,
		})
		require.NoError(t, err)
		return resp
	}

	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
	}{
		{"end moved into the past", `{"endAt":"2026-03-01 08:30"}`, "endAt", "past"},
		{"end moved too far", `{"endAt":"2026-03-20 08:00"}`, "endAt", "14 days"},
		{"start moved into the past", `{"startAt":"2026-02-28 10:00"}`, "startAt", "past"},
		{"start moved too close to end", `{"startAt":"2026-03-01 11:50"}`, "endAt", "15 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := update(eventID, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, resp.Body)

			var body struct {
				Fields map[string]interface{} `json:"fields"`
				Error  string                 `json:"error"`
			}
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.Equal(t, tt.wantField, body.Fields["field"])
			assert.Contains(t, body.Error, tt.wantMsg)
		})
	}

	resp := update(eventID, `{"endAt":"2026-03-01 18:00"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Contains(t, resp.Body, `"endAt":"2026-03-01T18:00:00Z"`)

	resp = update(eventID+100, `{"endAt":"2026-03-01 18:00"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
