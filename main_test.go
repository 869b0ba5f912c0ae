package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/config"
	"github.com/ticketbooth-services/common/container"
	"github.com/ticketbooth-services/common/jwt"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/ratelimit"
)

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	c, err := container.New(context.Background(), &config.Config{
		DBDriver:          "sqlite",
		SQLitePath:        filepath.Join(t.TempDir(), "server.db"),
		JWTSecret:         "test-secret",
		JWTTTL:            time.Hour,
		ServiceFeeRate:    decimal.RequireFromString("0.05"),
		ProcessingFee:     decimal.RequireFromString("2.99"),
		PurchaseRateLimit: 10,
		QRSize:            128,
		EnableMetrics:     true,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func do(t *testing.T, e http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGatewayResource(t *testing.T) {
	assert.Equal(t, "/api/events/{eventId}/ticket-types", gatewayResource("/api/events/:eventId/ticket-types"))
	assert.Equal(t, "/api/staff/scan", gatewayResource("/api/staff/scan"))
}

func TestEndToEndPurchaseAndCheckIn(t *testing.T) {
	c := newTestContainer(t)
	e := newServer(c)

	admin, err := c.Auth.GenerateToken("admin-1", "Ada", jwt.RoleAdmin)
	require.NoError(t, err)
	volunteer, err := c.Auth.GenerateToken("vol-1", "Vic", jwt.RoleVolunteer)
	require.NoError(t, err)

	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Minute)
	rec := do(t, e, http.MethodPost, "/api/admin/events", admin, fmt.Sprintf(`{
		"name": "Harbour Lights",
		"startAt": %q,
		"endAt": %q,
		"ticketTypes": [{"classification": "General", "cost": "20.00", "quantity": 2}]
	}`, start.Format(time.RFC3339), start.Add(3*time.Hour).Format(time.RFC3339)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			ID          int64 `json:"id"`
			TicketTypes []struct {
				ID int64 `json:"id"`
			} `json:"ticketTypes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	eventID, typeID := created.Data.ID, created.Data.TicketTypes[0].ID

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/events/%d/ticket-types", eventID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":2`)

	rec = do(t, e, http.MethodPost, "/api/purchases", "", fmt.Sprintf(`{
		"eventId": %d,
		"purchaserInfo": {"firstName":"Lin","lastName":"Park","email":"lin@example.com","phone":"555-010-0400"},
		"ticketHolders": [{"type":"General","firstName":"Lin","lastName":"Park"}],
		"selectedTickets": [{"id": %d, "type": "General", "quantity": 1, "price": 20}]
	}`, eventID, typeID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var purchase struct {
		OrderID string `json:"orderId"`
		Tickets []struct {
			ID int64 `json:"id"`
		} `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &purchase))
	require.Len(t, purchase.Tickets, 1)

	path := fmt.Sprintf("/api/staff/events/%d/tickets/%d/checkin", eventID, purchase.Tickets[0].ID)
	rec = do(t, e, http.MethodPost, path, volunteer, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, e, http.MethodPost, path, volunteer, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, e, http.MethodDelete, fmt.Sprintf("/api/admin/events/%d", eventID), admin, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newServer(newTestContainer(t))

	rec := do(t, e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPurchaseRouteIsRateLimited(t *testing.T) {
	c := newTestContainer(t)
	client, mock := redismock.NewClientMock()
	c.Limiter = ratelimit.NewLimiter(client, "purchase", 1, time.Minute, logger.Discard())
	e := newServer(c)

	mock.ExpectIncr("ratelimit:purchase:192.0.2.1").SetVal(2)

	rec := do(t, e, http.MethodPost, "/api/purchases", "", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "E4290")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRouteNeedsToken(t *testing.T) {
	e := newServer(newTestContainer(t))

	rec := do(t, e, http.MethodGet, "/api/staff/events/1/attendees?q=ann", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
