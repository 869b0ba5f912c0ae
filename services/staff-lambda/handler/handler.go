package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/jwt"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/response"
	"github.com/ticketbooth-services/services/staff-lambda/models"
	"github.com/ticketbooth-services/services/staff-lambda/usecase"
)

// StaffHandler serves the door endpoints. Every route requires an ADMIN
// or VOLUNTEER token.
type StaffHandler struct {
	useCase *usecase.StaffUseCase
	auth    *jwt.Manager
	log     *logger.Logger
}

func NewStaffHandler(useCase *usecase.StaffUseCase, auth *jwt.Manager, log *logger.Logger) *StaffHandler {
	return &StaffHandler{
		useCase: useCase,
		auth:    auth,
		log:     log.With("handler", "staff"),
	}
}

// ============================================================
// HandleSearch - GET /api/staff/events/{eventId}/attendees?q=
// ============================================================
func (h *StaffHandler) HandleSearch(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...); err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	tickets, err := h.useCase.Search(ctx, eventID, request.QueryStringParameters["q"])
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(tickets)
}

// ============================================================
// HandleGetTicket - GET /api/staff/events/{eventId}/tickets/{ticketId}
// ============================================================
func (h *StaffHandler) HandleGetTicket(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...); err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, ticketID, err := eventAndTicket(request)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	ticket, err := h.useCase.GetTicket(ctx, eventID, ticketID)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(ticket)
}

// ============================================================
// HandleCheckIn - POST /api/staff/events/{eventId}/tickets/{ticketId}/checkin
// ============================================================
func (h *StaffHandler) HandleCheckIn(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, ticketID, err := eventAndTicket(request)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	ticket, err := h.useCase.CheckIn(ctx, eventID, ticketID, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(ticket)
}

// ============================================================
// HandleRedeem - POST /api/staff/events/{eventId}/tickets/{ticketId}/redeem
// ============================================================
func (h *StaffHandler) HandleRedeem(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, ticketID, err := eventAndTicket(request)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	ticket, err := h.useCase.RedeemItem(ctx, eventID, ticketID, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(ticket)
}

// ============================================================
// HandleGroupCheckIn - POST /api/staff/events/{eventId}/group-checkin
// ============================================================
func (h *StaffHandler) HandleGroupCheckIn(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	var req models.GroupCheckInRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	n, err := h.useCase.GroupCheckIn(ctx, eventID, req.TicketIDs, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(models.GroupCheckInResponse{CheckedInCount: n})
}

// ============================================================
// HandleListOrder - GET /api/staff/events/{eventId}/orders/{orderId}
// ============================================================
func (h *StaffHandler) HandleListOrder(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...); err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	tickets, err := h.useCase.ListOrder(ctx, eventID, request.PathParameters["orderId"])
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(tickets)
}

// ============================================================
// HandleEventStats - GET /api/staff/events/{eventId}/stats
// ============================================================
func (h *StaffHandler) HandleEventStats(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...); err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	stats, err := h.useCase.EventStats(ctx, eventID)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(stats)
}

// ============================================================
// HandleScan - POST /api/staff/scan
// ============================================================
func (h *StaffHandler) HandleScan(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := h.auth.Authorize(request.Headers, jwt.StaffRoles...); err != nil {
		return response.Error(ctx, h.log, err)
	}

	var req models.ScanRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	ticket, err := h.useCase.Scan(ctx, req.Credential)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(ticket)
}

// Route dispatches a lambda invocation by its resource template.
func (h *StaffHandler) Route(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return response.JSON(http.StatusOK, map[string]string{})
	}

	switch request.HTTPMethod + " " + request.Resource {
	case "GET /api/staff/events/{eventId}/attendees":
		return h.HandleSearch(ctx, request)
	case "GET /api/staff/events/{eventId}/tickets/{ticketId}":
		return h.HandleGetTicket(ctx, request)
	case "POST /api/staff/events/{eventId}/tickets/{ticketId}/checkin":
		return h.HandleCheckIn(ctx, request)
	case "POST /api/staff/events/{eventId}/tickets/{ticketId}/redeem":
		return h.HandleRedeem(ctx, request)
	case "POST /api/staff/events/{eventId}/group-checkin":
		return h.HandleGroupCheckIn(ctx, request)
	case "GET /api/staff/events/{eventId}/orders/{orderId}":
		return h.HandleListOrder(ctx, request)
	case "GET /api/staff/events/{eventId}/stats":
		return h.HandleEventStats(ctx, request)
	case "POST /api/staff/scan":
		return h.HandleScan(ctx, request)
	}
	return response.Error(ctx, h.log, apperrors.NotFound("Route"))
}

func pathID(request events.APIGatewayProxyRequest, name string) (int64, error) {
	raw := strings.TrimSpace(request.PathParameters[name])
	if raw == "" {
		return 0, apperrors.MissingField(name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput(name, name+" must be a positive integer")
	}
	return id, nil
}

func eventAndTicket(request events.APIGatewayProxyRequest) (int64, int64, error) {
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return 0, 0, err
	}
	ticketID, err := pathID(request, "ticketId")
	if err != nil {
		return 0, 0, err
	}
	return eventID, ticketID, nil
}
