package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/jwt"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/response"
	"github.com/ticketbooth-services/services/event-lambda/models"
	"github.com/ticketbooth-services/services/event-lambda/usecase"
)

// EventHandler handles public event reads and admin event management.
type EventHandler struct {
	useCase *usecase.EventUseCase
	auth    *jwt.Manager
	log     *logger.Logger
	now     func() time.Time
}

func NewEventHandler(useCase *usecase.EventUseCase, auth *jwt.Manager, log *logger.Logger) *EventHandler {
	return &EventHandler{
		useCase: useCase,
		auth:    auth,
		log:     log.With("handler", "event"),
		now:     time.Now,
	}
}

// ============================================================
// HandleGetEvents - GET /api/events
// ?includePast=true also lists events that have ended
// ============================================================
func (h *EventHandler) HandleGetEvents(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	includePast, _ := strconv.ParseBool(request.QueryStringParameters["includePast"])

	list, err := h.useCase.ListEvents(ctx, includePast)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(list)
}

// ============================================================
// HandleGetEventDetail - GET /api/events/{eventId}
// ============================================================
func (h *EventHandler) HandleGetEventDetail(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	detail, err := h.useCase.GetEventDetail(ctx, eventID)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(detail)
}

// ============================================================
// HandleGetTicketTypes - GET /api/events/{eventId}/ticket-types
// ============================================================
func (h *EventHandler) HandleGetTicketTypes(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	types, err := h.useCase.ListTicketTypes(ctx, eventID)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(types)
}

// ============================================================
// HandleCreateEvent - POST /api/admin/events
// ============================================================
func (h *EventHandler) HandleCreateEvent(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.RoleAdmin)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	var req models.CreateEventRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	startAt, err := parseTimeField("startAt", req.StartAt)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	endAt, err := parseTimeField("endAt", req.EndAt)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	if err := h.validateWindow(startAt, endAt); err != nil {
		return response.Error(ctx, h.log, err)
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	detail, err := h.useCase.CreateEvent(ctx, &models.EventInput{
		Name:             req.Name,
		StartAt:          startAt,
		EndAt:            endAt,
		Location:         req.Location,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		TicketTypes:      req.TicketTypes,
	}, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.JSON(http.StatusCreated, response.SuccessResponse(detail))
}

// ============================================================
// HandleUpdateEvent - PUT /api/admin/events/{eventId}
// ============================================================
func (h *EventHandler) HandleUpdateEvent(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.RoleAdmin)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	var req models.UpdateEventRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	patch := models.EventPatch{
		Name:             req.Name,
		Location:         req.Location,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
	}
	if req.StartAt != nil {
		t, err := parseTimeField("startAt", *req.StartAt)
		if err != nil {
			return response.Error(ctx, h.log, err)
		}
		patch.StartAt = &t
	}
	if req.EndAt != nil {
		t, err := parseTimeField("endAt", *req.EndAt)
		if err != nil {
			return response.Error(ctx, h.log, err)
		}
		patch.EndAt = &t
	}
	if patch.StartAt != nil || patch.EndAt != nil {
		if err := h.validateReschedule(ctx, eventID, &patch); err != nil {
			return response.Error(ctx, h.log, err)
		}
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	event, err := h.useCase.UpdateEvent(ctx, eventID, &patch, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(event)
}

// ============================================================
// HandleDeleteEvent - DELETE /api/admin/events/{eventId}
// ============================================================
func (h *EventHandler) HandleDeleteEvent(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.RoleAdmin)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	if err := h.useCase.DeleteEvent(ctx, eventID, claims.Actor()); err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.Message(http.StatusOK, "Event deleted")
}

// ============================================================
// HandleCreateTicketType - POST /api/admin/events/{eventId}/ticket-types
// ============================================================
func (h *EventHandler) HandleCreateTicketType(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.RoleAdmin)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	var req models.TicketTypeInput
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	view, err := h.useCase.CreateTicketType(ctx, eventID, &req, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.JSON(http.StatusCreated, response.SuccessResponse(view))
}

// ============================================================
// HandleUpdateTicketType - PUT /api/admin/events/{eventId}/ticket-types/{ticketTypeId}
// ============================================================
func (h *EventHandler) HandleUpdateTicketType(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.RoleAdmin)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, typeID, err := eventAndTicketType(request)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	var req models.UpdateTicketTypeRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	view, err := h.useCase.UpdateTicketType(ctx, eventID, typeID, &req, claims.Actor())
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.OK(view)
}

// ============================================================
// HandleDeleteTicketType - DELETE /api/admin/events/{eventId}/ticket-types/{ticketTypeId}
// ============================================================
func (h *EventHandler) HandleDeleteTicketType(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := h.auth.Authorize(request.Headers, jwt.RoleAdmin)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}
	eventID, typeID, err := eventAndTicketType(request)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	ctx = context.WithValue(ctx, logger.StaffIDKey, claims.StaffID)
	if err := h.useCase.DeleteTicketType(ctx, eventID, typeID, claims.Actor()); err != nil {
		return response.Error(ctx, h.log, err)
	}
	return response.Message(http.StatusOK, "Ticket type deleted")
}

// Route dispatches a lambda invocation by its resource template.
func (h *EventHandler) Route(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return response.JSON(http.StatusOK, map[string]string{})
	}

	switch request.HTTPMethod + " " + request.Resource {
	case "GET /api/events":
		return h.HandleGetEvents(ctx, request)
	case "GET /api/events/{eventId}":
		return h.HandleGetEventDetail(ctx, request)
	case "GET /api/events/{eventId}/ticket-types":
		return h.HandleGetTicketTypes(ctx, request)
	case "POST /api/admin/events":
		return h.HandleCreateEvent(ctx, request)
	case "PUT /api/admin/events/{eventId}":
		return h.HandleUpdateEvent(ctx, request)
	case "DELETE /api/admin/events/{eventId}":
		return h.HandleDeleteEvent(ctx, request)
	case "POST /api/admin/events/{eventId}/ticket-types":
		return h.HandleCreateTicketType(ctx, request)
	case "PUT /api/admin/events/{eventId}/ticket-types/{ticketTypeId}":
		return h.HandleUpdateTicketType(ctx, request)
	case "DELETE /api/admin/events/{eventId}/ticket-types/{ticketTypeId}":
		return h.HandleDeleteTicketType(ctx, request)
	}
	return response.Error(ctx, h.log, apperrors.NotFound("Route"))
}

func (h *EventHandler) validateWindow(start, end time.Time) error {
	return timeError(ValidateEventTime(start, end, h.now()))
}

// validateReschedule checks the stored window merged with the patch. A
// start that stays put may already have passed.
func (h *EventHandler) validateReschedule(ctx context.Context, eventID int64, patch *models.EventPatch) error {
	current, err := h.useCase.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	start, end := current.StartAt, current.EndAt
	if patch.StartAt != nil {
		start = *patch.StartAt
	}
	if patch.EndAt != nil {
		end = *patch.EndAt
	}

	if start.Equal(current.StartAt) {
		return timeError(ValidateEventEndChange(start, end, h.now()))
	}
	return timeError(ValidateEventTime(start, end, h.now()))
}

func timeError(err error) error {
	if err == nil {
		return nil
	}
	var verr *TimeValidationError
	if errors.As(err, &verr) {
		return apperrors.InvalidInput(verr.Field, verr.Message)
	}
	return apperrors.ValidationError(err.Error())
}

func parseTimeField(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, apperrors.MissingField(field)
	}
	t, err := ParseEventTime(raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(field, "Unrecognised date/time format")
	}
	return t, nil
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

func eventAndTicketType(request events.APIGatewayProxyRequest) (int64, int64, error) {
	eventID, err := pathID(request, "eventId")
	if err != nil {
		return 0, 0, err
	}
	typeID, err := pathID(request, "ticketTypeId")
	if err != nil {
		return 0, 0, err
	}
	return eventID, typeID, nil
}
