package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/response"
	"github.com/ticketbooth-services/services/ticket-lambda/models"
	"github.com/ticketbooth-services/services/ticket-lambda/usecase"
)

type TicketHandler struct {
	useCase *usecase.PurchaseUseCase
	log     *logger.Logger
}

func NewTicketHandler(useCase *usecase.PurchaseUseCase, log *logger.Logger) *TicketHandler {
	return &TicketHandler{
		useCase: useCase,
		log:     log.With("handler", "ticket"),
	}
}

// HandlePurchase - POST /api/purchases
func (h *TicketHandler) HandlePurchase(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req models.PurchaseRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.Error(ctx, h.log, apperrors.ValidationError("Invalid request body"))
	}

	result, err := h.useCase.ProcessPurchase(ctx, &req)
	if err != nil {
		return response.Error(ctx, h.log, err)
	}

	return response.JSON(http.StatusCreated, models.PurchaseResponse{
		Success:      true,
		OrderID:      result.OrderID,
		TotalTickets: len(result.Tickets),
		Tickets:      result.Tickets,
		Pricing:      result.Pricing,
	})
}

// Route dispatches a lambda invocation to the matching handler.
func (h *TicketHandler) Route(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return response.JSON(http.StatusOK, map[string]string{})
	}
	switch request.HTTPMethod + " " + request.Resource {
	case "POST /api/purchases":
		return h.HandlePurchase(ctx, request)
	}
	return response.Error(ctx, h.log, apperrors.NotFound("Route"))
}
