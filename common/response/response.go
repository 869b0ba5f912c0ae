package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	apperrors "github.com/ticketbooth-services/common/errors"
	"github.com/ticketbooth-services/common/logger"
)

// CORS Headers for API responses
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET,POST,PUT,DELETE,OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type,Authorization",
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SuccessResponse creates a success response
func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// ErrorResponse creates an error response
func ErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

// MessageResponse creates a message-only response
func MessageResponse(message string) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
	}
}

func headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json;charset=UTF-8"}
	for k, v := range CORSHeaders {
		h[k] = v
	}
	return h
}

// JSON builds a gateway response with data marshalled as the body.
func JSON(statusCode int, data interface{}) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers(),
			Body:       `{"success":false,"error":"Internal server error"}`,
		}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers(),
		Body:       string(body),
	}, nil
}

// OK wraps data in a success envelope.
func OK(data interface{}) (events.APIGatewayProxyResponse, error) {
	return JSON(http.StatusOK, SuccessResponse(data))
}

// Message returns a message-only envelope.
func Message(statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	if statusCode >= 400 {
		return JSON(statusCode, ErrorResponse(message))
	}
	return JSON(statusCode, MessageResponse(message))
}

// Error renders err as an AppError body. Server errors are logged with
// their cause and returned to the client without details.
func Error(ctx context.Context, log *logger.Logger, err error) (events.APIGatewayProxyResponse, error) {
	appErr := apperrors.ToAppError(err)
	if appErr.IsServerError() {
		log.WithContext(ctx).WithError(appErr).Error("request failed",
			"code", string(appErr.Code),
			"stack", appErr.Stack)
	}
	return JSON(appErr.HTTPStatus, appErr.ToJSON())
}
