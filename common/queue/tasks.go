// Package queue carries post-purchase work over asynq so a slow SMTP
// server never holds up checkout.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ticketbooth-services/common/logger"
)

const (
	TypeOrderConfirmation = "order:confirmation"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Task payloads
type OrderConfirmationPayload struct {
	OrderID string `json:"order_id"`
}

// NewOrderConfirmationTask builds the task that emails an order's tickets.
func NewOrderConfirmationTask(orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(OrderConfirmationPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOrderConfirmation, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	), nil
}

// ConfirmationSender delivers the confirmation for a committed order.
type ConfirmationSender interface {
	Send(ctx context.Context, orderID string) error
}

// Dispatcher enqueues confirmation tasks.
type Dispatcher struct {
	client *asynq.Client
	log    *logger.Logger
}

func NewDispatcher(client *asynq.Client, log *logger.Logger) *Dispatcher {
	return &Dispatcher{client: client, log: log.With("component", "queue")}
}

// OrderConfirmed enqueues the confirmation for orderID.
func (d *Dispatcher) OrderConfirmed(ctx context.Context, orderID string) error {
	task, err := NewOrderConfirmationTask(orderID)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue order confirmation: %w", err)
	}
	d.log.Debug("order confirmation enqueued", "order_id", orderID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Close releases the redis connection.
func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// Task handlers

// HandleOrderConfirmation returns an asynq handler backed by sender.
// Malformed payloads are not retried.
func HandleOrderConfirmation(sender ConfirmationSender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OrderConfirmationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		if payload.OrderID == "" {
			return fmt.Errorf("%s payload has no order id: %w", t.Type(), asynq.SkipRetry)
		}
		return sender.Send(ctx, payload.OrderID)
	}
}
