// Package tasks defines the background jobs processed by cmd/worker.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
)

// Task types.
const (
	TypePaymentReceipt = "payment:receipt"
	TypeAccountWelcome = "account:welcome"
)

// QueueMail is the asynq queue carrying email jobs.
const QueueMail = "mail"

// ReceiptPayload identifies the paid order to confirm.
type ReceiptPayload struct {
	OrderID string `json:"orderId"`
}

// WelcomePayload identifies the freshly registered account.
type WelcomePayload struct {
	Role identity.Role `json:"role"`
	ID   string        `json:"id"`
}

// NewReceiptTask builds a receipt task. The task id is derived from the order
// so a verify call racing the gateway webhook schedules one email.
func NewReceiptTask(orderID string) (*asynq.Task, error) {
	if orderID == "" {
		return nil, errors.New("tasks: receipt order id required")
	}
	payload, err := json.Marshal(ReceiptPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentReceipt, payload,
		asynq.TaskID("receipt:"+orderID),
		asynq.Queue(QueueMail),
		asynq.MaxRetry(8),
		asynq.Retention(24*time.Hour),
	), nil
}

// NewWelcomeTask builds a welcome task for a new account.
func NewWelcomeTask(role identity.Role, id string) (*asynq.Task, error) {
	if id == "" {
		return nil, errors.New("tasks: welcome account id required")
	}
	payload, err := json.Marshal(WelcomePayload{Role: role, ID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAccountWelcome, payload,
		asynq.TaskID(fmt.Sprintf("welcome:%s:%s", role, id)),
		asynq.Queue(QueueMail),
		asynq.MaxRetry(5),
	), nil
}

// Enqueuer publishes tasks through an asynq client.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueueReceipt schedules the receipt email for a paid order.
func (e Enqueuer) EnqueueReceipt(ctx context.Context, orderID string) error {
	task, err := NewReceiptTask(orderID)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task)
}

// EnqueueWelcome schedules the welcome email for a new account.
func (e Enqueuer) EnqueueWelcome(ctx context.Context, role identity.Role, id string) error {
	task, err := NewWelcomeTask(role, id)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task)
}

func (e Enqueuer) enqueue(ctx context.Context, task *asynq.Task) error {
	if e.Client == nil {
		return nil
	}
	_, err := e.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
