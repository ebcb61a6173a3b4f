package payment

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a payment order.
type Status string

const (
	StatusCreated Status = "created"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Order is a persisted payment order.
type Order struct {
	ID              string     `json:"id"`
	ProviderOrderID string     `json:"orderId"`
	UserID          string     `json:"userId"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	Receipt         string     `json:"receipt"`
	ServiceType     string     `json:"serviceType,omitempty"`
	DeviceInfo      string     `json:"deviceInfo,omitempty"`
	PickupAddress   string     `json:"pickupAddress,omitempty"`
	Status          Status     `json:"status"`
	PaymentID       string     `json:"paymentId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
}

// Event is an audit entry for a status change.
type Event struct {
	OrderID string
	Source  string
	Status  Status
	Payload []byte
}

var (
	// ErrOrderNotFound is returned when no order matches a lookup.
	ErrOrderNotFound = errors.New("payment: order not found")
	// ErrStatusConflict is returned when a transition does not apply to the current state.
	ErrStatusConflict = errors.New("payment: order status conflict")
)

// Store persists payment orders.
type Store interface {
	Insert(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (Order, error)
	// MarkPaid moves a created or failed order to paid.
	MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (Order, error)
	// MarkFailed moves a created order to failed.
	MarkFailed(ctx context.Context, id, paymentID string) (Order, error)
	ListRecent(ctx context.Context, limit, offset int) ([]Order, int, error)
	RecordEvent(ctx context.Context, e Event) error
}
