package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/notify"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/payment"
)

// Mailer resolves task payloads into recipients and sends the email.
type Mailer struct {
	Orders     payment.Store
	Identities identity.Store
	Notifier   notify.Notifier
	Logger     zerolog.Logger
}

// Register installs the mail handlers on mux.
func (m *Mailer) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePaymentReceipt, m.HandleReceipt)
	mux.HandleFunc(TypeAccountWelcome, m.HandleWelcome)
}

// HandleReceipt sends the receipt for a paid order. Orders that are not paid
// or whose owner is gone are dropped without retry.
func (m *Mailer) HandleReceipt(ctx context.Context, t *asynq.Task) error {
	var p ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.OrderID == "" {
		obs.RecordReceiptEmail("invalid")
		return fmt.Errorf("receipt payload: %w", asynq.SkipRetry)
	}
	log := m.Logger.With().Str("task", t.Type()).Str("order_id", p.OrderID).Logger()

	order, err := m.Orders.GetByID(ctx, p.OrderID)
	if errors.Is(err, payment.ErrOrderNotFound) {
		log.Warn().Msg("receipt for unknown order dropped")
		obs.RecordReceiptEmail("skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order.Status != payment.StatusPaid {
		log.Warn().Str("status", string(order.Status)).Msg("receipt for unpaid order dropped")
		obs.RecordReceiptEmail("skipped")
		return nil
	}

	name, address, err := m.contact(ctx, identity.RoleUser, order.UserID)
	if errors.Is(err, identity.ErrNotFound) {
		log.Warn().Str("user_id", order.UserID).Msg("receipt owner no longer exists")
		obs.RecordReceiptEmail("skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}

	receipt := notify.Receipt{
		Name:        name,
		OrderID:     order.ProviderOrderID,
		PaymentID:   order.PaymentID,
		Receipt:     order.Receipt,
		Amount:      order.Amount,
		Currency:    order.Currency,
		ServiceType: order.ServiceType,
		PaidAt:      order.UpdatedAt,
	}
	if order.PaidAt != nil {
		receipt.PaidAt = *order.PaidAt
	}
	if err := m.Notifier.Send(log.WithContext(ctx), address, notify.ReceiptTemplate(receipt)); err != nil {
		obs.RecordReceiptEmail("failed")
		return fmt.Errorf("send receipt: %w", err)
	}
	obs.RecordReceiptEmail("sent")
	log.Info().Msg("payment receipt sent")
	return nil
}

// HandleWelcome greets a newly registered account.
func (m *Mailer) HandleWelcome(ctx context.Context, t *asynq.Task) error {
	var p WelcomePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.ID == "" {
		return fmt.Errorf("welcome payload: %w", asynq.SkipRetry)
	}
	role, err := identity.ParseRole(string(p.Role))
	if err != nil {
		return fmt.Errorf("welcome payload: %v: %w", err, asynq.SkipRetry)
	}
	name, address, err := m.contact(ctx, role, p.ID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if err := m.Notifier.Send(ctx, address, notify.WelcomeTemplate(name, role.String())); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	m.Logger.Info().Str("task", t.Type()).Str("role", role.String()).Str("account_id", p.ID).Msg("welcome email sent")
	return nil
}

func (m *Mailer) contact(ctx context.Context, role identity.Role, id string) (string, string, error) {
	p, err := m.Identities.FindByID(ctx, role, id)
	if err != nil {
		return "", "", err
	}
	switch v := p.(type) {
	case identity.User:
		return v.Name, v.Email, nil
	case identity.Recycler:
		return v.Name, v.Email, nil
	default:
		return "", "", fmt.Errorf("tasks: unsupported principal %T", p)
	}
}
