package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/notify"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/payment"
)

type mailerFixture struct {
	mailer     *Mailer
	orders     *payment.MemoryStore
	identities *identity.MemoryStore
	outbox     *notify.Recorder
}

func newMailerFixture(t *testing.T) mailerFixture {
	t.Helper()
	f := mailerFixture{
		orders:     payment.NewMemoryStore(),
		identities: identity.NewMemoryStore(),
		outbox:     &notify.Recorder{},
	}
	f.mailer = &Mailer{Orders: f.orders, Identities: f.identities, Notifier: f.outbox, Logger: zerolog.Nop()}
	return f
}

func (f mailerFixture) paidOrder(t *testing.T, userID string) payment.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.Insert(ctx, payment.Order{
		ProviderOrderID: "order_RcyIT0001",
		UserID:          userID,
		Amount:          49900,
		Currency:        "INR",
		Receipt:         "rcpt_0123456789abcdef0123",
		ServiceType:     "pickup",
	})
	require.NoError(t, err)
	o, err = f.orders.MarkPaid(ctx, o.ID, "pay_RcyIT0001", time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return o
}

func receiptTask(t *testing.T, orderID string) *asynq.Task {
	t.Helper()
	task, err := NewReceiptTask(orderID)
	require.NoError(t, err)
	return task
}

func TestNewReceiptTaskPayload(t *testing.T) {
	task := receiptTask(t, "1f6c")
	require.Equal(t, TypePaymentReceipt, task.Type())
	var p ReceiptPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	require.Equal(t, "1f6c", p.OrderID)

	_, err := NewReceiptTask("")
	require.Error(t, err)
}

func TestHandleReceiptSendsToOwner(t *testing.T) {
	f := newMailerFixture(t)
	f.identities.Put(identity.User{ID: "u1", Name: "Asha", Email: "asha@example.com"}, "asha@example.com", "")
	order := f.paidOrder(t, "u1")

	require.NoError(t, f.mailer.HandleReceipt(context.Background(), receiptTask(t, order.ID)))

	msgs := f.outbox.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "asha@example.com", msgs[0].Address)
	require.Equal(t, notify.TemplateReceipt, msgs[0].Template.Name)
	require.Contains(t, msgs[0].Template.Text, "₹499.00")
	require.Contains(t, msgs[0].Template.Text, "pay_RcyIT0001")
}

func TestHandleReceiptSkipsUnpaidAndUnknown(t *testing.T) {
	f := newMailerFixture(t)
	f.identities.Put(identity.User{ID: "u1", Email: "asha@example.com"}, "asha@example.com", "")
	o, err := f.orders.Insert(context.Background(), payment.Order{ProviderOrderID: "order_pending01", UserID: "u1", Amount: 100, Currency: "INR"})
	require.NoError(t, err)

	require.NoError(t, f.mailer.HandleReceipt(context.Background(), receiptTask(t, o.ID)))
	require.NoError(t, f.mailer.HandleReceipt(context.Background(), receiptTask(t, "missing")))
	require.Empty(t, f.outbox.Messages())
}

func TestHandleReceiptDeletedOwner(t *testing.T) {
	f := newMailerFixture(t)
	order := f.paidOrder(t, "gone")
	require.NoError(t, f.mailer.HandleReceipt(context.Background(), receiptTask(t, order.ID)))
	require.Empty(t, f.outbox.Messages())
}

func TestHandleReceiptSendFailureRetries(t *testing.T) {
	f := newMailerFixture(t)
	f.identities.Put(identity.User{ID: "u1", Email: "asha@example.com"}, "asha@example.com", "")
	order := f.paidOrder(t, "u1")
	f.outbox.Err = errors.New("sendgrid unavailable")

	err := f.mailer.HandleReceipt(context.Background(), receiptTask(t, order.ID))
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleReceiptBadPayloadSkipsRetry(t *testing.T) {
	f := newMailerFixture(t)
	err := f.mailer.HandleReceipt(context.Background(), asynq.NewTask(TypePaymentReceipt, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleWelcome(t *testing.T) {
	f := newMailerFixture(t)
	f.identities.Put(identity.Recycler{ID: "r1", Name: "Green Loop", Email: "ops@greenloop.in"}, "ops@greenloop.in", "")
	task, err := NewWelcomeTask(identity.RoleRecycler, "r1")
	require.NoError(t, err)

	require.NoError(t, f.mailer.HandleWelcome(context.Background(), task))
	msgs := f.outbox.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ops@greenloop.in", msgs[0].Address)
	require.Contains(t, msgs[0].Template.Text, "recycler account")

	bad := asynq.NewTask(TypeAccountWelcome, []byte(`{"role":"admin","id":"x"}`))
	require.ErrorIs(t, f.mailer.HandleWelcome(context.Background(), bad), asynq.SkipRetry)
}

func TestEnqueuerWithoutClientIsNoop(t *testing.T) {
	var e Enqueuer
	require.NoError(t, e.EnqueueReceipt(context.Background(), "o1"))
	require.NoError(t, e.EnqueueWelcome(context.Background(), identity.RoleUser, "u1"))
	require.Error(t, e.EnqueueReceipt(context.Background(), ""))
}
