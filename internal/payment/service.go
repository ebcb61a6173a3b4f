package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/resilience"
)

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ReceiptEnqueuer schedules the payment receipt email for a paid order.
type ReceiptEnqueuer interface {
	EnqueueReceipt(ctx context.Context, orderID string) error
}

var (
	errOrderNotFound      = common.NewAppError(common.CodeNotFound, "Payment order not found", http.StatusNotFound, nil)
	errOrderForbidden     = common.NewAppError(common.CodeForbidden, "Not allowed to access this payment order", http.StatusForbidden, nil)
	errUsersOnly          = common.NewAppError(common.CodeForbidden, "Only users can create payment orders", http.StatusForbidden, nil)
	errVerificationFailed = common.NewAppError("PAYMENT_VERIFICATION_FAILED", "Payment verification failed", http.StatusBadRequest, nil)
	errAlreadyPaid        = common.NewAppError(common.CodeConflict, "Order already paid with a different payment", http.StatusConflict, nil)
	errInvalidWebhook     = common.NewAppError("WEBHOOK_SIGNATURE_INVALID", "Invalid webhook signature", http.StatusBadRequest, nil)
	errWebhookPayload     = common.NewAppError("WEBHOOK_PAYLOAD_INVALID", "Invalid webhook payload", http.StatusBadRequest, nil)
	errWebhookAmount      = common.NewAppError("WEBHOOK_AMOUNT_MISMATCH", "Webhook amount does not match order", http.StatusBadRequest, nil)
)

// Service coordinates payment orders with the gateway and the order store.
type Service struct {
	Store     Store
	Provider  Provider
	Locker    Locker
	LockTTL   time.Duration
	Receipts  ReceiptEnqueuer
	Replay    *redis.Client
	ReplayTTL time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) withOrderLock(ctx context.Context, orderID string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, "payment:order:"+orderID, s.LockTTL, fn)
}

// CreateOrderResult is returned to checkout clients.
type CreateOrderResult struct {
	Order Order
	KeyID string
}

// CreateOrder opens a gateway order for a user and persists it as created.
func (s *Service) CreateOrder(ctx context.Context, p identity.Principal, req OrderRequest) (CreateOrderResult, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateOrder")
	defer span.End()
	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("payment.order.result", result))
		obs.RecordPaymentOrder(result)
	}()

	if p == nil {
		return CreateOrderResult{}, common.Unauthorized("Not authorized, no token", nil)
	}
	if _, ok := p.(identity.User); !ok {
		result = "forbidden"
		return CreateOrderResult{}, errUsersOnly
	}
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	notes := map[string]string{"userId": p.Subject()}
	if req.ServiceType != "" {
		notes["serviceType"] = req.ServiceType
	}
	span.SetAttributes(
		attribute.Int64("payment.amount", req.Amount),
		attribute.String("payment.currency", currency),
	)

	gw, err := s.Provider.CreateOrder(ctx, ProviderOrderRequest{
		Amount:   req.Amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider create order")
		if errors.Is(err, resilience.ErrOpenCircuit) {
			result = "unavailable"
			return CreateOrderResult{}, common.NewAppError("PROVIDER_UNAVAILABLE", "Payment provider temporarily unavailable", http.StatusServiceUnavailable, err)
		}
		return CreateOrderResult{}, common.NewAppError("PROVIDER_ERROR", "Unable to create payment order", http.StatusBadGateway, err)
	}

	order, err := s.Store.Insert(ctx, Order{
		ProviderOrderID: gw.ID,
		UserID:          p.Subject(),
		Amount:          req.Amount,
		Currency:        currency,
		Receipt:         receipt,
		ServiceType:     req.ServiceType,
		DeviceInfo:      req.DeviceInfo,
		PickupAddress:   req.PickupAddress,
		Status:          StatusCreated,
	})
	if err != nil {
		span.RecordError(err)
		return CreateOrderResult{}, fmt.Errorf("persist payment order %s: %w", gw.ID, err)
	}
	s.recordEvent(ctx, Event{OrderID: order.ID, Source: "api", Status: StatusCreated})
	span.SetAttributes(attribute.String("payment.order.id", gw.ID))
	result = "success"
	return CreateOrderResult{Order: order, KeyID: s.Provider.KeyID()}, nil
}

func canAccess(p identity.Principal, o Order) bool {
	if p == nil {
		return false
	}
	return p.IsAdministrator() || p.Subject() == o.UserID
}

// VerifyResult reports the outcome of a checkout verification.
type VerifyResult struct {
	Order Order
	// AlreadyVerified is set when the same payment had been confirmed before.
	AlreadyVerified bool
}

// VerifyPayment checks the checkout signature and marks the order paid.
func (s *Service) VerifyPayment(ctx context.Context, p identity.Principal, req VerifyRequest) (VerifyResult, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.order.id", req.OrderID))
	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("payment.verify.result", result))
		obs.RecordPaymentVerify(result)
	}()

	order, err := s.Store.GetByProviderOrderID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			result = "not_found"
			return VerifyResult{}, errOrderNotFound
		}
		return VerifyResult{}, err
	}
	if !canAccess(p, order) {
		result = "forbidden"
		return VerifyResult{}, errOrderForbidden
	}

	var out VerifyResult
	err = s.withOrderLock(ctx, order.ID, func(ctx context.Context) error {
		current, err := s.Store.GetByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if !s.Provider.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature) {
			result = "signature_mismatch"
			s.recordEvent(ctx, Event{OrderID: current.ID, Source: "verify", Status: current.Status,
				Payload: mustJSON(map[string]string{"paymentId": req.PaymentID, "outcome": "signature_mismatch"})})
			return errVerificationFailed
		}
		if current.Status == StatusPaid {
			if current.PaymentID != req.PaymentID {
				result = "conflict"
				return errAlreadyPaid
			}
			result = "duplicate"
			out = VerifyResult{Order: current, AlreadyVerified: true}
			return nil
		}
		paid, err := s.Store.MarkPaid(ctx, current.ID, req.PaymentID, s.now())
		if err != nil {
			return err
		}
		s.recordEvent(ctx, Event{OrderID: paid.ID, Source: "verify", Status: StatusPaid,
			Payload: mustJSON(map[string]string{"paymentId": req.PaymentID})})
		s.enqueueReceipt(ctx, paid.ID)
		result = "success"
		out = VerifyResult{Order: paid}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return VerifyResult{}, err
	}
	return out, nil
}

func (s *Service) recordEvent(ctx context.Context, e Event) {
	if err := s.Store.RecordEvent(ctx, e); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", e.OrderID).Str("source", e.Source).Msg("record payment event failed")
	}
}

func (s *Service) enqueueReceipt(ctx context.Context, orderID string) {
	if s.Receipts == nil {
		return
	}
	if err := s.Receipts.EnqueueReceipt(ctx, orderID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("enqueue payment receipt failed")
	}
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity webhookEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity webhookEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type webhookEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

// WebhookResult reports what a webhook delivery changed.
type WebhookResult struct {
	Event     string
	Action    string
	Duplicate bool
}

// Webhook actions.
const (
	ActionPaid    = "paid"
	ActionFailed  = "failed"
	ActionIgnored = "ignored"
)

// HandleWebhook authenticates a gateway callback and applies it to the order.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (res WebhookResult, err error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()
	res.Event = "unknown"
	defer func() {
		outcome := res.Action
		switch {
		case err != nil:
			outcome = "error"
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				outcome = strings.ToLower(appErr.Code)
			}
		case res.Duplicate:
			outcome = "duplicate"
		}
		span.SetAttributes(attribute.String("payment.webhook.event", res.Event), attribute.String("payment.webhook.outcome", outcome))
		obs.RecordPaymentWebhook(res.Event, outcome)
	}()

	if !s.Provider.VerifyWebhookSignature(body, signature) {
		return res, errInvalidWebhook
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return res, errWebhookPayload
	}
	if env.Event != "" {
		res.Event = env.Event
	}

	replayKey := ""
	if s.Replay != nil && s.ReplayTTL > 0 {
		replayKey = fmt.Sprintf("wh:%s:%s", s.Provider.Name(), common.Sha256Hex(string(body)))
		ok, err := s.Replay.SetNX(ctx, replayKey, "1", s.ReplayTTL).Result()
		if err != nil {
			return res, fmt.Errorf("webhook replay store: %w", err)
		}
		if !ok {
			res.Duplicate = true
			return res, nil
		}
	}

	action, err := s.applyWebhook(ctx, env, body)
	if err != nil {
		if replayKey != "" && !common.IsAppError(err) {
			_ = s.Replay.Del(context.WithoutCancel(ctx), replayKey).Err()
		}
		span.RecordError(err)
		return res, err
	}
	res.Action = action
	return res, nil
}

func (s *Service) applyWebhook(ctx context.Context, env webhookEnvelope, raw []byte) (string, error) {
	var target Status
	switch env.Event {
	case "payment.captured", "order.paid":
		target = StatusPaid
	case "payment.failed":
		target = StatusFailed
	default:
		return ActionIgnored, nil
	}

	var payment webhookEntity
	if env.Payload.Payment != nil {
		payment = env.Payload.Payment.Entity
	}
	providerOrderID := payment.OrderID
	amount := payment.Amount
	if env.Payload.Order != nil {
		if providerOrderID == "" {
			providerOrderID = env.Payload.Order.Entity.ID
		}
		if amount == 0 {
			amount = env.Payload.Order.Entity.Amount
		}
	}
	if providerOrderID == "" {
		return ActionIgnored, nil
	}

	order, err := s.Store.GetByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			zerolog.Ctx(ctx).Warn().Str("provider_order_id", providerOrderID).Str("event", env.Event).Msg("webhook for unknown order")
			return ActionIgnored, nil
		}
		return "", err
	}
	if amount > 0 && amount != order.Amount {
		return "", errWebhookAmount
	}

	action := ActionIgnored
	err = s.withOrderLock(ctx, order.ID, func(ctx context.Context) error {
		var (
			updated Order
			err     error
		)
		switch target {
		case StatusPaid:
			updated, err = s.Store.MarkPaid(ctx, order.ID, payment.ID, s.now())
		case StatusFailed:
			updated, err = s.Store.MarkFailed(ctx, order.ID, payment.ID)
		}
		if errors.Is(err, ErrStatusConflict) {
			return nil
		}
		if err != nil {
			return err
		}
		s.recordEvent(ctx, Event{OrderID: updated.ID, Source: "webhook:" + env.Event, Status: updated.Status, Payload: raw})
		if updated.Status == StatusPaid {
			s.enqueueReceipt(ctx, updated.ID)
			action = ActionPaid
		} else {
			action = ActionFailed
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return action, nil
}

// Get returns an order by internal or gateway id for its owner or an administrator.
func (s *Service) Get(ctx context.Context, p identity.Principal, id string) (Order, error) {
	id = strings.TrimSpace(id)
	order, err := s.Store.GetByProviderOrderID(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			order, err = s.Store.GetByID(ctx, id)
		}
	}
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Order{}, errOrderNotFound
		}
		return Order{}, err
	}
	if !canAccess(p, order) {
		return Order{}, errOrderForbidden
	}
	return order, nil
}

// ListRecent pages through orders newest first.
func (s *Service) ListRecent(ctx context.Context, page, perPage int) ([]Order, int, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if page <= 0 {
		page = 1
	}
	return s.Store.ListRecent(ctx, perPage, (page-1)*perPage)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
