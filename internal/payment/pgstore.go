package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id::text, provider_order_id, user_id, amount, currency, receipt, service_type,
	device_info, pickup_address, status, payment_id, created_at, updated_at, paid_at`

// PGStore persists orders in PostgreSQL.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.ProviderOrderID, &o.UserID, &o.Amount, &o.Currency, &o.Receipt,
		&o.ServiceType, &o.DeviceInfo, &o.PickupAddress, &status, &o.PaymentID,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (s *PGStore) Insert(ctx context.Context, o Order) (Order, error) {
	if o.Status == "" {
		o.Status = StatusCreated
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO payment_orders (provider_order_id, user_id, amount, currency, receipt,
			service_type, device_info, pickup_address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+orderColumns,
		o.ProviderOrderID, o.UserID, o.Amount, o.Currency, o.Receipt,
		o.ServiceType, o.DeviceInfo, o.PickupAddress, string(o.Status))
	saved, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Order{}, ErrStatusConflict
		}
		return Order{}, fmt.Errorf("insert payment order: %w", err)
	}
	return saved, nil
}

// orderKey normalises an internal order id. Ids that are not uuids cannot exist.
func orderKey(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrOrderNotFound
	}
	return parsed.String(), nil
}

func (s *PGStore) GetByID(ctx context.Context, id string) (Order, error) {
	key, err := orderKey(id)
	if err != nil {
		return Order{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = $1::uuid`, key)
	return scanOrder(row)
}

func (s *PGStore) GetByProviderOrderID(ctx context.Context, providerOrderID string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE provider_order_id = $1`, providerOrderID)
	return scanOrder(row)
}

func (s *PGStore) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (Order, error) {
	key, err := orderKey(id)
	if err != nil {
		return Order{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE payment_orders
		SET status = 'paid', payment_id = $2, paid_at = $3, updated_at = now()
		WHERE id = $1::uuid AND status <> 'paid'
		RETURNING `+orderColumns, key, paymentID, at.UTC())
	o, err := scanOrder(row)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, s.transitionError(ctx, key)
	}
	return o, err
}

func (s *PGStore) MarkFailed(ctx context.Context, id, paymentID string) (Order, error) {
	key, err := orderKey(id)
	if err != nil {
		return Order{}, err
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE payment_orders
		SET status = 'failed', payment_id = $2, updated_at = now()
		WHERE id = $1::uuid AND status = 'created'
		RETURNING `+orderColumns, key, paymentID)
	o, err := scanOrder(row)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, s.transitionError(ctx, key)
	}
	return o, err
}

// transitionError distinguishes a missing order from one in the wrong state.
func (s *PGStore) transitionError(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

func (s *PGStore) ListRecent(ctx context.Context, limit, offset int) ([]Order, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM payment_orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment orders: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+orderColumns+` FROM payment_orders
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment orders: %w", err)
	}
	defer rows.Close()
	orders := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (s *PGStore) RecordEvent(ctx context.Context, e Event) error {
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO payment_events (order_id, source, status, payload)
		VALUES ($1::uuid, $2, $3, $4::jsonb)`, e.OrderID, e.Source, string(e.Status), string(payload))
	if err != nil {
		return fmt.Errorf("record payment event: %w", err)
	}
	return nil
}
