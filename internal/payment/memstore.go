package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps orders in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]Order
	events []Event
	now    func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]Order{}, now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for _, existing := range s.orders {
		if existing.ProviderOrderID == o.ProviderOrderID {
			return Order{}, ErrStatusConflict
		}
	}
	now := s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.Status == "" {
		o.Status = StatusCreated
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) GetByProviderOrderID(_ context.Context, providerOrderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ProviderOrderID == providerOrderID {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (s *MemoryStore) MarkPaid(_ context.Context, id, paymentID string, at time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status == StatusPaid {
		return Order{}, ErrStatusConflict
	}
	paidAt := at.UTC()
	o.Status = StatusPaid
	o.PaymentID = paymentID
	o.PaidAt = &paidAt
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return o, nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, paymentID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status != StatusCreated {
		return Order{}, ErrStatusConflict
	}
	o.Status = StatusFailed
	o.PaymentID = paymentID
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return o, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit, offset int) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return []Order{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) RecordEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the recorded audit entries.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
