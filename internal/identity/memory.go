package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRecord struct {
	principal Principal
	email     string
	hash      string
}

// MemoryStore keeps principals in process memory. It backs tests and local runs
// without MongoDB.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Role]map[string]memoryRecord
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[Role]map[string]memoryRecord{
			RoleUser:     {},
			RoleRecycler: {},
		},
		now: time.Now,
	}
}

// Put stores a principal directly, replacing any record with the same id.
func (s *MemoryStore) Put(p Principal, email, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[p.Role()][p.Subject()] = memoryRecord{principal: p, email: NormalizeEmail(email), hash: passwordHash}
}

// Delete removes a principal, simulating an account deletion.
func (s *MemoryStore) Delete(role Role, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records[role], id)
}

func (s *MemoryStore) FindByID(_ context.Context, role Role, id string) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.records[role]
	if !ok {
		return nil, fmt.Errorf("identity: unsupported role %q", role)
	}
	rec, ok := bucket[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.principal, nil
}

func (s *MemoryStore) FindCredentials(_ context.Context, role Role, email string) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	normalized := NormalizeEmail(email)
	for _, rec := range s.records[role] {
		if rec.email == normalized {
			return Credentials{Principal: rec.principal, PasswordHash: rec.hash}, nil
		}
	}
	return Credentials{}, ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, role Role, account NewAccount) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.records[role]
	if !ok {
		return nil, fmt.Errorf("identity: unsupported role %q", role)
	}
	email := NormalizeEmail(account.Email)
	for _, rec := range bucket {
		if rec.email == email {
			return nil, ErrDuplicateEmail
		}
	}
	id := uuid.NewString()
	created := s.now().UTC()
	var p Principal
	switch role {
	case RoleUser:
		p = User{ID: id, Name: account.Name, Email: email, Phone: account.Phone, CreatedAt: created}
	case RoleRecycler:
		p = Recycler{ID: id, Name: account.Name, Email: email, Phone: account.Phone, CompanyName: account.CompanyName, CreatedAt: created}
	}
	bucket[id] = memoryRecord{principal: p, email: email, hash: account.PasswordHash}
	return p, nil
}
