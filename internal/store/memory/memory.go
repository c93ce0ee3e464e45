// Package memory is an in-process store.Store used by tests and local runs
// without Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// Store is a thread-safe map keyed by order_id.
type Store struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	now    func() time.Time

	// UpsertErr, when set, is consulted before every upsert.
	UpsertErr func(domain.ProcessedOrder) error
	// FindErr, when set, fails every lookup.
	FindErr error

	upserts int
}

func New() *Store {
	return &Store{orders: make(map[string]domain.Order), now: time.Now}
}

func (s *Store) UpsertOrder(_ context.Context, p domain.ProcessedOrder) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		if err := s.UpsertErr(p); err != nil {
			return domain.Order{}, err
		}
	}
	now := s.now().UTC()
	o, ok := s.orders[p.OrderID]
	if !ok {
		o = domain.Order{OrderID: p.OrderID, CreatedAt: now}
	}
	o.Amount, o.Tax, o.Total = p.Amount, p.Tax, p.Total
	o.Status = domain.StatusCompleted
	if p.CustomerID != "" {
		o.CustomerID = p.CustomerID
	}
	if p.Description != "" {
		o.Description = p.Description
	}
	o.UpdatedAt = now
	o.ProcessedAt = &now
	s.orders[p.OrderID] = o
	s.upserts++
	return o, nil
}

func (s *Store) FindOrder(_ context.Context, orderID string) (domain.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FindErr != nil {
		return domain.Order{}, false, s.FindErr
	}
	o, ok := s.orders[orderID]
	return o, ok, nil
}

// Put seeds a row as an external actor would.
func (s *Store) Put(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.OrderID] = o
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Upserts returns how many upserts succeeded.
func (s *Store) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}
