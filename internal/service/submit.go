package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// SubmitRequest is an inbound order creation request.
type SubmitRequest struct {
	OrderID     string
	Amount      float64
	CustomerID  string
	Description string
	Origin      string // requester address, recorded on the event
}

// Accepted describes a queued order.
type Accepted struct {
	OrderID string
	Amount  decimal.Decimal
	EventID string
	EntryID string
}

// Submit validates the request, rejects known orders and appends an
// OrderEvent to the queue. It never writes the store; the consumer does.
//
// Returned errors match domain.ErrValidation, domain.ErrDuplicate or
// domain.ErrQueueUnavailable. A failed append is not retried here.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Accepted, error) {
	ev, err := s.validate(req)
	if err != nil {
		return Accepted{}, s.reject(req.OrderID, err)
	}
	if err := s.checkDuplicate(ctx, ev.OrderID); err != nil {
		return Accepted{}, s.reject(ev.OrderID, err)
	}

	entryID, err := s.queue.Append(ctx, s.cfg.StreamKey, ev.Fields())
	if err != nil {
		if !errors.Is(err, domain.ErrQueueUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
		}
		return Accepted{}, s.reject(ev.OrderID, fmt.Errorf("submit %s: %w", ev.OrderID, err))
	}

	// Marker so an immediate resubmission is caught before the consumer
	// has persisted the order. A record the consumer already wrote wins.
	if _, err := s.cache.SetIfAbsent(ctx, cache.Key(ev.OrderID), domain.NewPendingEntry(ev), s.cfg.CacheTTL); err != nil {
		s.metrics.CacheErrors.WithLabelValues("set").Inc()
		s.log.WarnContext(ctx, "pending marker not cached", "order_id", ev.OrderID, "err", err)
	}

	s.metrics.Accepted.Inc()
	s.log.InfoContext(ctx, "order accepted", "order_id", ev.OrderID, "entry_id", entryID, "event_id", ev.EventID)
	return Accepted{OrderID: ev.OrderID, Amount: ev.Amount, EventID: ev.EventID, EntryID: entryID}, nil
}

func (s *Service) validate(req SubmitRequest) (domain.OrderEvent, error) {
	if err := domain.ValidateOrderID(req.OrderID); err != nil {
		return domain.OrderEvent{}, err
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return domain.OrderEvent{}, err
	}
	if err := domain.ValidateAttributes(req.CustomerID, req.Description); err != nil {
		return domain.OrderEvent{}, err
	}
	return domain.OrderEvent{
		EventID:     s.newID(),
		OrderID:     req.OrderID,
		Amount:      amount,
		SubmittedAt: s.now().UTC(),
		Origin:      req.Origin,
		CustomerID:  req.CustomerID,
		Description: req.Description,
	}, nil
}

// checkDuplicate consults the cache, then the store. Neither failing blocks
// admission: the consumer's upsert absorbs any duplicate that slips through.
func (s *Service) checkDuplicate(ctx context.Context, orderID string) error {
	entry, ok, err := s.cache.Get(ctx, cache.Key(orderID))
	switch {
	case err != nil:
		s.metrics.CacheErrors.WithLabelValues("get").Inc()
		s.log.WarnContext(ctx, "duplicate check: cache lookup failed", "order_id", orderID, "err", err)
	case ok:
		return &domain.DuplicateError{OrderID: orderID, Status: entry.Status, Snapshot: &entry}
	}

	o, found, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		s.log.WarnContext(ctx, "duplicate check: store lookup failed, admitting", "order_id", orderID, "err", err)
		return nil
	}
	if found {
		return &domain.DuplicateError{OrderID: orderID, Status: o.Status}
	}
	return nil
}

func (s *Service) reject(orderID string, err error) error {
	reason := domain.Reason(err)
	s.metrics.Rejected.WithLabelValues(reason).Inc()
	if errors.Is(err, domain.ErrQueueUnavailable) {
		s.log.Error("order rejected", "order_id", orderID, "reason", reason, "err", err)
	} else {
		s.log.Info("order rejected", "order_id", orderID, "reason", reason)
	}
	return err
}
