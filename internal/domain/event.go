package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Queue field names of an order submission entry.
const (
	FieldEventID     = "event_id"
	FieldOrderID     = "order_id"
	FieldAmount      = "amount"
	FieldSubmittedAt = "submitted_at"
	FieldOrigin      = "origin"
	FieldCustomerID  = "customer_id"
	FieldDescription = "description"
)

// OrderEvent is an order submission as appended to the queue.
type OrderEvent struct {
	EventID     string
	OrderID     string
	Amount      decimal.Decimal
	SubmittedAt time.Time
	Origin      string
	CustomerID  string
	Description string
}

// Fields encodes the event as the flat string map stored in the queue.
// Optional attributes are omitted when empty.
func (e OrderEvent) Fields() map[string]string {
	f := map[string]string{
		FieldEventID:     e.EventID,
		FieldOrderID:     e.OrderID,
		FieldAmount:      e.Amount.StringFixed(Scale),
		FieldSubmittedAt: e.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Origin != "" {
		f[FieldOrigin] = e.Origin
	}
	if e.CustomerID != "" {
		f[FieldCustomerID] = e.CustomerID
	}
	if e.Description != "" {
		f[FieldDescription] = e.Description
	}
	return f
}

// DecodeOrderEvent parses a queue field map and applies the same bounds as
// admission. Entries that can never be processed are reported with
// ErrMalformedEntry.
func DecodeOrderEvent(fields map[string]string) (OrderEvent, error) {
	id := fields[FieldOrderID]
	if id == "" {
		return OrderEvent{}, fmt.Errorf("%w: missing %s", ErrMalformedEntry, FieldOrderID)
	}
	if err := ValidateOrderID(id); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	raw, ok := fields[FieldAmount]
	if !ok || raw == "" {
		return OrderEvent{}, fmt.Errorf("%w: missing %s", ErrMalformedEntry, FieldAmount)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("%w: amount %q: %v", ErrMalformedEntry, raw, err)
	}
	amount = amount.Round(Scale)
	if err := CheckAmount(amount); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: amount %q: %v", ErrMalformedEntry, raw, err)
	}
	if err := ValidateAttributes(fields[FieldCustomerID], fields[FieldDescription]); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}

	ev := OrderEvent{
		EventID:     fields[FieldEventID],
		OrderID:     id,
		Amount:      amount,
		Origin:      fields[FieldOrigin],
		CustomerID:  fields[FieldCustomerID],
		Description: fields[FieldDescription],
	}
	if ts := fields[FieldSubmittedAt]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.SubmittedAt = t
		}
	}
	return ev, nil
}
