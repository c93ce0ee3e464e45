// Package domain holds the order types shared by admission, processing and reads.
package domain

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a persisted order.
type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusFailed     OrderStatus = "failed"
)

// Valid reports whether s is one of the statuses the store accepts.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidateOrderID checks the business key format.
func ValidateOrderID(id string) error {
	if !orderIDPattern.MatchString(id) {
		return &ValidationError{Field: "order_id", Reason: "must be 1-100 characters of [A-Za-z0-9_-]"}
	}
	return nil
}

// Length limits of the optional order attributes.
const (
	MaxCustomerIDLen  = 100
	MaxDescriptionLen = 1000
)

// ValidateAttributes checks the optional customer id and description.
func ValidateAttributes(customerID, description string) error {
	if len(customerID) > MaxCustomerIDLen {
		return &ValidationError{Field: "customer_id", Reason: "too long"}
	}
	if len(description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: "too long"}
	}
	return nil
}

// Order is the authoritative order record kept in the store.
type Order struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Status      OrderStatus     `json:"status"`
	CustomerID  string          `json:"customer_id,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// ProcessedOrder is the result of enriching an OrderEvent, ready to be upserted.
type ProcessedOrder struct {
	OrderID     string
	Amount      decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	CustomerID  string
	Description string
}

// Process computes the derived financial fields for ev.
func Process(ev OrderEvent, taxRate decimal.Decimal) ProcessedOrder {
	amount := ev.Amount.Round(Scale)
	tax, total := ComputeCharges(amount, taxRate)
	return ProcessedOrder{
		OrderID:     ev.OrderID,
		Amount:      amount,
		Tax:         tax,
		Total:       total,
		CustomerID:  ev.CustomerID,
		Description: ev.Description,
	}
}

// CacheEntry is the document stored under order:<order_id>. A Pending entry is
// the marker written at admission, before the order has been persisted.
type CacheEntry struct {
	Order
	Pending bool `json:"pending,omitempty"`
}

// NewCacheEntry mirrors a persisted order.
func NewCacheEntry(o Order) CacheEntry {
	return CacheEntry{Order: o}
}

// NewPendingEntry builds the admission marker for ev.
func NewPendingEntry(ev OrderEvent) CacheEntry {
	return CacheEntry{
		Order: Order{
			OrderID:     ev.OrderID,
			Amount:      ev.Amount,
			Status:      StatusProcessing,
			CustomerID:  ev.CustomerID,
			Description: ev.Description,
			CreatedAt:   ev.SubmittedAt,
			UpdatedAt:   ev.SubmittedAt,
		},
		Pending: true,
	}
}
