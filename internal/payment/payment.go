// Package payment gates query evaluation behind a per-query UPI fee.
package payment

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claimlens/claimlens/internal/config"
)

// Order is a pending payment for one query evaluation.
type Order struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	Amount    int64     `json:"amount"`
	UPILink   string    `json:"upi_link"`
	Paid      bool      `json:"paid"`
	CreatedAt time.Time `json:"created_at"`
	PaidAt    time.Time `json:"paid_at,omitempty"`
}

// Verifier answers whether the evaluation fee for a query has been paid.
type Verifier interface {
	// CreateOrder returns a payment order with a UPI deep link for the query.
	// Calling it again for the same query returns the existing order.
	CreateOrder(ctx context.Context, queryID string) (*Order, error)
	// Confirm marks an order as paid.
	Confirm(ctx context.Context, orderID string) error
	// Verified reports whether the query's fee has been paid.
	Verified(ctx context.Context, queryID string) (bool, error)
}

// MemoryVerifier keeps payment orders in memory, keyed by query. Payment
// confirmation arrives out of band (the payer's UPI app), so Confirm is a
// plain state flip here.
type MemoryVerifier struct {
	upiID   string
	amount  int64
	mu      sync.Mutex
	byQuery map[string]*Order
	byID    map[string]*Order
}

// NewMemoryVerifier creates a verifier charging cfg.Amount rupees per query to
// cfg.UPIID.
func NewMemoryVerifier(cfg *config.PaymentConfig) *MemoryVerifier {
	return &MemoryVerifier{
		upiID:   cfg.UPIID,
		amount:  cfg.Amount,
		byQuery: make(map[string]*Order),
		byID:    make(map[string]*Order),
	}
}

// CreateOrder returns the order for queryID, creating it on first call.
func (v *MemoryVerifier) CreateOrder(ctx context.Context, queryID string) (*Order, error) {
	if queryID == "" {
		return nil, fmt.Errorf("query ID is required")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if order, ok := v.byQuery[queryID]; ok {
		return order, nil
	}
	order := &Order{
		ID:        uuid.New().String(),
		QueryID:   queryID,
		Amount:    v.amount,
		UPILink:   v.upiLink(queryID),
		CreatedAt: time.Now(),
	}
	v.byQuery[queryID] = order
	v.byID[order.ID] = order
	return order, nil
}

// Confirm marks the order paid. Confirming an already paid order is a no-op.
func (v *MemoryVerifier) Confirm(ctx context.Context, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	order, ok := v.byID[orderID]
	if !ok {
		return fmt.Errorf("payment order %s not found", orderID)
	}
	if !order.Paid {
		order.Paid = true
		order.PaidAt = time.Now()
	}
	return nil
}

// Verified reports whether queryID's fee has been paid.
func (v *MemoryVerifier) Verified(ctx context.Context, queryID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	order, ok := v.byQuery[queryID]
	return ok && order.Paid, nil
}

// upiLink builds a upi://pay deep link for the evaluation fee.
func (v *MemoryVerifier) upiLink(queryID string) string {
	q := url.Values{}
	q.Set("pa", v.upiID)
	q.Set("pn", "ClaimLens")
	q.Set("am", fmt.Sprintf("%d", v.amount))
	q.Set("cu", "INR")
	q.Set("tn", "Claim query "+queryID)
	return "upi://pay?" + q.Encode()
}

// AlwaysVerified is a Verifier for deployments with payment disabled.
type AlwaysVerified struct{}

func (AlwaysVerified) CreateOrder(ctx context.Context, queryID string) (*Order, error) {
	return &Order{QueryID: queryID, Paid: true, CreatedAt: time.Now()}, nil
}

func (AlwaysVerified) Confirm(ctx context.Context, orderID string) error { return nil }

func (AlwaysVerified) Verified(ctx context.Context, queryID string) (bool, error) {
	return true, nil
}
