package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses. "pending" is the only non-terminal status; a rejected
// payment never becomes completed, the buyer submits a new one instead.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

type Payment struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	OfferID          uuid.UUID  `json:"offer_id" db:"offer_id"`
	BuyerID          uuid.UUID  `json:"buyer_id" db:"buyer_id"`
	Amount           float64    `json:"amount" db:"amount"`
	Currency         string     `json:"currency" db:"currency"`
	PaymentMethod    string     `json:"payment_method" db:"payment_method"`
	Status           string     `json:"status" db:"status"`
	TransactionID    *string    `json:"transaction_id" db:"transaction_id"`
	PaymentReference *string    `json:"payment_reference" db:"payment_reference"`
	ProofReference   *string    `json:"proof_reference" db:"proof_reference"`
	AdminReviewedBy  *uuid.UUID `json:"admin_reviewed_by" db:"admin_reviewed_by"`
	AdminReviewedAt  *time.Time `json:"admin_reviewed_at" db:"admin_reviewed_at"`
	RejectionReason  *string    `json:"rejection_reason" db:"rejection_reason"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the payment record is immutable.
func (p *Payment) IsTerminal() bool {
	return p.Status != PaymentStatusPending
}

// PaymentSearchFilter holds filter criteria for ledger listing queries.
type PaymentSearchFilter struct {
	Status *string    `json:"status,omitempty"` // pending, completed, failed, cancelled
	From   *time.Time `json:"from,omitempty"`   // created_at lower bound
	To     *time.Time `json:"to,omitempty"`     // created_at upper bound
	Query  string     `json:"query,omitempty"`  // free text across reference, transaction id, method
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// PaymentStats holds the aggregate counts for the admin review dashboard.
// Derived from ledger queries, never separately maintained.
type PaymentStats struct {
	PendingCount         int     `json:"pending_count"`
	CompletedThisMonth   int     `json:"completed_this_month"`
	CompletedMonthAmount float64 `json:"completed_month_amount"`
	FailedCount          int     `json:"failed_count"`
	BuyersNearCompletion int     `json:"buyers_near_completion"`
}
