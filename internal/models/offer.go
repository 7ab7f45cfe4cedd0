package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer statuses. Only "pending" is reviewable; the rest are terminal from
// the admin's point of view except "approved", which can still expire.
const (
	OfferStatusPending   = "pending"
	OfferStatusApproved  = "approved"
	OfferStatusRejected  = "rejected"
	OfferStatusWithdrawn = "withdrawn"
	OfferStatusExpired   = "expired"
)

type Offer struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	Reference         string     `json:"reference" db:"reference"`
	BuyerID           uuid.UUID  `json:"buyer_id" db:"buyer_id"`
	PropertyID        uuid.UUID  `json:"property_id" db:"property_id"`
	OfferPrice        float64    `json:"offer_price" db:"offer_price"`
	Currency          string     `json:"currency" db:"currency"`
	DepositAmount     float64    `json:"deposit_amount" db:"deposit_amount"`
	EstimatedTimeline *string    `json:"estimated_timeline" db:"estimated_timeline"`
	Status            string     `json:"status" db:"status"`
	SubmittedAt       time.Time  `json:"submitted_at" db:"submitted_at"`
	ExpiresAt         *time.Time `json:"expires_at" db:"expires_at"`
	ReviewedBy        *uuid.UUID `json:"reviewed_by" db:"reviewed_by"`
	ReviewedAt        *time.Time `json:"reviewed_at" db:"reviewed_at"`
	RejectionReason   *string    `json:"rejection_reason" db:"rejection_reason"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the offer can no longer transition. An
// approved offer is not terminal: it may still expire.
func (o *Offer) IsTerminal() bool {
	switch o.Status {
	case OfferStatusRejected, OfferStatusWithdrawn, OfferStatusExpired:
		return true
	}
	return false
}
