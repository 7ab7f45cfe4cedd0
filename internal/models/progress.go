package models

import (
	"time"

	"github.com/google/uuid"
)

// NearCompletionThreshold flags buyers who have paid at least this share of
// the offer price. Operational threshold, not a state-machine state.
const NearCompletionThreshold = 0.8

// BuyerProgress is the derived paid-to-date read model for one offer. It is
// computed on demand from the payment ledger and never persisted, so it
// cannot drift from the ledger.
type BuyerProgress struct {
	OfferID        uuid.UUID  `json:"offer_id"`
	OfferPrice     float64    `json:"offer_price"`
	Currency       string     `json:"currency"`
	TotalPaid      float64    `json:"total_paid"`
	Percent        float64    `json:"percent"`     // clamped at 1.0 for display
	RawRatio       float64    `json:"raw_ratio"`   // unclamped, audits over-payment
	PaymentCount   int        `json:"payment_count"`
	LastPaymentAt  *time.Time `json:"last_payment_at"`
	NearCompletion bool       `json:"near_completion"`
}
