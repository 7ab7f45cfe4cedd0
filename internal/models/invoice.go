package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	InvoiceStatusOpen    = "open"
	InvoiceStatusSettled = "settled"
	InvoiceStatusVoid    = "void"
)

// Invoice is the billing record created exactly once per approved offer.
// offer_id carries a UNIQUE constraint; amount_due stays at the seeded total
// and paid-to-date is always computed from the payment ledger.
type Invoice struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OfferID       uuid.UUID `json:"offer_id" db:"offer_id"`
	InvoiceNumber string    `json:"invoice_number" db:"invoice_number"`
	Total         float64   `json:"total" db:"total"`
	AmountDue     float64   `json:"amount_due" db:"amount_due"`
	Currency      string    `json:"currency" db:"currency"`
	Status        string    `json:"status" db:"status"`
	IssuedDate    time.Time `json:"issued_date" db:"issued_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
