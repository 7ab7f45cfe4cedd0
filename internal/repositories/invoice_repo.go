package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres error code raised when the UNIQUE
// constraint on invoices.offer_id fires.
const uniqueViolation = "23505"

type InvoiceRepository interface {
	CreateTx(ctx context.Context, q Executor, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error)
	NextInvoiceNumber(ctx context.Context, q Executor, issuedDate time.Time) (string, error)
	SettleCAS(ctx context.Context, id uuid.UUID) (bool, error)
	VoidByOfferID(ctx context.Context, offerID uuid.UUID) error
}

type invoiceRepo struct {
	db Database
}

func NewInvoiceRepo(db Database) InvoiceRepository {
	return &invoiceRepo{db: db}
}

// CreateTx inserts the invoice on the supplied Executor so the insert shares
// the approval transaction. A duplicate offer_id surfaces as ConflictError;
// callers racing to create treat it as "already exists, fetch it".
func (r *invoiceRepo) CreateTx(ctx context.Context, q Executor, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, offer_id, invoice_number, total, amount_due, currency, status, issued_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query, invoice.ID, invoice.OfferID, invoice.InvoiceNumber, invoice.Total, invoice.AmountDue, invoice.Currency, invoice.Status, invoice.IssuedDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.Conflictf("invoice", "invoice already exists for offer %s", invoice.OfferID)
		}
		return err
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	query := `
		SELECT id, offer_id, invoice_number, total, amount_due, currency, status, issued_date, created_at, updated_at
		FROM invoices
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&invoice.ID, &invoice.OfferID, &invoice.InvoiceNumber, &invoice.Total, &invoice.AmountDue, &invoice.Currency, &invoice.Status, &invoice.IssuedDate, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("invoice")
		}
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	query := `
		SELECT id, offer_id, invoice_number, total, amount_due, currency, status, issued_date, created_at, updated_at
		FROM invoices
		WHERE offer_id = $1
	`
	err := r.db.QueryRow(ctx, query, offerID).Scan(&invoice.ID, &invoice.OfferID, &invoice.InvoiceNumber, &invoice.Total, &invoice.AmountDue, &invoice.Currency, &invoice.Status, &invoice.IssuedDate, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("invoice")
		}
		return nil, err
	}
	return invoice, nil
}

// NextInvoiceNumber allocates the next number from the per-month sequence
// row. The upsert returns the incremented counter atomically; numbers are
// unique and monotonic within a month, gaps are tolerated.
func (r *invoiceRepo) NextInvoiceNumber(ctx context.Context, q Executor, issuedDate time.Time) (string, error) {
	yearMonth := issuedDate.Format("2006-01")

	query := `
		WITH upsert AS (
			INSERT INTO invoice_sequences (year_month, last_number)
			VALUES ($1, 1)
			ON CONFLICT (year_month)
			DO UPDATE SET
				last_number = invoice_sequences.last_number + 1,
				updated_at = NOW()
			RETURNING last_number
		)
		SELECT last_number FROM upsert
	`

	var sequenceNum int
	if err := q.QueryRow(ctx, query, yearMonth).Scan(&sequenceNum); err != nil {
		return "", fmt.Errorf("failed to generate invoice sequence: %w", err)
	}

	return fmt.Sprintf("INV-%s-%06d", yearMonth, sequenceNum), nil
}

// SettleCAS flips open -> settled once the ledger covers the total.
func (r *invoiceRepo) SettleCAS(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'settled', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// VoidByOfferID voids a still-open invoice when its offer expires.
func (r *invoiceRepo) VoidByOfferID(ctx context.Context, offerID uuid.UUID) error {
	query := `
		UPDATE invoices
		SET status = 'void', updated_at = NOW()
		WHERE offer_id = $1 AND status = 'open'
	`
	_, err := r.db.Exec(ctx, query, offerID)
	return err
}
