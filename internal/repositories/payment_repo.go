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
)

const paymentColumns = "id, offer_id, buyer_id, amount, currency, payment_method, status, transaction_id, payment_reference, proof_reference, admin_reviewed_by, admin_reviewed_at, rejection_reason, created_at, updated_at"

// ProgressRow is the aggregate the progress service reads: completed-tranche
// count, paid total and the time of the most recent completed payment.
type ProgressRow struct {
	PaymentCount  int
	TotalPaid     float64
	LastPaymentAt *time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*models.Payment, error)
	ListByFilter(ctx context.Context, filter *models.PaymentSearchFilter) ([]*models.Payment, error)
	AmountPaid(ctx context.Context, offerID uuid.UUID) (float64, error)
	GetProgressRow(ctx context.Context, offerID uuid.UUID) (*ProgressRow, error)
	GetStats(ctx context.Context, now time.Time) (*models.PaymentStats, error)

	// CAS transitions out of pending. Reviewer fields change only together
	// with the status, in the same statement.
	VerifyCAS(ctx context.Context, id, adminID uuid.UUID) (bool, error)
	RejectCAS(ctx context.Context, id, adminID uuid.UUID, reason string) (bool, error)
	CancelCAS(ctx context.Context, id, buyerID uuid.UUID) (bool, error)
	CancelStale(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
}

type paymentRepo struct {
	db Database
}

func NewPaymentRepo(db Database) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, offer_id, buyer_id, amount, currency, payment_method, status, transaction_id, payment_reference, proof_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, payment.ID, payment.OfferID, payment.BuyerID, payment.Amount, payment.Currency, payment.PaymentMethod, payment.Status, payment.TransactionID, payment.PaymentReference, payment.ProofReference)
	return err
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	payment := &models.Payment{}
	err := row.Scan(&payment.ID, &payment.OfferID, &payment.BuyerID, &payment.Amount, &payment.Currency, &payment.PaymentMethod, &payment.Status, &payment.TransactionID, &payment.PaymentReference, &payment.ProofReference, &payment.AdminReviewedBy, &payment.AdminReviewedAt, &payment.RejectionReason, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("payment")
		}
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepo) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE offer_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListByFilter builds the admin review-screen query. Filters compose with
// AND; the free-text query matches reference, transaction id and method.
func (r *paymentRepo) ListByFilter(ctx context.Context, filter *models.PaymentSearchFilter) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}
	if q := common.SanitizeSearchQuery(filter.Query); q != "" {
		query += fmt.Sprintf(" AND (payment_reference ILIKE $%d OR transaction_id ILIKE $%d OR payment_method ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+q+"%")
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*models.Payment, error) {
	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// AmountPaid is the canonical paid-to-date sum: completed tranches only.
func (r *paymentRepo) AmountPaid(ctx context.Context, offerID uuid.UUID) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE offer_id = $1 AND status = 'completed'
	`
	var total float64
	err := r.db.QueryRow(ctx, query, offerID).Scan(&total)
	return total, err
}

func (r *paymentRepo) GetProgressRow(ctx context.Context, offerID uuid.UUID) (*ProgressRow, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), MAX(created_at)
		FROM payments
		WHERE offer_id = $1 AND status = 'completed'
	`
	row := &ProgressRow{}
	err := r.db.QueryRow(ctx, query, offerID).Scan(&row.PaymentCount, &row.TotalPaid, &row.LastPaymentAt)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetStats derives the dashboard counters from the ledger. Nothing here is
// separately maintained state.
func (r *paymentRepo) GetStats(ctx context.Context, now time.Time) (*models.PaymentStats, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stats := &models.PaymentStats{}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed' AND admin_reviewed_at >= $1),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND admin_reviewed_at >= $1), 0),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM payments
	`
	err := r.db.QueryRow(ctx, query, monthStart).Scan(&stats.PendingCount, &stats.CompletedThisMonth, &stats.CompletedMonthAmount, &stats.FailedCount)
	if err != nil {
		return nil, err
	}

	nearQuery := `
		SELECT COUNT(*)
		FROM (
			SELECT p.offer_id
			FROM payments p
			JOIN offers o ON o.id = p.offer_id
			WHERE p.status = 'completed'
			GROUP BY p.offer_id, o.offer_price
			HAVING SUM(p.amount) >= o.offer_price * $1
		) near
	`
	err = r.db.QueryRow(ctx, nearQuery, models.NearCompletionThreshold).Scan(&stats.BuyersNearCompletion)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// VerifyCAS flips pending -> completed and stamps the reviewing admin
// atomically. Zero rows means the payment is missing or already terminal.
func (r *paymentRepo) VerifyCAS(ctx context.Context, id, adminID uuid.UUID) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'completed', admin_reviewed_by = $2, admin_reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, adminID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *paymentRepo) RejectCAS(ctx context.Context, id, adminID uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'failed', admin_reviewed_by = $2, admin_reviewed_at = NOW(), rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, adminID, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelCAS guards on buyer_id so buyers can only cancel their own pending
// tranche.
func (r *paymentRepo) CancelCAS(ctx context.Context, id, buyerID uuid.UUID) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND buyer_id = $2 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, buyerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelStale is the sweep path: pending tranches older than the cutoff are
// cancelled system-side. Idempotent under concurrent sweeps.
func (r *paymentRepo) CancelStale(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE payments
		SET status = 'cancelled', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
