package repositories

import (
	"context"
	"errors"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	HasActiveOffer(ctx context.Context, buyerID, propertyID uuid.UUID) (bool, error)
	List(ctx context.Context, status string, limit, offset int) ([]*models.Offer, error)

	// CAS transitions. Each returns false when zero rows matched, meaning
	// the offer is missing or has already moved on.
	ApproveCAS(ctx context.Context, q Executor, id, adminID uuid.UUID) (bool, error)
	RejectCAS(ctx context.Context, id, adminID uuid.UUID, reason string) (bool, error)
	WithdrawCAS(ctx context.Context, id, buyerID uuid.UUID) (bool, error)
	ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type offerRepo struct {
	db Database
}

func NewOfferRepo(db Database) OfferRepository {
	return &offerRepo{db: db}
}

func (r *offerRepo) Create(ctx context.Context, offer *models.Offer) error {
	query := `
		INSERT INTO offers (id, reference, buyer_id, property_id, offer_price, currency, deposit_amount, estimated_timeline, status, submitted_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, offer.ID, offer.Reference, offer.BuyerID, offer.PropertyID, offer.OfferPrice, offer.Currency, offer.DepositAmount, offer.EstimatedTimeline, offer.Status, offer.SubmittedAt, offer.ExpiresAt)
	if err != nil {
		// Two buyers racing past HasActiveOffer land on the partial unique
		// index; the loser gets a conflict, not a raw driver error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.Conflictf("offer", "an active offer already exists for this property")
		}
		return err
	}
	return nil
}

func (r *offerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer := &models.Offer{}
	query := `
		SELECT id, reference, buyer_id, property_id, offer_price, currency, deposit_amount, estimated_timeline, status, submitted_at, expires_at, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at
		FROM offers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&offer.ID, &offer.Reference, &offer.BuyerID, &offer.PropertyID, &offer.OfferPrice, &offer.Currency, &offer.DepositAmount, &offer.EstimatedTimeline, &offer.Status, &offer.SubmittedAt, &offer.ExpiresAt, &offer.ReviewedBy, &offer.ReviewedAt, &offer.RejectionReason, &offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("offer")
		}
		return nil, err
	}
	return offer, nil
}

// HasActiveOffer reports whether a non-terminal offer already exists for the
// (buyer, property) pair. Backed by a partial unique index as well, this is
// the request-path duplicate-bid guard.
func (r *offerRepo) HasActiveOffer(ctx context.Context, buyerID, propertyID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM offers
			WHERE buyer_id = $1 AND property_id = $2 AND status IN ('pending', 'approved')
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, buyerID, propertyID).Scan(&exists)
	return exists, err
}

func (r *offerRepo) List(ctx context.Context, status string, limit, offset int) ([]*models.Offer, error) {
	query := `
		SELECT id, reference, buyer_id, property_id, offer_price, currency, deposit_amount, estimated_timeline, status, submitted_at, expires_at, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at
		FROM offers
		WHERE ($1 = '' OR status = $1)
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*models.Offer
	for rows.Next() {
		offer := &models.Offer{}
		if err := rows.Scan(&offer.ID, &offer.Reference, &offer.BuyerID, &offer.PropertyID, &offer.OfferPrice, &offer.Currency, &offer.DepositAmount, &offer.EstimatedTimeline, &offer.Status, &offer.SubmittedAt, &offer.ExpiresAt, &offer.ReviewedBy, &offer.ReviewedAt, &offer.RejectionReason, &offer.CreatedAt, &offer.UpdatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

// ApproveCAS flips pending -> approved and records the reviewer in the same
// statement. It runs on the supplied Executor so the caller can place it
// inside the invoice-creation transaction.
func (r *offerRepo) ApproveCAS(ctx context.Context, q Executor, id, adminID uuid.UUID) (bool, error) {
	query := `
		UPDATE offers
		SET status = 'approved', reviewed_by = $2, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := q.Exec(ctx, query, id, adminID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *offerRepo) RejectCAS(ctx context.Context, id, adminID uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE offers
		SET status = 'rejected', reviewed_by = $2, reviewed_at = NOW(), rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, adminID, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// WithdrawCAS also guards on buyer_id so a buyer can only withdraw their own
// pending offer.
func (r *offerRepo) WithdrawCAS(ctx context.Context, id, buyerID uuid.UUID) (bool, error) {
	query := `
		UPDATE offers
		SET status = 'withdrawn', updated_at = NOW()
		WHERE id = $1 AND buyer_id = $2 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, id, buyerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireDue transitions approved offers past their expiry to expired and
// returns the affected ids. Each row flips under the same status guard, so
// concurrent sweeps cannot double-expire.
func (r *offerRepo) ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE offers
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'approved' AND expires_at IS NOT NULL AND expires_at < $1
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, now)
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
