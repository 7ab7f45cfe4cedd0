package services

import (
	"context"
	"log"
	"time"

	"propledger/internal/caching"
	"propledger/internal/common"
	"propledger/internal/models"
	"propledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/gommon/random"
)

// maxOfferPrice caps a single offer. Guards against fat-finger input and
// float precision loss, not a business limit.
const maxOfferPrice = 1000000000.00

// SubmitOfferRequest carries the buyer's proposal.
type SubmitOfferRequest struct {
	BuyerID           uuid.UUID
	PropertyID        uuid.UUID
	OfferPrice        float64
	Currency          string
	DepositAmount     float64
	EstimatedTimeline *string
	ExpiresAt         *time.Time
}

type OfferServiceInterface interface {
	Submit(ctx context.Context, req *SubmitOfferRequest) (*models.Offer, error)
	GetByID(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	List(ctx context.Context, status string, limit, offset int) ([]*models.Offer, error)
	Approve(ctx context.Context, offerID, adminID uuid.UUID) (*models.Offer, error)
	Reject(ctx context.Context, offerID, adminID uuid.UUID, reason string) (*models.Offer, error)
	Withdraw(ctx context.Context, offerID, buyerID uuid.UUID) error
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type offerService struct {
	db          repositories.Database
	offerRepo   repositories.OfferRepository
	invoiceRepo repositories.InvoiceRepository
	invoiceSvc  InvoiceServiceInterface
	cacheSvc    caching.CacheService
	notifier    NotificationService
}

// NewOfferService creates a new offer service
func NewOfferService(db repositories.Database, offerRepo repositories.OfferRepository, invoiceRepo repositories.InvoiceRepository, invoiceSvc InvoiceServiceInterface, cacheSvc caching.CacheService, notifier NotificationService) OfferServiceInterface {
	return &offerService{
		db:          db,
		offerRepo:   offerRepo,
		invoiceRepo: invoiceRepo,
		invoiceSvc:  invoiceSvc,
		cacheSvc:    cacheSvc,
		notifier:    notifier,
	}
}

// Submit creates a pending offer. One non-terminal offer per
// (buyer, property) pair: a second concurrent bid is rejected here.
func (s *offerService) Submit(ctx context.Context, req *SubmitOfferRequest) (*models.Offer, error) {
	if err := common.ValidatePositiveFloat(req.OfferPrice, "offer_price", maxOfferPrice); err != nil {
		return nil, err
	}
	if req.DepositAmount < 0 {
		return nil, common.Validationf("deposit_amount", "cannot be negative")
	}
	if req.DepositAmount > req.OfferPrice {
		return nil, common.Validationf("deposit_amount", "cannot exceed offer price")
	}
	if err := common.ValidateCurrency(req.Currency, "currency"); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		return nil, common.Validationf("expires_at", "cannot be in the past")
	}

	active, err := s.offerRepo.HasActiveOffer(ctx, req.BuyerID, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, common.Validationf("property_id", "an active offer already exists for this property")
	}

	now := time.Now()
	offer := &models.Offer{
		ID:                uuid.New(),
		Reference:         "OFF-" + random.String(8, random.Uppercase, random.Numeric),
		BuyerID:           req.BuyerID,
		PropertyID:        req.PropertyID,
		OfferPrice:        req.OfferPrice,
		Currency:          req.Currency,
		DepositAmount:     req.DepositAmount,
		EstimatedTimeline: req.EstimatedTimeline,
		Status:            models.OfferStatusPending,
		SubmittedAt:       now,
		ExpiresAt:         req.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *offerService) GetByID(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return s.offerRepo.GetByID(ctx, offerID)
}

func (s *offerService) List(ctx context.Context, status string, limit, offset int) ([]*models.Offer, error) {
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	return s.offerRepo.List(ctx, status, limit, offset)
}

// Approve flips the offer pending -> approved and creates its invoice in the
// same transaction. Of two admins racing on the same offer exactly one wins
// the CAS; the other gets ConflictError, never a silent success.
func (s *offerService) Approve(ctx context.Context, offerID, adminID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusPending {
		return nil, common.Conflictf("offer", "already %s", offer.Status)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.offerRepo.ApproveCAS(ctx, tx, offerID, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Moved on between the fetch and the CAS.
		return nil, common.Conflictf("offer", "already reviewed by someone else")
	}

	if _, err := s.invoiceSvc.CreateForApprovedOffer(ctx, tx, offer); err != nil {
		// A duplicate invoice here means a racing approval already
		// committed; surface it as the same conflict.
		if common.IsConflict(err) {
			return nil, common.Conflictf("offer", "already reviewed by someone else")
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	approved, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheSvc.InvalidateOffer(ctx, offerID); err != nil {
		log.Printf("cache invalidation failed for offer %s: %v", offerID, err)
	}
	s.notifier.OfferApproved(approved)

	return approved, nil
}

// Reject is terminal and requires a reason.
func (s *offerService) Reject(ctx context.Context, offerID, adminID uuid.UUID, reason string) (*models.Offer, error) {
	if err := common.ValidateRequiredString(reason, "reason"); err != nil {
		return nil, err
	}

	ok, err := s.offerRepo.RejectCAS(ctx, offerID, adminID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		offer, err := s.offerRepo.GetByID(ctx, offerID)
		if err != nil {
			return nil, err
		}
		return nil, common.Conflictf("offer", "already %s", offer.Status)
	}

	rejected, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheSvc.InvalidateOffer(ctx, offerID); err != nil {
		log.Printf("cache invalidation failed for offer %s: %v", offerID, err)
	}
	s.notifier.OfferRejected(rejected, reason)

	return rejected, nil
}

// Withdraw is buyer-initiated and only legal from pending. A buyer probing
// someone else's offer gets NotFoundError rather than a conflict, to avoid
// leaking its existence.
func (s *offerService) Withdraw(ctx context.Context, offerID, buyerID uuid.UUID) error {
	ok, err := s.offerRepo.WithdrawCAS(ctx, offerID, buyerID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.BuyerID != buyerID {
		return common.NotFound("offer")
	}
	return common.Conflictf("offer", "already %s", offer.Status)
}

// ExpireDue is the periodic sweep: approved offers past expires_at flip to
// expired and their open invoices are voided. Each expiry is its own CAS,
// so the sweep is idempotent and safe to run concurrently with itself.
func (s *offerService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.offerRepo.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.invoiceRepo.VoidByOfferID(ctx, id); err != nil {
			log.Printf("failed to void invoice for expired offer %s: %v", id, err)
		}
		if err := s.cacheSvc.InvalidateOffer(ctx, id); err != nil {
			log.Printf("cache invalidation failed for offer %s: %v", id, err)
		}
	}
	return len(ids), nil
}
