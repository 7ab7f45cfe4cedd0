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

// SubmitPaymentRequest carries one tranche submission toward an approved
// offer.
type SubmitPaymentRequest struct {
	OfferID        uuid.UUID
	BuyerID        uuid.UUID
	Amount         float64
	Currency       string
	PaymentMethod  string
	TransactionID  *string
	ProofReference *string
}

type PaymentServiceInterface interface {
	Submit(ctx context.Context, req *SubmitPaymentRequest) (*models.Payment, error)
	GetByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	ListForOffer(ctx context.Context, offerID uuid.UUID) ([]*models.Payment, error)
	ListByFilter(ctx context.Context, filter *models.PaymentSearchFilter) ([]*models.Payment, error)
	AmountPaid(ctx context.Context, offerID uuid.UUID) (float64, error)
	Cancel(ctx context.Context, paymentID, buyerID uuid.UUID) error
	Stats(ctx context.Context) (*models.PaymentStats, error)
	CancelStale(ctx context.Context, olderThan time.Time) (int, error)
}

type paymentService struct {
	paymentRepo repositories.PaymentRepository
	offerRepo   repositories.OfferRepository
	cacheSvc    caching.CacheService
}

// NewPaymentService creates a new payment ledger service
func NewPaymentService(paymentRepo repositories.PaymentRepository, offerRepo repositories.OfferRepository, cacheSvc caching.CacheService) PaymentServiceInterface {
	return &paymentService{
		paymentRepo: paymentRepo,
		offerRepo:   offerRepo,
		cacheSvc:    cacheSvc,
	}
}

// Submit records a pending tranche. The offer must be approved, belong to
// the submitting buyer, and the tranche currency must match the offer's.
func (s *paymentService) Submit(ctx context.Context, req *SubmitPaymentRequest) (*models.Payment, error) {
	if err := common.ValidatePositiveFloat(req.Amount, "amount", maxOfferPrice); err != nil {
		return nil, err
	}
	if err := common.ValidateCurrency(req.Currency, "currency"); err != nil {
		return nil, err
	}
	if err := common.ValidateRequiredString(req.PaymentMethod, "payment_method"); err != nil {
		return nil, err
	}

	offer, err := s.offerRepo.GetByID(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.BuyerID != req.BuyerID {
		return nil, common.NotFound("offer")
	}
	if offer.Status != models.OfferStatusApproved {
		return nil, common.Validationf("offer_id", "offer is %s; payments require an approved offer", offer.Status)
	}
	if offer.Currency != req.Currency {
		return nil, common.Validationf("currency", "must match the offer currency %s", offer.Currency)
	}

	now := time.Now()
	ref := "PAY-" + random.String(8, random.Uppercase, random.Numeric)
	payment := &models.Payment{
		ID:               uuid.New(),
		OfferID:          req.OfferID,
		BuyerID:          req.BuyerID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		PaymentMethod:    req.PaymentMethod,
		Status:           models.PaymentStatusPending,
		TransactionID:    req.TransactionID,
		PaymentReference: &ref,
		ProofReference:   req.ProofReference,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.cacheSvc.InvalidateOffer(ctx, req.OfferID); err != nil {
		log.Printf("cache invalidation failed for offer %s: %v", req.OfferID, err)
	}
	return payment, nil
}

func (s *paymentService) GetByID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.paymentRepo.GetByID(ctx, paymentID)
}

func (s *paymentService) ListForOffer(ctx context.Context, offerID uuid.UUID) ([]*models.Payment, error) {
	return s.paymentRepo.ListByOffer(ctx, offerID)
}

func (s *paymentService) ListByFilter(ctx context.Context, filter *models.PaymentSearchFilter) ([]*models.Payment, error) {
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	filter.Offset = offset

	if filter.Status != nil {
		switch *filter.Status {
		case models.PaymentStatusPending, models.PaymentStatusCompleted, models.PaymentStatusFailed, models.PaymentStatusCancelled:
		default:
			return nil, common.Validationf("status", "must be one of: pending, completed, failed, cancelled")
		}
	}
	if filter.From != nil && filter.To != nil {
		if err := common.ValidateDateRange(*filter.From, *filter.To); err != nil {
			return nil, err
		}
	}
	return s.paymentRepo.ListByFilter(ctx, filter)
}

// AmountPaid sums completed tranches: the canonical source for buyer
// progress.
func (s *paymentService) AmountPaid(ctx context.Context, offerID uuid.UUID) (float64, error) {
	return s.paymentRepo.AmountPaid(ctx, offerID)
}

// Cancel is the buyer-initiated exit from pending.
func (s *paymentService) Cancel(ctx context.Context, paymentID, buyerID uuid.UUID) error {
	ok, err := s.paymentRepo.CancelCAS(ctx, paymentID, buyerID)
	if err != nil {
		return err
	}
	if !ok {
		payment, err := s.paymentRepo.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.BuyerID != buyerID {
			return common.NotFound("payment")
		}
		return common.Conflictf("payment", "already %s", payment.Status)
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err == nil {
		if err := s.cacheSvc.InvalidateOffer(ctx, payment.OfferID); err != nil {
			log.Printf("cache invalidation failed for offer %s: %v", payment.OfferID, err)
		}
	}
	return nil
}

// Stats serves the admin dashboard counters, cached briefly.
func (s *paymentService) Stats(ctx context.Context) (*models.PaymentStats, error) {
	if cached, err := s.cacheSvc.GetStats(ctx); err == nil && cached != nil {
		return cached, nil
	}

	stats, err := s.paymentRepo.GetStats(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.cacheSvc.SetStats(ctx, stats, caching.StatsTTL); err != nil {
		log.Printf("stats cache write failed: %v", err)
	}
	return stats, nil
}

// CancelStale is the sweep path cancelling pending tranches past the cutoff.
func (s *paymentService) CancelStale(ctx context.Context, olderThan time.Time) (int, error) {
	ids, err := s.paymentRepo.CancelStale(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		payment, err := s.paymentRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		if err := s.cacheSvc.InvalidateOffer(ctx, payment.OfferID); err != nil {
			log.Printf("cache invalidation failed for offer %s: %v", payment.OfferID, err)
		}
	}
	return len(ids), nil
}
