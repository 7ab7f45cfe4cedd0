package services

import (
	"context"
	"log"

	"propledger/internal/caching"
	"propledger/internal/models"
	"propledger/internal/repositories"

	"github.com/google/uuid"
)

// ProgressService is the buyer progress read model: paid-to-date versus
// offer price, computed on demand from the ledger. It owns no state, so it
// cannot drift from the payments table.
type ProgressService interface {
	Progress(ctx context.Context, offerID uuid.UUID) (*models.BuyerProgress, error)
}

type progressService struct {
	paymentRepo repositories.PaymentRepository
	offerRepo   repositories.OfferRepository
	cacheSvc    caching.CacheService
}

// NewProgressService creates a new buyer progress aggregator
func NewProgressService(paymentRepo repositories.PaymentRepository, offerRepo repositories.OfferRepository, cacheSvc caching.CacheService) ProgressService {
	return &progressService{
		paymentRepo: paymentRepo,
		offerRepo:   offerRepo,
		cacheSvc:    cacheSvc,
	}
}

// Progress returns the paid-to-date aggregate for one offer. The display
// percent clamps at 100; the raw ratio is preserved so over-payment stays
// auditable.
func (s *progressService) Progress(ctx context.Context, offerID uuid.UUID) (*models.BuyerProgress, error) {
	if cached, err := s.cacheSvc.GetProgress(ctx, offerID); err == nil && cached != nil {
		return cached, nil
	}

	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	row, err := s.paymentRepo.GetProgressRow(ctx, offerID)
	if err != nil {
		return nil, err
	}

	var ratio float64
	if offer.OfferPrice > 0 {
		ratio = row.TotalPaid / offer.OfferPrice
	}

	percent := ratio
	if percent > 1.0 {
		percent = 1.0
	}

	progress := &models.BuyerProgress{
		OfferID:        offerID,
		OfferPrice:     offer.OfferPrice,
		Currency:       offer.Currency,
		TotalPaid:      row.TotalPaid,
		Percent:        percent,
		RawRatio:       ratio,
		PaymentCount:   row.PaymentCount,
		LastPaymentAt:  row.LastPaymentAt,
		NearCompletion: ratio >= models.NearCompletionThreshold,
	}

	if err := s.cacheSvc.SetProgress(ctx, progress, caching.ProgressTTL); err != nil {
		log.Printf("progress cache write failed for offer %s: %v", offerID, err)
	}
	return progress, nil
}
