package services

import (
	"context"
	"log"

	"propledger/internal/caching"
	"propledger/internal/common"
	"propledger/internal/models"
	"propledger/internal/repositories"

	"github.com/google/uuid"
)

// VerificationService is the admin-facing side of the payment ledger:
// verifying or rejecting pending tranches. Both transitions are CAS out of
// pending; reviewer metadata is written in the same statement as the status
// flip, so a "reviewed but still pending" state is never observable.
type VerificationService interface {
	Verify(ctx context.Context, paymentID, adminID uuid.UUID) (*models.Payment, error)
	Reject(ctx context.Context, paymentID, adminID uuid.UUID, reason string) (*models.Payment, error)
}

type verificationService struct {
	paymentRepo repositories.PaymentRepository
	invoiceRepo repositories.InvoiceRepository
	cacheSvc    caching.CacheService
	notifier    NotificationService
}

// NewVerificationService creates a new verification workflow service
func NewVerificationService(paymentRepo repositories.PaymentRepository, invoiceRepo repositories.InvoiceRepository, cacheSvc caching.CacheService, notifier NotificationService) VerificationService {
	return &verificationService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		cacheSvc:    cacheSvc,
		notifier:    notifier,
	}
}

// Verify flips pending -> completed. A payment already verified, failed or
// cancelled yields ConflictError so the second admin sees "already reviewed"
// instead of a silent success.
func (s *verificationService) Verify(ctx context.Context, paymentID, adminID uuid.UUID) (*models.Payment, error) {
	ok, err := s.paymentRepo.VerifyCAS(ctx, paymentID, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		payment, err := s.paymentRepo.GetByID(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		return nil, common.Conflictf("payment", "already %s", payment.Status)
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	s.settleInvoiceIfCovered(ctx, payment.OfferID)

	if err := s.cacheSvc.InvalidateOffer(ctx, payment.OfferID); err != nil {
		log.Printf("cache invalidation failed for offer %s: %v", payment.OfferID, err)
	}
	s.notifier.PaymentVerified(payment)

	return payment, nil
}

// Reject flips pending -> failed; the reason is required. A failed payment
// never resurrects: the buyer retries with a new submission.
func (s *verificationService) Reject(ctx context.Context, paymentID, adminID uuid.UUID, reason string) (*models.Payment, error) {
	if err := common.ValidateRequiredString(reason, "reason"); err != nil {
		return nil, err
	}

	ok, err := s.paymentRepo.RejectCAS(ctx, paymentID, adminID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		payment, err := s.paymentRepo.GetByID(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		return nil, common.Conflictf("payment", "already %s", payment.Status)
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheSvc.InvalidateOffer(ctx, payment.OfferID); err != nil {
		log.Printf("cache invalidation failed for offer %s: %v", payment.OfferID, err)
	}
	s.notifier.PaymentRejected(payment, reason)

	return payment, nil
}

// settleInvoiceIfCovered settles the invoice once completed tranches cover
// its total. Settling is itself a CAS, so racing verifiers settle at most
// once; failures here are logged, never propagated, because the payment
// transition already committed.
func (s *verificationService) settleInvoiceIfCovered(ctx context.Context, offerID uuid.UUID) {
	invoice, err := s.invoiceRepo.GetByOfferID(ctx, offerID)
	if err != nil {
		log.Printf("invoice lookup failed for offer %s: %v", offerID, err)
		return
	}

	paid, err := s.paymentRepo.AmountPaid(ctx, offerID)
	if err != nil {
		log.Printf("paid-total lookup failed for offer %s: %v", offerID, err)
		return
	}

	if paid >= invoice.Total {
		if _, err := s.invoiceRepo.SettleCAS(ctx, invoice.ID); err != nil {
			log.Printf("invoice settle failed for offer %s: %v", offerID, err)
		}
	}
}
