package services

import (
	"context"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"
	"propledger/internal/repositories"

	"github.com/google/uuid"
)

type InvoiceServiceInterface interface {
	// CreateForApprovedOffer runs on the approval transaction's Executor so
	// the invoice insert commits or rolls back together with the status
	// flip.
	CreateForApprovedOffer(ctx context.Context, q repositories.Executor, offer *models.Offer) (*models.Invoice, error)

	// EnsureForOffer is the out-of-band repair path: it creates the invoice
	// for an already-approved offer, treating "already exists" as success.
	EnsureForOffer(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error)

	GetByID(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error)
}

type invoiceService struct {
	db          repositories.Database
	invoiceRepo repositories.InvoiceRepository
	offerRepo   repositories.OfferRepository
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(db repositories.Database, invoiceRepo repositories.InvoiceRepository, offerRepo repositories.OfferRepository) InvoiceServiceInterface {
	return &invoiceService{
		db:          db,
		invoiceRepo: invoiceRepo,
		offerRepo:   offerRepo,
	}
}

// CreateForApprovedOffer seeds total and amount_due from the offer price.
// The deposit amount on the offer is advisory and does not shape the
// invoice. Uniqueness rests on the offer_id constraint: a racing creator
// observes ConflictError from the repo.
func (s *invoiceService) CreateForApprovedOffer(ctx context.Context, q repositories.Executor, offer *models.Offer) (*models.Invoice, error) {
	issuedDate := time.Now()

	invoiceNumber, err := s.invoiceRepo.NextInvoiceNumber(ctx, q, issuedDate)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		OfferID:       offer.ID,
		InvoiceNumber: invoiceNumber,
		Total:         offer.OfferPrice,
		AmountDue:     offer.OfferPrice,
		Currency:      offer.Currency,
		Status:        models.InvoiceStatusOpen,
		IssuedDate:    issuedDate,
		CreatedAt:     issuedDate,
		UpdatedAt:     issuedDate,
	}

	if err := s.invoiceRepo.CreateTx(ctx, q, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// EnsureForOffer creates the invoice for an approved offer if it does not
// exist yet. A concurrent creator losing the uniqueness race fetches the
// winner's invoice instead of failing.
func (s *invoiceService) EnsureForOffer(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusApproved {
		return nil, common.Conflictf("invoice", "offer is %s, not approved", offer.Status)
	}

	existing, err := s.invoiceRepo.GetByOfferID(ctx, offerID)
	if err == nil {
		return existing, nil
	}
	if !common.IsNotFound(err) {
		return nil, err
	}

	invoice, err := s.CreateForApprovedOffer(ctx, s.db, offer)
	if err != nil {
		if common.IsConflict(err) {
			// Lost the race: the invoice exists now.
			return s.invoiceRepo.GetByOfferID(ctx, offerID)
		}
		return nil, err
	}
	return invoice, nil
}

func (s *invoiceService) GetByID(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, invoiceID)
}

func (s *invoiceService) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error) {
	return s.invoiceRepo.GetByOfferID(ctx, offerID)
}
