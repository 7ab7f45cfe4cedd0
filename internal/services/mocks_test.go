package services

import (
	"context"
	"time"

	"propledger/internal/models"
	"propledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockOfferRepository struct {
	mock.Mock
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	args := m.Called(ctx, offer)
	return args.Error(0)
}

func (m *MockOfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func (m *MockOfferRepository) HasActiveOffer(ctx context.Context, buyerID, propertyID uuid.UUID) (bool, error) {
	args := m.Called(ctx, buyerID, propertyID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) List(ctx context.Context, status string, limit, offset int) ([]*models.Offer, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Offer), args.Error(1)
}

func (m *MockOfferRepository) ApproveCAS(ctx context.Context, q repositories.Executor, id, adminID uuid.UUID) (bool, error) {
	args := m.Called(ctx, q, id, adminID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) RejectCAS(ctx context.Context, id, adminID uuid.UUID, reason string) (bool, error) {
	args := m.Called(ctx, id, adminID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) WithdrawCAS(ctx context.Context, id, buyerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, buyerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferRepository) ExpireDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) CreateTx(ctx context.Context, q repositories.Executor, invoice *models.Invoice) error {
	args := m.Called(ctx, q, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) NextInvoiceNumber(ctx context.Context, q repositories.Executor, issuedDate time.Time) (string, error) {
	args := m.Called(ctx, q, issuedDate)
	return args.String(0), args.Error(1)
}

func (m *MockInvoiceRepository) SettleCAS(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) VoidByOfferID(ctx context.Context, offerID uuid.UUID) error {
	args := m.Called(ctx, offerID)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]*models.Payment, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByFilter(ctx context.Context, filter *models.PaymentSearchFilter) ([]*models.Payment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockPaymentRepository) AmountPaid(ctx context.Context, offerID uuid.UUID) (float64, error) {
	args := m.Called(ctx, offerID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockPaymentRepository) GetProgressRow(ctx context.Context, offerID uuid.UUID) (*repositories.ProgressRow, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.ProgressRow), args.Error(1)
}

func (m *MockPaymentRepository) GetStats(ctx context.Context, now time.Time) (*models.PaymentStats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentStats), args.Error(1)
}

func (m *MockPaymentRepository) VerifyCAS(ctx context.Context, id, adminID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, adminID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) RejectCAS(ctx context.Context, id, adminID uuid.UUID, reason string) (bool, error) {
	args := m.Called(ctx, id, adminID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) CancelCAS(ctx context.Context, id, buyerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, buyerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) CancelStale(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateForApprovedOffer(ctx context.Context, q repositories.Executor, offer *models.Offer) (*models.Invoice, error) {
	args := m.Called(ctx, q, offer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) EnsureForOffer(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetByID(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceService) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

// MockCacheService is a no-op-friendly cache double. Tests that do not care
// about cache behavior register permissive expectations in SetupTest.
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetProgress(ctx context.Context, offerID uuid.UUID) (*models.BuyerProgress, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuyerProgress), args.Error(1)
}

func (m *MockCacheService) SetProgress(ctx context.Context, progress *models.BuyerProgress, ttl time.Duration) error {
	args := m.Called(ctx, progress, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateOffer(ctx context.Context, offerID uuid.UUID) error {
	args := m.Called(ctx, offerID)
	return args.Error(0)
}

func (m *MockCacheService) GetStats(ctx context.Context) (*models.PaymentStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentStats), args.Error(1)
}

func (m *MockCacheService) SetStats(ctx context.Context, stats *models.PaymentStats, ttl time.Duration) error {
	args := m.Called(ctx, stats, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockNotificationService records dispatches without goroutines, so tests
// stay deterministic.
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) OfferApproved(offer *models.Offer) {
	m.Called(offer)
}

func (m *MockNotificationService) OfferRejected(offer *models.Offer, reason string) {
	m.Called(offer, reason)
}

func (m *MockNotificationService) PaymentVerified(payment *models.Payment) {
	m.Called(payment)
}

func (m *MockNotificationService) PaymentRejected(payment *models.Payment, reason string) {
	m.Called(payment, reason)
}

func (m *MockNotificationService) RecentActivity(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
