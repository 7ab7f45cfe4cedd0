package services

import (
	"context"
	"testing"
	"time"

	"propledger/internal/caching"
	"propledger/internal/common"
	"propledger/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceTestSuite struct {
	suite.Suite
	paymentRepo *MockPaymentRepository
	offerRepo   *MockOfferRepository
	cacheSvc    *MockCacheService
	service     PaymentServiceInterface
	ctx         context.Context
	buyerID     uuid.UUID
	offerID     uuid.UUID
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.paymentRepo = &MockPaymentRepository{}
	suite.offerRepo = &MockOfferRepository{}
	suite.cacheSvc = &MockCacheService{}
	suite.service = NewPaymentService(suite.paymentRepo, suite.offerRepo, suite.cacheSvc)
	suite.ctx = context.Background()
	suite.buyerID = uuid.New()
	suite.offerID = uuid.New()
}

func (suite *PaymentServiceTestSuite) TearDownTest() {
	suite.paymentRepo.AssertExpectations(suite.T())
	suite.offerRepo.AssertExpectations(suite.T())
}

func TestPaymentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (suite *PaymentServiceTestSuite) approvedOffer() *models.Offer {
	return &models.Offer{
		ID:         suite.offerID,
		BuyerID:    suite.buyerID,
		OfferPrice: 250000,
		Currency:   "USD",
		Status:     models.OfferStatusApproved,
	}
}

func (suite *PaymentServiceTestSuite) TestSubmit_Success() {
	req := &SubmitPaymentRequest{
		OfferID:       suite.offerID,
		BuyerID:       suite.buyerID,
		Amount:        50000,
		Currency:      "USD",
		PaymentMethod: "bank_transfer",
	}

	suite.offerRepo.On("GetByID", suite.ctx, suite.offerID).Return(suite.approvedOffer(), nil)
	suite.paymentRepo.On("Create", suite.ctx, mock.AnythingOfType("*models.Payment")).Return(nil).Run(func(args mock.Arguments) {
		payment := args.Get(1).(*models.Payment)
		assert.Equal(suite.T(), models.PaymentStatusPending, payment.Status)
		assert.NotNil(suite.T(), payment.PaymentReference)
	})
	suite.cacheSvc.On("InvalidateOffer", suite.ctx, suite.offerID).Return(nil)

	payment, err := suite.service.Submit(suite.ctx, req)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PaymentStatusPending, payment.Status)
	assert.Equal(suite.T(), 50000.0, payment.Amount)
}

func (suite *PaymentServiceTestSuite) TestSubmit_CurrencyMismatch() {
	req := &SubmitPaymentRequest{
		OfferID:       suite.offerID,
		BuyerID:       suite.buyerID,
		Amount:        50000,
		Currency:      "EUR",
		PaymentMethod: "bank_transfer",
	}

	suite.offerRepo.On("GetByID", suite.ctx, suite.offerID).Return(suite.approvedOffer(), nil)

	_, err := suite.service.Submit(suite.ctx, req)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsValidation(err))
}

func (suite *PaymentServiceTestSuite) TestSubmit_OfferNotApproved() {
	offer := suite.approvedOffer()
	offer.Status = models.OfferStatusPending
	req := &SubmitPaymentRequest{
		OfferID:       suite.offerID,
		BuyerID:       suite.buyerID,
		Amount:        50000,
		Currency:      "USD",
		PaymentMethod: "bank_transfer",
	}

	suite.offerRepo.On("GetByID", suite.ctx, suite.offerID).Return(offer, nil)

	_, err := suite.service.Submit(suite.ctx, req)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsValidation(err))
}

func (suite *PaymentServiceTestSuite) TestSubmit_WrongBuyerGetsNotFound() {
	req := &SubmitPaymentRequest{
		OfferID:       suite.offerID,
		BuyerID:       uuid.New(),
		Amount:        50000,
		Currency:      "USD",
		PaymentMethod: "bank_transfer",
	}

	suite.offerRepo.On("GetByID", suite.ctx, suite.offerID).Return(suite.approvedOffer(), nil)

	_, err := suite.service.Submit(suite.ctx, req)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsNotFound(err))
}

func (suite *PaymentServiceTestSuite) TestSubmit_NonPositiveAmount() {
	req := &SubmitPaymentRequest{
		OfferID:       suite.offerID,
		BuyerID:       suite.buyerID,
		Amount:        -5,
		Currency:      "USD",
		PaymentMethod: "bank_transfer",
	}

	_, err := suite.service.Submit(suite.ctx, req)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsValidation(err))
}

func (suite *PaymentServiceTestSuite) TestListByFilter_RejectsBadStatus() {
	bad := "verified"
	_, err := suite.service.ListByFilter(suite.ctx, &models.PaymentSearchFilter{Status: &bad})
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsValidation(err))
}

func (suite *PaymentServiceTestSuite) TestListByFilter_RejectsInvertedDateRange() {
	from := time.Now()
	to := from.Add(-24 * time.Hour)
	_, err := suite.service.ListByFilter(suite.ctx, &models.PaymentSearchFilter{From: &from, To: &to})
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsValidation(err))
}

func (suite *PaymentServiceTestSuite) TestListByFilter_AppliesDefaultPagination() {
	status := models.PaymentStatusPending

	suite.paymentRepo.On("ListByFilter", suite.ctx, mock.AnythingOfType("*models.PaymentSearchFilter")).Return([]*models.Payment{}, nil).Run(func(args mock.Arguments) {
		filter := args.Get(1).(*models.PaymentSearchFilter)
		assert.Greater(suite.T(), filter.Limit, 0)
	})

	_, err := suite.service.ListByFilter(suite.ctx, &models.PaymentSearchFilter{Status: &status})
	assert.NoError(suite.T(), err)
}

func (suite *PaymentServiceTestSuite) TestCancel_WrongBuyerGetsNotFound() {
	payment := &models.Payment{ID: uuid.New(), OfferID: suite.offerID, BuyerID: suite.buyerID, Status: models.PaymentStatusPending}
	stranger := uuid.New()

	suite.paymentRepo.On("CancelCAS", suite.ctx, payment.ID, stranger).Return(false, nil)
	suite.paymentRepo.On("GetByID", suite.ctx, payment.ID).Return(payment, nil)

	err := suite.service.Cancel(suite.ctx, payment.ID, stranger)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsNotFound(err))
}

func (suite *PaymentServiceTestSuite) TestCancel_CompletedConflicts() {
	payment := &models.Payment{ID: uuid.New(), OfferID: suite.offerID, BuyerID: suite.buyerID, Status: models.PaymentStatusCompleted}

	suite.paymentRepo.On("CancelCAS", suite.ctx, payment.ID, suite.buyerID).Return(false, nil)
	suite.paymentRepo.On("GetByID", suite.ctx, payment.ID).Return(payment, nil)

	err := suite.service.Cancel(suite.ctx, payment.ID, suite.buyerID)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsConflict(err))
}

func (suite *PaymentServiceTestSuite) TestStats_CacheMissHitsRepo() {
	stats := &models.PaymentStats{PendingCount: 4, CompletedThisMonth: 11, CompletedMonthAmount: 620000}

	suite.cacheSvc.On("GetStats", suite.ctx).Return(nil, nil)
	suite.paymentRepo.On("GetStats", suite.ctx, mock.AnythingOfType("time.Time")).Return(stats, nil)
	suite.cacheSvc.On("SetStats", suite.ctx, stats, caching.StatsTTL).Return(nil)

	result, err := suite.service.Stats(suite.ctx)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), stats, result)
}

func (suite *PaymentServiceTestSuite) TestCancelStale() {
	staleID := uuid.New()
	cutoff := time.Now().Add(-14 * 24 * time.Hour)
	payment := &models.Payment{ID: staleID, OfferID: suite.offerID, Status: models.PaymentStatusCancelled}

	suite.paymentRepo.On("CancelStale", suite.ctx, cutoff).Return([]uuid.UUID{staleID}, nil)
	suite.paymentRepo.On("GetByID", suite.ctx, staleID).Return(payment, nil)
	suite.cacheSvc.On("InvalidateOffer", suite.ctx, suite.offerID).Return(nil)

	count, err := suite.service.CancelStale(suite.ctx, cutoff)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}
