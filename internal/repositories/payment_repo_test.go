package repositories

import (
	"context"
	"testing"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PaymentRepoTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	repo      PaymentRepository
	paymentID uuid.UUID
	offerID   uuid.UUID
	buyerID   uuid.UUID
	adminID   uuid.UUID
	context   context.Context
}

func (suite *PaymentRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewPaymentRepo(mock)
	suite.paymentID = uuid.New()
	suite.offerID = uuid.New()
	suite.buyerID = uuid.New()
	suite.adminID = uuid.New()
	suite.context = context.Background()
}

func (suite *PaymentRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestPaymentRepoTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentRepoTestSuite))
}

func (suite *PaymentRepoTestSuite) paymentColumnsRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "offer_id", "buyer_id", "amount", "currency", "payment_method", "status", "transaction_id", "payment_reference", "proof_reference", "admin_reviewed_by", "admin_reviewed_at", "rejection_reason", "created_at", "updated_at"})
}

func (suite *PaymentRepoTestSuite) TestCreate_Success() {
	ref := "PAY-X1Y2Z3W4"
	payment := &models.Payment{
		ID:               suite.paymentID,
		OfferID:          suite.offerID,
		BuyerID:          suite.buyerID,
		Amount:           50000,
		Currency:         "USD",
		PaymentMethod:    "bank_transfer",
		Status:           models.PaymentStatusPending,
		PaymentReference: &ref,
	}

	suite.mock.ExpectExec(`
		INSERT INTO payments \(id, offer_id, buyer_id, amount, currency, payment_method, status, transaction_id, payment_reference, proof_reference, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, NOW\(\), NOW\(\)\)
	`).WithArgs(payment.ID, payment.OfferID, payment.BuyerID, payment.Amount, payment.Currency, payment.PaymentMethod, payment.Status, payment.TransactionID, payment.PaymentReference, payment.ProofReference).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, payment)
	assert.NoError(suite.T(), err)
}

func (suite *PaymentRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(`SELECT id, offer_id, buyer_id, amount, currency, payment_method, status, transaction_id, payment_reference, proof_reference, admin_reviewed_by, admin_reviewed_at, rejection_reason, created_at, updated_at FROM payments WHERE id = \$1`).
		WithArgs(suite.paymentID).
		WillReturnError(pgx.ErrNoRows)

	result, err := suite.repo.GetByID(suite.context, suite.paymentID)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), common.IsNotFound(err))
	assert.Nil(suite.T(), result)
}

func (suite *PaymentRepoTestSuite) TestVerifyCAS_Success() {
	suite.mock.ExpectExec(`
		UPDATE payments
		SET status = 'completed', admin_reviewed_by = \$2, admin_reviewed_at = NOW\(\), updated_at = NOW\(\)
		WHERE id = \$1 AND status = 'pending'
	`).WithArgs(suite.paymentID, suite.adminID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := suite.repo.VerifyCAS(suite.context, suite.paymentID, suite.adminID)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
}

func (suite *PaymentRepoTestSuite) TestVerifyCAS_AlreadyTerminal() {
	suite.mock.ExpectExec(`
		UPDATE payments
		SET status = 'completed', admin_reviewed_by = \$2, admin_reviewed_at = NOW\(\), updated_at = NOW\(\)
		WHERE id = \$1 AND status = 'pending'
	`).WithArgs(suite.paymentID, suite.adminID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := suite.repo.VerifyCAS(suite.context, suite.paymentID, suite.adminID)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *PaymentRepoTestSuite) TestRejectCAS_Success() {
	suite.mock.ExpectExec(`
		UPDATE payments
		SET status = 'failed', admin_reviewed_by = \$2, admin_reviewed_at = NOW\(\), rejection_reason = \$3, updated_at = NOW\(\)
		WHERE id = \$1 AND status = 'pending'
	`).WithArgs(suite.paymentID, suite.adminID, "proof illegible").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := suite.repo.RejectCAS(suite.context, suite.paymentID, suite.adminID, "proof illegible")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
}

func (suite *PaymentRepoTestSuite) TestCancelCAS_WrongBuyer() {
	stranger := uuid.New()

	suite.mock.ExpectExec(`
		UPDATE payments
		SET status = 'cancelled', updated_at = NOW\(\)
		WHERE id = \$1 AND buyer_id = \$2 AND status = 'pending'
	`).WithArgs(suite.paymentID, stranger).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := suite.repo.CancelCAS(suite.context, suite.paymentID, stranger)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *PaymentRepoTestSuite) TestAmountPaid_SumsCompletedOnly() {
	suite.mock.ExpectQuery(`
		SELECT COALESCE\(SUM\(amount\), 0\)
		FROM payments
		WHERE offer_id = \$1 AND status = 'completed'
	`).WithArgs(suite.offerID).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(200000.0))

	total, err := suite.repo.AmountPaid(suite.context, suite.offerID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 200000.0, total)
}

func (suite *PaymentRepoTestSuite) TestGetProgressRow() {
	last := time.Now().Add(-time.Hour)

	suite.mock.ExpectQuery(`
		SELECT COUNT\(\*\), COALESCE\(SUM\(amount\), 0\), MAX\(created_at\)
		FROM payments
		WHERE offer_id = \$1 AND status = 'completed'
	`).WithArgs(suite.offerID).
		WillReturnRows(pgxmock.NewRows([]string{"count", "coalesce", "max"}).AddRow(2, 200000.0, &last))

	row, err := suite.repo.GetProgressRow(suite.context, suite.offerID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, row.PaymentCount)
	assert.Equal(suite.T(), 200000.0, row.TotalPaid)
	assert.NotNil(suite.T(), row.LastPaymentAt)
}

func (suite *PaymentRepoTestSuite) TestGetProgressRow_NoCompletedPayments() {
	suite.mock.ExpectQuery(`
		SELECT COUNT\(\*\), COALESCE\(SUM\(amount\), 0\), MAX\(created_at\)
		FROM payments
		WHERE offer_id = \$1 AND status = 'completed'
	`).WithArgs(suite.offerID).
		WillReturnRows(suite.progressRowsEmpty())

	row, err := suite.repo.GetProgressRow(suite.context, suite.offerID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, row.PaymentCount)
	assert.Equal(suite.T(), 0.0, row.TotalPaid)
	assert.Nil(suite.T(), row.LastPaymentAt)
}

func (suite *PaymentRepoTestSuite) progressRowsEmpty() *pgxmock.Rows {
	var noLast *time.Time
	return pgxmock.NewRows([]string{"count", "coalesce", "max"}).AddRow(0, 0.0, noLast)
}

func (suite *PaymentRepoTestSuite) TestListByFilter_StatusOnly() {
	status := models.PaymentStatusPending
	now := time.Now()

	rows := suite.paymentColumnsRows().
		AddRow(suite.paymentID, suite.offerID, suite.buyerID, 50000.0, "USD", "bank_transfer", models.PaymentStatusPending, nil, nil, nil, nil, nil, nil, now, now)

	suite.mock.ExpectQuery(`SELECT id, offer_id, buyer_id, amount, currency, payment_method, status, transaction_id, payment_reference, proof_reference, admin_reviewed_by, admin_reviewed_at, rejection_reason, created_at, updated_at FROM payments WHERE 1=1 AND status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(status, 20, 0).
		WillReturnRows(rows)

	payments, err := suite.repo.ListByFilter(suite.context, &models.PaymentSearchFilter{Status: &status, Limit: 20, Offset: 0})
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), payments, 1)
	assert.Equal(suite.T(), models.PaymentStatusPending, payments[0].Status)
}

func (suite *PaymentRepoTestSuite) TestListByFilter_FreeTextQuery() {
	rows := suite.paymentColumnsRows()

	suite.mock.ExpectQuery(`SELECT id, offer_id, buyer_id, amount, currency, payment_method, status, transaction_id, payment_reference, proof_reference, admin_reviewed_by, admin_reviewed_at, rejection_reason, created_at, updated_at FROM payments WHERE 1=1 AND \(payment_reference ILIKE \$1 OR transaction_id ILIKE \$1 OR payment_method ILIKE \$1\) ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("%PAY-X1%", 20, 0).
		WillReturnRows(rows)

	payments, err := suite.repo.ListByFilter(suite.context, &models.PaymentSearchFilter{Query: "PAY-X1", Limit: 20, Offset: 0})
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), payments)
}

func (suite *PaymentRepoTestSuite) TestCancelStale() {
	cutoff := time.Now().Add(-14 * 24 * time.Hour)
	stale := uuid.New()

	suite.mock.ExpectQuery(`
		UPDATE payments
		SET status = 'cancelled', updated_at = NOW\(\)
		WHERE status = 'pending' AND created_at < \$1
		RETURNING id
	`).WithArgs(cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(stale))

	ids, err := suite.repo.CancelStale(suite.context, cutoff)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), ids, 1)
	assert.Equal(suite.T(), stale, ids[0])
}

func (suite *PaymentRepoTestSuite) TestGetStats() {
	now := time.Now()

	suite.mock.ExpectQuery(`
		SELECT
			COUNT\(\*\) FILTER \(WHERE status = 'pending'\),
			COUNT\(\*\) FILTER \(WHERE status = 'completed' AND admin_reviewed_at >= \$1\),
			COALESCE\(SUM\(amount\) FILTER \(WHERE status = 'completed' AND admin_reviewed_at >= \$1\), 0\),
			COUNT\(\*\) FILTER \(WHERE status = 'failed'\)
		FROM payments
	`).WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"pending", "completed", "amount", "failed"}).AddRow(4, 11, 620000.0, 2))

	suite.mock.ExpectQuery(`
		SELECT COUNT\(\*\)
		FROM \(
			SELECT p\.offer_id
			FROM payments p
			JOIN offers o ON o\.id = p\.offer_id
			WHERE p\.status = 'completed'
			GROUP BY p\.offer_id, o\.offer_price
			HAVING SUM\(p\.amount\) >= o\.offer_price \* \$1
		\) near
	`).WithArgs(models.NearCompletionThreshold).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	stats, err := suite.repo.GetStats(suite.context, now)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, stats.PendingCount)
	assert.Equal(suite.T(), 11, stats.CompletedThisMonth)
	assert.Equal(suite.T(), 620000.0, stats.CompletedMonthAmount)
	assert.Equal(suite.T(), 3, stats.BuyersNearCompletion)
}
