package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"
	"propledger/internal/services"

	"github.com/labstack/echo/v4"
)

// PaymentHandlers handles HTTP requests for the payment ledger and the
// admin verification workflow.
type PaymentHandlers struct {
	paymentService      services.PaymentServiceInterface
	verificationService services.VerificationService
	notificationService services.NotificationService
}

// NewPaymentHandlers creates a new payment handlers instance
func NewPaymentHandlers(paymentService services.PaymentServiceInterface, verificationService services.VerificationService, notificationService services.NotificationService) *PaymentHandlers {
	return &PaymentHandlers{
		paymentService:      paymentService,
		verificationService: verificationService,
		notificationService: notificationService,
	}
}

// SubmitPayment handles POST /payments
func (h *PaymentHandlers) SubmitPayment(c echo.Context) error {
	ctx := c.Request().Context()

	buyerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req struct {
		OfferID        string  `json:"offer_id"`
		Amount         float64 `json:"amount"`
		Currency       string  `json:"currency"`
		PaymentMethod  string  `json:"payment_method"`
		TransactionID  *string `json:"transaction_id"`
		ProofReference *string `json:"proof_reference"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	offerID, err := common.ValidateUUID(req.OfferID, "offer_id")
	if err != nil {
		return common.SendError(c, err)
	}

	payment, err := h.paymentService.Submit(ctx, &services.SubmitPaymentRequest{
		OfferID:        offerID,
		BuyerID:        buyerID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		PaymentMethod:  req.PaymentMethod,
		TransactionID:  req.TransactionID,
		ProofReference: req.ProofReference,
	})
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Payment submitted for verification",
		"payment": payment,
	})
}

// ReviewPayment handles PATCH /payments/:id with {action: verify|reject, reason?}
func (h *PaymentHandlers) ReviewPayment(c echo.Context) error {
	ctx := c.Request().Context()

	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	paymentID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	var payment *models.Payment
	switch req.Action {
	case "verify":
		payment, err = h.verificationService.Verify(ctx, paymentID, adminID)
	case "reject":
		payment, err = h.verificationService.Reject(ctx, paymentID, adminID, req.Reason)
	default:
		return common.SendValidationError(c, "action", "must be verify or reject")
	}
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Payment " + payment.Status,
		"payment": payment,
	})
}

// CancelPayment handles POST /payments/:id/cancel
func (h *PaymentHandlers) CancelPayment(c echo.Context) error {
	ctx := c.Request().Context()

	buyerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	paymentID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	if err := h.paymentService.Cancel(ctx, paymentID, buyerID); err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Payment cancelled",
	})
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandlers) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	payment, err := h.paymentService.GetByID(ctx, paymentID)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, payment)
}

// parseFilter builds a ledger filter from GET /payments query parameters.
func parseFilter(c echo.Context) (*models.PaymentSearchFilter, error) {
	filter := &models.PaymentSearchFilter{
		Query: c.QueryParam("q"),
	}

	if status := c.QueryParam("status"); status != "" {
		filter.Status = &status
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, common.Validationf("from", "must be in YYYY-MM-DD format")
		}
		filter.From = &t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, common.Validationf("to", "must be in YYYY-MM-DD format")
		}
		// Inclusive upper bound: end of day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &t
	}

	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	return filter, nil
}

// ListPayments handles GET /payments?status=&from=&to=&q= for the admin
// review screen.
func (h *PaymentHandlers) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := parseFilter(c)
	if err != nil {
		return common.SendError(c, err)
	}

	payments, err := h.paymentService.ListByFilter(ctx, filter)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

// ListOfferPayments handles GET /offers/:id/payments
func (h *PaymentHandlers) ListOfferPayments(c echo.Context) error {
	ctx := c.Request().Context()

	offerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	payments, err := h.paymentService.ListForOffer(ctx, offerID)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

// ExportPayments handles GET /payments/export: a CSV projection of the same
// filtered listing, no additional state.
func (h *PaymentHandlers) ExportPayments(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := parseFilter(c)
	if err != nil {
		return common.SendError(c, err)
	}

	payments, err := h.paymentService.ListByFilter(ctx, filter)
	if err != nil {
		return common.SendError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="payments.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "offer_id", "reference", "amount", "currency", "method", "status", "transaction_id", "reviewed_by", "reviewed_at", "created_at"}); err != nil {
		return err
	}
	for _, p := range payments {
		reviewedBy := ""
		if p.AdminReviewedBy != nil {
			reviewedBy = p.AdminReviewedBy.String()
		}
		reviewedAt := ""
		if p.AdminReviewedAt != nil {
			reviewedAt = p.AdminReviewedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			p.ID.String(),
			p.OfferID.String(),
			common.SafeString(p.PaymentReference),
			fmt.Sprintf("%.2f", p.Amount),
			p.Currency,
			p.PaymentMethod,
			p.Status,
			common.SafeString(p.TransactionID),
			reviewedBy,
			reviewedAt,
			p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// GetStats handles GET /payment-stats for the admin dashboard.
func (h *PaymentHandlers) GetStats(c echo.Context) error {
	stats, err := h.paymentService.Stats(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// GetActivity handles GET /activity: the recent notification feed.
func (h *PaymentHandlers) GetActivity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.notificationService.RecentActivity(c.Request().Context(), limit)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"activity": entries,
		"count":    len(entries),
	})
}
