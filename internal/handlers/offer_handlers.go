package handlers

import (
	"net/http"
	"strconv"
	"time"

	"propledger/internal/common"
	"propledger/internal/models"
	"propledger/internal/services"

	"github.com/labstack/echo/v4"
)

// OfferHandlers handles HTTP requests for offers
type OfferHandlers struct {
	offerService    services.OfferServiceInterface
	invoiceService  services.InvoiceServiceInterface
	progressService services.ProgressService
}

// NewOfferHandlers creates a new offer handlers instance
func NewOfferHandlers(offerService services.OfferServiceInterface, invoiceService services.InvoiceServiceInterface, progressService services.ProgressService) *OfferHandlers {
	return &OfferHandlers{
		offerService:    offerService,
		invoiceService:  invoiceService,
		progressService: progressService,
	}
}

// SubmitOffer handles POST /offers
func (h *OfferHandlers) SubmitOffer(c echo.Context) error {
	ctx := c.Request().Context()

	buyerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req struct {
		PropertyID        string  `json:"property_id"`
		OfferPrice        float64 `json:"offer_price"`
		Currency          string  `json:"currency"`
		DepositAmount     float64 `json:"deposit_amount"`
		EstimatedTimeline *string `json:"estimated_timeline"`
		ExpiresAt         *string `json:"expires_at"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	propertyID, err := common.ValidateUUID(req.PropertyID, "property_id")
	if err != nil {
		return common.SendError(c, err)
	}

	submit := &services.SubmitOfferRequest{
		BuyerID:           buyerID,
		PropertyID:        propertyID,
		OfferPrice:        req.OfferPrice,
		Currency:          req.Currency,
		DepositAmount:     req.DepositAmount,
		EstimatedTimeline: req.EstimatedTimeline,
	}

	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return common.SendValidationError(c, "expires_at", "must be RFC3339 formatted")
		}
		submit.ExpiresAt = &expiresAt
	}

	offer, err := h.offerService.Submit(ctx, submit)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Offer submitted successfully",
		"offer":   offer,
	})
}

// ReviewOffer handles PATCH /offers/:id with {action: approve|reject, reason?}
func (h *OfferHandlers) ReviewOffer(c echo.Context) error {
	ctx := c.Request().Context()

	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	offerID, err := common.ValidateUUID(c.Param("id"), "id")
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

	var offer *models.Offer
	switch req.Action {
	case "approve":
		offer, err = h.offerService.Approve(ctx, offerID, adminID)
	case "reject":
		offer, err = h.offerService.Reject(ctx, offerID, adminID, req.Reason)
	default:
		return common.SendValidationError(c, "action", "must be approve or reject")
	}
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Offer " + offer.Status,
		"offer":   offer,
	})
}

// WithdrawOffer handles POST /offers/:id/withdraw
func (h *OfferHandlers) WithdrawOffer(c echo.Context) error {
	ctx := c.Request().Context()

	buyerID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	offerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	if err := h.offerService.Withdraw(ctx, offerID, buyerID); err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Offer withdrawn",
	})
}

// GetOffer handles GET /offers/:id, returning the offer and its invoice
// when one exists.
func (h *OfferHandlers) GetOffer(c echo.Context) error {
	ctx := c.Request().Context()

	offerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	offer, err := h.offerService.GetByID(ctx, offerID)
	if err != nil {
		return common.SendError(c, err)
	}

	resp := map[string]interface{}{
		"offer": offer,
	}
	if invoice, err := h.invoiceService.GetByOfferID(ctx, offerID); err == nil {
		resp["invoice"] = invoice
	}

	return c.JSON(http.StatusOK, resp)
}

// GetInvoice handles GET /invoices/:id
func (h *OfferHandlers) GetInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	invoiceID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	invoice, err := h.invoiceService.GetByID(ctx, invoiceID)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoice": invoice,
	})
}

// ListOffers handles GET /offers?status=&limit=&offset=
func (h *OfferHandlers) ListOffers(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	offers, err := h.offerService.List(ctx, c.QueryParam("status"), limit, offset)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"offers": offers,
		"count":  len(offers),
	})
}

// GetProgress handles GET /offers/:id/progress
func (h *OfferHandlers) GetProgress(c echo.Context) error {
	ctx := c.Request().Context()

	offerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	progress, err := h.progressService.Progress(ctx, offerID)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, progress)
}
