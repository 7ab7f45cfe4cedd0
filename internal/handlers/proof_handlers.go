package handlers

import (
	"net/http"
	"time"

	"propledger/internal/common"
	"propledger/internal/services"

	"github.com/labstack/echo/v4"
)

// signedURLExpiry is how long a generated proof link stays valid.
const signedURLExpiry = 15 * time.Minute

// maxProofSize caps uploaded proof artifacts at 10 MB.
const maxProofSize = 10 << 20

// ProofHandlers brokers access to externally stored proof-of-payment
// artifacts. Store failures never touch payment state.
type ProofHandlers struct {
	proofService services.ProofService
}

// NewProofHandlers creates a new proof handlers instance
func NewProofHandlers(proofService services.ProofService) *ProofHandlers {
	return &ProofHandlers{proofService: proofService}
}

// UploadProof handles POST /proofs (multipart form, field "file"). Returns
// the opaque reference to attach to a payment submission.
func (h *ProofHandlers) UploadProof(c echo.Context) error {
	ctx := c.Request().Context()

	if _, ok := common.GetUserIDFromContext(ctx); !ok {
		return common.SendUnauthorizedError(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return common.SendValidationError(c, "file", "proof file is required")
	}
	if file.Size > maxProofSize {
		return common.SendValidationError(c, "file", "proof file cannot exceed 10MB")
	}

	src, err := file.Open()
	if err != nil {
		return common.SendClientError(c, "Could not read uploaded file")
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ref, err := h.proofService.Upload(ctx, src, file.Size, contentType)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":         "Proof uploaded",
		"proof_reference": ref,
	})
}

// DeleteProof handles DELETE /proofs?ref=. Buyers discard an uploaded
// artifact before resubmitting a corrected one; the reference on any
// already-submitted payment is untouched.
func (h *ProofHandlers) DeleteProof(c echo.Context) error {
	ctx := c.Request().Context()

	if _, ok := common.GetUserIDFromContext(ctx); !ok {
		return common.SendUnauthorizedError(c)
	}

	ref := c.QueryParam("ref")
	if err := common.ValidateRequiredString(ref, "ref"); err != nil {
		return common.SendError(c, err)
	}

	if err := h.proofService.Delete(ctx, ref); err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Proof deleted",
	})
}

// GetSignedURL handles GET /proofs/signed-url?ref=
func (h *ProofHandlers) GetSignedURL(c echo.Context) error {
	ctx := c.Request().Context()

	ref := c.QueryParam("ref")
	if err := common.ValidateRequiredString(ref, "ref"); err != nil {
		return common.SendError(c, err)
	}

	url, err := h.proofService.SignedURL(ctx, ref, signedURLExpiry)
	if err != nil {
		return common.SendError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"url":        url,
		"expires_in": int(signedURLExpiry.Seconds()),
	})
}
