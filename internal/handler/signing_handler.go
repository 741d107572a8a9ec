package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Caring-data/documenso-sub000/internal/dto"
	"github.com/Caring-data/documenso-sub000/internal/service"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/response"
)

// SigningHandler exposes the recipient-facing signing endpoints. Every
// route is keyed by the recipient's opaque signing token.
type SigningHandler struct {
	completion *service.CompletionService
}

// NewSigningHandler constructs the signing handler.
func NewSigningHandler(completion *service.CompletionService) *SigningHandler {
	return &SigningHandler{completion: completion}
}

// Session godoc
// @Summary Signing session for a recipient token
// @Tags Signing
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} response.Envelope
// @Router /signing/{token} [get]
func (h *SigningHandler) Session(c *gin.Context) {
	session, err := h.completion.Session(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// SignField godoc
// @Summary Sign one field
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param fieldId path string true "Field ID"
// @Param payload body dto.SignFieldRequest true "Field value"
// @Success 200 {object} response.Envelope
// @Router /signing/{token}/fields/{fieldId}/sign [post]
func (h *SigningHandler) SignField(c *gin.Context) {
	var req dto.SignFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	state, err := h.completion.SignField(c.Request.Context(), c.Param("token"), c.Param("fieldId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// UnsignField godoc
// @Summary Clear a previously signed field
// @Tags Signing
// @Produce json
// @Param token path string true "Signing token"
// @Param fieldId path string true "Field ID"
// @Success 200 {object} response.Envelope
// @Router /signing/{token}/fields/{fieldId}/unsign [post]
func (h *SigningHandler) UnsignField(c *gin.Context) {
	state, err := h.completion.UnsignField(c.Request.Context(), c.Param("token"), c.Param("fieldId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Complete godoc
// @Summary End the recipient's signing turn
// @Tags Signing
// @Produce json
// @Param token path string true "Signing token"
// @Success 200 {object} response.Envelope
// @Router /signing/{token}/complete [post]
func (h *SigningHandler) Complete(c *gin.Context) {
	result, err := h.completion.CompleteSigning(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject the document
// @Tags Signing
// @Accept json
// @Produce json
// @Param token path string true "Signing token"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 204 {object} nil
// @Router /signing/{token}/reject [post]
func (h *SigningHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rejection reason required"))
		return
	}
	if err := h.completion.RejectSigning(c.Request.Context(), c.Param("token"), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
