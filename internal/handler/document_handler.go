package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Caring-data/documenso-sub000/internal/dto"
	"github.com/Caring-data/documenso-sub000/internal/service"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/response"
)

type sealEnqueuer interface {
	Enqueue(jobType string, payload interface{}) error
}

// DocumentHandler exposes the owner-facing document endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	tokens    *service.TokenService
	queue     sealEnqueuer
}

// NewDocumentHandler constructs the document handler.
func NewDocumentHandler(documents *service.DocumentService, tokens *service.TokenService, queue sealEnqueuer) *DocumentHandler {
	return &DocumentHandler{documents: documents, tokens: tokens, queue: queue}
}

// Create godoc
// @Summary Create a draft document with recipients and fields
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.CreateDocumentRequest true "Document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	doc, err := h.documents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Get godoc
// @Summary Document with recipients and fields
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Distribute godoc
// @Summary Send the document out for signing
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/distribute [post]
func (h *DocumentHandler) Distribute(c *gin.Context) {
	result, err := h.documents.Distribute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Soft-delete a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204 {object} nil
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id"), c.Query("reason")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Signed, expiring download link for the current payload
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	result, err := h.documents.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Resolve a signed download token
// @Tags Documents
// @Produce application/pdf
// @Param token query string true "Download token"
// @Success 200 {file} binary
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	data, name, err := h.documents.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", data)
}

// CertificateToken godoc
// @Summary Issue a short-lived certificate render token
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/certificate-token [post]
func (h *DocumentHandler) CertificateToken(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.documents.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	token, expiresAt, err := h.tokens.IssueCertificateToken(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CertificateTokenResponse{Token: token, ExpiresAt: expiresAt}, nil)
}

// CertificateData godoc
// @Summary Audit-certificate payload for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Param token query string true "Certificate token"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/certificate [get]
func (h *DocumentHandler) CertificateData(c *gin.Context) {
	id := c.Param("id")
	documentID, err := h.tokens.VerifyCertificateToken(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if documentID != id {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token is scoped to another document"))
		return
	}
	data, err := h.documents.CertificateData(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// Reseal godoc
// @Summary Re-run the sealing pipeline from the original upload
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 202 {object} response.Envelope
// @Router /documents/{id}/reseal [post]
func (h *DocumentHandler) Reseal(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.documents.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.queue.Enqueue(service.JobSealDocument, service.SealPayload{DocumentID: id, Reseal: true}); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue reseal"))
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"documentId": id, "status": "reseal enqueued"}, nil)
}
