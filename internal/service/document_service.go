package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/dto"
	"github.com/Caring-data/documenso-sub000/internal/models"
	"github.com/Caring-data/documenso-sub000/internal/pdf"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.DocumentStatus, completedAt *time.Time) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, ownerEmail string, limit, offset int) ([]models.Document, error)
	CountByOwner(ctx context.Context, ownerEmail string) (int, error)
}

type recipientStore interface {
	Create(ctx context.Context, rcpt *models.Recipient) error
	GetByID(ctx context.Context, id string) (*models.Recipient, error)
	GetByToken(ctx context.Context, token string) (*models.Recipient, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Recipient, error)
	UpdateSendStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SendStatus) error
}

type fieldStore interface {
	Create(ctx context.Context, field *models.Field) error
	GetByID(ctx context.Context, id string) (*models.Field, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Field, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]models.Field, error)
}

type auditStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error
	ListByDocument(ctx context.Context, documentID string) ([]models.AuditLog, error)
}

type signatureReader interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.Signature, error)
}

// DocumentService owns the document lifecycle outside of signing:
// creation, distribution, download, deletion, certificate data.
type DocumentService struct {
	db            *sqlx.DB
	documents     documentStore
	recipients    recipientStore
	fields        fieldStore
	signatures    signatureReader
	audit         auditStore
	payloads      *PayloadService
	tokens        *TokenService
	notifications *NotificationService
	signer        *storage.SignedURLSigner
	cache         *DocumentCache
	publicURL     string
	siteName      string
	logger        *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(
	db *sqlx.DB,
	documents documentStore,
	recipients recipientStore,
	fields fieldStore,
	signatures signatureReader,
	audit auditStore,
	payloads *PayloadService,
	tokens *TokenService,
	notifications *NotificationService,
	signer *storage.SignedURLSigner,
	cache *DocumentCache,
	publicURL, siteName string,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		db:            db,
		documents:     documents,
		recipients:    recipients,
		fields:        fields,
		signatures:    signatures,
		audit:         audit,
		payloads:      payloads,
		tokens:        tokens,
		notifications: notifications,
		signer:        signer,
		cache:         cache,
		publicURL:     strings.TrimRight(publicURL, "/"),
		siteName:      siteName,
		logger:        logger,
	}
}

// Create persists a new draft document with its payload, recipients and
// fields. CC recipients are SIGNED from creation and may not own fields.
func (s *DocumentService) Create(ctx context.Context, req dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document data is not valid base64")
	}
	if len(raw) < 5 || string(raw[:5]) != "%PDF-" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document data is not a PDF")
	}

	order := req.SigningOrder
	if order == "" {
		order = models.SigningOrderParallel
	}
	if order != models.SigningOrderParallel && order != models.SigningOrderSequential {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown signing order %q", order))
	}

	docID := uuid.NewString()
	dd, err := s.payloads.Create(ctx, docID, raw)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:             docID,
		Title:          req.Title,
		Status:         models.DocumentStatusDraft,
		SigningOrder:   order,
		DocumentDataID: dd.ID,
		OwnerEmail:     req.OwnerEmail,
		OwnerName:      req.OwnerName,
		Meta:           req.Meta,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create document")
	}

	now := time.Now().UTC()
	recipients := make([]models.Recipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		role := r.Role
		if role == "" {
			role = models.RecipientRoleSigner
		}
		token, err := s.tokens.NewRecipientToken()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "mint recipient token")
		}
		rcpt := models.Recipient{
			DocumentID:   doc.ID,
			Email:        r.Email,
			Name:         r.Name,
			Role:         role,
			SigningOrder: r.SigningOrder,
			Token:        token,
		}
		if role == models.RecipientRoleCC {
			rcpt.SigningStatus = models.SigningStatusSigned
			rcpt.SignedAt = &now
		}
		if err := s.recipients.Create(ctx, &rcpt); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create recipient")
		}
		recipients = append(recipients, rcpt)
	}

	fields := make([]models.Field, 0, len(req.Fields))
	for _, f := range req.Fields {
		if f.Recipient < 0 || f.Recipient >= len(recipients) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field references recipient index %d out of range", f.Recipient))
		}
		owner := &recipients[f.Recipient]
		if !owner.ActsOnFields() {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("%s recipients cannot own fields", owner.Role))
		}
		field := models.Field{
			DocumentID:  doc.ID,
			RecipientID: owner.ID,
			Type:        f.Type,
			Page:        f.Page,
			PositionX:   f.PositionX,
			PositionY:   f.PositionY,
			Width:       f.Width,
			Height:      f.Height,
			Meta:        f.Meta,
		}
		if _, err := field.Type.Kind(); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		if err := field.ValidateMeta(); err != nil {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, err.Error())
		}
		if err := s.fields.Create(ctx, &field); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "create field")
		}
		fields = append(fields, field)
	}

	return &dto.DocumentResponse{Document: *doc, Recipients: recipients, Fields: fields}, nil
}

// Get returns a document with its recipients and fields, served from
// cache when a fresh entry exists.
func (s *DocumentService) Get(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	if cached := s.cache.Get(ctx, id); cached != nil {
		return cached, nil
	}
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	recipients, err := s.recipients.ListByDocument(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recipients")
	}
	fields, err := s.fields.ListByDocument(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list fields")
	}
	resp := &dto.DocumentResponse{Document: *doc, Recipients: recipients, Fields: fields}
	s.cache.Set(ctx, id, resp)
	return resp, nil
}

// Distribute moves a draft to PENDING and sends the first wave of
// signing requests: everyone for parallel flow, the lowest signing order
// for sequential.
func (s *DocumentService) Distribute(ctx context.Context, id string) (*dto.DistributeResponse, error) {
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocumentStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("document is %s, only drafts can be distributed", doc.Status))
	}

	recipients, err := s.recipients.ListByDocument(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recipients")
	}
	wave := firstWave(doc.SigningOrder, recipients)
	if len(wave) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "document has no recipient able to sign")
	}

	if err := s.documents.UpdateStatus(ctx, s.db, id, models.DocumentStatusPending, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update document status")
	}
	doc.Status = models.DocumentStatusPending

	notified := make([]string, 0, len(wave))
	for _, rcpt := range wave {
		if err := s.recipients.UpdateSendStatus(ctx, s.db, rcpt.ID, models.SendStatusSent); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "mark recipient sent")
		}
		if err := s.notifications.SendSigningRequest(doc, rcpt); err != nil {
			s.logger.Sugar().Warnw("enqueue signing request failed", "document_id", id, "recipient_id", rcpt.ID, "error", err)
		}
		notified = append(notified, rcpt.Email)
	}

	s.recordAudit(ctx, id, models.AuditDocumentSent, nil, fmt.Sprintf("signing requests sent to %d recipient(s)", len(notified)))
	s.cache.Invalidate(ctx, id)

	return &dto.DistributeResponse{DocumentID: id, Status: string(doc.Status), Notified: notified}, nil
}

// firstWave selects the recipients who should receive the initial signing
// request.
func firstWave(order models.SigningOrder, recipients []models.Recipient) []*models.Recipient {
	var wave []*models.Recipient
	if order == models.SigningOrderSequential {
		var lowest *int
		for i := range recipients {
			r := &recipients[i]
			if !r.ActsOnFields() || r.SigningStatus != models.SigningStatusNotSigned {
				continue
			}
			if r.SigningOrder != nil && (lowest == nil || *r.SigningOrder < *lowest) {
				lowest = r.SigningOrder
			}
		}
		for i := range recipients {
			r := &recipients[i]
			if !r.ActsOnFields() || r.SigningStatus != models.SigningStatusNotSigned {
				continue
			}
			if lowest == nil || (r.SigningOrder != nil && *r.SigningOrder == *lowest) {
				wave = append(wave, r)
				if lowest == nil {
					break
				}
			}
		}
		return wave
	}
	for i := range recipients {
		r := &recipients[i]
		if r.ActsOnFields() && r.SigningStatus == models.SigningStatusNotSigned {
			wave = append(wave, r)
		}
	}
	return wave
}

// Download resolves the current payload bytes and a file name.
func (s *DocumentService) Download(ctx context.Context, id string) ([]byte, string, error) {
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, "", err
	}
	dd, err := s.payloads.Get(ctx, doc.DocumentDataID)
	if err != nil {
		return nil, "", err
	}
	data, err := s.payloads.Load(ctx, dd)
	if err != nil {
		return nil, "", err
	}
	return data, fileName(doc.Title), nil
}

// DownloadURL issues a signed, expiring link for the current payload.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (*dto.DownloadURLResponse, error) {
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, fileName(doc.Title))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign download url")
	}
	return &dto.DownloadURLResponse{
		URL:       fmt.Sprintf("%s/api/v1/documents/download?token=%s", s.publicURL, token),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveDownload validates a signed download token and returns the
// payload it references.
func (s *DocumentService) ResolveDownload(ctx context.Context, token string) ([]byte, string, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	data, _, err := s.Download(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	return data, relPath, nil
}

// Delete soft-deletes a document and tells pending recipients. Completed
// documents stay downloadable and cannot be deleted this way.
func (s *DocumentService) Delete(ctx context.Context, id, reason string) error {
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == models.DocumentStatusCompleted {
		return appErrors.Clone(appErrors.ErrCompleted, "completed documents cannot be deleted")
	}
	if err := s.documents.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete document")
	}

	recipients, err := s.recipients.ListByDocument(ctx, id)
	if err != nil {
		s.logger.Sugar().Warnw("list recipients for cancellation notice failed", "document_id", id, "error", err)
	} else if err := s.notifications.NotifyDocumentCancelled(doc, recipients, reason); err != nil {
		s.logger.Sugar().Warnw("enqueue cancellation notice failed", "document_id", id, "error", err)
	}

	s.recordAudit(ctx, id, models.AuditDocumentDeleted, nil, reason)
	s.cache.Invalidate(ctx, id)
	return nil
}

// CertificateData assembles the audit-certificate payload for a document.
func (s *DocumentService) CertificateData(ctx context.Context, id string) (*pdf.CertificateData, error) {
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	recipients, err := s.recipients.ListByDocument(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recipients")
	}
	signatures, err := s.signatures.ListByDocument(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list signatures")
	}

	byRecipient := map[string]string{}
	for i := range signatures {
		sig := &signatures[i]
		display := "Signed electronically"
		if sig.IsTyped() {
			display = *sig.TypedSignature
		}
		byRecipient[sig.RecipientID] = display
	}

	data := &pdf.CertificateData{
		Title:       doc.Title,
		DocumentID:  doc.ID,
		SiteName:    s.siteName,
		CompletedAt: time.Now().UTC(),
	}
	if doc.CompletedAt != nil {
		data.CompletedAt = *doc.CompletedAt
	}
	for i := range recipients {
		r := &recipients[i]
		if !r.ActsOnFields() {
			continue
		}
		data.Recipients = append(data.Recipients, pdf.CertificateRecipient{
			Name:      r.Name,
			Email:     r.Email,
			Role:      string(r.Role),
			Signature: byRecipient[r.ID],
			SignedAt:  r.SignedAt,
			RequestID: r.ID,
			AuthLevel: "email",
		})
	}
	return data, nil
}

func (s *DocumentService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load document")
	}
	if doc.IsDeleted() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

func (s *DocumentService) recordAudit(ctx context.Context, documentID, auditType string, recipient *models.Recipient, message string) {
	entry := &models.AuditLog{
		DocumentID: documentID,
		Type:       auditType,
		Message:    message,
	}
	if recipient != nil {
		entry.RecipientID = &recipient.ID
		entry.RecipientEmail = &recipient.Email
	}
	if err := s.audit.Create(ctx, s.db, entry); err != nil {
		s.logger.Sugar().Warnw("write audit log failed", "document_id", documentID, "type", auditType, "error", err)
	}
}

func fileName(title string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = "document"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
