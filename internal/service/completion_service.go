package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/dto"
	"github.com/Caring-data/documenso-sub000/internal/models"
	"github.com/Caring-data/documenso-sub000/internal/repository"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/jobs"
)

// Job types owned by the completion service.
const (
	JobProcessCompletion = "internal/process-completion"
)

type completionDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Document, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.DocumentStatus, completedAt *time.Time) error
}

type completionRecipientStore interface {
	GetByID(ctx context.Context, id string) (*models.Recipient, error)
	GetByToken(ctx context.Context, token string) (*models.Recipient, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Recipient, error)
	ListByDocumentForUpdate(ctx context.Context, tx *sqlx.Tx, documentID string) ([]models.Recipient, error)
	UpdateSigningStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SigningStatus, signedAt *time.Time, rejectionReason *string) error
	UpdateSendStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SendStatus) error
}

type completionFieldStore interface {
	GetByID(ctx context.Context, id string) (*models.Field, error)
	ListByRecipient(ctx context.Context, recipientID string) ([]models.Field, error)
	SetSigned(ctx context.Context, exec sqlx.ExtContext, id, customText string) error
	ClearSigned(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type signatureStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, sig *models.Signature) error
	GetByFieldID(ctx context.Context, fieldID string) (*models.Signature, error)
	DeleteByFieldID(ctx context.Context, exec sqlx.ExtContext, fieldID string) error
}

// CompletionPayload drives the post-commit fan-out after a recipient
// finishes their turn. NextRecipientID is set only by the transaction
// that advanced the sequential flow, so the advancement email goes out
// exactly once.
type CompletionPayload struct {
	DocumentID      string `validate:"required"`
	RecipientID     string `validate:"required"`
	Remaining       int
	NextRecipientID string
}

// CompletionService is the signing state machine: field sign/unsign,
// per-recipient completion with signing-order advancement, rejection.
type CompletionService struct {
	db            *sqlx.DB
	documents     completionDocumentStore
	recipients    completionRecipientStore
	fields        completionFieldStore
	signatures    signatureStore
	audit         auditStore
	notifications *NotificationService
	webhooks      *WebhookService
	queue         jobEnqueuer
	lock          sealLock
	cache         *DocumentCache
	logger        *zap.Logger
}

// NewCompletionService constructs the completion service.
func NewCompletionService(
	db *sqlx.DB,
	documents completionDocumentStore,
	recipients completionRecipientStore,
	fields completionFieldStore,
	signatures signatureStore,
	audit auditStore,
	notifications *NotificationService,
	webhooks *WebhookService,
	queue jobEnqueuer,
	lock sealLock,
	cache *DocumentCache,
	logger *zap.Logger,
) *CompletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionService{
		db:            db,
		documents:     documents,
		recipients:    recipients,
		fields:        fields,
		signatures:    signatures,
		audit:         audit,
		notifications: notifications,
		webhooks:      webhooks,
		queue:         queue,
		lock:          lock,
		cache:         cache,
		logger:        logger,
	}
}

// Register binds the completion fan-out job.
func (s *CompletionService) Register(d *jobs.Dispatcher) {
	d.Register(JobProcessCompletion, s.handleProcessCompletion)
}

// Session resolves a recipient token into their signing view.
func (s *CompletionService) Session(ctx context.Context, token string) (*dto.SigningSessionResponse, error) {
	doc, rcpt, err := s.authorize(ctx, token)
	if err != nil {
		return nil, err
	}
	fields, err := s.fields.ListByRecipient(ctx, rcpt.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recipient fields")
	}
	return &dto.SigningSessionResponse{Document: *doc, Recipient: *rcpt, Fields: fields}, nil
}

// SignField validates and stores one field value for the recipient the
// token belongs to.
func (s *CompletionService) SignField(ctx context.Context, token, fieldID string, req dto.SignFieldRequest) (*dto.FieldStateResponse, error) {
	doc, rcpt, err := s.authorizeActive(ctx, token)
	if err != nil {
		return nil, err
	}
	field, err := s.loadOwnedField(ctx, rcpt, fieldID)
	if err != nil {
		return nil, err
	}
	if field.Meta.ReadOnly {
		return nil, appErrors.Clone(appErrors.ErrValidation, "field is read-only")
	}

	customText, sig, err := resolveFieldValue(doc, rcpt, field, req)
	if err != nil {
		return nil, err
	}

	err = repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.fields.SetSigned(ctx, tx, field.ID, customText); err != nil {
			return err
		}
		if sig != nil {
			if err := s.signatures.Upsert(ctx, tx, sig); err != nil {
				return err
			}
		}
		return s.audit.Create(ctx, tx, &models.AuditLog{
			DocumentID:     doc.ID,
			Type:           models.AuditFieldSigned,
			RecipientID:    &rcpt.ID,
			RecipientEmail: &rcpt.Email,
			Message:        fmt.Sprintf("field %s (%s) signed", field.ID, field.Type),
		})
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign field")
	}
	s.cache.Invalidate(ctx, doc.ID)

	return &dto.FieldStateResponse{FieldID: field.ID, Inserted: true, CustomText: customText}, nil
}

// UnsignField clears a previously signed field while the recipient's turn
// is still open.
func (s *CompletionService) UnsignField(ctx context.Context, token, fieldID string) (*dto.FieldStateResponse, error) {
	doc, rcpt, err := s.authorizeActive(ctx, token)
	if err != nil {
		return nil, err
	}
	field, err := s.loadOwnedField(ctx, rcpt, fieldID)
	if err != nil {
		return nil, err
	}

	err = repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.fields.ClearSigned(ctx, tx, field.ID); err != nil {
			return err
		}
		if err := s.signatures.DeleteByFieldID(ctx, tx, field.ID); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, &models.AuditLog{
			DocumentID:     doc.ID,
			Type:           models.AuditFieldUnsigned,
			RecipientID:    &rcpt.ID,
			RecipientEmail: &rcpt.Email,
			Message:        fmt.Sprintf("field %s (%s) unsigned", field.ID, field.Type),
		})
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "unsign field")
	}
	s.cache.Invalidate(ctx, doc.ID)

	return &dto.FieldStateResponse{FieldID: field.ID, Inserted: false}, nil
}

// CompleteSigning ends the recipient's turn. The transaction locks the
// document and recipient rows so two racing finals cannot both observe
// themselves last; the fan-out (emails, advancement, seal trigger) runs
// as a job after commit.
func (s *CompletionService) CompleteSigning(ctx context.Context, token string) (*dto.CompleteResponse, error) {
	rcpt, err := s.recipients.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown signing token")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve signing token")
	}

	var (
		remaining int
		nextID    string
	)
	err = repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		doc, err := s.documents.GetByIDForUpdate(ctx, tx, rcpt.DocumentID)
		if err != nil {
			return err
		}
		if err := documentOpen(doc); err != nil {
			return err
		}

		locked, err := s.recipients.ListByDocumentForUpdate(ctx, tx, doc.ID)
		if err != nil {
			return err
		}
		current := findRecipient(locked, rcpt.ID)
		if current == nil {
			return appErrors.Clone(appErrors.ErrUnauthorized, "recipient no longer on document")
		}
		switch current.SigningStatus {
		case models.SigningStatusSigned:
			return appErrors.Clone(appErrors.ErrConflict, "recipient already completed signing")
		case models.SigningStatusRejected:
			return appErrors.Clone(appErrors.ErrConflict, "recipient rejected this document")
		}
		if doc.SigningOrder == models.SigningOrderSequential && !isRecipientTurn(locked, current) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "not this recipient's turn to sign")
		}

		fields, err := s.fields.ListByRecipient(ctx, current.ID)
		if err != nil {
			return err
		}
		for i := range fields {
			f := &fields[i]
			if f.Inserted {
				continue
			}
			kind, kerr := f.Type.Kind()
			if (kerr == nil && kind == models.KindSignature) || f.Meta.Required {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("required field %s is not signed", f.ID))
			}
		}

		now := time.Now().UTC()
		if err := s.recipients.UpdateSigningStatus(ctx, tx, current.ID, models.SigningStatusSigned, &now, nil); err != nil {
			return err
		}
		current.SigningStatus = models.SigningStatusSigned
		current.SignedAt = &now

		if err := s.audit.Create(ctx, tx, &models.AuditLog{
			DocumentID:     doc.ID,
			Type:           models.AuditRecipientSigned,
			RecipientID:    &current.ID,
			RecipientEmail: &current.Email,
			Message:        fmt.Sprintf("%s completed signing", current.Email),
		}); err != nil {
			return err
		}

		remaining = countPending(locked)
		if remaining > 0 && doc.SigningOrder == models.SigningOrderSequential {
			if next := nextPending(locked); next != nil && next.SendStatus == models.SendStatusNotSent {
				if err := s.recipients.UpdateSendStatus(ctx, tx, next.ID, models.SendStatusSent); err != nil {
					return err
				}
				nextID = next.ID
			}
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "complete signing")
	}

	s.cache.Invalidate(ctx, rcpt.DocumentID)

	payload := CompletionPayload{
		DocumentID:      rcpt.DocumentID,
		RecipientID:     rcpt.ID,
		Remaining:       remaining,
		NextRecipientID: nextID,
	}
	if err := s.queue.Enqueue(JobProcessCompletion, payload); err != nil {
		// The signature is committed; run the fan-out inline rather than
		// losing it.
		s.logger.Sugar().Warnw("enqueue completion fan-out failed, running inline",
			"document_id", rcpt.DocumentID, "error", err)
		s.processCompletion(ctx, payload)
	}

	return &dto.CompleteResponse{
		DocumentID:     rcpt.DocumentID,
		RecipientID:    rcpt.ID,
		SigningStatus:  models.SigningStatusSigned,
		DocumentStatus: string(models.DocumentStatusPending),
		SealEnqueued:   remaining == 0,
	}, nil
}

// RejectSigning is terminal: the recipient declines and the document is
// cancelled for everyone.
func (s *CompletionService) RejectSigning(ctx context.Context, token, reason string) error {
	rcpt, err := s.recipients.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "unknown signing token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve signing token")
	}

	var doc *models.Document
	err = repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		doc, err = s.documents.GetByIDForUpdate(ctx, tx, rcpt.DocumentID)
		if err != nil {
			return err
		}
		if err := documentOpen(doc); err != nil {
			return err
		}
		locked, err := s.recipients.ListByDocumentForUpdate(ctx, tx, doc.ID)
		if err != nil {
			return err
		}
		current := findRecipient(locked, rcpt.ID)
		if current == nil {
			return appErrors.Clone(appErrors.ErrUnauthorized, "recipient no longer on document")
		}
		if current.SigningStatus != models.SigningStatusNotSigned {
			return appErrors.Clone(appErrors.ErrConflict, "recipient already acted on this document")
		}

		trimmed := strings.TrimSpace(reason)
		if err := s.recipients.UpdateSigningStatus(ctx, tx, current.ID, models.SigningStatusRejected, nil, &trimmed); err != nil {
			return err
		}
		if err := s.documents.UpdateStatus(ctx, tx, doc.ID, models.DocumentStatusRejected, nil); err != nil {
			return err
		}
		doc.Status = models.DocumentStatusRejected
		return s.audit.Create(ctx, tx, &models.AuditLog{
			DocumentID:     doc.ID,
			Type:           models.AuditRecipientRejected,
			RecipientID:    &current.ID,
			RecipientEmail: &current.Email,
			Message:        trimmed,
		})
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reject signing")
	}

	s.cache.Invalidate(ctx, doc.ID)

	recipients, lerr := s.recipients.ListByDocument(ctx, doc.ID)
	if lerr != nil {
		s.logger.Sugar().Warnw("list recipients after rejection failed", "document_id", doc.ID, "error", lerr)
	} else if err := s.notifications.NotifyDocumentCancelled(doc, recipients, reason); err != nil {
		s.logger.Sugar().Warnw("enqueue cancellation notice failed", "document_id", doc.ID, "error", err)
	}
	if err := s.webhooks.Notify(ctx, WebhookEventDocumentRejected, doc.ID, map[string]string{"reason": reason}); err != nil {
		s.logger.Sugar().Warnw("rejection webhook failed", "document_id", doc.ID, "error", err)
	}
	return nil
}

func (s *CompletionService) handleProcessCompletion(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(CompletionPayload)
	if !ok {
		s.logger.Sugar().Errorw("dropping completion job with unexpected payload", "job_id", job.ID)
		return nil
	}
	s.processCompletion(ctx, payload)
	return nil
}

// processCompletion runs the post-commit side effects of one completed
// turn. Every step is best-effort; the database state is already final.
func (s *CompletionService) processCompletion(ctx context.Context, payload CompletionPayload) {
	doc, err := s.documents.GetByID(ctx, payload.DocumentID)
	if err != nil {
		s.logger.Sugar().Errorw("load document for completion fan-out failed", "document_id", payload.DocumentID, "error", err)
		return
	}
	rcpt, err := s.recipients.GetByID(ctx, payload.RecipientID)
	if err != nil {
		s.logger.Sugar().Errorw("load recipient for completion fan-out failed", "recipient_id", payload.RecipientID, "error", err)
		return
	}

	if err := s.notifications.NotifyRecipientSigned(doc, rcpt); err != nil {
		s.logger.Sugar().Warnw("enqueue recipient-signed notice failed", "document_id", doc.ID, "error", err)
	}

	if payload.Remaining > 0 {
		if err := s.notifications.NotifyDocumentPending(doc, rcpt); err != nil {
			s.logger.Sugar().Warnw("enqueue pending notice failed", "document_id", doc.ID, "error", err)
		}
		if payload.NextRecipientID != "" {
			next, err := s.recipients.GetByID(ctx, payload.NextRecipientID)
			if err != nil {
				s.logger.Sugar().Errorw("load next recipient failed", "recipient_id", payload.NextRecipientID, "error", err)
			} else if err := s.notifications.SendSigningRequest(doc, next); err != nil {
				s.logger.Sugar().Warnw("enqueue advancement request failed", "recipient_id", next.ID, "error", err)
			}
		}
		return
	}

	ok, err := s.lock.Acquire(ctx, doc.ID)
	if err != nil {
		s.logger.Sugar().Warnw("seal lock errored, enqueueing anyway", "document_id", doc.ID, "error", err)
		ok = true
	}
	if !ok {
		s.logger.Sugar().Infow("seal already triggered", "document_id", doc.ID)
		return
	}
	if err := s.queue.Enqueue(JobSealDocument, SealPayload{DocumentID: doc.ID}); err != nil {
		s.logger.Sugar().Errorw("enqueue seal job failed", "document_id", doc.ID, "error", err)
		s.lock.Release(ctx, doc.ID)
		return
	}
	if err := s.webhooks.Notify(ctx, WebhookEventDocumentSigned, doc.ID, nil); err != nil {
		s.logger.Sugar().Warnw("signed webhook failed", "document_id", doc.ID, "error", err)
	}
}

func (s *CompletionService) authorize(ctx context.Context, token string) (*models.Document, *models.Recipient, error) {
	if token == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing signing token")
	}
	rcpt, err := s.recipients.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown signing token")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve signing token")
	}
	doc, err := s.documents.GetByID(ctx, rcpt.DocumentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load document")
	}
	if doc.IsDeleted() {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, rcpt, nil
}

// authorizeActive additionally requires an open document and an
// unfinished recipient, and enforces the sequential turn.
func (s *CompletionService) authorizeActive(ctx context.Context, token string) (*models.Document, *models.Recipient, error) {
	doc, rcpt, err := s.authorize(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if err := documentOpen(doc); err != nil {
		return nil, nil, err
	}
	switch rcpt.SigningStatus {
	case models.SigningStatusSigned:
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "recipient already completed signing")
	case models.SigningStatusRejected:
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "recipient rejected this document")
	}
	if doc.SigningOrder == models.SigningOrderSequential {
		recipients, err := s.recipients.ListByDocument(ctx, doc.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recipients")
		}
		if !isRecipientTurn(recipients, rcpt) {
			return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "not this recipient's turn to sign")
		}
	}
	return doc, rcpt, nil
}

func (s *CompletionService) loadOwnedField(ctx context.Context, rcpt *models.Recipient, fieldID string) (*models.Field, error) {
	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "field not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load field")
	}
	if field.RecipientID != rcpt.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "field belongs to another recipient")
	}
	return field, nil
}

func documentOpen(doc *models.Document) error {
	switch doc.Status {
	case models.DocumentStatusCompleted:
		return appErrors.ErrCompleted
	case models.DocumentStatusRejected:
		return appErrors.ErrRejected
	case models.DocumentStatusPending:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "document has not been distributed")
	}
}

func findRecipient(recipients []models.Recipient, id string) *models.Recipient {
	for i := range recipients {
		if recipients[i].ID == id {
			return &recipients[i]
		}
	}
	return nil
}

// isRecipientTurn reports whether no other pending acting recipient
// precedes this one. Recipients without an order go last; the repository
// orders the slice that way already.
func isRecipientTurn(recipients []models.Recipient, rcpt *models.Recipient) bool {
	for i := range recipients {
		r := &recipients[i]
		if r.ID == rcpt.ID {
			return true
		}
		if r.ActsOnFields() && r.SigningStatus == models.SigningStatusNotSigned {
			return false
		}
	}
	return true
}

func countPending(recipients []models.Recipient) int {
	n := 0
	for i := range recipients {
		r := &recipients[i]
		if r.ActsOnFields() && r.SigningStatus == models.SigningStatusNotSigned {
			n++
		}
	}
	return n
}

func nextPending(recipients []models.Recipient) *models.Recipient {
	for i := range recipients {
		r := &recipients[i]
		if r.ActsOnFields() && r.SigningStatus == models.SigningStatusNotSigned {
			return r
		}
	}
	return nil
}

// resolveFieldValue turns a raw sign request into the stored custom text
// and, for signature kinds, the signature row.
func resolveFieldValue(doc *models.Document, rcpt *models.Recipient, field *models.Field, req dto.SignFieldRequest) (string, *models.Signature, error) {
	kind, err := field.Type.Kind()
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := field.ValidateMeta(); err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrConfiguration, err.Error())
	}

	switch kind {
	case models.KindSignature:
		return resolveSignatureValue(field, rcpt, req)

	case models.KindCheckbox:
		selected := parseSelection(req.Value)
		if err := validateOptions(field, selected); err != nil {
			return "", nil, err
		}
		n := len(selected)
		if field.Meta.MinChecked != nil && n < *field.Meta.MinChecked {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("select at least %d option(s)", *field.Meta.MinChecked))
		}
		if field.Meta.MaxChecked != nil && n > *field.Meta.MaxChecked {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("select at most %d option(s)", *field.Meta.MaxChecked))
		}
		return strings.Join(selected, ","), nil, nil

	case models.KindRadio:
		value := strings.TrimSpace(req.Value)
		if value == "" {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, "select an option")
		}
		if err := validateOptions(field, []string{value}); err != nil {
			return "", nil, err
		}
		return value, nil, nil

	default:
		return resolveTextValue(doc, rcpt, field, req.Value)
	}
}

func resolveSignatureValue(field *models.Field, rcpt *models.Recipient, req dto.SignFieldRequest) (string, *models.Signature, error) {
	sig := &models.Signature{
		FieldID:     field.ID,
		RecipientID: rcpt.ID,
		FontName:    req.FontName,
		ColorName:   req.ColorName,
	}
	switch {
	case req.ImageBase64 != "":
		if _, err := base64.StdEncoding.DecodeString(stripDataURL(req.ImageBase64)); err != nil {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, "signature image is not valid base64")
		}
		img := req.ImageBase64
		sig.ImageBase64 = &img
		return "", sig, nil
	case req.TypedSignature != "":
		typed := req.TypedSignature
		sig.TypedSignature = &typed
		return typed, sig, nil
	default:
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "signature requires an image or typed text")
	}
}

func resolveTextValue(doc *models.Document, rcpt *models.Recipient, field *models.Field, raw string) (string, *models.Signature, error) {
	value := strings.TrimSpace(raw)

	switch field.Type {
	case models.FieldTypeName:
		if value == "" {
			value = rcpt.Name
		}
	case models.FieldTypeEmail:
		if value == "" {
			value = rcpt.Email
		}
	case models.FieldTypeInitials:
		if value == "" {
			value = initialsOf(rcpt.Name)
		}
	case models.FieldTypeDate:
		// A date field always stamps the signing moment in the document's
		// timezone; client-provided values are ignored.
		value = formatTimestamp(time.Now(), doc.Meta)
	case models.FieldTypeCalendar:
		if value == "" {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, "select a date")
		}
	case models.FieldTypeNumber:
		if value != "" {
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return "", nil, appErrors.Clone(appErrors.ErrValidation, "value is not a number")
			}
			if field.Meta.MinValue != nil && n < *field.Meta.MinValue {
				return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("value must be at least %v", *field.Meta.MinValue))
			}
			if field.Meta.MaxValue != nil && n > *field.Meta.MaxValue {
				return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("value must be at most %v", *field.Meta.MaxValue))
			}
		}
	case models.FieldTypeDropdown:
		if value != "" {
			if err := validateOptions(field, []string{value}); err != nil {
				return "", nil, err
			}
		}
	}

	if field.Meta.Required && value == "" {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "field is required")
	}
	if field.Meta.MinLength != nil && len(value) < *field.Meta.MinLength {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("value must be at least %d characters", *field.Meta.MinLength))
	}
	if field.Meta.MaxLength != nil && len(value) > *field.Meta.MaxLength {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("value must be at most %d characters", *field.Meta.MaxLength))
	}
	return value, nil, nil
}

// validateOptions checks every selected value against the field's option
// list. Sentinel empty-value options are selectable like any other.
func validateOptions(field *models.Field, selected []string) error {
	if len(field.Meta.Values) == 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("field %s has no options configured", field.ID))
	}
	known := make(map[string]bool, len(field.Meta.Values))
	for _, opt := range field.Meta.Values {
		known[opt.Value] = true
	}
	for _, v := range selected {
		if !known[v] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown option %q", v))
		}
	}
	return nil
}

func parseSelection(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func initialsOf(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

func stripDataURL(raw string) string {
	if i := strings.Index(raw, ";base64,"); i >= 0 {
		return raw[i+len(";base64,"):]
	}
	return raw
}

// formatTimestamp renders a signing moment per the document's date
// format and timezone settings.
func formatTimestamp(t time.Time, meta models.DocumentMeta) string {
	loc := time.UTC
	if meta.Timezone != "" {
		if l, err := time.LoadLocation(meta.Timezone); err == nil {
			loc = l
		}
	}
	layout := dateLayout(meta.DateFormat)
	return t.In(loc).Format(layout)
}

var dateTokens = strings.NewReplacer(
	"YYYY", "2006",
	"yyyy", "2006",
	"MM", "01",
	"DD", "02",
	"dd", "02",
	"HH", "15",
	"hh", "03",
	"mm", "04",
	"ss", "05",
	"A", "PM",
	"a", "pm",
)

func dateLayout(format string) string {
	if format == "" {
		return "2006-01-02 3:04 PM"
	}
	return dateTokens.Replace(format)
}
