package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/models"
	"github.com/Caring-data/documenso-sub000/internal/pdf"
	"github.com/Caring-data/documenso-sub000/internal/repository"
	"github.com/Caring-data/documenso-sub000/pkg/config"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/jobs"
	"github.com/Caring-data/documenso-sub000/pkg/storage"
)

// JobSealDocument runs the sealing pipeline for one document.
const JobSealDocument = "internal/seal-document"

// SealPayload identifies the document to seal. Reseal restarts from the
// originally-uploaded bytes of an already-completed document.
type SealPayload struct {
	DocumentID string `validate:"required"`
	Reseal     bool
}

type documentSealer interface {
	Seal(ctx context.Context, src []byte, inputs []pdf.FieldInput, certificate []byte) ([]byte, error)
}

type certificateDataSource interface {
	CertificateData(ctx context.Context, id string) (*pdf.CertificateData, error)
}

// SealService runs the sealing pipeline: preconditions, field inputs,
// certificate page, flatten/insert/sign, persistence, fan-out.
type SealService struct {
	db            *sqlx.DB
	documents     completionDocumentStore
	recipients    recipientStore
	fields        fieldStore
	signatures    signatureStore
	audit         auditStore
	payloads      *PayloadService
	sealer        documentSealer
	renderer      pdf.CertificateRenderer
	certData      certificateDataSource
	certCfg       config.CertificateConfig
	notifications *NotificationService
	webhooks      *WebhookService
	forwarding    *ForwardingService
	signer        *storage.SignedURLSigner
	cache         *DocumentCache
	publicURL     string
	logger        *zap.Logger
}

// NewSealService constructs the seal service.
func NewSealService(
	db *sqlx.DB,
	documents completionDocumentStore,
	recipients recipientStore,
	fields fieldStore,
	signatures signatureStore,
	audit auditStore,
	payloads *PayloadService,
	sealer documentSealer,
	renderer pdf.CertificateRenderer,
	certData certificateDataSource,
	certCfg config.CertificateConfig,
	notifications *NotificationService,
	webhooks *WebhookService,
	forwarding *ForwardingService,
	signer *storage.SignedURLSigner,
	cache *DocumentCache,
	publicURL string,
	logger *zap.Logger,
) *SealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SealService{
		db:            db,
		documents:     documents,
		recipients:    recipients,
		fields:        fields,
		signatures:    signatures,
		audit:         audit,
		payloads:      payloads,
		sealer:        sealer,
		renderer:      renderer,
		certData:      certData,
		certCfg:       certCfg,
		notifications: notifications,
		webhooks:      webhooks,
		forwarding:    forwarding,
		signer:        signer,
		cache:         cache,
		publicURL:     publicURL,
		logger:        logger,
	}
}

// SealDocument seals one document end to end. Precondition failures are
// fatal and mutate nothing.
func (s *SealService) SealDocument(ctx context.Context, documentID string, reseal bool) error {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load document")
	}
	if doc.IsDeleted() {
		return appErrors.Clone(appErrors.ErrNotFound, "document was deleted")
	}
	switch {
	case doc.Status == models.DocumentStatusPending:
	case doc.Status == models.DocumentStatusCompleted && reseal:
	default:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("document is %s, cannot seal", doc.Status))
	}

	recipients, err := s.recipients.ListByDocument(ctx, documentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list recipients")
	}
	for i := range recipients {
		r := &recipients[i]
		if r.ActsOnFields() && r.SigningStatus != models.SigningStatusSigned {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("recipient %s has not signed", r.Email))
		}
	}

	fields, err := s.fields.ListByDocument(ctx, documentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list fields")
	}
	inputs, err := s.buildFieldInputs(ctx, fields)
	if err != nil {
		return err
	}

	dd, err := s.payloads.Get(ctx, doc.DocumentDataID)
	if err != nil {
		return err
	}
	// Always start from the original upload so a re-seal never signs
	// already-sealed output.
	src, err := s.payloads.LoadInitial(ctx, dd)
	if err != nil {
		return err
	}

	certificate := s.renderCertificate(ctx, documentID)

	sealed, err := s.sealer.Seal(ctx, src, inputs, certificate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "seal document")
	}

	completedAt := time.Now().UTC()
	err = repository.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.payloads.StoreSealed(ctx, tx, dd, documentID, sealed); err != nil {
			return err
		}
		if err := s.documents.UpdateStatus(ctx, tx, documentID, models.DocumentStatusCompleted, &completedAt); err != nil {
			return err
		}
		return s.audit.Create(ctx, tx, &models.AuditLog{
			DocumentID: documentID,
			Type:       models.AuditDocumentCompleted,
			Message:    "document sealed and completed",
		})
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist sealed document")
	}
	doc.Status = models.DocumentStatusCompleted
	doc.CompletedAt = &completedAt
	s.cache.Invalidate(ctx, documentID)

	s.fanOut(ctx, doc, recipients, sealed)
	return nil
}

// buildFieldInputs resolves inserted fields plus their signatures into
// renderer inputs. Uninserted optional fields are skipped.
func (s *SealService) buildFieldInputs(ctx context.Context, fields []models.Field) ([]pdf.FieldInput, error) {
	inputs := make([]pdf.FieldInput, 0, len(fields))
	for i := range fields {
		f := fields[i]
		if !f.Inserted {
			kind, err := f.Type.Kind()
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrConfiguration, err.Error())
			}
			if kind == models.KindSignature || f.Meta.Required {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("required field %s is not signed", f.ID))
			}
			continue
		}

		in := pdf.FieldInput{Field: f, Value: f.CustomText}
		kind, err := f.Type.Kind()
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrConfiguration, err.Error())
		}
		if kind == models.KindSignature {
			sig, err := s.signatures.GetByFieldID(ctx, f.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load signature")
			}
			if sig == nil {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("signature field %s has no signature", f.ID))
			}
			in.FontName = sig.FontName
			in.ColorName = sig.ColorName
			if sig.ImageBase64 != nil && *sig.ImageBase64 != "" {
				data, err := base64.StdEncoding.DecodeString(stripDataURL(*sig.ImageBase64))
				if err != nil {
					return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("signature image for field %s is not valid base64", f.ID))
				}
				in.ImageData = data
			} else if sig.TypedSignature != nil {
				in.TypedText = *sig.TypedSignature
			}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// renderCertificate produces the audit certificate page. Best-effort: any
// failure logs and the seal proceeds without the page.
func (s *SealService) renderCertificate(ctx context.Context, documentID string) []byte {
	if !s.certCfg.Enabled || s.renderer == nil || s.certData == nil {
		return nil
	}
	timeout := s.certCfg.RenderTimeout
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := s.certData.CertificateData(renderCtx, documentID)
	if err != nil {
		s.logger.Sugar().Warnw("certificate data unavailable, sealing without certificate page", "document_id", documentID, "error", err)
		return nil
	}
	if s.certCfg.SiteName != "" {
		data.SiteName = s.certCfg.SiteName
	}
	page, err := s.renderer.Render(renderCtx, *data)
	if err != nil {
		s.logger.Sugar().Warnw("certificate render failed, sealing without certificate page", "document_id", documentID, "error", err)
		return nil
	}
	return page
}

// fanOut runs the post-seal side effects. All best-effort.
func (s *SealService) fanOut(ctx context.Context, doc *models.Document, recipients []models.Recipient, sealed []byte) {
	var downloadURL string
	if s.signer != nil {
		if token, _, err := s.signer.Generate(doc.ID, fileName(doc.Title)); err == nil {
			downloadURL = fmt.Sprintf("%s/api/v1/documents/download?token=%s", s.publicURL, token)
		}
	}

	if err := s.webhooks.Notify(ctx, WebhookEventDocumentCompleted, doc.ID, map[string]interface{}{
		"title":       doc.Title,
		"completedAt": doc.CompletedAt,
	}); err != nil {
		s.logger.Sugar().Warnw("completion webhook failed", "document_id", doc.ID, "error", err)
	}

	if err := s.notifications.NotifyDocumentCompleted(doc, recipients, downloadURL); err != nil {
		s.logger.Sugar().Warnw("enqueue completion emails failed", "document_id", doc.ID, "error", err)
	}

	if result := s.forwarding.Forward(ctx, doc.ID, doc.Title, sealed); result.Attempted && !result.Delivered {
		s.logger.Sugar().Warnw("sealed document not forwarded",
			"document_id", doc.ID, "status", result.StatusCode, "error", result.Err)
	}
}

// SealWorker adapts the seal service to the job queue.
type SealWorker struct {
	service *SealService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSealWorker constructs the worker. metrics may be nil.
func NewSealWorker(service *SealService, metrics *MetricsService, logger *zap.Logger) *SealWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SealWorker{service: service, metrics: metrics, logger: logger}
}

// Register binds the seal job type.
func (w *SealWorker) Register(d *jobs.Dispatcher) {
	d.Register(JobSealDocument, w.Handle)
}

// Handle runs one seal job. Precondition failures are dropped rather than
// retried; transient failures propagate so the queue retries them.
func (w *SealWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(SealPayload)
	if !ok {
		w.logger.Sugar().Errorw("dropping seal job with unexpected payload", "job_id", job.ID)
		return nil
	}

	start := time.Now()
	err := w.service.SealDocument(ctx, payload.DocumentID, payload.Reseal)
	w.metrics.ObserveSeal(err == nil, time.Since(start))
	if err == nil {
		w.logger.Sugar().Infow("document sealed", "document_id", payload.DocumentID, "attempt", job.Attempt)
		return nil
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case appErrors.ErrPreconditionFailed.Code, appErrors.ErrConfiguration.Code,
			appErrors.ErrNotFound.Code, appErrors.ErrValidation.Code:
			w.logger.Sugar().Errorw("seal precondition failed, dropping job",
				"document_id", payload.DocumentID, "code", appErr.Code, "error", err)
			return nil
		}
	}
	w.logger.Sugar().Warnw("seal attempt failed",
		"document_id", payload.DocumentID, "attempt", job.Attempt, "error", err)
	return err
}
