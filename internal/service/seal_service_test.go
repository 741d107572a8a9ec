package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/models"
	"github.com/Caring-data/documenso-sub000/internal/pdf"
	"github.com/Caring-data/documenso-sub000/pkg/config"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/jobs"
	"github.com/Caring-data/documenso-sub000/pkg/mailer"
)

type stubPayloadStore struct {
	rows    map[string]*models.DocumentData
	updates int
}

func (s *stubPayloadStore) Create(ctx context.Context, data *models.DocumentData) error {
	if s.rows == nil {
		s.rows = map[string]*models.DocumentData{}
	}
	s.rows[data.ID] = data
	return nil
}

func (s *stubPayloadStore) GetByID(ctx context.Context, id string) (*models.DocumentData, error) {
	if dd, ok := s.rows[id]; ok {
		cp := *dd
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubPayloadStore) UpdateData(ctx context.Context, exec sqlx.ExtContext, id, data string) error {
	s.updates++
	if dd, ok := s.rows[id]; ok {
		dd.Data = data
	}
	return nil
}

type stubSealer struct {
	src         []byte
	inputs      []pdf.FieldInput
	certificate []byte
	out         []byte
	err         error
}

func (s *stubSealer) Seal(ctx context.Context, src []byte, inputs []pdf.FieldInput, certificate []byte) ([]byte, error) {
	s.src = src
	s.inputs = inputs
	s.certificate = certificate
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

type stubCertificateSource struct {
	data *pdf.CertificateData
	err  error
}

func (s *stubCertificateSource) CertificateData(ctx context.Context, id string) (*pdf.CertificateData, error) {
	return s.data, s.err
}

type stubRenderer struct {
	page []byte
	err  error
}

func (r *stubRenderer) Render(ctx context.Context, data pdf.CertificateData) ([]byte, error) {
	return r.page, r.err
}

type sealFixture struct {
	svc      *SealService
	db       sqlmock.Sqlmock
	docs     *stubDocumentStore
	rcpts    *stubRecipientStore
	fields   *stubFieldStore
	sigs     *stubSignatureStore
	audit    *stubAuditStore
	payloads *stubPayloadStore
	sealer   *stubSealer
	queue    *stubJobQueue
}

func newSealFixture(t *testing.T, doc *models.Document, recipients []models.Recipient, fields []models.Field, dd *models.DocumentData) *sealFixture {
	t.Helper()
	db, mock := newServiceDB(t)
	f := &sealFixture{
		db:       mock,
		docs:     &stubDocumentStore{doc: doc},
		rcpts:    &stubRecipientStore{recipients: recipients},
		fields:   &stubFieldStore{fields: fields},
		sigs:     &stubSignatureStore{},
		audit:    &stubAuditStore{},
		payloads: &stubPayloadStore{},
		sealer:   &stubSealer{out: []byte("%PDF-sealed")},
		queue:    &stubJobQueue{},
	}
	require.NoError(t, f.payloads.Create(context.Background(), dd))
	payloads := NewPayloadService(f.payloads, nil, zap.NewNop())
	notifications := NewNotificationService(f.queue, mailer.NewLogMailer(nil), "https://sign.example.test", zap.NewNop())
	webhooks := NewWebhookService(config.WebhookConfig{}, zap.NewNop())
	forwarding := NewForwardingService(config.ForwardingConfig{}, zap.NewNop())
	f.svc = NewSealService(db, f.docs, f.rcpts, f.fields, f.sigs, f.audit,
		payloads, f.sealer, &stubRenderer{page: []byte("%PDF-cert")},
		&stubCertificateSource{data: &pdf.CertificateData{Title: doc.Title, DocumentID: doc.ID}},
		config.CertificateConfig{Enabled: true},
		notifications, webhooks, forwarding, nil, nil, "https://sign.example.test", zap.NewNop())
	return f
}

func signedRecipient(id string) models.Recipient {
	r := signerRecipient(id, "tok-"+id, 1)
	r.SigningStatus = models.SigningStatusSigned
	return r
}

func inlinePayload(id string, original []byte) *models.DocumentData {
	encoded := base64.StdEncoding.EncodeToString(original)
	return &models.DocumentData{ID: id, Type: models.DocumentDataTypeBytes64, Data: encoded, InitialData: encoded}
}

func TestSealDocumentCompletesAndStoresSealedPayload(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	fields := []models.Field{
		{ID: "f-sig", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1, Inserted: true, CustomText: "Ada"},
		{ID: "f-text", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeText, Page: 1, Inserted: true, CustomText: "approved"},
	}
	f := newSealFixture(t, doc, []models.Recipient{signedRecipient("ada")}, fields, inlinePayload("dd-1", []byte("%PDF-original")))
	typed := "Ada"
	f.sigs.sigs = map[string]*models.Signature{"f-sig": {FieldID: "f-sig", RecipientID: "ada", TypedSignature: &typed, FontName: "Caveat"}}

	f.db.ExpectBegin()
	f.db.ExpectCommit()

	require.NoError(t, f.svc.SealDocument(context.Background(), doc.ID, false))

	require.Equal(t, []byte("%PDF-original"), f.sealer.src)
	require.Len(t, f.sealer.inputs, 2)
	require.Equal(t, "Ada", f.sealer.inputs[0].TypedText)
	require.Equal(t, []byte("%PDF-cert"), f.sealer.certificate)

	require.Equal(t, []models.DocumentStatus{models.DocumentStatusCompleted}, f.docs.statusUpdates)
	require.NotNil(t, f.docs.doc.CompletedAt)
	stored := f.payloads.rows["dd-1"]
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-sealed")), stored.Data)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-original")), stored.InitialData)

	require.Len(t, f.audit.entries, 1)
	require.Equal(t, models.AuditDocumentCompleted, f.audit.entries[0].Type)

	// Owner plus recipient get the completion notice once each.
	require.Len(t, f.queue.ofType(JobEmailDocumentCompleted), 2)
}

func TestSealDocumentUnsignedRecipientFailsPrecondition(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	pending := signerRecipient("ada", "tok-ada", 1)
	f := newSealFixture(t, doc, []models.Recipient{pending}, nil, inlinePayload("dd-1", []byte("%PDF-original")))

	err := f.svc.SealDocument(context.Background(), doc.ID, false)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	require.Empty(t, f.docs.statusUpdates)
	require.Zero(t, f.payloads.updates)
}

func TestSealDocumentUninsertedRequiredFieldFailsPrecondition(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	fields := []models.Field{
		{ID: "f-sig", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1},
	}
	f := newSealFixture(t, doc, []models.Recipient{signedRecipient("ada")}, fields, inlinePayload("dd-1", []byte("%PDF-original")))

	err := f.svc.SealDocument(context.Background(), doc.ID, false)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSealDocumentDraftCannotSeal(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	doc.Status = models.DocumentStatusDraft
	f := newSealFixture(t, doc, nil, nil, inlinePayload("dd-1", []byte("%PDF-original")))

	err := f.svc.SealDocument(context.Background(), doc.ID, false)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSealDocumentResealStartsFromInitialBytes(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	doc.Status = models.DocumentStatusCompleted
	dd := inlinePayload("dd-1", []byte("%PDF-original"))
	// The current payload already holds a previous seal.
	dd.Data = base64.StdEncoding.EncodeToString([]byte("%PDF-previously-sealed"))

	f := newSealFixture(t, doc, []models.Recipient{signedRecipient("ada")}, nil, dd)
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	require.NoError(t, f.svc.SealDocument(context.Background(), doc.ID, true))
	require.Equal(t, []byte("%PDF-original"), f.sealer.src)
}

func TestSealDocumentCompletedWithoutResealFlag(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	doc.Status = models.DocumentStatusCompleted
	f := newSealFixture(t, doc, nil, nil, inlinePayload("dd-1", []byte("%PDF-original")))

	err := f.svc.SealDocument(context.Background(), doc.ID, false)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSealDocumentCertificateFailureIsBestEffort(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	f := newSealFixture(t, doc, []models.Recipient{signedRecipient("ada")}, nil, inlinePayload("dd-1", []byte("%PDF-original")))
	f.svc.certData = &stubCertificateSource{err: errors.New("renderer down")}
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	require.NoError(t, f.svc.SealDocument(context.Background(), doc.ID, false))
	require.Nil(t, f.sealer.certificate)
	require.Equal(t, []models.DocumentStatus{models.DocumentStatusCompleted}, f.docs.statusUpdates)
}

func TestSealWorkerDropsPreconditionFailures(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	doc.Status = models.DocumentStatusDraft
	f := newSealFixture(t, doc, nil, nil, inlinePayload("dd-1", []byte("%PDF-original")))
	worker := NewSealWorker(f.svc, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "j-1", Payload: SealPayload{DocumentID: doc.ID}})
	require.NoError(t, err)
}

func TestSealWorkerRetriesTransientFailures(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	f := newSealFixture(t, doc, []models.Recipient{signedRecipient("ada")}, nil, inlinePayload("dd-1", []byte("%PDF-original")))
	f.sealer.err = errors.New("signer unreachable")
	worker := NewSealWorker(f.svc, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "j-1", Payload: SealPayload{DocumentID: doc.ID}, Attempt: 1})
	require.Error(t, err)
}

func TestSealWorkerDropsUnexpectedPayload(t *testing.T) {
	worker := NewSealWorker(nil, nil, zap.NewNop())
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "j-1", Payload: "garbage"}))
}
