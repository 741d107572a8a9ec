package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/dto"
	"github.com/Caring-data/documenso-sub000/internal/models"
	"github.com/Caring-data/documenso-sub000/pkg/config"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/jobs"
	"github.com/Caring-data/documenso-sub000/pkg/mailer"
)

func newServiceDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

type stubDocumentStore struct {
	doc           *models.Document
	statusUpdates []models.DocumentStatus
}

func (s *stubDocumentStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *s.doc
	return &cp, nil
}

func (s *stubDocumentStore) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Document, error) {
	return s.GetByID(ctx, id)
}

func (s *stubDocumentStore) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.DocumentStatus, completedAt *time.Time) error {
	s.statusUpdates = append(s.statusUpdates, status)
	s.doc.Status = status
	s.doc.CompletedAt = completedAt
	return nil
}

type stubRecipientStore struct {
	recipients  []models.Recipient
	sendUpdates map[string]models.SendStatus
	signUpdates map[string]models.SigningStatus
}

func (s *stubRecipientStore) find(id string) *models.Recipient {
	for i := range s.recipients {
		if s.recipients[i].ID == id {
			return &s.recipients[i]
		}
	}
	return nil
}

func (s *stubRecipientStore) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	if r := s.find(id); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRecipientStore) GetByToken(ctx context.Context, token string) (*models.Recipient, error) {
	for i := range s.recipients {
		if s.recipients[i].Token == token {
			cp := s.recipients[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubRecipientStore) ListByDocument(ctx context.Context, documentID string) ([]models.Recipient, error) {
	out := make([]models.Recipient, len(s.recipients))
	copy(out, s.recipients)
	return out, nil
}

func (s *stubRecipientStore) ListByDocumentForUpdate(ctx context.Context, tx *sqlx.Tx, documentID string) ([]models.Recipient, error) {
	return s.ListByDocument(ctx, documentID)
}

func (s *stubRecipientStore) UpdateSigningStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SigningStatus, signedAt *time.Time, rejectionReason *string) error {
	if s.signUpdates == nil {
		s.signUpdates = map[string]models.SigningStatus{}
	}
	s.signUpdates[id] = status
	if r := s.find(id); r != nil {
		r.SigningStatus = status
		r.SignedAt = signedAt
		r.RejectionReason = rejectionReason
	}
	return nil
}

func (s *stubRecipientStore) UpdateSendStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SendStatus) error {
	if s.sendUpdates == nil {
		s.sendUpdates = map[string]models.SendStatus{}
	}
	s.sendUpdates[id] = status
	if r := s.find(id); r != nil {
		r.SendStatus = status
	}
	return nil
}

type stubFieldStore struct {
	fields []models.Field
}

func (s *stubFieldStore) find(id string) *models.Field {
	for i := range s.fields {
		if s.fields[i].ID == id {
			return &s.fields[i]
		}
	}
	return nil
}

func (s *stubFieldStore) GetByID(ctx context.Context, id string) (*models.Field, error) {
	if f := s.find(id); f != nil {
		cp := *f
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubFieldStore) ListByRecipient(ctx context.Context, recipientID string) ([]models.Field, error) {
	var out []models.Field
	for i := range s.fields {
		if s.fields[i].RecipientID == recipientID {
			out = append(out, s.fields[i])
		}
	}
	return out, nil
}

func (s *stubFieldStore) ListByDocument(ctx context.Context, documentID string) ([]models.Field, error) {
	out := make([]models.Field, len(s.fields))
	copy(out, s.fields)
	return out, nil
}

func (s *stubFieldStore) SetSigned(ctx context.Context, exec sqlx.ExtContext, id, customText string) error {
	if f := s.find(id); f != nil {
		f.Inserted = true
		f.CustomText = customText
	}
	return nil
}

func (s *stubFieldStore) ClearSigned(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if f := s.find(id); f != nil {
		f.Inserted = false
		f.CustomText = ""
	}
	return nil
}

type stubSignatureStore struct {
	sigs map[string]*models.Signature
}

func (s *stubSignatureStore) Upsert(ctx context.Context, exec sqlx.ExtContext, sig *models.Signature) error {
	if s.sigs == nil {
		s.sigs = map[string]*models.Signature{}
	}
	s.sigs[sig.FieldID] = sig
	return nil
}

func (s *stubSignatureStore) GetByFieldID(ctx context.Context, fieldID string) (*models.Signature, error) {
	return s.sigs[fieldID], nil
}

func (s *stubSignatureStore) DeleteByFieldID(ctx context.Context, exec sqlx.ExtContext, fieldID string) error {
	delete(s.sigs, fieldID)
	return nil
}

type stubAuditStore struct {
	entries []models.AuditLog
}

func (s *stubAuditStore) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubAuditStore) ListByDocument(ctx context.Context, documentID string) ([]models.AuditLog, error) {
	return s.entries, nil
}

type queuedJob struct {
	Type    string
	Payload interface{}
}

type stubJobQueue struct {
	jobs     []queuedJob
	failType string
	failErr  error
}

func (q *stubJobQueue) Enqueue(jobType string, payload interface{}) error {
	if q.failType == jobType {
		return q.failErr
	}
	q.jobs = append(q.jobs, queuedJob{Type: jobType, Payload: payload})
	return nil
}

func (q *stubJobQueue) ofType(jobType string) []queuedJob {
	var out []queuedJob
	for _, j := range q.jobs {
		if j.Type == jobType {
			out = append(out, j)
		}
	}
	return out
}

type stubSealLock struct {
	granted  bool
	err      error
	acquired int
	released int
}

func (l *stubSealLock) Acquire(ctx context.Context, documentID string) (bool, error) {
	l.acquired++
	return l.granted, l.err
}

func (l *stubSealLock) Release(ctx context.Context, documentID string) {
	l.released++
}

type completionFixture struct {
	svc    *CompletionService
	db     sqlmock.Sqlmock
	docs   *stubDocumentStore
	rcpts  *stubRecipientStore
	fields *stubFieldStore
	sigs   *stubSignatureStore
	audit  *stubAuditStore
	queue  *stubJobQueue
	lock   *stubSealLock
}

func newCompletionFixture(t *testing.T, doc *models.Document, recipients []models.Recipient, fields []models.Field) *completionFixture {
	t.Helper()
	db, mock := newServiceDB(t)
	f := &completionFixture{
		db:     mock,
		docs:   &stubDocumentStore{doc: doc},
		rcpts:  &stubRecipientStore{recipients: recipients},
		fields: &stubFieldStore{fields: fields},
		sigs:   &stubSignatureStore{},
		audit:  &stubAuditStore{},
		queue:  &stubJobQueue{},
		lock:   &stubSealLock{granted: true},
	}
	notifications := NewNotificationService(f.queue, mailer.NewLogMailer(nil), "https://sign.example.test", zap.NewNop())
	webhooks := NewWebhookService(config.WebhookConfig{}, zap.NewNop())
	f.svc = NewCompletionService(db, f.docs, f.rcpts, f.fields, f.sigs, f.audit,
		notifications, webhooks, f.queue, f.lock, nil, zap.NewNop())
	return f
}

func pendingDocument(order models.SigningOrder) *models.Document {
	return &models.Document{
		ID:             "doc-1",
		Title:          "Admission Agreement",
		Status:         models.DocumentStatusPending,
		SigningOrder:   order,
		DocumentDataID: "dd-1",
		OwnerEmail:     "owner@example.test",
		OwnerName:      "Owner",
	}
}

func signerRecipient(id, token string, order int) models.Recipient {
	return models.Recipient{
		ID:            id,
		DocumentID:    "doc-1",
		Email:         id + "@example.test",
		Name:          id,
		Role:          models.RecipientRoleSigner,
		SigningOrder:  &order,
		SigningStatus: models.SigningStatusNotSigned,
		SendStatus:    models.SendStatusSent,
		Token:         token,
	}
}

func TestSignFieldDateStampsSigningMoment(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	doc.Meta.Timezone = "UTC"
	doc.Meta.DateFormat = "YYYY-MM-DD"
	rcpt := signerRecipient("ada", "tok-ada", 1)
	field := models.Field{ID: "f-1", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeDate, Page: 1}

	f := newCompletionFixture(t, doc, []models.Recipient{rcpt}, []models.Field{field})
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	state, err := f.svc.SignField(context.Background(), "tok-ada", "f-1", dto.SignFieldRequest{Value: "ignored"})
	require.NoError(t, err)
	require.True(t, state.Inserted)
	require.Equal(t, time.Now().UTC().Format("2006-01-02"), state.CustomText)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, models.AuditFieldSigned, f.audit.entries[0].Type)
}

func TestSignFieldTypedSignatureStoresSignatureRow(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := signerRecipient("ada", "tok-ada", 1)
	field := models.Field{ID: "f-1", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1}

	f := newCompletionFixture(t, doc, []models.Recipient{rcpt}, []models.Field{field})
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	state, err := f.svc.SignField(context.Background(), "tok-ada", "f-1", dto.SignFieldRequest{
		TypedSignature: "Ada Lovelace", FontName: "Caveat", ColorName: "blue",
	})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", state.CustomText)
	sig := f.sigs.sigs["f-1"]
	require.NotNil(t, sig)
	require.NotNil(t, sig.TypedSignature)
	require.Equal(t, "Ada Lovelace", *sig.TypedSignature)
}

func TestSignFieldRejectsEmptySignature(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := signerRecipient("ada", "tok-ada", 1)
	field := models.Field{ID: "f-1", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1}

	f := newCompletionFixture(t, doc, []models.Recipient{rcpt}, []models.Field{field})
	_, err := f.svc.SignField(context.Background(), "tok-ada", "f-1", dto.SignFieldRequest{})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSignFieldForeignFieldForbidden(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)
	bob := signerRecipient("bob", "tok-bob", 2)
	field := models.Field{ID: "f-1", DocumentID: doc.ID, RecipientID: "bob", Type: models.FieldTypeText, Page: 1}

	f := newCompletionFixture(t, doc, []models.Recipient{ada, bob}, []models.Field{field})
	_, err := f.svc.SignField(context.Background(), "tok-ada", "f-1", dto.SignFieldRequest{Value: "hi"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSignFieldUnknownTokenUnauthorized(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	f := newCompletionFixture(t, doc, nil, nil)
	_, err := f.svc.SignField(context.Background(), "nope", "f-1", dto.SignFieldRequest{})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestUnsignFieldClearsValueAndSignature(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := signerRecipient("ada", "tok-ada", 1)
	field := models.Field{ID: "f-1", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1, Inserted: true, CustomText: "Ada"}

	f := newCompletionFixture(t, doc, []models.Recipient{rcpt}, []models.Field{field})
	f.sigs.sigs = map[string]*models.Signature{"f-1": {FieldID: "f-1", RecipientID: "ada"}}
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	state, err := f.svc.UnsignField(context.Background(), "tok-ada", "f-1")
	require.NoError(t, err)
	require.False(t, state.Inserted)
	require.Nil(t, f.sigs.sigs["f-1"])
	require.False(t, f.fields.fields[0].Inserted)
}

func TestCompleteSigningRequiresRequiredFields(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := signerRecipient("ada", "tok-ada", 1)
	field := models.Field{ID: "f-1", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1}

	f := newCompletionFixture(t, doc, []models.Recipient{rcpt}, []models.Field{field})
	f.db.ExpectBegin()
	f.db.ExpectRollback()

	_, err := f.svc.CompleteSigning(context.Background(), "tok-ada")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	require.Empty(t, f.queue.jobs)
}

func TestCompleteSigningSequentialEnforcesTurn(t *testing.T) {
	doc := pendingDocument(models.SigningOrderSequential)
	ada := signerRecipient("ada", "tok-ada", 1)
	bob := signerRecipient("bob", "tok-bob", 2)

	f := newCompletionFixture(t, doc, []models.Recipient{ada, bob}, nil)
	f.db.ExpectBegin()
	f.db.ExpectRollback()

	_, err := f.svc.CompleteSigning(context.Background(), "tok-bob")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestCompleteSigningAlreadySignedConflict(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)
	ada.SigningStatus = models.SigningStatusSigned

	f := newCompletionFixture(t, doc, []models.Recipient{ada}, nil)
	f.db.ExpectBegin()
	f.db.ExpectRollback()

	_, err := f.svc.CompleteSigning(context.Background(), "tok-ada")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCompleteSigningAdvancesSequentialFlow(t *testing.T) {
	doc := pendingDocument(models.SigningOrderSequential)
	ada := signerRecipient("ada", "tok-ada", 1)
	bob := signerRecipient("bob", "tok-bob", 2)
	bob.SendStatus = models.SendStatusNotSent

	f := newCompletionFixture(t, doc, []models.Recipient{ada, bob}, nil)
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	result, err := f.svc.CompleteSigning(context.Background(), "tok-ada")
	require.NoError(t, err)
	require.False(t, result.SealEnqueued)
	require.Equal(t, models.SendStatusSent, f.rcpts.sendUpdates["bob"])

	completions := f.queue.ofType(JobProcessCompletion)
	require.Len(t, completions, 1)
	payload := completions[0].Payload.(CompletionPayload)
	require.Equal(t, 1, payload.Remaining)
	require.Equal(t, "bob", payload.NextRecipientID)
}

func TestCompleteSigningLastRecipientReportsSeal(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)
	done := signerRecipient("bob", "tok-bob", 2)
	done.SigningStatus = models.SigningStatusSigned

	f := newCompletionFixture(t, doc, []models.Recipient{ada, done}, nil)
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	result, err := f.svc.CompleteSigning(context.Background(), "tok-ada")
	require.NoError(t, err)
	require.True(t, result.SealEnqueued)

	completions := f.queue.ofType(JobProcessCompletion)
	require.Len(t, completions, 1)
	payload := completions[0].Payload.(CompletionPayload)
	require.Zero(t, payload.Remaining)
	require.Empty(t, payload.NextRecipientID)
}

func TestCompleteSigningRunsFanOutInlineOnEnqueueFailure(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)

	f := newCompletionFixture(t, doc, []models.Recipient{ada}, nil)
	f.queue.failType = JobProcessCompletion
	f.queue.failErr = appErrors.ErrInternal
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	result, err := f.svc.CompleteSigning(context.Background(), "tok-ada")
	require.NoError(t, err)
	require.True(t, result.SealEnqueued)
	// The fan-out ran inline: the seal job was still enqueued.
	require.Len(t, f.queue.ofType(JobSealDocument), 1)
	require.Equal(t, 1, f.lock.acquired)
}

func TestProcessCompletionSealEnqueuedOnce(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)
	ada.SigningStatus = models.SigningStatusSigned

	f := newCompletionFixture(t, doc, []models.Recipient{ada}, nil)
	payload := CompletionPayload{DocumentID: doc.ID, RecipientID: "ada", Remaining: 0}

	require.NoError(t, f.svc.handleProcessCompletion(context.Background(), jobs.Job{ID: "j-1", Payload: payload}))
	require.Len(t, f.queue.ofType(JobSealDocument), 1)

	// A replay of the same completion finds the lock held and does not
	// enqueue a second seal.
	f.lock.granted = false
	require.NoError(t, f.svc.handleProcessCompletion(context.Background(), jobs.Job{ID: "j-2", Payload: payload}))
	require.Len(t, f.queue.ofType(JobSealDocument), 1)
}

func TestProcessCompletionReleasesLockWhenEnqueueFails(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)
	ada.SigningStatus = models.SigningStatusSigned

	f := newCompletionFixture(t, doc, []models.Recipient{ada}, nil)
	f.queue.failType = JobSealDocument
	f.queue.failErr = appErrors.ErrInternal

	payload := CompletionPayload{DocumentID: doc.ID, RecipientID: "ada", Remaining: 0}
	require.NoError(t, f.svc.handleProcessCompletion(context.Background(), jobs.Job{ID: "j-1", Payload: payload}))
	require.Equal(t, 1, f.lock.released)
}

func TestProcessCompletionNotifiesNextRecipient(t *testing.T) {
	doc := pendingDocument(models.SigningOrderSequential)
	ada := signerRecipient("ada", "tok-ada", 1)
	ada.SigningStatus = models.SigningStatusSigned
	bob := signerRecipient("bob", "tok-bob", 2)

	f := newCompletionFixture(t, doc, []models.Recipient{ada, bob}, nil)
	payload := CompletionPayload{DocumentID: doc.ID, RecipientID: "ada", Remaining: 1, NextRecipientID: "bob"}
	require.NoError(t, f.svc.handleProcessCompletion(context.Background(), jobs.Job{ID: "j-1", Payload: payload}))

	requests := f.queue.ofType(JobEmailSigningRequest)
	require.Len(t, requests, 1)
	email := requests[0].Payload.(SigningRequestEmail)
	require.Equal(t, "bob@example.test", email.To)
	require.Contains(t, email.SigningURL, "/sign/tok-bob")
	require.Empty(t, f.queue.ofType(JobSealDocument))
}

func TestRejectSigningCancelsDocument(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	ada := signerRecipient("ada", "tok-ada", 1)
	bob := signerRecipient("bob", "tok-bob", 2)

	f := newCompletionFixture(t, doc, []models.Recipient{ada, bob}, nil)
	f.db.ExpectBegin()
	f.db.ExpectCommit()

	require.NoError(t, f.svc.RejectSigning(context.Background(), "tok-ada", "wrong terms"))
	require.Equal(t, models.SigningStatusRejected, f.rcpts.signUpdates["ada"])
	require.Equal(t, []models.DocumentStatus{models.DocumentStatusRejected}, f.docs.statusUpdates)
	require.Len(t, f.audit.entries, 1)
	require.Equal(t, models.AuditRecipientRejected, f.audit.entries[0].Type)

	// Both ada and bob were SENT and unsigned at rejection time, but ada
	// rejected, so only bob gets the cancellation note plus nobody else.
	cancelled := f.queue.ofType(JobEmailDocumentCancelled)
	require.Len(t, cancelled, 1)
	require.Equal(t, "bob@example.test", cancelled[0].Payload.(DocumentCancelledEmail).To)
}

func TestRejectSigningOnCompletedDocument(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	doc.Status = models.DocumentStatusCompleted
	ada := signerRecipient("ada", "tok-ada", 1)

	f := newCompletionFixture(t, doc, []models.Recipient{ada}, nil)
	f.db.ExpectBegin()
	f.db.ExpectRollback()

	err := f.svc.RejectSigning(context.Background(), "tok-ada", "too late")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrCompleted.Code, appErr.Code)
}

func TestIsRecipientTurn(t *testing.T) {
	one, two := 1, 2
	first := models.Recipient{ID: "a", Role: models.RecipientRoleSigner, SigningOrder: &one, SigningStatus: models.SigningStatusNotSigned}
	second := models.Recipient{ID: "b", Role: models.RecipientRoleSigner, SigningOrder: &two, SigningStatus: models.SigningStatusNotSigned}
	cc := models.Recipient{ID: "c", Role: models.RecipientRoleCC, SigningStatus: models.SigningStatusSigned}

	ordered := []models.Recipient{first, second, cc}
	require.True(t, isRecipientTurn(ordered, &first))
	require.False(t, isRecipientTurn(ordered, &second))

	done := first
	done.SigningStatus = models.SigningStatusSigned
	require.True(t, isRecipientTurn([]models.Recipient{done, second, cc}, &second))
}

func TestResolveTextValueDefaults(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := models.Recipient{ID: "r", Name: "Ada Lovelace", Email: "ada@example.test"}

	name := models.Field{ID: "f-name", Type: models.FieldTypeName}
	value, _, err := resolveTextValue(doc, &rcpt, &name, "")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", value)

	email := models.Field{ID: "f-email", Type: models.FieldTypeEmail}
	value, _, err = resolveTextValue(doc, &rcpt, &email, "")
	require.NoError(t, err)
	require.Equal(t, "ada@example.test", value)

	initials := models.Field{ID: "f-init", Type: models.FieldTypeInitials}
	value, _, err = resolveTextValue(doc, &rcpt, &initials, "")
	require.NoError(t, err)
	require.Equal(t, "AL", value)
}

func TestResolveTextValueNumberBounds(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := models.Recipient{ID: "r"}
	min, max := 1.0, 10.0
	field := models.Field{ID: "f-num", Type: models.FieldTypeNumber, Meta: models.FieldMeta{MinValue: &min, MaxValue: &max}}

	_, _, err := resolveTextValue(doc, &rcpt, &field, "11")
	require.Error(t, err)
	_, _, err = resolveTextValue(doc, &rcpt, &field, "abc")
	require.Error(t, err)
	value, _, err := resolveTextValue(doc, &rcpt, &field, "5")
	require.NoError(t, err)
	require.Equal(t, "5", value)
}

func TestResolveFieldValueCheckboxRules(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := models.Recipient{ID: "r"}
	one, two := 1, 2
	field := models.Field{
		ID:   "f-check",
		Type: models.FieldTypeCheckbox,
		Meta: models.FieldMeta{
			Values: []models.FieldOption{
				{ID: "1", Value: "Yes"},
				{ID: "2", Value: "No"},
				{ID: "3", Value: models.EmptyValuePrefix + "3"},
			},
			MinChecked: &one,
			MaxChecked: &two,
		},
	}

	value, _, err := resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: "Yes"})
	require.NoError(t, err)
	require.Equal(t, "Yes", value)

	// Sentinel empty-value options are selectable like any other.
	value, _, err = resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: models.EmptyValuePrefix + "3"})
	require.NoError(t, err)
	require.Equal(t, models.EmptyValuePrefix+"3", value)

	_, _, err = resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: "Maybe"})
	require.Error(t, err)
	_, _, err = resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: ""})
	require.Error(t, err)
	_, _, err = resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: "Yes,No," + models.EmptyValuePrefix + "3"})
	require.Error(t, err)
}

func TestResolveFieldValueRadioRequiresKnownOption(t *testing.T) {
	doc := pendingDocument(models.SigningOrderParallel)
	rcpt := models.Recipient{ID: "r"}
	field := models.Field{
		ID:   "f-radio",
		Type: models.FieldTypeRadio,
		Meta: models.FieldMeta{Values: []models.FieldOption{{ID: "1", Value: "Agree"}}},
	}

	value, _, err := resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: "Agree"})
	require.NoError(t, err)
	require.Equal(t, "Agree", value)

	_, _, err = resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: "Disagree"})
	require.Error(t, err)
	_, _, err = resolveFieldValue(doc, &rcpt, &field, dto.SignFieldRequest{Value: ""})
	require.Error(t, err)
}

func TestFormatTimestampHonorsMeta(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)

	require.Equal(t, "2026-03-14 3:09 PM", formatTimestamp(at, models.DocumentMeta{}))
	require.Equal(t, "2026-03-14", formatTimestamp(at, models.DocumentMeta{DateFormat: "YYYY-MM-DD"}))
	require.Equal(t, "14/03/2026 15:09", formatTimestamp(at, models.DocumentMeta{DateFormat: "DD/MM/YYYY HH:mm"}))

	ny := formatTimestamp(at, models.DocumentMeta{Timezone: "America/New_York", DateFormat: "HH:mm"})
	require.Equal(t, "11:09", ny)
}

func TestInitialsOf(t *testing.T) {
	require.Equal(t, "AL", initialsOf("Ada Lovelace"))
	require.Equal(t, "A", initialsOf("ada"))
	require.Equal(t, "", initialsOf(""))
}

func TestStripDataURL(t *testing.T) {
	require.Equal(t, "aGVsbG8=", stripDataURL("data:image/png;base64,aGVsbG8="))
	require.Equal(t, "aGVsbG8=", stripDataURL("aGVsbG8="))
}

func TestSequentialSigningEndToEnd(t *testing.T) {
	doc := pendingDocument(models.SigningOrderSequential)
	ada := signerRecipient("ada", "tok-ada", 1)
	bob := signerRecipient("bob", "tok-bob", 2)
	bob.SendStatus = models.SendStatusNotSent
	fields := []models.Field{
		{ID: "f-ada", DocumentID: doc.ID, RecipientID: "ada", Type: models.FieldTypeSignature, Page: 1},
		{ID: "f-bob", DocumentID: doc.ID, RecipientID: "bob", Type: models.FieldTypeSignature, Page: 1},
	}

	f := newCompletionFixture(t, doc, []models.Recipient{ada, bob}, fields)
	for i := 0; i < 4; i++ {
		f.db.ExpectBegin()
		f.db.ExpectCommit()
	}

	_, err := f.svc.SignField(context.Background(), "tok-ada", "f-ada", dto.SignFieldRequest{TypedSignature: "Ada Lovelace"})
	require.NoError(t, err)
	result, err := f.svc.CompleteSigning(context.Background(), "tok-ada")
	require.NoError(t, err)
	require.False(t, result.SealEnqueued)
	require.Equal(t, models.SendStatusSent, f.rcpts.sendUpdates["bob"])

	// Bob is now in turn; his signature closes the document.
	_, err = f.svc.SignField(context.Background(), "tok-bob", "f-bob", dto.SignFieldRequest{TypedSignature: "Bob"})
	require.NoError(t, err)
	result, err = f.svc.CompleteSigning(context.Background(), "tok-bob")
	require.NoError(t, err)
	require.True(t, result.SealEnqueued)

	completions := f.queue.ofType(JobProcessCompletion)
	require.Len(t, completions, 2)
	first := completions[0].Payload.(CompletionPayload)
	require.Equal(t, "bob", first.NextRecipientID)
	last := completions[1].Payload.(CompletionPayload)
	require.Zero(t, last.Remaining)
	require.Empty(t, last.NextRecipientID)
}
