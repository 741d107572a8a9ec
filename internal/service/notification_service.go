package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Caring-data/documenso-sub000/internal/models"
	appErrors "github.com/Caring-data/documenso-sub000/pkg/errors"
	"github.com/Caring-data/documenso-sub000/pkg/jobs"
	"github.com/Caring-data/documenso-sub000/pkg/mailer"
)

// Job types handled by the notification service.
const (
	JobEmailSigningRequest    = "email/send-signing-request"
	JobEmailRecipientSigned   = "email/recipient-signed"
	JobEmailDocumentPending   = "email/document-pending"
	JobEmailDocumentCompleted = "email/document-completed"
	JobEmailDocumentCancelled = "email/document-cancelled"
)

type jobEnqueuer interface {
	Enqueue(jobType string, payload interface{}) error
}

// SigningRequestEmail asks a recipient to sign.
type SigningRequestEmail struct {
	To         string `validate:"required,email"`
	Name       string
	Title      string `validate:"required"`
	SigningURL string `validate:"required,url"`
	Subject    string
	Message    string
}

// RecipientSignedEmail tells the owner a recipient has signed.
type RecipientSignedEmail struct {
	To            string `validate:"required,email"`
	RecipientName string
	Title         string `validate:"required"`
}

// DocumentPendingEmail tells a signer the document still awaits others.
type DocumentPendingEmail struct {
	To    string `validate:"required,email"`
	Name  string
	Title string `validate:"required"`
}

// DocumentCompletedEmail announces the sealed document.
type DocumentCompletedEmail struct {
	To          string `validate:"required,email"`
	Name        string
	Title       string `validate:"required"`
	DownloadURL string
}

// DocumentCancelledEmail tells pending recipients the document was
// withdrawn or rejected.
type DocumentCancelledEmail struct {
	To     string `validate:"required,email"`
	Name   string
	Title  string `validate:"required"`
	Reason string
}

// NotificationService fans signing lifecycle events out as email jobs and
// owns the handlers that deliver them. Per-document email settings mute
// individual categories.
type NotificationService struct {
	queue     jobEnqueuer
	mailer    mailer.Mailer
	publicURL string
	logger    *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(queue jobEnqueuer, m mailer.Mailer, publicURL string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		queue:     queue,
		mailer:    m,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Register binds the email job types to their delivery handlers.
func (s *NotificationService) Register(d *jobs.Dispatcher) {
	d.Register(JobEmailSigningRequest, s.handleSigningRequest)
	d.Register(JobEmailRecipientSigned, s.handleRecipientSigned)
	d.Register(JobEmailDocumentPending, s.handleDocumentPending)
	d.Register(JobEmailDocumentCompleted, s.handleDocumentCompleted)
	d.Register(JobEmailDocumentCancelled, s.handleDocumentCancelled)
}

// SigningURL builds the public signing link for a recipient token.
func (s *NotificationService) SigningURL(token string) string {
	return fmt.Sprintf("%s/sign/%s", s.publicURL, token)
}

// SendSigningRequest enqueues the signing invitation for one recipient.
func (s *NotificationService) SendSigningRequest(doc *models.Document, rcpt *models.Recipient) error {
	if !doc.Meta.Emails.Allows(doc.Meta.Emails.RecipientSigningRequest) {
		return nil
	}
	return s.queue.Enqueue(JobEmailSigningRequest, SigningRequestEmail{
		To:         rcpt.Email,
		Name:       rcpt.Name,
		Title:      doc.Title,
		SigningURL: s.SigningURL(rcpt.Token),
		Subject:    doc.Meta.Subject,
		Message:    doc.Meta.Message,
	})
}

// NotifyRecipientSigned tells the document owner a recipient finished.
// Skipped when the owner signed their own document or the category is muted.
func (s *NotificationService) NotifyRecipientSigned(doc *models.Document, rcpt *models.Recipient) error {
	if !doc.Meta.Emails.Allows(doc.Meta.Emails.RecipientSigned) {
		return nil
	}
	if strings.EqualFold(doc.OwnerEmail, rcpt.Email) {
		return nil
	}
	return s.queue.Enqueue(JobEmailRecipientSigned, RecipientSignedEmail{
		To:            doc.OwnerEmail,
		RecipientName: rcpt.Name,
		Title:         doc.Title,
	})
}

// NotifyDocumentPending tells the signer who just finished that the
// document still awaits other recipients.
func (s *NotificationService) NotifyDocumentPending(doc *models.Document, rcpt *models.Recipient) error {
	if !doc.Meta.Emails.Allows(doc.Meta.Emails.DocumentPending) {
		return nil
	}
	return s.queue.Enqueue(JobEmailDocumentPending, DocumentPendingEmail{
		To:    rcpt.Email,
		Name:  rcpt.Name,
		Title: doc.Title,
	})
}

// NotifyDocumentCompleted fans the completion notice out to every
// recipient and the owner.
func (s *NotificationService) NotifyDocumentCompleted(doc *models.Document, recipients []models.Recipient, downloadURL string) error {
	if !doc.Meta.Emails.Allows(doc.Meta.Emails.DocumentCompleted) {
		return nil
	}
	seen := map[string]bool{}
	var firstErr error
	notify := func(email, name string) {
		key := strings.ToLower(email)
		if email == "" || seen[key] {
			return
		}
		seen[key] = true
		err := s.queue.Enqueue(JobEmailDocumentCompleted, DocumentCompletedEmail{
			To:          email,
			Name:        name,
			Title:       doc.Title,
			DownloadURL: downloadURL,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	notify(doc.OwnerEmail, doc.OwnerName)
	for i := range recipients {
		notify(recipients[i].Email, recipients[i].Name)
	}
	return firstErr
}

// NotifyDocumentCancelled tells recipients who had an open signing
// request. Recipients who already acted, including the rejecter, are
// skipped.
func (s *NotificationService) NotifyDocumentCancelled(doc *models.Document, recipients []models.Recipient, reason string) error {
	if !doc.Meta.Emails.Allows(doc.Meta.Emails.DocumentDeleted) {
		return nil
	}
	var firstErr error
	for i := range recipients {
		r := &recipients[i]
		if r.SigningStatus != models.SigningStatusNotSigned || r.SendStatus != models.SendStatusSent {
			continue
		}
		err := s.queue.Enqueue(JobEmailDocumentCancelled, DocumentCancelledEmail{
			To:     r.Email,
			Name:   r.Name,
			Title:  doc.Title,
			Reason: reason,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *NotificationService) handleSigningRequest(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(SigningRequestEmail)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unexpected payload for signing request email")
	}
	subject := p.Subject
	if subject == "" {
		subject = fmt.Sprintf("Please sign %q", p.Title)
	}
	body := fmt.Sprintf("Hello %s,\n\nYou have been asked to sign %q.\n\nSign here: %s\n", displayName(p.Name), p.Title, p.SigningURL)
	if p.Message != "" {
		body += "\n" + p.Message + "\n"
	}
	return s.deliver(job, mailer.Message{To: p.To, Subject: subject, Body: body})
}

func (s *NotificationService) handleRecipientSigned(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(RecipientSignedEmail)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unexpected payload for recipient signed email")
	}
	return s.deliver(job, mailer.Message{
		To:      p.To,
		Subject: fmt.Sprintf("%s signed %q", displayName(p.RecipientName), p.Title),
		Body:    fmt.Sprintf("%s has completed signing %q.\n", displayName(p.RecipientName), p.Title),
	})
}

func (s *NotificationService) handleDocumentPending(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(DocumentPendingEmail)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unexpected payload for document pending email")
	}
	return s.deliver(job, mailer.Message{
		To:      p.To,
		Subject: fmt.Sprintf("Waiting on others for %q", p.Title),
		Body:    fmt.Sprintf("Hello %s,\n\nThanks for signing %q. We will let you know once everyone has signed.\n", displayName(p.Name), p.Title),
	})
}

func (s *NotificationService) handleDocumentCompleted(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(DocumentCompletedEmail)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unexpected payload for document completed email")
	}
	body := fmt.Sprintf("Hello %s,\n\n%q has been signed by all parties.\n", displayName(p.Name), p.Title)
	if p.DownloadURL != "" {
		body += fmt.Sprintf("\nDownload the sealed document: %s\n", p.DownloadURL)
	}
	return s.deliver(job, mailer.Message{
		To:      p.To,
		Subject: fmt.Sprintf("%q is complete", p.Title),
		Body:    body,
	})
}

func (s *NotificationService) handleDocumentCancelled(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(DocumentCancelledEmail)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unexpected payload for document cancelled email")
	}
	body := fmt.Sprintf("Hello %s,\n\n%q no longer requires your signature.\n", displayName(p.Name), p.Title)
	if p.Reason != "" {
		body += fmt.Sprintf("\nReason: %s\n", p.Reason)
	}
	return s.deliver(job, mailer.Message{
		To:      p.To,
		Subject: fmt.Sprintf("%q was cancelled", p.Title),
		Body:    body,
	})
}

func (s *NotificationService) deliver(job jobs.Job, msg mailer.Message) error {
	if err := s.mailer.Send(msg); err != nil {
		s.logger.Sugar().Warnw("email delivery failed",
			"job_id", job.ID, "type", job.Type, "to", msg.To, "attempt", job.Attempt, "error", err)
		return err
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
