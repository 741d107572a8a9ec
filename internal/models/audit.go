package models

import "time"

// Audit log entry types for the signing lifecycle.
const (
	AuditDocumentSent      = "DOCUMENT_SENT"
	AuditDocumentCompleted = "DOCUMENT_COMPLETED"
	AuditDocumentDeleted   = "DOCUMENT_DELETED"
	AuditFieldSigned       = "FIELD_SIGNED"
	AuditFieldUnsigned     = "FIELD_UNSIGNED"
	AuditRecipientSigned   = "RECIPIENT_SIGNED"
	AuditRecipientRejected = "RECIPIENT_REJECTED"
)

// AuditLog is one event in a document's trail. Completed-document
// certificates are composed from these rows.
type AuditLog struct {
	ID             string    `db:"id" json:"id"`
	DocumentID     string    `db:"document_id" json:"document_id"`
	Type           string    `db:"type" json:"type"`
	RecipientID    *string   `db:"recipient_id" json:"recipient_id,omitempty"`
	RecipientEmail *string   `db:"recipient_email" json:"recipient_email,omitempty"`
	Message        string    `db:"message" json:"message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
