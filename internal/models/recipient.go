package models

import "time"

// RecipientRole describes what a recipient is expected to do.
type RecipientRole string

const (
	RecipientRoleSigner    RecipientRole = "SIGNER"
	RecipientRoleViewer    RecipientRole = "VIEWER"
	RecipientRoleApprover  RecipientRole = "APPROVER"
	RecipientRoleCC        RecipientRole = "CC"
	RecipientRoleAssistant RecipientRole = "ASSISTANT"
)

// SigningStatus is the per-recipient signing state.
type SigningStatus string

const (
	SigningStatusNotSigned SigningStatus = "NOT_SIGNED"
	SigningStatusSigned    SigningStatus = "SIGNED"
	SigningStatusRejected  SigningStatus = "REJECTED"
)

// SendStatus tracks whether the signing request went out.
type SendStatus string

const (
	SendStatusNotSent SendStatus = "NOT_SENT"
	SendStatusSent    SendStatus = "SENT"
)

// Recipient is a party who must act on a document. A CC recipient is
// SIGNED from creation and owns no fields.
type Recipient struct {
	ID              string        `db:"id" json:"id"`
	DocumentID      string        `db:"document_id" json:"document_id"`
	Email           string        `db:"email" json:"email"`
	Name            string        `db:"name" json:"name"`
	Role            RecipientRole `db:"role" json:"role"`
	SigningOrder    *int          `db:"signing_order" json:"signing_order,omitempty"`
	SigningStatus   SigningStatus `db:"signing_status" json:"signing_status"`
	SendStatus      SendStatus    `db:"send_status" json:"send_status"`
	Token           string        `db:"token" json:"-"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	SignedAt        *time.Time    `db:"signed_at" json:"signed_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// ActsOnFields reports whether the role is expected to fill fields.
func (r *Recipient) ActsOnFields() bool {
	switch r.Role {
	case RecipientRoleCC, RecipientRoleViewer:
		return false
	default:
		return true
	}
}
