package dto

import (
	"time"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

// SignFieldRequest captures POST /signing/fields/:fieldId/sign. Value is
// the raw input for text-like fields; signature fields use either
// ImageBase64 or TypedSignature.
type SignFieldRequest struct {
	Value          string `json:"value"`
	ImageBase64    string `json:"imageBase64"`
	TypedSignature string `json:"typedSignature"`
	FontName       string `json:"fontName"`
	ColorName      string `json:"colorName"`
}

// RejectRequest captures the rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// FieldStateResponse reflects one field after a sign or unsign call.
type FieldStateResponse struct {
	FieldID    string `json:"fieldId"`
	Inserted   bool   `json:"inserted"`
	CustomText string `json:"customText,omitempty"`
}

// CompleteResponse reports the document state after a recipient finishes.
type CompleteResponse struct {
	DocumentID     string               `json:"documentId"`
	RecipientID    string               `json:"recipientId"`
	SigningStatus  models.SigningStatus `json:"signingStatus"`
	DocumentStatus string               `json:"documentStatus"`
	SealEnqueued   bool                 `json:"sealEnqueued"`
}

// SigningSessionResponse is what a recipient sees when opening their link.
type SigningSessionResponse struct {
	Document  models.Document  `json:"document"`
	Recipient models.Recipient `json:"recipient"`
	Fields    []models.Field   `json:"fields"`
}

// CertificateTokenResponse carries the short-lived certificate render token.
type CertificateTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
