package dto

import (
	"time"

	"github.com/Caring-data/documenso-sub000/internal/models"
)

// CreateDocumentRequest captures POST /documents payload. Data carries the
// base64-encoded PDF; the storage backend decides where the bytes land.
type CreateDocumentRequest struct {
	Title        string                   `json:"title" binding:"required"`
	Data         string                   `json:"data" binding:"required"`
	SigningOrder models.SigningOrder      `json:"signingOrder"`
	OwnerEmail   string                   `json:"ownerEmail" binding:"required,email"`
	OwnerName    string                   `json:"ownerName"`
	Meta         models.DocumentMeta      `json:"meta"`
	Recipients   []CreateRecipientRequest `json:"recipients" binding:"required,min=1,dive"`
	Fields       []CreateFieldRequest     `json:"fields" binding:"dive"`
}

// CreateRecipientRequest is one recipient of a new document. Index is
// referenced by CreateFieldRequest.Recipient.
type CreateRecipientRequest struct {
	Email        string               `json:"email" binding:"required,email"`
	Name         string               `json:"name"`
	Role         models.RecipientRole `json:"role"`
	SigningOrder *int                 `json:"signingOrder,omitempty"`
}

// CreateFieldRequest is one placeholder on a new document. Recipient is
// the zero-based index into the request's recipient list.
type CreateFieldRequest struct {
	Recipient int              `json:"recipient" binding:"min=0"`
	Type      models.FieldType `json:"type" binding:"required"`
	Page      int              `json:"page" binding:"required,min=1"`
	PositionX float64          `json:"positionX" binding:"min=0,max=100"`
	PositionY float64          `json:"positionY" binding:"min=0,max=100"`
	Width     float64          `json:"width" binding:"required,gt=0,max=100"`
	Height    float64          `json:"height" binding:"required,gt=0,max=100"`
	Meta      models.FieldMeta `json:"meta"`
}

// DocumentResponse is the document plus its recipients and fields.
type DocumentResponse struct {
	Document   models.Document    `json:"document"`
	Recipients []models.Recipient `json:"recipients"`
	Fields     []models.Field     `json:"fields"`
}

// DistributeResponse reports the recipients notified by distribution.
type DistributeResponse struct {
	DocumentID string   `json:"documentId"`
	Status     string   `json:"status"`
	Notified   []string `json:"notified"`
}

// DownloadURLResponse carries a signed, expiring download link.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
