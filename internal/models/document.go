package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentStatus captures the document lifecycle.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusPending   DocumentStatus = "PENDING"
	DocumentStatusCompleted DocumentStatus = "COMPLETED"
	DocumentStatusRejected  DocumentStatus = "REJECTED"
)

// SigningOrder selects sequential or parallel recipient flow.
type SigningOrder string

const (
	SigningOrderSequential SigningOrder = "SEQUENTIAL"
	SigningOrderParallel   SigningOrder = "PARALLEL"
)

// Document is the top-level unit being signed.
type Document struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Status         DocumentStatus `db:"status" json:"status"`
	SigningOrder   SigningOrder   `db:"signing_order" json:"signing_order"`
	DocumentDataID string         `db:"document_data_id" json:"document_data_id"`
	OwnerEmail     string         `db:"owner_email" json:"owner_email"`
	OwnerName      string         `db:"owner_name" json:"owner_name"`
	Meta           DocumentMeta   `db:"meta" json:"meta"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	DeletedAt      *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IsDeleted reports whether the document has been soft-deleted.
func (d *Document) IsDeleted() bool {
	return d.DeletedAt != nil
}

// EmailSettings mutes individual notification categories per document.
type EmailSettings struct {
	RecipientSigned         *bool `json:"recipientSigned,omitempty"`
	DocumentPending         *bool `json:"documentPending,omitempty"`
	DocumentCompleted       *bool `json:"documentCompleted,omitempty"`
	DocumentDeleted         *bool `json:"documentDeleted,omitempty"`
	RecipientSigningRequest *bool `json:"recipientSigningRequest,omitempty"`
}

// Allows reports whether a category is enabled; unset categories default on.
func (s EmailSettings) Allows(flag *bool) bool {
	return flag == nil || *flag
}

// DocumentMeta stores request-scoped display options persisted as JSONB.
type DocumentMeta struct {
	Timezone    string        `json:"timezone,omitempty"`
	DateFormat  string        `json:"dateFormat,omitempty"`
	Subject     string        `json:"subject,omitempty"`
	Message     string        `json:"message,omitempty"`
	Language    string        `json:"language,omitempty"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
	Emails      EmailSettings `json:"emails,omitempty"`
}

// Value marshals meta to JSON for persistence.
func (m DocumentMeta) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal document meta: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the meta struct.
func (m *DocumentMeta) Scan(value interface{}) error {
	if value == nil {
		*m = DocumentMeta{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for DocumentMeta", value)
	}
	if len(data) == 0 {
		*m = DocumentMeta{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal document meta: %w", err)
	}
	return nil
}
