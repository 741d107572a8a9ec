package models

import "time"

// Signature is attached to a signature-type field once signed. Exactly one
// of ImageBase64 and TypedSignature is populated.
type Signature struct {
	ID             string    `db:"id" json:"id"`
	FieldID        string    `db:"field_id" json:"field_id"`
	RecipientID    string    `db:"recipient_id" json:"recipient_id"`
	ImageBase64    *string   `db:"image_base64" json:"image_base64,omitempty"`
	TypedSignature *string   `db:"typed_signature" json:"typed_signature,omitempty"`
	FontName       string    `db:"font_name" json:"font_name,omitempty"`
	ColorName      string    `db:"color_name" json:"color_name,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IsTyped reports whether the signature was typed rather than drawn.
func (s *Signature) IsTyped() bool {
	return s.TypedSignature != nil && *s.TypedSignature != ""
}
