package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FieldType is the closed set of placeholder kinds that can be drawn on a
// page. Adding a kind requires extending every switch that consumes it;
// Kind() forces the compiler to flag forgotten cases.
type FieldType string

const (
	FieldTypeSignature        FieldType = "SIGNATURE"
	FieldTypeFreeSignature    FieldType = "FREE_SIGNATURE"
	FieldTypeInitials         FieldType = "INITIALS"
	FieldTypeName             FieldType = "NAME"
	FieldTypeEmail            FieldType = "EMAIL"
	FieldTypeDate             FieldType = "DATE"
	FieldTypeCalendar         FieldType = "CALENDAR"
	FieldTypeText             FieldType = "TEXT"
	FieldTypeNumber           FieldType = "NUMBER"
	FieldTypeRadio            FieldType = "RADIO"
	FieldTypeCheckbox         FieldType = "CHECKBOX"
	FieldTypeDropdown         FieldType = "DROPDOWN"
	FieldTypeResidentLocation FieldType = "RESIDENT_LOCATION"
)

// FieldKind groups field types by how they are rendered.
type FieldKind int

const (
	KindSignature FieldKind = iota
	KindCheckbox
	KindRadio
	KindTextLike
)

// Kind maps each field type onto its rendering family.
func (t FieldType) Kind() (FieldKind, error) {
	switch t {
	case FieldTypeSignature, FieldTypeFreeSignature:
		return KindSignature, nil
	case FieldTypeCheckbox:
		return KindCheckbox, nil
	case FieldTypeRadio:
		return KindRadio, nil
	case FieldTypeInitials, FieldTypeName, FieldTypeEmail, FieldTypeDate,
		FieldTypeCalendar, FieldTypeText, FieldTypeNumber, FieldTypeDropdown,
		FieldTypeResidentLocation:
		return KindTextLike, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", string(t))
	}
}

// Field is a placeholder drawn on a page for one recipient to fill.
// Position and size are percentages of the page dimensions as the
// viewer displays them, with the origin at the top-left corner.
type Field struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Type        FieldType `db:"type" json:"type"`
	Page        int       `db:"page" json:"page"`
	PositionX   float64   `db:"position_x" json:"position_x"`
	PositionY   float64   `db:"position_y" json:"position_y"`
	Width       float64   `db:"width" json:"width"`
	Height      float64   `db:"height" json:"height"`
	Inserted    bool      `db:"inserted" json:"inserted"`
	CustomText  string    `db:"custom_text" json:"custom_text"`
	Meta        FieldMeta `db:"meta" json:"meta"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TextAlign positions text within a field box.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// EmptyValuePrefix marks checkbox/radio options the designer left
// unlabeled; such options render with blank visible text but remain
// selectable under their sentinel value.
const EmptyValuePrefix = "empty-value-"

// FieldOption is one selectable entry of a checkbox or radio field.
type FieldOption struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Label returns the visible text for the option, blank for sentinel values.
func (o FieldOption) Label() string {
	if strings.HasPrefix(o.Value, EmptyValuePrefix) {
		return ""
	}
	return o.Value
}

// FieldMeta is the type-specific validation and display configuration for
// a field, persisted as JSONB. Its Type tag must match the owning field's
// type; the mismatch is a configuration error raised before any drawing.
type FieldMeta struct {
	Type      string        `json:"type,omitempty"`
	Label     string        `json:"label,omitempty"`
	Required  bool          `json:"required,omitempty"`
	ReadOnly  bool          `json:"readOnly,omitempty"`
	FontSize  *float64      `json:"fontSize,omitempty"`
	TextAlign TextAlign     `json:"textAlign,omitempty"`
	Values    []FieldOption `json:"values,omitempty"`

	// Validation rules for text-like fields.
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	MinValue  *float64 `json:"minValue,omitempty"`
	MaxValue  *float64 `json:"maxValue,omitempty"`

	// Checkbox rules.
	MinChecked *int `json:"minChecked,omitempty"`
	MaxChecked *int `json:"maxChecked,omitempty"`
}

// metaTag is the meta type tag expected for each field type. Field types
// without an entry carry no meta payload and accept an empty tag.
var metaTags = map[FieldType]string{
	FieldTypeInitials:         "initials",
	FieldTypeName:             "name",
	FieldTypeEmail:            "email",
	FieldTypeDate:             "date",
	FieldTypeCalendar:         "calendar",
	FieldTypeText:             "text",
	FieldTypeNumber:           "number",
	FieldTypeRadio:            "radio",
	FieldTypeCheckbox:         "checkbox",
	FieldTypeDropdown:         "dropdown",
	FieldTypeResidentLocation: "residentLocation",
}

// ValidateMeta checks the declared meta tag against the field type.
func (f *Field) ValidateMeta() error {
	expected, ok := metaTags[f.Type]
	if !ok {
		// Signature kinds carry no meta tag.
		if f.Meta.Type != "" {
			return fmt.Errorf("field %s: type %s does not accept meta type %q", f.ID, f.Type, f.Meta.Type)
		}
		return nil
	}
	if f.Meta.Type != "" && f.Meta.Type != expected {
		return fmt.Errorf("field %s: meta type %q does not match field type %s", f.ID, f.Meta.Type, f.Type)
	}
	return nil
}

// SelectedValues parses the comma-serialised custom text of checkbox fields.
func (f *Field) SelectedValues() []string {
	if f.CustomText == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(f.CustomText), &values); err == nil {
		return values
	}
	parts := strings.Split(f.CustomText, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Value marshals meta to JSON for persistence.
func (m FieldMeta) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal field meta: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the meta struct.
func (m *FieldMeta) Scan(value interface{}) error {
	if value == nil {
		*m = FieldMeta{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for FieldMeta", value)
	}
	if len(data) == 0 {
		*m = FieldMeta{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal field meta: %w", err)
	}
	return nil
}
