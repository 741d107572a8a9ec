package models

// DocumentDataType selects how payload bytes are stored.
type DocumentDataType string

const (
	DocumentDataTypeBytes64 DocumentDataType = "BYTES_64" // base64 inline in the row
	DocumentDataTypeS3Path  DocumentDataType = "S3_PATH"  // object-storage reference
)

// DocumentData is the binary payload indirection for a document. Data is
// the current payload; InitialData the originally-uploaded bytes, kept so
// re-sealing never stamps a second signature layer onto sealed output.
type DocumentData struct {
	ID          string           `db:"id" json:"id"`
	Type        DocumentDataType `db:"type" json:"type"`
	Data        string           `db:"data" json:"data"`
	InitialData string           `db:"initial_data" json:"initial_data"`
}
