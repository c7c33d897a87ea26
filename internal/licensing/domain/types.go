package domain

// MediaType is the kind of document payload accepted for extraction
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaPDF   MediaType = "pdf"
)

// Field names used by the schema-extraction prompt and the response body.
const (
	FieldLicensePlate  = "licensePlate"
	FieldOwnerName     = "name"
	FieldTestDate      = "testDate"
	FieldLicenseExpiry = "licenseExpiry"
	FieldCarType       = "carType"
)

// Warnings attached to a result when extraction degraded instead of failing.
const (
	WarningParseFailed = "parse_failed"
	WarningEmptyText   = "empty_text"
	WarningFallback    = "fallback_strategy"
)

// ExtractionRequest is a decoded, validated document. It lives for one request.
type ExtractionRequest struct {
	Data        []byte
	MediaType   MediaType
	ContentType string
	FileName    string
}

// RecognitionResult is what a recognizer hands back: either raw text with
// line breaks preserved, or field-shaped values keyed by field name.
type RecognitionResult struct {
	Strategy   string
	RawText    string
	Structured map[string]string
	Warnings   []string
}

// IsStructured reports whether the recognizer returned field-shaped values.
func (r *RecognitionResult) IsStructured() bool {
	return r.Structured != nil
}

// ExtractedFields is the normalized output. A nil field was not found.
type ExtractedFields struct {
	LicensePlate  *string `json:"licensePlate"`
	OwnerName     *string `json:"name"`
	TestDate      *string `json:"testDate"`
	LicenseExpiry *string `json:"licenseExpiry"`
	CarType       *string `json:"carType"`
}

// ExpiryDate returns the date reminders are keyed on: the license expiry if
// present, otherwise the test date.
func (f ExtractedFields) ExpiryDate() *string {
	if f.LicenseExpiry != nil {
		return f.LicenseExpiry
	}
	return f.TestDate
}

// ExtractionResult is the response body of a successful extraction
type ExtractionResult struct {
	Text      string          `json:"text"`
	Extracted ExtractedFields `json:"extracted"`
	Strategy  string          `json:"strategy"`
	Warnings  []string        `json:"warnings,omitempty"`
}
