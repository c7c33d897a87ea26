// Package normalize turns recognized license text, or field-shaped values
// from a schema-extraction model, into validated ExtractedFields.
//
// Absence is never an error: a field that cannot be found or fails
// validation is left nil.
package normalize

import (
	"strings"

	"github.com/testme/testme-backend/internal/licensing/domain"
)

// Aliases the extraction model sometimes uses instead of the requested names.
var fieldAliases = map[string]string{
	"plate":         domain.FieldLicensePlate,
	"plateNumber":   domain.FieldLicensePlate,
	"licenseNumber": domain.FieldLicensePlate,
	"ownerName":     domain.FieldOwnerName,
	"owner":         domain.FieldOwnerName,
	"expiryDate":    domain.FieldLicenseExpiry,
	"validUntil":    domain.FieldLicenseExpiry,
	"lastTestDate":  domain.FieldTestDate,
	"model":         domain.FieldCarType,
	"vehicleModel":  domain.FieldCarType,
	"manufacturer":  domain.FieldCarType,
}

// Extract normalizes a recognition result regardless of strategy.
func Extract(result *domain.RecognitionResult) domain.ExtractedFields {
	if result == nil {
		return domain.ExtractedFields{}
	}
	if result.IsStructured() {
		return Structured(result.Structured)
	}
	return ExtractFromText(result.RawText)
}

// Structured re-validates field-shaped values instead of trusting them:
// plates must be 7 to 9 digits after confusion correction, and dates are
// reformatted to YYYY-MM-DD unless they already are.
func Structured(values map[string]string) domain.ExtractedFields {
	canonical := make(map[string]string, len(values))
	for key, value := range values {
		if alias, ok := fieldAliases[key]; ok {
			if _, exists := values[alias]; exists {
				continue
			}
			key = alias
		}
		canonical[key] = value
	}

	var f domain.ExtractedFields
	if plate, ok := Plate(canonical[domain.FieldLicensePlate]); ok {
		f.LicensePlate = &plate
	}
	if date, ok := Date(canonical[domain.FieldTestDate]); ok {
		f.TestDate = &date
	}
	if date, ok := Date(canonical[domain.FieldLicenseExpiry]); ok {
		f.LicenseExpiry = &date
	}
	f.OwnerName = text(canonical[domain.FieldOwnerName])
	f.CarType = text(canonical[domain.FieldCarType])
	return f
}

// Fields re-normalizes already extracted fields. Normalized input comes back
// unchanged.
func Fields(f domain.ExtractedFields) domain.ExtractedFields {
	return Structured(map[string]string{
		domain.FieldLicensePlate:  deref(f.LicensePlate),
		domain.FieldOwnerName:     deref(f.OwnerName),
		domain.FieldTestDate:      deref(f.TestDate),
		domain.FieldLicenseExpiry: deref(f.LicenseExpiry),
		domain.FieldCarType:       deref(f.CarType),
	})
}

// text trims free-text values; empty and "null" placeholders become nil.
func text(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "null") {
		return nil
	}
	return &value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
