package normalize

import (
	"strings"
	"unicode"
)

const (
	minPlateDigits = 7
	maxPlateDigits = 9
)

// OCR glyphs commonly read in place of digits.
var confusions = strings.NewReplacer("O", "0", "I", "1", "Z", "7", "S", "5")

// CorrectConfusions replaces letters that OCR confuses with digits.
// Only ever applied to digit-typed fields.
func CorrectConfusions(s string) string {
	return confusions.Replace(s)
}

// ValidPlate reports whether s is a plate: digits only, 7 to 9 of them.
func ValidPlate(s string) bool {
	if len(s) < minPlateDigits || len(s) > maxPlateDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Plate normalizes a field-shaped plate value. Confusable letters are
// corrected and separators dropped; anything that is then not 7 to 9 digits
// is rejected rather than trimmed.
func Plate(value string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || isSeparator(r) {
			return -1
		}
		return r
	}, CorrectConfusions(strings.TrimSpace(value)))

	if !ValidPlate(cleaned) {
		return "", false
	}
	return cleaned, true
}

// plateFromToken applies the raw-text rule to one whitespace-delimited token:
// strip non-digits and accept 7 to 9 digits. Tokens made only of digits,
// confusable letters and separators are corrected first.
func plateFromToken(token string) (string, bool) {
	if isDateToken(token) {
		return "", false
	}
	if plateShaped(token) {
		token = CorrectConfusions(token)
	}

	digits := digitsOnly(token)
	if !ValidPlate(digits) {
		return "", false
	}
	return digits, true
}

func plateShaped(token string) bool {
	hasDigit := false
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == 'O', r == 'I', r == 'Z', r == 'S', isSeparator(r):
		default:
			return false
		}
	}
	return hasDigit
}

func isSeparator(r rune) bool {
	return r == '-' || r == '.' || r == '/'
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
