package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/testme/testme-backend/internal/licensing/domain"
)

const maxCarTypeRunes = 40

var (
	// A label for the owner's name ("name", "owner's name", "attention of")
	// followed by 3 to 20 letters of the same script.
	hebrewNamePattern = regexp.MustCompile(
		`(?:^|\P{L})(?:שם(?:\s+ה?בעלים|\s+מלא)?|לכבוד)(?:\s*:\s*|\s+)(\p{Hebrew}[\p{Hebrew} ]{2,19})`)
	latinNamePattern = regexp.MustCompile(
		`(?i)(?:^|\P{L})(?:owner(?:'s)?\s+name|name)(?:\s*:\s*|\s+)(\p{Latin}[\p{Latin} ]{2,19})`)

	carTypePattern = regexp.MustCompile(
		`(?i)(?:^|\P{L})(?:תוצר|דגם|יצרן|model|make)(?:\s*:\s*|\s+)([\p{L}\p{N}][\p{L}\p{N} .\-]*)`)
)

// ExtractFromText scans recognized text line by line. Each field takes the
// first line that yields a valid value and is never overwritten afterwards.
func ExtractFromText(text string) domain.ExtractedFields {
	var f domain.ExtractedFields

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if f.LicensePlate == nil {
			f.LicensePlate = scanPlate(line)
		}

		if date, ok := findDate(line); ok {
			if isExpiryLine(line) {
				if f.LicenseExpiry == nil {
					f.LicenseExpiry = &date
				}
			} else if f.TestDate == nil {
				f.TestDate = &date
			}
		}

		if f.OwnerName == nil {
			f.OwnerName = scanName(line)
		}

		if f.CarType == nil {
			f.CarType = scanCarType(line)
		}
	}

	return f
}

func scanPlate(line string) *string {
	for _, token := range strings.Fields(line) {
		if plate, ok := plateFromToken(token); ok {
			return &plate
		}
	}
	return nil
}

func scanName(line string) *string {
	for _, re := range []*regexp.Regexp{hebrewNamePattern, latinNamePattern} {
		if m := re.FindStringSubmatch(line); m != nil {
			if name := strings.TrimSpace(m[1]); utf8.RuneCountInString(name) >= 3 {
				return &name
			}
		}
	}
	return nil
}

func scanCarType(line string) *string {
	m := carTypePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return text(truncateRunes(m[1], maxCarTypeRunes))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
