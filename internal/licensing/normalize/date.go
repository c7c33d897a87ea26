package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	datePattern      = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})\b`)
	fullDatePattern  = regexp.MustCompile(`^\D*(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})\D*$`)
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	expiryLabelRegex = regexp.MustCompile(`(?i)תוקף|valid|expir`)
)

// Date normalizes a date value to YYYY-MM-DD. ISO dates pass through after a
// range check; day-first dates with . / or - separators are reformatted.
func Date(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if m := isoDatePattern.FindStringSubmatch(value); m != nil {
		if validDay(m[3]) && validMonth(m[2]) {
			return value, true
		}
		return "", false
	}
	return findDate(value)
}

// findDate returns the first valid day-month-year date in s.
func findDate(s string) (string, bool) {
	for _, m := range datePattern.FindAllStringSubmatch(s, -1) {
		if iso, ok := formatDate(m[1], m[2], m[3]); ok {
			return iso, true
		}
	}
	return "", false
}

// formatDate expands two-digit years with "20", zero-pads day and month,
// and rejects month > 12, day > 31, zero components and three-digit years.
func formatDate(day, month, year string) (string, bool) {
	if !validDay(day) || !validMonth(month) {
		return "", false
	}

	switch len(year) {
	case 2:
		year = "20" + year
	case 4:
	default:
		return "", false
	}

	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	return fmt.Sprintf("%s-%02d-%02d", year, m, d), true
}

func validDay(s string) bool {
	d, err := strconv.Atoi(s)
	return err == nil && d >= 1 && d <= 31
}

func validMonth(s string) bool {
	m, err := strconv.Atoi(s)
	return err == nil && m >= 1 && m <= 12
}

// isDateToken reports whether a whole token is a valid date, so that
// "05/03/2024" is never read as the plate 05032024.
func isDateToken(token string) bool {
	m := fullDatePattern.FindStringSubmatch(token)
	if m == nil {
		return false
	}
	_, ok := formatDate(m[1], m[2], m[3])
	return ok
}

func isExpiryLine(line string) bool {
	return expiryLabelRegex.MatchString(line)
}
