package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalizer_T(t *testing.T) {
	tests := []struct {
		name   string
		locale string
		key    string
		params map[string]string
		want   string
	}{
		{"hebrew status", LocaleHebrew, "booking.status.in_progress", nil, "בטיפול"},
		{"english status", LocaleEnglish, "booking.status.in_progress", nil, "In progress"},
		{"unknown locale falls back to hebrew", "fr", "booking.service.test", nil, "טסט שנתי"},
		{"params substituted", LocaleEnglish, "errors.not_found", map[string]string{"resource": "Booking"}, "Booking not found"},
		{"missing key returns key", LocaleEnglish, "errors.no_such_key", nil, "errors.no_such_key"},
		{"partial path returns key", LocaleEnglish, "booking.status", nil, "booking.status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLocalizer(tt.locale).T(tt.key, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	loadMessages()

	var walk func(prefix string, m map[string]any, out map[string]bool)
	walk = func(prefix string, m map[string]any, out map[string]bool) {
		for k, v := range m {
			if nested, ok := v.(map[string]any); ok {
				walk(prefix+k+".", nested, out)
				continue
			}
			out[prefix+k] = true
		}
	}

	he, en := map[string]bool{}, map[string]bool{}
	walk("", messages[LocaleHebrew], he)
	walk("", messages[LocaleEnglish], en)

	assert.NotEmpty(t, he)
	assert.Equal(t, he, en)
}

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", LocaleHebrew},
		{"en-US,en;q=0.9", LocaleEnglish},
		{"he-IL,he;q=0.9,en;q=0.8", LocaleHebrew},
		{"iw", LocaleHebrew},
		{"fr-FR, en;q=0.5", LocaleEnglish},
		{"de-DE", LocaleHebrew},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestMiddleware(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetLocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, LocaleEnglish, got)

	req = httptest.NewRequest(http.MethodGet, "/?lang=he", nil)
	req.Header.Set("Accept-Language", "en-US")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, LocaleHebrew, got)
}

func TestTFromContext(t *testing.T) {
	ctx := WithLocale(context.Background(), LocaleEnglish)
	assert.Equal(t, "Cancelled", TFromContext(ctx, "booking.status.cancelled"))
	assert.Equal(t, "בוטל", TFromContext(context.Background(), "booking.status.cancelled"))
}
