package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales. Hebrew is the default: the customers and the admin
// dashboard both work in Hebrew.
const (
	LocaleHebrew  = "he"
	LocaleEnglish = "en"
	DefaultLocale = LocaleHebrew
)

var supportedLocales = []string{LocaleHebrew, LocaleEnglish}

type localeKey struct{}

var (
	messages     map[string]map[string]any
	messagesOnce sync.Once
)

func loadMessages() {
	messagesOnce.Do(func() {
		messages = make(map[string]map[string]any)
		for _, locale := range supportedLocales {
			data, err := messagesFS.ReadFile("messages/" + locale + ".json")
			if err != nil {
				continue
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			messages[locale] = msg
		}
	})
}

// IsSupported reports whether locale has a message catalog.
func IsSupported(locale string) bool {
	for _, l := range supportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// Localizer handles message localization
type Localizer struct {
	locale string
}

// NewLocalizer creates a localizer, falling back to the default locale.
func NewLocalizer(locale string) *Localizer {
	loadMessages()
	if !IsSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// LocalizerFromContext creates a localizer from context
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// T translates a dot-notation key, substituting {param} placeholders.
// Missing keys fall back to the default locale and then to the key itself.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg := lookup(key, l.locale)
	if msg == "" {
		msg = lookup(key, DefaultLocale)
	}
	if msg == "" {
		return key
	}

	if len(params) > 0 {
		for k, v := range params[0] {
			msg = strings.ReplaceAll(msg, "{"+k+"}", v)
		}
	}
	return msg
}

// Locale returns the localizer's locale
func (l *Localizer) Locale() string {
	return l.locale
}

func lookup(key, locale string) string {
	current, ok := messages[locale]
	if !ok {
		return ""
	}

	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		nested, ok := current[part].(map[string]any)
		if !ok {
			return ""
		}
		current = nested
	}

	str, _ := current[parts[len(parts)-1]].(string)
	return str
}

// WithLocale adds locale to context
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext retrieves locale from context
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage returns the first supported language in the header,
// in the order the client listed them. "iw" is the legacy code for Hebrew.
func ParseAcceptLanguage(header string) string {
	for _, part := range strings.Split(strings.ToLower(header), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		lang := strings.SplitN(tag, "-", 2)[0]
		if lang == "iw" {
			lang = LocaleHebrew
		}
		if IsSupported(lang) {
			return lang
		}
	}
	return DefaultLocale
}

// T translates using the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TWithLocale translates using the specified locale
func TWithLocale(locale, key string, params ...map[string]string) string {
	return NewLocalizer(locale).T(key, params...)
}

// TFromContext translates using locale from context
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
