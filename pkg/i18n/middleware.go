package i18n

import "net/http"

// Middleware resolves the request locale and stores it in the context.
// An explicit ?lang= query parameter (the site's language toggle) wins
// over Accept-Language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := r.URL.Query().Get("lang")
		if !IsSupported(locale) {
			locale = ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		}
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}
