package middleware

import "net/http"

// Secure sets the response headers every JSON endpoint carries. Auth and
// itinerary responses hold tokens and personal data, so nothing is cached.
// With requireTLS, requests that arrived over plain HTTP (directly or per
// X-Forwarded-Proto) are refused with 403.
func Secure(requireTLS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")

			https := scheme(r) == "https"
			if https {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if requireTLS && !https {
				WriteError(w, http.StatusForbidden, "HTTPS required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
