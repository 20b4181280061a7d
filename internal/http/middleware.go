package http

import (
	"net/http"
	"strings"
)

const (
	apiCSP     = "default-src 'none'"
	swaggerCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"
	// the SPA loads the Google Identity Services script and iframe
	appCSP = "default-src 'self'; script-src 'self' https://accounts.google.com; frame-src https://accounts.google.com; " +
		"connect-src 'self' https://accounts.google.com; style-src 'self' 'unsafe-inline' https://accounts.google.com; img-src 'self' data: https:"
)

// apiRoots are the top-level paths answered with JSON
var apiRoots = []string{apiPrefix, "/register", "/login", "/google-auth", "/set-password", "/me", "/health", "/metrics"}

// SecurityHeaders adds security-related headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", contentSecurityPolicy(r.URL.Path))

		next.ServeHTTP(w, r)
	})
}

func contentSecurityPolicy(p string) string {
	if strings.HasPrefix(p, "/swagger/") {
		return swaggerCSP
	}
	for _, root := range apiRoots {
		if p == root || strings.HasPrefix(p, root+"/") {
			return apiCSP
		}
	}
	return appCSP
}
