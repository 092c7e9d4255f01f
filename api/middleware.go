package api

import (
	"net"
	"net/http"
	"strings"
)

// clientIP returns the X-Real-Ip header when a fronting proxy supplies it,
// falling back to the connection's remote address.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// systemLock returns 503 on every non-admin route while the lock is engaged.
func (a *API) systemLock(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.locked.Load() && !strings.HasPrefix(r.URL.Path, "/admin") {
			writeErrorText(w, http.StatusServiceUnavailable, "Service unavailable.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// jsonOnly rejects requests whose body is not declared as JSON.
func (a *API) jsonOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeErrorText(w, http.StatusBadRequest, "Invalid request format.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey enforces the process-wide APIKey header when one is
// configured.
func (a *API) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !keyMatches(a.apiKey, r.Header.Get("APIKey")) {
			writeErrorText(w, http.StatusUnauthorized, "Request unauthorised.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdminKey enforces the admin key query parameter when one is
// configured.
func (a *API) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !keyMatches(a.adminKey, r.URL.Query().Get("key")) {
			a.audit.log(AuditAdminUnauthorised, r)
			writeErrorText(w, http.StatusUnauthorized, "Request unauthorised.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the per-IP request budget on the /api routes.
func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.allow(clientIP(r)) {
			a.audit.log(AuditRateLimited, r)
			writeErrorText(w, http.StatusTooManyRequests, "Rate limit exceeded.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
