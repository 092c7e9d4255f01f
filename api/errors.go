package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// The plain-text ERROR:/SUCCESS: bodies on the /api routes are the
// compatibility surface existing clients parse; they are produced here and
// nowhere else.

func writeText(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, format, args...)
}

func writeErrorText(w http.ResponseWriter, status int, format string, args ...any) {
	writeText(w, status, "ERROR: "+format, args...)
}

func writeSuccessText(w http.ResponseWriter, format string, args ...any) {
	writeText(w, http.StatusOK, "SUCCESS: "+format, args...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
