package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkhatri/fragmentd/fragment"
	"github.com/mkhatri/fragmentd/storage"
)

// decodeBody decodes the request body into v, reporting false (with the
// response already written) on malformed JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request format.")
		return false
	}
	return true
}

// RequestFragment handles POST /api/requestFragment: records a new fragment
// request pending admin approval.
func (a *API) RequestFragment(w http.ResponseWriter, r *http.Request) {
	var req RequestFragmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Reason == nil || req.Secret == nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request format.")
		return
	}

	fragmentID, err := a.registry.Request(*req.Reason, *req.Secret, clientIP(r))
	if err != nil {
		var verr *fragment.ValidationError
		var pending *fragment.PendingRequestError
		switch {
		case errors.As(err, &verr):
			writeErrorText(w, http.StatusBadRequest, "%s", verr.Error())
		case errors.As(err, &pending):
			writeErrorText(w, http.StatusForbidden, "You have a pending fragment request (%s).", pending.FragmentID)
		default:
			a.logger.Error("fragment request failed", "error", err)
			writeErrorText(w, http.StatusInternalServerError, "Failed to process request.")
		}
		return
	}

	a.audit.logFragment(AuditFragmentRequested, r, fragmentID)
	writeSuccessText(w, "Fragment request successful; await approval. ID: %s", fragmentID)
}

// WriteFragment handles POST /api/writeFragment: replaces the fragment's
// document. Checked in order: known fragment, secret, approval.
func (a *API) WriteFragment(w http.ResponseWriter, r *http.Request) {
	var req WriteFragmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FragmentID == nil || req.Secret == nil || !isJSONObject(req.Data) {
		writeErrorText(w, http.StatusBadRequest, "Invalid request format.")
		return
	}
	fragmentID := *req.FragmentID

	meta, err := a.registry.Lookup(fragmentID)
	if err != nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if ok, err := a.registry.VerifySecret(fragmentID, *req.Secret); err != nil || !ok {
		a.audit.logFragment(AuditAccessDenied, r, fragmentID, slog.String("op", "write"))
		writeErrorText(w, http.StatusUnauthorized, "Access unauthorised.")
		return
	}
	if !meta.Approved {
		writeErrorText(w, http.StatusForbidden, "Fragment request not approved.")
		return
	}

	if err := a.store.Put(fragmentID, req.Data); err != nil {
		a.logger.Error("fragment write failed", "fragment_id", fragmentID, "error", err)
		writeErrorText(w, http.StatusInternalServerError, "Failed to write fragment.")
		return
	}
	if err := a.registry.RecordActivity(fragmentID, clientIP(r), time.Now().UTC()); err != nil {
		a.logger.Warn("recording fragment activity failed", "fragment_id", fragmentID, "error", err)
	}

	a.audit.logFragment(AuditFragmentWrite, r, fragmentID)
	writeSuccessText(w, "Write successful.")
}

// ReadFragment handles POST /api/readFragment: returns the fragment's
// document. Checked in order: known fragment, approval, secret.
func (a *API) ReadFragment(w http.ResponseWriter, r *http.Request) {
	var req FragmentAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FragmentID == nil || req.Secret == nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request format.")
		return
	}
	fragmentID := *req.FragmentID

	meta, err := a.registry.Lookup(fragmentID)
	if err != nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if !meta.Approved {
		writeErrorText(w, http.StatusForbidden, "Fragment request not approved.")
		return
	}
	if ok, err := a.registry.VerifySecret(fragmentID, *req.Secret); err != nil || !ok {
		a.audit.logFragment(AuditAccessDenied, r, fragmentID, slog.String("op", "read"))
		writeErrorText(w, http.StatusUnauthorized, "Access unauthorised.")
		return
	}

	doc, err := a.store.Get(fragmentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("fragment read failed", "fragment_id", fragmentID, "error", err)
		}
		doc = json.RawMessage(`{}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

// DeleteFragment handles POST /api/deleteFragment: removes the fragment's
// document and metadata. The secret alone authorises deletion; approval is
// not required, so a pending request can be withdrawn.
func (a *API) DeleteFragment(w http.ResponseWriter, r *http.Request) {
	var req FragmentAccessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FragmentID == nil || req.Secret == nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request format.")
		return
	}
	fragmentID := *req.FragmentID

	if _, err := a.registry.Lookup(fragmentID); err != nil {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if ok, err := a.registry.VerifySecret(fragmentID, *req.Secret); err != nil || !ok {
		a.audit.logFragment(AuditAccessDenied, r, fragmentID, slog.String("op", "delete"))
		writeErrorText(w, http.StatusUnauthorized, "Access unauthorised.")
		return
	}

	if err := a.registry.Delete(fragmentID); err != nil {
		a.logger.Error("fragment delete failed", "fragment_id", fragmentID, "error", err)
		writeErrorText(w, http.StatusInternalServerError, "Failed to delete fragment.")
		return
	}

	a.audit.logFragment(AuditFragmentDeleted, r, fragmentID)
	writeSuccessText(w, "Fragment deleted.")
}

func isJSONObject(data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return false
	}
	return obj != nil
}
