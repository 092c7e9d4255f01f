package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mkhatri/fragmentd/fragment"
)

func fragmentView(meta fragment.Metadata) FragmentView {
	return FragmentView{
		Reason:     meta.Reason,
		OriginalIP: meta.OriginalIP,
		KnownIPs:   meta.KnownIPs,
		Created:    meta.Created,
		Approved:   meta.Approved,
		LastUpdate: meta.LastUpdate,
	}
}

// AdminListFragments handles GET /admin/fragments: all fragments split into
// approved and pending, with secret hashes elided.
func (a *API) AdminListFragments(w http.ResponseWriter, r *http.Request) {
	resp := AdminFragmentsResponse{
		Approved: make(map[string]FragmentView),
		Pending:  make(map[string]FragmentView),
	}
	for id, meta := range a.registry.All() {
		if meta.Approved {
			resp.Approved[id] = fragmentView(meta)
		} else {
			resp.Pending[id] = fragmentView(meta)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminApproveRequest handles GET /admin/approveRequest?fragmentID=...
func (a *API) AdminApproveRequest(w http.ResponseWriter, r *http.Request) {
	fragmentID := r.URL.Query().Get("fragmentID")
	if fragmentID == "" {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if err := a.registry.Approve(fragmentID); err != nil {
		if errors.Is(err, fragment.ErrNotFound) {
			writeErrorText(w, http.StatusBadRequest, "Invalid request.")
			return
		}
		a.logger.Error("fragment approval failed", "fragment_id", fragmentID, "error", err)
		writeErrorText(w, http.StatusInternalServerError, "Failed to approve fragment.")
		return
	}
	a.audit.logFragment(AuditFragmentApproved, r, fragmentID)
	writeSuccessText(w, "Fragment '%s' approved.", fragmentID)
}

// AdminDeleteFragment handles GET /admin/deleteFragment?fragmentID=...
func (a *API) AdminDeleteFragment(w http.ResponseWriter, r *http.Request) {
	fragmentID := r.URL.Query().Get("fragmentID")
	if fragmentID == "" {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if err := a.registry.Delete(fragmentID); err != nil {
		if errors.Is(err, fragment.ErrNotFound) {
			writeErrorText(w, http.StatusBadRequest, "Invalid request.")
			return
		}
		a.logger.Error("fragment delete failed", "fragment_id", fragmentID, "error", err)
		writeErrorText(w, http.StatusInternalServerError, "Failed to delete fragment.")
		return
	}
	a.audit.logFragment(AuditFragmentDeleted, r, fragmentID)
	writeSuccessText(w, "Fragment '%s' deleted.", fragmentID)
}

// AdminDataStore handles GET /admin/getDataStore: every stored document,
// including the reserved metadata document, keyed by ID.
func (a *API) AdminDataStore(w http.ResponseWriter, r *http.Request) {
	ids, err := a.store.List()
	if err != nil {
		a.logger.Error("datastore listing failed", "error", err)
		writeErrorText(w, http.StatusInternalServerError, "Failed to read datastore.")
		return
	}
	dump := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		doc, err := a.store.Get(id)
		if err != nil {
			continue
		}
		dump[id] = doc
	}
	writeJSON(w, http.StatusOK, dump)
}

// AdminReloadMetadata handles GET /admin/reloadMetadata: re-reads the
// metadata table from the store, picking up out-of-band edits.
func (a *API) AdminReloadMetadata(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Reload(); err != nil {
		a.logger.Error("metadata reload failed", "error", err)
		writeErrorText(w, http.StatusInternalServerError, "Failed to reload metadata.")
		return
	}
	a.audit.log(AuditMetadataReloaded, r)
	writeSuccessText(w, "Metadata reloaded.")
}

// AdminToggleLock handles GET /admin/toggleLock: flips the system lock that
// 503s every non-admin route.
func (a *API) AdminToggleLock(w http.ResponseWriter, r *http.Request) {
	locked := !a.locked.Load()
	a.locked.Store(locked)
	a.audit.log(AuditLockToggled, r)
	status := "UNLOCKED"
	if locked {
		status = "LOCKED"
	}
	writeSuccessText(w, "System lock toggled. New status: %s", status)
}

// AdminStreams handles GET /admin/streams: live-connection introspection.
func (a *API) AdminStreams(w http.ResponseWriter, r *http.Request) {
	resp := AdminStreamsResponse{
		Enabled:        a.centre.Enabled(),
		Total:          a.centre.CountAll(),
		MaxConnections: a.centre.MaxConnections(),
		MaxPerFragment: a.centre.MaxPerFragment(),
		Fragments:      make(map[string][]StreamConnectionView),
	}
	for fragmentID, regs := range a.centre.Groups() {
		views := make([]StreamConnectionView, 0, len(regs))
		for _, reg := range regs {
			views = append(views, StreamConnectionView{
				ConnectionID: reg.ConnectionID,
				IP:           reg.RemoteIP,
				ConnectedAt:  reg.ConnectedAt,
			})
		}
		resp.Fragments[fragmentID] = views
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminCloseStream handles GET /admin/closeStream?fragmentID=&connectionID=:
// closes one connection, a whole fragment group, or a connection found by ID
// alone, depending on which parameters are present.
func (a *API) AdminCloseStream(w http.ResponseWriter, r *http.Request) {
	fragmentID := r.URL.Query().Get("fragmentID")
	connectionID := r.URL.Query().Get("connectionID")
	if fragmentID == "" && connectionID == "" {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	if !a.centre.Close(fragmentID, connectionID) {
		writeErrorText(w, http.StatusBadRequest, "Invalid request.")
		return
	}
	a.audit.log(AuditStreamClosed, r)
	writeSuccessText(w, "Stream connection(s) closed.")
}

// AdminShutdownStreams handles GET /admin/shutdownStreams: closes every live
// connection across every fragment.
func (a *API) AdminShutdownStreams(w http.ResponseWriter, r *http.Request) {
	a.centre.Shutdown()
	a.audit.log(AuditStreamShutdown, r)
	writeSuccessText(w, "Stream centre shutdown.")
}
