package api

import (
	"encoding/json"
	"time"
)

// Request bodies use pointer fields so that a missing key is distinguishable
// from an empty value; every field below is required.

// RequestFragmentRequest is the JSON body for POST /api/requestFragment.
type RequestFragmentRequest struct {
	Reason *string `json:"reason"`
	Secret *string `json:"secret"`
}

// FragmentAccessRequest is the JSON body for POST /api/readFragment and
// POST /api/deleteFragment.
type FragmentAccessRequest struct {
	FragmentID *string `json:"fragmentID"`
	Secret     *string `json:"secret"`
}

// WriteFragmentRequest is the JSON body for POST /api/writeFragment.
type WriteFragmentRequest struct {
	FragmentID *string         `json:"fragmentID"`
	Secret     *string         `json:"secret"`
	Data       json.RawMessage `json:"data"`
}

// FragmentView is one fragment's metadata as rendered on the admin surface.
// The secret hash is never included.
type FragmentView struct {
	Reason     string     `json:"reason"`
	OriginalIP string     `json:"originalIP"`
	KnownIPs   []string   `json:"knownIPs"`
	Created    time.Time  `json:"created"`
	Approved   bool       `json:"approved"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

// AdminFragmentsResponse is returned from GET /admin/fragments.
type AdminFragmentsResponse struct {
	Approved map[string]FragmentView `json:"approved"`
	Pending  map[string]FragmentView `json:"pending"`
}

// StreamConnectionView is one live connection on the admin stream listing.
type StreamConnectionView struct {
	ConnectionID string    `json:"connectionID"`
	IP           string    `json:"ip"`
	ConnectedAt  time.Time `json:"connectedAt"`
}

// AdminStreamsResponse is returned from GET /admin/streams.
type AdminStreamsResponse struct {
	Enabled        bool                              `json:"enabled"`
	Total          int                               `json:"total"`
	MaxConnections int                               `json:"maxConnections"`
	MaxPerFragment int                               `json:"maxPerFragment"`
	Fragments      map[string][]StreamConnectionView `json:"fragments"`
}
