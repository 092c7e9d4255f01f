package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mkhatri/fragmentd/storage"
)

const (
	// DefaultAuthTimeout bounds how long a new connection may take to present
	// its credentials frame.
	DefaultAuthTimeout = 3 * time.Second
	// DefaultRateGate is the minimum spacing between accepted inbound frames
	// on an active session; faster frames are discarded silently.
	DefaultRateGate = 500 * time.Millisecond
)

// State is a session's position in its lifecycle. Transitions only move
// forward; Closed is terminal.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Authenticator verifies stream credentials against the fragment metadata
// registry and records write activity. Implemented by fragment.Registry.
type Authenticator interface {
	Approved(fragmentID string) (bool, error)
	VerifySecret(fragmentID, candidate string) (bool, error)
	RecordActivity(fragmentID, ip string, at time.Time) error
}

// DocumentStore is the slice of the fragment store a session needs.
type DocumentStore interface {
	Get(id string) (json.RawMessage, error)
	Put(id string, doc json.RawMessage) error
}

// Session is one persistent connection's protocol state machine. It is owned
// by exactly one goroutine (the one calling Run); only the transport handle
// is shared, via the registry, for broadcasts and forced closes.
type Session struct {
	centre    *Centre
	auth      Authenticator
	docs      DocumentStore
	transport Transport
	remoteIP  string

	logger      *slog.Logger
	apiKeyCheck func(candidate string) bool
	authTimeout time.Duration
	rateGate    time.Duration

	state        State
	connectionID string
	fragmentID   string
	lastAccepted time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the structured logger. Defaults to slog.Default().
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithAPIKeyCheck installs the process-wide API key check. When nil, no API
// key is enforced.
func WithAPIKeyCheck(check func(candidate string) bool) SessionOption {
	return func(s *Session) { s.apiKeyCheck = check }
}

// WithAuthTimeout overrides the credentials-frame timeout.
func WithAuthTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.authTimeout = d }
}

// WithRateGate overrides the minimum spacing between accepted frames.
func WithRateGate(d time.Duration) SessionOption {
	return func(s *Session) { s.rateGate = d }
}

// NewSession creates a session for a freshly-accepted connection.
func NewSession(centre *Centre, auth Authenticator, docs DocumentStore, transport Transport, remoteIP string, opts ...SessionOption) *Session {
	s := &Session{
		centre:      centre,
		auth:        auth,
		docs:        docs,
		transport:   transport,
		remoteIP:    remoteIP,
		logger:      slog.Default(),
		authTimeout: DefaultAuthTimeout,
		rateGate:    DefaultRateGate,
		state:       StateConnecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's lifecycle state. Not synchronized; intended for
// inspection after Run returns.
func (s *Session) State() State { return s.state }

// ConnectionID returns the registry-assigned ID, empty until authenticated.
func (s *Session) ConnectionID() string { return s.connectionID }

// FragmentID returns the fragment group this session belongs to, assigned
// exactly once at authentication.
func (s *Session) FragmentID() string { return s.fragmentID }

// Run drives the state machine to completion: admission, authentication,
// serve loop, close. It blocks until the session ends and always leaves the
// transport closed and the registry entry removed.
func (s *Session) Run() {
	defer s.shutdown()

	if !s.admit() {
		return
	}
	s.state = StateAuthenticating
	if !s.authenticate() {
		return
	}
	s.state = StateActive
	s.serve()
}

func (s *Session) shutdown() {
	s.state = StateClosed
	if s.connectionID != "" {
		// Idempotent: returns false harmlessly if an admin close already
		// removed the entry.
		s.centre.Unregister(s.fragmentID, s.connectionID)
	}
	_ = s.transport.Close("Session ended.")
}

// reject sends an error frame and tears the connection down. Best effort:
// the frame may not be deliverable if the transport already failed.
func (s *Session) reject(msg string) {
	_ = s.transport.Send(Error(msg))
	_ = s.transport.Close(msg)
}

// admit applies the process-wide admission gate before reading anything from
// the connection. Refusals are expected conditions, not errors.
func (s *Session) admit() bool {
	if !s.centre.Enabled() {
		s.logger.Info("stream admission refused: streaming disabled", "ip", s.remoteIP)
		s.reject("Streaming is currently disabled.")
		return false
	}
	if s.centre.CountAll() >= s.centre.MaxConnections() {
		s.logger.Info("stream admission refused: at capacity", "ip", s.remoteIP)
		s.reject("Stream centre is at maximum capacity.")
		return false
	}
	return true
}

type authRequest struct {
	APIKey     *string `json:"apiKey"`
	FragmentID *string `json:"fragmentID"`
	Secret     *string `json:"secret"`
}

// authenticate performs the credentials handshake. On any failure the
// connection is closed with an error frame and no registry entry exists.
func (s *Session) authenticate() bool {
	if err := s.transport.Send(Normal("Authorisation required.")); err != nil {
		return false
	}

	frame, err := s.transport.Receive(s.authTimeout)
	if err != nil {
		s.logger.Warn("stream auth failed: no credentials frame", "ip", s.remoteIP, "error", err)
		s.reject("Authorisation timed out.")
		return false
	}

	var req authRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		s.logger.Warn("stream auth failed: malformed payload", "ip", s.remoteIP)
		s.reject("Invalid authorisation payload.")
		return false
	}
	if req.APIKey == nil || req.FragmentID == nil || req.Secret == nil {
		s.logger.Warn("stream auth failed: missing fields", "ip", s.remoteIP)
		s.reject("Invalid authorisation payload.")
		return false
	}
	if s.apiKeyCheck != nil && !s.apiKeyCheck(*req.APIKey) {
		s.logger.Warn("stream auth failed: bad API key", "ip", s.remoteIP)
		s.reject("Request unauthorised.")
		return false
	}

	fragmentID := *req.FragmentID
	approved, err := s.auth.Approved(fragmentID)
	if err != nil {
		s.logger.Warn("stream auth failed: unknown fragment", "ip", s.remoteIP, "fragment_id", fragmentID)
		s.reject("Invalid request.")
		return false
	}
	ok, err := s.auth.VerifySecret(fragmentID, *req.Secret)
	if err != nil || !ok {
		s.logger.Warn("stream auth failed: bad secret", "ip", s.remoteIP, "fragment_id", fragmentID)
		s.reject("Access unauthorised.")
		return false
	}
	if !approved {
		s.logger.Warn("stream auth failed: fragment not approved", "ip", s.remoteIP, "fragment_id", fragmentID)
		s.reject("Fragment request not approved.")
		return false
	}

	if s.centre.CountFor(fragmentID) >= s.centre.MaxPerFragment() {
		s.logger.Info("stream admission refused: fragment at capacity",
			"ip", s.remoteIP, "fragment_id", fragmentID)
		s.reject("Fragment stream is at maximum capacity.")
		return false
	}

	if err := s.transport.Send(SuccessEvent("Stream connection authorised.")); err != nil {
		return false
	}
	connectionID, err := s.centre.Register(fragmentID, s.remoteIP, s.transport)
	if err != nil {
		s.logger.Error("stream registration failed", "ip", s.remoteIP, "error", err)
		s.reject("Failed to register stream connection.")
		return false
	}
	s.fragmentID = fragmentID
	s.connectionID = connectionID
	return true
}

type actionRequest struct {
	Action *string         `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// serve runs the action loop until the client closes, the transport fails, or
// an admin forces the session shut. Protocol violations are answered with an
// error frame and the loop continues.
func (s *Session) serve() {
	for {
		frame, err := s.transport.Receive(0)
		if err != nil {
			// Transport failure, or an induced close from the admin surface.
			return
		}

		if s.rateGate > 0 && time.Since(s.lastAccepted) < s.rateGate {
			continue
		}
		s.lastAccepted = time.Now()

		var req actionRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			_ = s.transport.Send(Error("Invalid JSON payload."))
			continue
		}

		action := ""
		if req.Action != nil {
			action = *req.Action
		}
		switch action {
		case "write":
			s.handleWrite(req.Data)
		case "read":
			s.handleRead()
		case "close":
			s.centre.Close(s.fragmentID, s.connectionID)
			return
		default:
			_ = s.transport.Send(Error("Invalid or missing action."))
		}
	}
}

// handleWrite persists the payload, then fans it out to every session on the
// fragment, including this one. The broadcast is the only acknowledgment the
// writer receives.
func (s *Session) handleWrite(data json.RawMessage) {
	if !isJSONObject(data) {
		_ = s.transport.Send(Error("Write requires a 'data' JSON object."))
		return
	}
	if err := s.docs.Put(s.fragmentID, data); err != nil {
		s.logger.Error("fragment write failed", "fragment_id", s.fragmentID, "error", err)
		_ = s.transport.Send(Error("Failed to write fragment data."))
		return
	}
	if err := s.auth.RecordActivity(s.fragmentID, s.remoteIP, time.Now().UTC()); err != nil {
		s.logger.Warn("recording fragment activity failed", "fragment_id", s.fragmentID, "error", err)
	}
	s.centre.Broadcast(s.fragmentID, WriteEvent(data))
}

func (s *Session) handleRead() {
	doc, err := s.docs.Get(s.fragmentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("fragment read failed", "fragment_id", s.fragmentID, "error", err)
		}
		doc = nil
	}
	_ = s.transport.Send(ReadEvent(doc))
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
