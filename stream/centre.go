package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkhatri/fragmentd/internal/util"
)

const (
	// DefaultMaxConnections is the process-wide connection ceiling.
	DefaultMaxConnections = 20
	// DefaultMaxPerFragment is the per-fragment connection ceiling.
	DefaultMaxPerFragment = 5

	// connectionIDLength is the length of generated connection IDs.
	connectionIDLength = 10
)

// Farewell reasons sent in the close frame for each close mode.
const (
	closeReasonConnection = "This connection was closed."
	closeReasonFragment   = "This fragment stream was closed."
	closeReasonShutdown   = "Stream centre was shutdown."
)

// Registration is the registry's record of one live connection. The transport
// handle is shared and non-owning: the registry uses it only to send broadcast
// frames and forced closes; the session goroutine is the only reader.
type Registration struct {
	ConnectionID string
	FragmentID   string
	RemoteIP     string
	ConnectedAt  time.Time
	transport    Transport
}

// Centre is the process-wide session registry, grouping live connections by
// fragment ID. Admission ceilings and the streaming toggle are read at check
// time; changing them mid-run affects only subsequent admissions.
type Centre struct {
	mu     sync.Mutex
	groups map[string]map[string]*Registration

	enabled        atomic.Bool
	maxTotal       atomic.Int64
	maxPerFragment atomic.Int64

	logger *slog.Logger
}

// CentreOption configures a Centre.
type CentreOption func(*Centre)

// WithCentreLogger sets the structured logger. Defaults to slog.Default().
func WithCentreLogger(logger *slog.Logger) CentreOption {
	return func(c *Centre) { c.logger = logger }
}

// NewCentre creates an empty registry with streaming disabled and default
// ceilings.
func NewCentre(opts ...CentreOption) *Centre {
	c := &Centre{
		groups: make(map[string]map[string]*Registration),
		logger: slog.Default(),
	}
	c.maxTotal.Store(DefaultMaxConnections)
	c.maxPerFragment.Store(DefaultMaxPerFragment)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether streaming is admitted at all. Callers must refuse
// new connections when false.
func (c *Centre) Enabled() bool { return c.enabled.Load() }

// SetEnabled flips the streaming toggle.
func (c *Centre) SetEnabled(enabled bool) { c.enabled.Store(enabled) }

// MaxConnections returns the process-wide connection ceiling.
func (c *Centre) MaxConnections() int { return int(c.maxTotal.Load()) }

// SetMaxConnections overrides the process-wide connection ceiling.
func (c *Centre) SetMaxConnections(n int) { c.maxTotal.Store(int64(n)) }

// MaxPerFragment returns the per-fragment connection ceiling.
func (c *Centre) MaxPerFragment() int { return int(c.maxPerFragment.Load()) }

// SetMaxPerFragment overrides the per-fragment connection ceiling.
func (c *Centre) SetMaxPerFragment(n int) { c.maxPerFragment.Store(int64(n)) }

// Register stores a new live connection under fragmentID and returns its
// connection ID, unique within the fragment's group.
func (c *Centre) Register(fragmentID, remoteIP string, transport Transport) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ok := c.groups[fragmentID]
	if !ok {
		group = make(map[string]*Registration)
		c.groups[fragmentID] = group
	}

	var connectionID string
	for {
		id, err := util.AlphanumericID(connectionIDLength)
		if err != nil {
			return "", fmt.Errorf("generating connection ID: %w", err)
		}
		if _, taken := group[id]; !taken {
			connectionID = id
			break
		}
	}

	group[connectionID] = &Registration{
		ConnectionID: connectionID,
		FragmentID:   fragmentID,
		RemoteIP:     remoteIP,
		ConnectedAt:  time.Now().UTC(),
		transport:    transport,
	}

	c.logger.Info("stream connection registered",
		"fragment_id", fragmentID, "connection_id", connectionID, "ip", remoteIP)
	return connectionID, nil
}

// Unregister removes the connection's entry, dropping the fragment's group if
// it becomes empty. Returns false if nothing matched; idempotent.
func (c *Centre) Unregister(fragmentID, connectionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unregisterLocked(fragmentID, connectionID)
}

func (c *Centre) unregisterLocked(fragmentID, connectionID string) bool {
	group, ok := c.groups[fragmentID]
	if !ok {
		return false
	}
	if _, ok := group[connectionID]; !ok {
		return false
	}
	delete(group, connectionID)
	if len(group) == 0 {
		delete(c.groups, fragmentID)
	}
	c.logger.Info("stream connection removed",
		"fragment_id", fragmentID, "connection_id", connectionID)
	return true
}

// ReapDeadSessions removes every entry whose transport is no longer
// connected. Invoked before any admission count, broadcast, or forced close
// so stale entries are never counted or sent to.
func (c *Centre) ReapDeadSessions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
}

func (c *Centre) reapLocked() {
	for fragmentID, group := range c.groups {
		for connectionID, reg := range group {
			if !reg.transport.Connected() {
				c.unregisterLocked(fragmentID, connectionID)
			}
		}
	}
}

// CountAll returns the number of live connections across all fragments.
func (c *Centre) CountAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
	total := 0
	for _, group := range c.groups {
		total += len(group)
	}
	return total
}

// CountFor returns the number of live connections on one fragment.
func (c *Centre) CountFor(fragmentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
	return len(c.groups[fragmentID])
}

// ListFor returns the connection IDs registered under fragmentID.
func (c *Centre) ListFor(fragmentID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
	ids := make([]string, 0, len(c.groups[fragmentID]))
	for id := range c.groups[fragmentID] {
		ids = append(ids, id)
	}
	return ids
}

// Groups returns a snapshot of all registrations keyed by fragment ID, for
// the admin surface.
func (c *Centre) Groups() map[string][]Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
	out := make(map[string][]Registration, len(c.groups))
	for fragmentID, group := range c.groups {
		regs := make([]Registration, 0, len(group))
		for _, reg := range group {
			regs = append(regs, *reg)
		}
		out[fragmentID] = regs
	}
	return out
}

// Close terminates connections by one of three modes: both IDs close exactly
// that connection; only fragmentID closes the whole group; only connectionID
// closes that connection wherever it is found. Returns false if nothing
// matched.
func (c *Centre) Close(fragmentID, connectionID string) bool {
	c.mu.Lock()
	c.reapLocked()

	type target struct {
		fragmentID   string
		connectionID string
		transport    Transport
		reason       string
	}
	var targets []target

	switch {
	case fragmentID != "" && connectionID != "":
		if reg, ok := c.groups[fragmentID][connectionID]; ok {
			targets = append(targets, target{fragmentID, connectionID, reg.transport, closeReasonConnection})
		}
	case fragmentID != "":
		for id, reg := range c.groups[fragmentID] {
			targets = append(targets, target{fragmentID, id, reg.transport, closeReasonFragment})
		}
	case connectionID != "":
		for fid, group := range c.groups {
			if reg, ok := group[connectionID]; ok {
				targets = append(targets, target{fid, connectionID, reg.transport, closeReasonConnection})
				break
			}
		}
	}

	for _, tg := range targets {
		c.unregisterLocked(tg.fragmentID, tg.connectionID)
	}
	c.mu.Unlock()

	if len(targets) == 0 {
		c.logger.Warn("stream close matched nothing",
			"fragment_id", fragmentID, "connection_id", connectionID)
		return false
	}
	for _, tg := range targets {
		if err := tg.transport.Close(tg.reason); err != nil {
			c.logger.Warn("closing stream connection",
				"fragment_id", tg.fragmentID, "connection_id", tg.connectionID, "error", err)
		}
	}
	return true
}

// Shutdown closes every connection across every fragment, for full service
// teardown.
func (c *Centre) Shutdown() {
	c.mu.Lock()
	c.reapLocked()
	var transports []Transport
	for fragmentID, group := range c.groups {
		for _, reg := range group {
			transports = append(transports, reg.transport)
		}
		delete(c.groups, fragmentID)
	}
	c.mu.Unlock()

	for _, t := range transports {
		_ = t.Close(closeReasonShutdown)
	}
	c.logger.Info("stream centre shut down", "connections_closed", len(transports))
}

// Broadcast sends frame to every live connection on the fragment. Best
// effort: a failed send is logged and skipped, never aborting the rest. The
// registry lock is released before sending so slow consumers cannot stall
// registration.
func (c *Centre) Broadcast(fragmentID string, frame []byte) {
	c.mu.Lock()
	c.reapLocked()
	targets := make([]*Registration, 0, len(c.groups[fragmentID]))
	for _, reg := range c.groups[fragmentID] {
		targets = append(targets, reg)
	}
	c.mu.Unlock()

	for _, reg := range targets {
		if err := reg.transport.Send(frame); err != nil {
			c.logger.Warn("broadcast send failed",
				"fragment_id", fragmentID, "connection_id", reg.ConnectionID, "error", err)
		}
	}
}
