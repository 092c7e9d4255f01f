package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkhatri/fragmentd/internal/util"
	"github.com/mkhatri/fragmentd/storage"
)

// MetadataDocID is the reserved document ID under which the registry persists
// its metadata table. It can never collide with a fragment ID, which is always
// 32 hex characters.
const MetadataDocID = "system"

// PendingRequestError is returned by Request when the caller's IP already has
// an unapproved fragment request outstanding.
type PendingRequestError struct {
	FragmentID string
}

func (e *PendingRequestError) Error() string {
	return fmt.Sprintf("pending fragment request (%s)", e.FragmentID)
}

func (e *PendingRequestError) Is(target error) bool { return target == ErrPendingRequest }

// Registry is the fragment metadata table: who requested what, whether it has
// been approved, and the secret hash gating access. The table is held in
// memory and persisted to the document store under MetadataDocID on every
// mutation.
type Registry struct {
	mu     sync.Mutex
	store  storage.Store
	system map[string]*Metadata
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Open loads (or initializes) the metadata table from the store.
func Open(store storage.Store, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:  store,
		system: make(map[string]*Metadata),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the in-memory table with the persisted one. A missing
// metadata document is initialized empty.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Get(MetadataDocID)
	if errors.Is(err, storage.ErrNotFound) {
		r.system = make(map[string]*Metadata)
		return r.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("loading fragment metadata: %w", err)
	}
	system := make(map[string]*Metadata)
	if err := json.Unmarshal(doc, &system); err != nil {
		return fmt.Errorf("decoding fragment metadata: %w", err)
	}
	r.system = system
	return nil
}

func (r *Registry) persistLocked() error {
	doc, err := json.Marshal(r.system)
	if err != nil {
		return fmt.Errorf("encoding fragment metadata: %w", err)
	}
	if err := r.store.Put(MetadataDocID, doc); err != nil {
		return fmt.Errorf("persisting fragment metadata: %w", err)
	}
	return nil
}

// Request validates and records a new fragment request from ip. The fragment
// starts unapproved; an IP may hold at most one unapproved request at a time.
// Returns the new fragment ID.
func (r *Registry) Request(reason, secret, ip string) (string, error) {
	if err := ValidateReason(reason); err != nil {
		return "", err
	}
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, meta := range r.system {
		if meta.OriginalIP == ip && !meta.Approved {
			return "", &PendingRequestError{FragmentID: id}
		}
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}

	id := util.HexUUID()
	r.system[id] = &Metadata{
		Reason:     reason,
		OriginalIP: ip,
		KnownIPs:   []string{ip},
		SecretHash: hash,
		Created:    r.now(),
		Approved:   false,
	}
	if err := r.persistLocked(); err != nil {
		delete(r.system, id)
		return "", err
	}

	r.logger.Info("fragment requested", "fragment_id", id, "ip", ip)
	return id, nil
}

// Lookup returns a copy of the fragment's metadata.
func (r *Registry) Lookup(id string) (Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.system[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return meta.clone(), nil
}

// All returns a copy of the full metadata table, for the admin surface.
func (r *Registry) All() map[string]Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Metadata, len(r.system))
	for id, meta := range r.system {
		out[id] = meta.clone()
	}
	return out
}

// Approved reports whether the fragment exists and has been approved.
func (r *Registry) Approved(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.system[id]
	if !ok {
		return false, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return meta.Approved, nil
}

// VerifySecret checks the candidate secret against the fragment's stored hash.
func (r *Registry) VerifySecret(id, candidate string) (bool, error) {
	r.mu.Lock()
	hash := ""
	meta, ok := r.system[id]
	if ok {
		hash = meta.SecretHash
	}
	r.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return VerifyHash(candidate, hash)
}

// Approve marks the fragment as approved and initializes its document to an
// empty object. Approving an already-approved fragment is a no-op.
func (r *Registry) Approve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.system[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if meta.Approved {
		return nil
	}
	meta.Approved = true
	if err := r.persistLocked(); err != nil {
		meta.Approved = false
		return err
	}
	if err := r.store.Put(id, json.RawMessage(`{}`)); err != nil {
		return fmt.Errorf("initializing fragment document: %w", err)
	}
	r.logger.Info("fragment approved", "fragment_id", id)
	return nil
}

// Delete removes the fragment's metadata and its stored document.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.system[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := r.store.Delete(id); err != nil {
		return fmt.Errorf("deleting fragment document: %w", err)
	}
	delete(r.system, id)
	if err := r.persistLocked(); err != nil {
		return err
	}
	r.logger.Info("fragment deleted", "fragment_id", id)
	return nil
}

// RecordActivity stamps the fragment's lastUpdate and records ip if it is new.
func (r *Registry) RecordActivity(id, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.system[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	meta.LastUpdate = &at
	if !meta.knowsIP(ip) {
		meta.KnownIPs = append(meta.KnownIPs, ip)
	}
	return r.persistLocked()
}
