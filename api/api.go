// Package api exposes the fragment service over HTTP: the CRUD endpoints,
// the persistent-connection stream endpoint, and the key-gated admin surface.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/websocket"

	"github.com/mkhatri/fragmentd/fragment"
	"github.com/mkhatri/fragmentd/storage"
	"github.com/mkhatri/fragmentd/stream"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	registry *fragment.Registry
	store    storage.Store
	centre   *stream.Centre

	audit   *auditLogger
	logger  *slog.Logger
	limiter *ipRateLimiter

	// Process keys are held in memguard enclaves and opened only for the
	// duration of a comparison. A nil enclave disables that check.
	apiKey   *memguard.Enclave
	adminKey *memguard.Enclave

	locked      atomic.Bool
	upgrader    websocket.Upgrader
	sessionOpts []stream.SessionOption
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events and handlers.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithAPIKey enables the APIKey header check on the /api routes. An empty key
// leaves the check disabled.
func WithAPIKey(key string) Option {
	return func(a *API) {
		if key != "" {
			a.apiKey = memguard.NewEnclave([]byte(key))
		}
	}
}

// WithAdminKey gates the /admin routes behind a key query parameter. An empty
// key leaves the admin surface open.
func WithAdminKey(key string) Option {
	return func(a *API) {
		if key != "" {
			a.adminKey = memguard.NewEnclave([]byte(key))
		}
	}
}

// WithRateLimit overrides the per-IP request budget on the /api routes.
func WithRateLimit(max int) Option {
	return func(a *API) { a.limiter = newIPRateLimiter(max) }
}

// WithSessionOptions passes extra options to every stream session, mainly for
// tests tightening timeouts.
func WithSessionOptions(opts ...stream.SessionOption) Option {
	return func(a *API) { a.sessionOpts = opts }
}

// New creates a new API instance.
func New(registry *fragment.Registry, store storage.Store, centre *stream.Centre, opts ...Option) *API {
	a := &API{
		registry: registry,
		store:    store,
		centre:   centre,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The stream endpoint authenticates with the fragment secret, not
			// cookies, so cross-origin upgrades are acceptable.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.limiter == nil {
		a.limiter = newIPRateLimiter(defaultRateLimit)
	}
	a.audit = newAuditLogger(a.logger)
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.systemLock)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Route("/api", func(r chi.Router) {
		r.Use(a.rateLimit)
		r.Get("/streamFragment", a.StreamFragment)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAPIKey)
			r.Use(a.jsonOnly)
			r.Post("/requestFragment", a.RequestFragment)
			r.Post("/readFragment", a.ReadFragment)
			r.Post("/writeFragment", a.WriteFragment)
			r.Post("/deleteFragment", a.DeleteFragment)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.requireAdminKey)
		r.Get("/fragments", a.AdminListFragments)
		r.Get("/approveRequest", a.AdminApproveRequest)
		r.Get("/deleteFragment", a.AdminDeleteFragment)
		r.Get("/getDataStore", a.AdminDataStore)
		r.Get("/reloadMetadata", a.AdminReloadMetadata)
		r.Get("/toggleLock", a.AdminToggleLock)
		r.Get("/streams", a.AdminStreams)
		r.Get("/closeStream", a.AdminCloseStream)
		r.Get("/shutdownStreams", a.AdminShutdownStreams)
	})

	return r
}

// Locked reports whether the system lock is engaged.
func (a *API) Locked() bool { return a.locked.Load() }

// keyMatches opens the enclave and compares in constant time. A nil enclave
// means the check is disabled and anything matches.
func keyMatches(enclave *memguard.Enclave, candidate string) bool {
	if enclave == nil {
		return true
	}
	buf, err := enclave.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()
	return buf.EqualTo([]byte(candidate))
}
