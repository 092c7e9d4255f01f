package api

import (
	"net/http"

	"github.com/mkhatri/fragmentd/stream"
)

// StreamFragment handles GET /api/streamFragment: upgrades the connection and
// hands it to a stream session, which runs the authentication handshake and
// serve loop on its own goroutine.
func (a *API) StreamFragment(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		a.logger.Warn("websocket upgrade failed", "ip", clientIP(r), "error", err)
		return
	}

	opts := []stream.SessionOption{stream.WithSessionLogger(a.logger)}
	if a.apiKey != nil {
		opts = append(opts, stream.WithAPIKeyCheck(func(candidate string) bool {
			return keyMatches(a.apiKey, candidate)
		}))
	}
	opts = append(opts, a.sessionOpts...)

	a.audit.log(AuditStreamOpened, r)
	session := stream.NewSession(a.centre, a.registry, a.store, stream.NewConn(ws), clientIP(r), opts...)
	go session.Run()
}
