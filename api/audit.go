package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditFragmentRequested AuditEvent = "fragment_requested"
	AuditFragmentApproved  AuditEvent = "fragment_approved"
	AuditFragmentDeleted   AuditEvent = "fragment_deleted"
	AuditFragmentWrite     AuditEvent = "fragment_write"
	AuditAccessDenied      AuditEvent = "access_denied"
	AuditAdminUnauthorised AuditEvent = "admin_unauthorised"
	AuditRateLimited       AuditEvent = "rate_limited"
	AuditLockToggled       AuditEvent = "lock_toggled"
	AuditMetadataReloaded  AuditEvent = "metadata_reloaded"
	AuditStreamOpened      AuditEvent = "stream_opened"
	AuditStreamClosed      AuditEvent = "stream_closed"
	AuditStreamShutdown    AuditEvent = "stream_shutdown"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{logger: logger.With("component", "audit")}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("ip", clientIP(r)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
}

// logFragment is a convenience for events tied to one fragment.
func (al *auditLogger) logFragment(event AuditEvent, r *http.Request, fragmentID string, extra ...slog.Attr) {
	attrs := []slog.Attr{slog.String("fragment_id", fragmentID)}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
