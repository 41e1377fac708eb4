package store

import (
	"context"
	"time"

	"github.com/Annad25/gpu-monitor/internal/domain"
)

// IncidentStore is the port to the shared document store holding active
// incidents and the resolved-incident history log. All writes are atomic
// per key, so multiple monitor instances can share one store without
// coordination; concurrent witness updates merge with set-union semantics.
type IncidentStore interface {
	// Ping reports whether the store is reachable right now.
	Ping(ctx context.Context) error
	// Find returns nil, nil when the peer has no active incident.
	Find(ctx context.Context, ip string) (*domain.Incident, error)
	// MarkDown upserts the active incident for a peer: status and display
	// name are always refreshed, down_since and the null alert timestamp
	// are written only on first creation, and the witness joins the
	// accumulated set.
	MarkDown(ctx context.Context, ip, name string, observedAt time.Time, witness string) error
	// SetLastAlert records that a crash alert went out at the given time.
	SetLastAlert(ctx context.Context, ip string, at time.Time) error
	// Delete removes the active incident; deleting a missing key is not
	// an error.
	Delete(ctx context.Context, ip string) error
	// Archive appends a write-once record to the history log.
	Archive(ctx context.Context, rec *domain.HistoryRecord) error
}
