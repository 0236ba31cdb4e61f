// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"exchange_bridge/core/domain"
)

// =============================================================================
// Calendar Provider Port (Exchange Web Services)
// =============================================================================

// CalendarProviderPort defines the outbound port for the remote mailbox
// calendar. Implementations map transport failures into the coarse
// domain error categories.
type CalendarProviderPort interface {
	// Validate performs a cheap connectivity probe (one-day, one-item
	// calendar view) against the mailbox.
	Validate(ctx context.Context) error

	// FetchEvents returns upcoming occurrences from now through now+days,
	// recurring series expanded, sorted by start and truncated to maxEvents.
	FetchEvents(ctx context.Context, days, maxEvents int) ([]domain.Event, error)

	// Event mutations, keyed by iCalendar UID. No meeting invitations or
	// cancellations are sent to attendees.
	CreateEvent(ctx context.Context, req *domain.EventCreate) (string, error)
	UpdateEvent(ctx context.Context, uid string, patch *domain.EventPatch) error
	DeleteEvent(ctx context.Context, uid string) error
}

// =============================================================================
// Refresh State Repository
// =============================================================================

// RefreshRecord is one poll-loop run.
type RefreshRecord struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	EventCount int       `json:"event_count"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
}

// RefreshStateRepository persists poll-run history. Optional: the bridge
// runs fine without a database.
type RefreshStateRepository interface {
	Record(ctx context.Context, rec *RefreshRecord) error
	Latest(ctx context.Context) (*RefreshRecord, error)
	Prune(ctx context.Context, keep int) error
}

// =============================================================================
// Snapshot Cache
// =============================================================================

// SnapshotCachePort stores the latest fetch result so a restarted bridge
// can serve events before its first poll completes. Optional.
type SnapshotCachePort interface {
	Store(ctx context.Context, events []domain.Event, fetchedAt time.Time) error
	Load(ctx context.Context) ([]domain.Event, time.Time, error)
}
