package in

import (
	"context"
	"time"

	"exchange_bridge/core/domain"
)

// CalendarService is the inbound port for the calendar surface: reads are
// answered from the polled snapshot, writes go straight to the provider.
type CalendarService interface {
	// Snapshot reads
	Events(ctx context.Context, start, end time.Time) ([]domain.Event, error)
	NextEvent(ctx context.Context) (*domain.Event, error)

	// Provider writes (rejected when the bridge is read-only)
	CreateEvent(ctx context.Context, req *domain.EventCreate) (string, error)
	UpdateEvent(ctx context.Context, uid string, patch *domain.EventPatch) error
	DeleteEvent(ctx context.Context, uid string) error

	// Coordinator controls
	RequestRefresh()
	Status() *CalendarStatus
}

// CalendarStatus reports coordinator health.
type CalendarStatus struct {
	Healthy     bool       `json:"healthy"`
	ReadOnly    bool       `json:"read_only"`
	EventCount  int        `json:"event_count"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
}
