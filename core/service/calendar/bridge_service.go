package calendar

import (
	"context"
	"time"

	"exchange_bridge/core/domain"
	"exchange_bridge/core/port/in"
	"exchange_bridge/core/port/out"
	"exchange_bridge/pkg/logger"
)

// Service answers reads from the coordinator snapshot and forwards
// writes to the provider, nudging a refresh afterwards.
type Service struct {
	coordinator *Coordinator
	provider    out.CalendarProviderPort
	log         *logger.Logger
	defaultZone *time.Location
	readOnly    bool
}

var _ in.CalendarService = (*Service)(nil)

func NewService(coordinator *Coordinator, provider out.CalendarProviderPort, defaultZone *time.Location, readOnly bool, log *logger.Logger) *Service {
	return &Service{
		coordinator: coordinator,
		provider:    provider,
		log:         log.WithField("component", "calendar-service"),
		defaultZone: defaultZone,
		readOnly:    readOnly,
	}
}

// Events returns snapshot events overlapping [start, end). No provider
// request is made.
func (s *Service) Events(ctx context.Context, start, end time.Time) ([]domain.Event, error) {
	snapshot, _ := s.coordinator.Snapshot()

	events := make([]domain.Event, 0, len(snapshot))
	for _, ev := range snapshot {
		if ev.Overlaps(start, end, s.defaultZone) {
			events = append(events, ev)
		}
	}
	return events, nil
}

// NextEvent returns the first snapshot event that has not ended yet, or
// nil when none remains.
func (s *Service) NextEvent(ctx context.Context) (*domain.Event, error) {
	snapshot, _ := s.coordinator.Snapshot()
	now := time.Now()

	for i := range snapshot {
		if !snapshot[i].End.Comparable(s.defaultZone).Before(now) {
			ev := snapshot[i]
			return &ev, nil
		}
	}
	return nil, nil
}

// CreateEvent creates the event on the provider and returns its UID.
func (s *Service) CreateEvent(ctx context.Context, req *domain.EventCreate) (string, error) {
	if s.readOnly {
		return "", domain.ErrReadOnly
	}

	uid, err := s.provider.CreateEvent(ctx, req)
	if err != nil {
		return "", err
	}
	s.log.Info("created event %s", uid)
	s.coordinator.RequestRefresh()
	return uid, nil
}

// UpdateEvent applies a partial update to the event matching uid.
func (s *Service) UpdateEvent(ctx context.Context, uid string, patch *domain.EventPatch) error {
	if s.readOnly {
		return domain.ErrReadOnly
	}

	if err := s.provider.UpdateEvent(ctx, uid, patch); err != nil {
		return err
	}
	s.log.Info("updated event %s", uid)
	s.coordinator.RequestRefresh()
	return nil
}

// DeleteEvent removes the event matching uid.
func (s *Service) DeleteEvent(ctx context.Context, uid string) error {
	if s.readOnly {
		return domain.ErrReadOnly
	}

	if err := s.provider.DeleteEvent(ctx, uid); err != nil {
		return err
	}
	s.log.Info("deleted event %s", uid)
	s.coordinator.RequestRefresh()
	return nil
}

// RequestRefresh nudges the coordinator.
func (s *Service) RequestRefresh() {
	s.coordinator.RequestRefresh()
}

// Status reports coordinator health.
func (s *Service) Status() *in.CalendarStatus {
	events, lastSuccess := s.coordinator.Snapshot()
	lastErr, lastAttempt := s.coordinator.LastError()

	status := &in.CalendarStatus{
		Healthy:    s.coordinator.Healthy(),
		ReadOnly:   s.readOnly,
		EventCount: len(events),
	}
	if !lastSuccess.IsZero() {
		status.LastRefresh = &lastSuccess
	}
	if !lastAttempt.IsZero() {
		status.LastAttempt = &lastAttempt
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
		status.ErrorKind = ErrorKind(lastErr)
	}
	return status
}
