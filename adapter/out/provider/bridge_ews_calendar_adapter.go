package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"exchange_bridge/adapter/out/provider/ews"
	"exchange_bridge/core/domain"
	"exchange_bridge/core/port/out"
	"exchange_bridge/pkg/logger"
)

// =============================================================================
// EWS Calendar Adapter
// =============================================================================

// EWSCalendarAdapter implements out.CalendarProviderPort against one
// Exchange mailbox.
type EWSCalendarAdapter struct {
	client      *ews.Client
	defaultZone *time.Location
	log         *logger.Logger
	cb          *gobreaker.CircuitBreaker
}

var _ out.CalendarProviderPort = (*EWSCalendarAdapter)(nil)

// NewEWSCalendarAdapter wires the SOAP client behind a circuit breaker.
// Only connection-category failures count toward tripping it; auth and
// not-found results pass through.
func NewEWSCalendarAdapter(client *ews.Client, defaultZone *time.Location, log *logger.Logger) *EWSCalendarAdapter {
	cbSettings := gobreaker.Settings{
		Name:        "ews-calendar",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsConnectionError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &EWSCalendarAdapter{
		client:      client,
		defaultZone: defaultZone,
		log:         log.WithField("component", "ews-adapter"),
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// execute runs fn through the circuit breaker, mapping an open breaker
// into the connection error category.
func (a *EWSCalendarAdapter) execute(fn func() (any, error)) (any, error) {
	result, err := a.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrConnection)
	}
	return result, err
}

// =============================================================================
// Port implementation
// =============================================================================

// Validate runs a one-day, one-item calendar view as a connectivity probe.
func (a *EWSCalendarAdapter) Validate(ctx context.Context) error {
	now := time.Now()
	_, err := a.execute(func() (any, error) {
		return a.client.FindCalendarItems(ctx, now, now.AddDate(0, 0, 1), 1)
	})
	return err
}

// FetchEvents returns upcoming occurrences sorted by start and truncated
// to maxEvents.
func (a *EWSCalendarAdapter) FetchEvents(ctx context.Context, days, maxEvents int) ([]domain.Event, error) {
	now := time.Now()

	result, err := a.execute(func() (any, error) {
		ids, err := a.client.FindCalendarItems(ctx, now, now.AddDate(0, 0, days), maxEvents)
		if err != nil {
			return nil, err
		}
		return a.client.GetItems(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	items := result.([]ews.CalendarItem)
	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		event, err := a.convertItem(item)
		if err != nil {
			a.log.WithError(err).Warn("skipping unparseable calendar item %s", item.ItemID.ID)
			continue
		}
		events = append(events, event)
	}

	domain.SortEvents(events)
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	return events, nil
}

// CreateEvent creates the item and returns its iCalendar UID, falling
// back to the store item ID when the server assigns no UID.
func (a *EWSCalendarAdapter) CreateEvent(ctx context.Context, req *domain.EventCreate) (string, error) {
	createReq := &ews.CreateRequest{
		Subject:  req.Summary,
		Start:    a.wireTime(req.Start),
		End:      a.wireTime(req.End),
		IsAllDay: req.Start.AllDay,
	}
	if createReq.Subject == "" {
		createReq.Subject = domain.NoSubject
	}
	if req.Description != nil {
		createReq.Body = *req.Description
	}
	if req.Location != nil {
		createReq.Location = *req.Location
	}

	result, err := a.execute(func() (any, error) {
		id, err := a.client.CreateItem(ctx, createReq)
		if err != nil {
			return nil, err
		}
		items, err := a.client.GetItems(ctx, []ews.ItemID{id})
		if err != nil || len(items) == 0 || items[0].UID == "" {
			// Item exists even if the UID read failed; report the store ID.
			return id.ID, nil
		}
		return items[0].UID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// UpdateEvent applies a partial update to the item matching uid.
func (a *EWSCalendarAdapter) UpdateEvent(ctx context.Context, uid string, patch *domain.EventPatch) error {
	if patch.Empty() {
		return nil
	}

	var changes []ews.FieldChange
	if patch.Summary != nil {
		subject := *patch.Summary
		if subject == "" {
			subject = domain.NoSubject
		}
		changes = append(changes, ews.FieldChange{
			FieldURI: "item:Subject",
			Element:  fmt.Sprintf("<t:Subject>%s</t:Subject>", ews.Escape(subject)),
		})
	}
	if patch.Description != nil {
		changes = append(changes, ews.FieldChange{
			FieldURI: "item:Body",
			Element:  fmt.Sprintf(`<t:Body BodyType="Text">%s</t:Body>`, ews.Escape(*patch.Description)),
		})
	}
	if patch.Start != nil {
		changes = append(changes, ews.FieldChange{
			FieldURI: "calendar:Start",
			Element:  fmt.Sprintf("<t:Start>%s</t:Start>", a.wireTime(*patch.Start).UTC().Format(time.RFC3339)),
		})
	}
	if patch.End != nil {
		changes = append(changes, ews.FieldChange{
			FieldURI: "calendar:End",
			Element:  fmt.Sprintf("<t:End>%s</t:End>", a.wireTime(*patch.End).UTC().Format(time.RFC3339)),
		})
	}
	if patch.Location != nil {
		changes = append(changes, ews.FieldChange{
			FieldURI: "calendar:Location",
			Element:  fmt.Sprintf("<t:Location>%s</t:Location>", ews.Escape(*patch.Location)),
		})
	}

	_, err := a.execute(func() (any, error) {
		id, err := a.lookupItemID(ctx, uid)
		if err != nil {
			return nil, err
		}
		return nil, a.client.UpdateItem(ctx, id, changes)
	})
	return err
}

// DeleteEvent removes the item matching uid without notifying attendees.
func (a *EWSCalendarAdapter) DeleteEvent(ctx context.Context, uid string) error {
	_, err := a.execute(func() (any, error) {
		id, err := a.lookupItemID(ctx, uid)
		if err != nil {
			return nil, err
		}
		return nil, a.client.DeleteItem(ctx, id)
	})
	return err
}

// lookupItemID resolves a UID to a store item ID. UIDs that were already
// store IDs (the create-time fallback) resolve via a direct fetch.
func (a *EWSCalendarAdapter) lookupItemID(ctx context.Context, uid string) (ews.ItemID, error) {
	id, err := a.client.FindItemIDByUID(ctx, uid)
	if err == nil {
		return id, nil
	}
	if !domain.IsNotFound(err) {
		return ews.ItemID{}, err
	}

	items, getErr := a.client.GetItems(ctx, []ews.ItemID{{ID: uid}})
	if getErr != nil {
		if domain.IsNotFound(getErr) {
			return ews.ItemID{}, domain.ErrNotFound
		}
		return ews.ItemID{}, getErr
	}
	if len(items) > 0 {
		return items[0].ItemID, nil
	}
	return ews.ItemID{}, domain.ErrNotFound
}

// wireTime converts an event time to its EWS wire value. All-day values
// are anchored at midnight in the default zone so Exchange files them on
// the intended calendar day; timed values pass through unchanged.
func (a *EWSCalendarAdapter) wireTime(et domain.EventTime) time.Time {
	if !et.AllDay {
		return et.Value
	}
	y, m, d := et.Value.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.defaultZone)
}

// =============================================================================
// Conversion
// =============================================================================

// convertItem maps a wire calendar item onto the domain event model.
// Timed events are expressed in the server-reported zone; all-day events
// are reduced to date-only values.
func (a *EWSCalendarAdapter) convertItem(item ews.CalendarItem) (domain.Event, error) {
	start, err := time.Parse(time.RFC3339, item.Start)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to parse start %q: %w", item.Start, err)
	}
	end, err := time.Parse(time.RFC3339, item.End)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to parse end %q: %w", item.End, err)
	}

	loc := ews.ResolveTimeZone(item.StartTimeZone.ID, a.defaultZone)

	event := domain.Event{
		UID:      item.UID,
		Summary:  item.Subject,
		IsAllDay: item.IsAllDayEvent,
	}
	if event.UID == "" {
		event.UID = item.ItemID.ID
	}
	if event.Summary == "" {
		event.Summary = domain.NoSubject
	}

	if item.IsAllDayEvent {
		event.Start = domain.Date(start.In(loc))
		event.End = domain.Date(end.In(loc))
	} else {
		event.Start = domain.Timed(start.In(loc))
		event.End = domain.Timed(end.In(loc))
	}

	if item.Location != "" {
		event.Location = &item.Location
	}
	if body := strings.TrimSpace(item.Body.Value); body != "" {
		event.Description = &body
	}
	if organizer := item.Organizer.Mailbox.EmailAddress; organizer != "" {
		event.Organizer = &organizer
	}
	return event, nil
}
