package domain

import (
	"sort"
	"time"
)

// NoSubject is the summary rendered for events without one.
const NoSubject = "(No subject)"

// EventTime is either a timezone-aware instant (timed event) or a
// date-only value (all-day event). Date-only values never undergo
// timezone conversion.
type EventTime struct {
	Value  time.Time `json:"value"`
	AllDay bool      `json:"all_day"`
}

// Timed builds an EventTime for a zoned instant.
func Timed(t time.Time) EventTime {
	return EventTime{Value: t}
}

// Date builds an all-day EventTime; only the calendar date is kept.
func Date(t time.Time) EventTime {
	y, m, d := t.Date()
	return EventTime{Value: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), AllDay: true}
}

// SortKey normalizes an EventTime for ordering. Timed events compare by
// wall-clock time with the zone stripped; all-day events compare as
// midnight of their date. This keeps mixed timed/all-day lists stable.
func (t EventTime) SortKey() time.Time {
	y, m, d := t.Value.Date()
	if t.AllDay {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	hh, mm, ss := t.Value.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Value.Nanosecond(), time.UTC)
}

// Comparable converts an EventTime into a zoned instant usable for range
// comparison: all-day dates become start of local day in loc, timed
// values are returned as-is.
func (t EventTime) Comparable(loc *time.Location) time.Time {
	if t.AllDay {
		y, m, d := t.Value.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t.Value
}

// Event is a single calendar occurrence. Recurring series arrive already
// expanded into occurrences, each carrying the UID of its series.
type Event struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Location    *string   `json:"location,omitempty"`
	Description *string   `json:"description,omitempty"`
	Organizer   *string   `json:"organizer,omitempty"`
	IsAllDay    bool      `json:"is_all_day"`
}

// Overlaps reports whether the event intersects the half-open window
// [start, end): the event must end after the window opens and start
// before it closes. Zero-length events at the window edge are excluded.
func (e *Event) Overlaps(start, end time.Time, loc *time.Location) bool {
	return e.End.Comparable(loc).After(start) && e.Start.Comparable(loc).Before(end)
}

// SortEvents orders events by start sort key, stable for equal keys.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.SortKey().Before(events[j].Start.SortKey())
	})
}

// EventCreate carries the fields for a new event.
type EventCreate struct {
	Summary     string    `json:"summary"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Location    *string   `json:"location,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// EventPatch carries a partial update; nil fields are left untouched.
type EventPatch struct {
	Summary     *string    `json:"summary,omitempty"`
	Start       *EventTime `json:"start,omitempty"`
	End         *EventTime `json:"end,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *EventPatch) Empty() bool {
	return p.Summary == nil && p.Start == nil && p.End == nil &&
		p.Location == nil && p.Description == nil
}
