// Package calendar defines the gateway the scheduler uses to read busy
// times from and write appointments to an external calendar, plus an
// iCalendar backed implementation.
package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ErrNotConfigured is returned by gateways that lack credentials or a source.
var ErrNotConfigured = errors.New("calendar not configured")

const StatusCancelled = "cancelled"

// EventTime is one end of an event. Timed events carry DateTime (RFC 3339),
// all-day events carry Date (YYYY-MM-DD).
type EventTime struct {
	DateTime string
	Date     string
}

// Instant resolves the boundary. All-day dates count from midnight UTC.
func (t EventTime) Instant() (time.Time, bool) {
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return v, true
	}
	if t.Date != "" {
		v, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return time.Time{}, false
		}
		return v, true
	}
	return time.Time{}, false
}

// Event is an event as read from the provider.
type Event struct {
	ID      string
	Summary string
	Status  string
	Start   EventTime
	End     EventTime
}

func (e Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// Window is the half-open listing range [Min, Max).
type Window struct {
	Min time.Time
	Max time.Time
}

type Attendee struct {
	Email       string
	DisplayName string
}

// NewEvent describes an appointment to create. Start and End are local wall
// clock timestamps ("2024-05-15T09:30:00") interpreted in TimeZone.
type NewEvent struct {
	Summary     string
	Description string
	Start       string
	End         string
	TimeZone    string
	Attendees   []Attendee
}

// Created is what the provider reports back after a successful write.
type Created struct {
	ID       string
	HTMLLink string
}

// Gateway is the external calendar as seen by the scheduler.
type Gateway interface {
	Configured() bool
	// ListEvents returns single (expanded) events overlapping the window,
	// ordered by start.
	ListEvents(ctx context.Context, w Window) ([]Event, error)
	// CreateEvent writes the appointment and invites its attendees.
	CreateEvent(ctx context.Context, ev NewEvent) (*Created, error)
	// HasConflict reports whether any non-cancelled event overlaps
	// [start, end).
	HasConflict(ctx context.Context, start, end time.Time) (bool, error)
}

// Lister is the read half of a Gateway.
type Lister interface {
	ListEvents(ctx context.Context, w Window) ([]Event, error)
}

// Conflicts implements HasConflict on top of a listing.
func Conflicts(ctx context.Context, l Lister, start, end time.Time) (bool, error) {
	events, err := l.ListEvents(ctx, Window{Min: start, Max: end})
	if err != nil {
		return false, errors.Wrap(err, "listing events for conflict check")
	}
	for _, iv := range BusyIntervals(events) {
		if iv.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

// Interval is a busy range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the interval. Touching
// boundaries do not overlap.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && end.After(iv.Start)
}

// BusyIntervals turns events into busy ranges sorted by start. Cancelled
// events and events with an unreadable boundary are dropped.
func BusyIntervals(events []Event) []Interval {
	out := make([]Interval, 0, len(events))
	for _, e := range events {
		if e.Cancelled() {
			continue
		}
		start, ok := e.Start.Instant()
		if !ok {
			continue
		}
		end, ok := e.End.Instant()
		if !ok {
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
