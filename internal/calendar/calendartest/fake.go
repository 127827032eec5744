// Package calendartest provides an in-memory calendar.Gateway for tests.
package calendartest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
)

// Fake is a calendar.Gateway backed by a slice of events. Created events
// are added to the slice so later listings and conflict checks see them.
type Fake struct {
	mu sync.Mutex

	Events       []calendar.Event
	Created      []calendar.NewEvent
	Unconfigured bool
	HTMLLink     string

	ListErr     error
	CreateErr   error
	ConflictErr error

	ListCalls int
}

func New() *Fake {
	return &Fake{}
}

// Busy adds a confirmed event covering [start, end).
func (f *Fake) Busy(start, end time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, calendar.Event{
		ID:     fmt.Sprintf("busy-%d", len(f.Events)+1),
		Status: "confirmed",
		Start:  calendar.EventTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:    calendar.EventTime{DateTime: end.UTC().Format(time.RFC3339)},
	})
}

func (f *Fake) Add(ev calendar.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, ev)
}

func (f *Fake) Configured() bool {
	return !f.Unconfigured
}

func (f *Fake) ListEvents(_ context.Context, w calendar.Window) ([]calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []calendar.Event
	for _, ev := range f.Events {
		start, ok := ev.Start.Instant()
		if !ok {
			out = append(out, ev)
			continue
		}
		end, ok := ev.End.Instant()
		if !ok || (start.Before(w.Max) && end.After(w.Min)) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *Fake) HasConflict(ctx context.Context, start, end time.Time) (bool, error) {
	if f.ConflictErr != nil {
		return false, f.ConflictErr
	}
	return calendar.Conflicts(ctx, f, start, end)
}

func (f *Fake) CreateEvent(_ context.Context, ne calendar.NewEvent) (*calendar.Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	loc, err := caltime.ResolveZone(ne.TimeZone)
	if err != nil {
		return nil, err
	}
	start, err := time.ParseInLocation("2006-01-02T15:04:05", ne.Start, loc)
	if err != nil {
		return nil, err
	}
	end, err := time.ParseInLocation("2006-01-02T15:04:05", ne.End, loc)
	if err != nil {
		return nil, err
	}

	f.Created = append(f.Created, ne)
	id := fmt.Sprintf("created-%d", len(f.Created))
	f.Events = append(f.Events, calendar.Event{
		ID:      id,
		Summary: ne.Summary,
		Status:  "confirmed",
		Start:   calendar.EventTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:     calendar.EventTime{DateTime: end.UTC().Format(time.RFC3339)},
	})
	return &calendar.Created{ID: id, HTMLLink: f.HTMLLink}, nil
}

// CreatedCount is safe to call while handlers run concurrently.
func (f *Fake) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}
