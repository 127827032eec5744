// Package availability computes bookable appointment slots from business
// hours, a minimum notice and the busy times of an external calendar.
package availability

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/caltime"
)

// Policy holds the business rules slots must satisfy.
type Policy struct {
	StartHour     int
	EndHour       int
	SlotMinutes   int
	MinimumNotice time.Duration
	// LookaheadDays bounds how many calendar days a search walks.
	LookaheadDays int
	MaxSlots      int
}

// DefaultPolicy is a 09:00-15:00 weekday schedule with 30 minute slots and
// one hour of notice.
func DefaultPolicy() Policy {
	return Policy{
		StartHour:     9,
		EndHour:       15,
		SlotMinutes:   30,
		MinimumNotice: time.Hour,
		LookaheadDays: 14,
		MaxSlots:      5,
	}
}

// Slot is a free appointment window.
type Slot struct {
	Start     time.Time
	End       time.Time
	Date      caltime.DateParts
	StartTime caltime.TimeParts
	EndTime   caltime.TimeParts
}

// Query parameterizes FindSlots. Zero MaxSlots, SlotMinutes and Days fall
// back to the policy.
type Query struct {
	Start       time.Time
	MaxSlots    int
	SlotMinutes int
	// Days caps the number of calendar days walked.
	Days     int
	Location *time.Location
}

type Engine struct {
	gateway calendar.Gateway
	policy  Policy
	clock   caltime.Clock
	logger  *zap.Logger
}

func NewEngine(gateway calendar.Gateway, policy Policy, clock caltime.Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = caltime.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{gateway: gateway, policy: policy, clock: clock, logger: logger}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// EarliestStart is the first instant a new appointment may begin.
func (e *Engine) EarliestStart() time.Time {
	return e.clock.Now().Add(e.policy.MinimumNotice)
}

// FindSlots walks forward day by day from max(q.Start, now+notice) and
// collects free slots aligned to the slot length from each day's opening
// hour. Weekends are skipped and the walk stops after LookaheadDays days or
// MaxSlots slots. On a gateway failure the slots found so far are returned
// with the error.
func (e *Engine) FindSlots(ctx context.Context, q Query) ([]Slot, error) {
	if e.gateway == nil || !e.gateway.Configured() {
		return nil, nil
	}
	maxSlots := q.MaxSlots
	if maxSlots <= 0 {
		maxSlots = e.policy.MaxSlots
	}
	slotMinutes := q.SlotMinutes
	if slotMinutes <= 0 {
		slotMinutes = e.policy.SlotMinutes
	}
	days := q.Days
	if days <= 0 || days > e.policy.LookaheadDays {
		days = e.policy.LookaheadDays
	}
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	step := time.Duration(slotMinutes) * time.Minute
	opening := caltime.TimeParts{Hour: e.policy.StartHour}
	closing := caltime.TimeParts{Hour: e.policy.EndHour}

	effective := q.Start
	if earliest := e.EarliestStart(); earliest.After(effective) {
		effective = earliest
	}

	var slots []Slot
	cursor := effective
	for day := 0; day < days && len(slots) < maxSlots; day++ {
		date := caltime.DateOf(cursor, loc)
		next := caltime.InLocation(date.AddDays(1), opening, loc)
		if next.Before(effective) {
			next = effective
		}

		midday := caltime.InLocation(date, caltime.TimeParts{Hour: 12}, loc)
		if caltime.IsWeekend(midday, loc) {
			cursor = next
			continue
		}

		dayStart := caltime.InLocation(date, opening, loc)
		dayEnd := caltime.InLocation(date, closing, loc)
		candidate := dayStart
		if effective.After(candidate) {
			candidate = alignUp(effective, dayStart, step)
		}
		if !candidate.Add(step).After(dayEnd) {
			events, err := e.gateway.ListEvents(ctx, calendar.Window{Min: dayStart, Max: dayEnd})
			if err != nil {
				e.logger.Error("listing calendar events", zap.Stringer("date", date), zap.Error(err))
				return slots, errors.Wrapf(err, "listing events for %s", date)
			}
			busy := calendar.BusyIntervals(events)

			for start := candidate; !start.Add(step).After(dayEnd) && len(slots) < maxSlots; start = start.Add(step) {
				end := start.Add(step)
				if overlapsAny(busy, start, end) {
					continue
				}
				slots = append(slots, Slot{
					Start:     start,
					End:       end,
					Date:      date,
					StartTime: caltime.TimeOf(start, loc),
					EndTime:   caltime.TimeOf(end, loc),
				})
			}
		}

		cursor = next
	}

	e.logger.Debug("slots computed", zap.Time("from", effective), zap.Int("count", len(slots)))
	return slots, nil
}

// alignUp rounds t up to the next multiple of step counted from origin.
func alignUp(t, origin time.Time, step time.Duration) time.Time {
	elapsed := t.Sub(origin)
	n := elapsed / step
	if elapsed%step != 0 {
		n++
	}
	return origin.Add(n * step)
}

func overlapsAny(busy []calendar.Interval, start, end time.Time) bool {
	for _, iv := range busy {
		if !iv.Start.Before(end) {
			// sorted by start, nothing later can overlap
			return false
		}
		if iv.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// SlotsOnDate lists free slots on one calendar date.
func (e *Engine) SlotsOnDate(ctx context.Context, date caltime.DateParts, loc *time.Location, maxSlots int) ([]Slot, error) {
	start := caltime.InLocation(date, caltime.TimeParts{Hour: e.policy.StartHour}, loc)
	slots, err := e.FindSlots(ctx, Query{Start: start, MaxSlots: maxSlots, Days: 1, Location: loc})
	return onDate(slots, date), err
}

// Earliest returns the first free slot, on date when one is given or from
// now otherwise. It returns nil when nothing is free.
func (e *Engine) Earliest(ctx context.Context, date *caltime.DateParts, loc *time.Location) (*Slot, error) {
	var (
		slots []Slot
		err   error
	)
	if date != nil {
		slots, err = e.SlotsOnDate(ctx, *date, loc, 1)
	} else {
		slots, err = e.FindSlots(ctx, Query{Start: e.clock.Now(), MaxSlots: 1, Location: loc})
	}
	if len(slots) == 0 {
		return nil, err
	}
	return &slots[0], err
}

// More continues a previous listing from next, typically the end of the
// last slot offered.
func (e *Engine) More(ctx context.Context, next time.Time, loc *time.Location, slotMinutes, maxSlots int) ([]Slot, error) {
	return e.FindSlots(ctx, Query{Start: next, MaxSlots: maxSlots, SlotMinutes: slotMinutes, Location: loc})
}

func onDate(slots []Slot, date caltime.DateParts) []Slot {
	out := slots[:0:0]
	for _, s := range slots {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out
}
