package availability

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/calendar/calendartest"
	"github.com/christopherklint97/citabot/internal/caltime"
)

var mexico = mustZone("America/Mexico_City")

func mustZone(name string) *time.Location {
	loc, err := caltime.ResolveZone(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func local(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, mexico)
}

func fixedClock(t time.Time) caltime.Clock {
	return caltime.ClockFunc(func() time.Time { return t })
}

func newEngine(gw calendar.Gateway, now time.Time) *Engine {
	return NewEngine(gw, DefaultPolicy(), fixedClock(now), nil)
}

func starts(slots []Slot) []time.Time {
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func assertStarts(t *testing.T, want []time.Time, slots []Slot) {
	t.Helper()
	got := starts(slots)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "slot %d: want %s got %s", i, want[i], got[i])
	}
}

// Tuesday 2024-05-14 10:00 in Mexico City.
var tuesdayMorning = local(2024, 5, 14, 10, 0)

func TestFindSlotsRespectsNotice(t *testing.T) {
	e := newEngine(calendartest.New(), tuesdayMorning)

	slots, err := e.FindSlots(context.Background(), Query{Start: tuesdayMorning, Location: mexico})
	require.NoError(t, err)
	assertStarts(t, []time.Time{
		local(2024, 5, 14, 11, 0),
		local(2024, 5, 14, 11, 30),
		local(2024, 5, 14, 12, 0),
		local(2024, 5, 14, 12, 30),
		local(2024, 5, 14, 13, 0),
	}, slots)

	first := slots[0]
	assert.Equal(t, caltime.DateParts{Year: 2024, Month: 5, Day: 14}, first.Date)
	assert.Equal(t, caltime.TimeParts{Hour: 11}, first.StartTime)
	assert.Equal(t, caltime.TimeParts{Hour: 11, Minute: 30}, first.EndTime)
}

func TestFindSlotsSkipsBusyIntervals(t *testing.T) {
	gw := calendartest.New()
	gw.Busy(local(2024, 5, 14, 11, 0), local(2024, 5, 14, 12, 0))
	gw.Add(calendar.Event{
		Status: calendar.StatusCancelled,
		Start:  calendar.EventTime{DateTime: local(2024, 5, 14, 12, 0).Format(time.RFC3339)},
		End:    calendar.EventTime{DateTime: local(2024, 5, 14, 13, 0).Format(time.RFC3339)},
	})
	e := newEngine(gw, tuesdayMorning)

	slots, err := e.FindSlots(context.Background(), Query{Start: tuesdayMorning, Location: mexico})
	require.NoError(t, err)
	assertStarts(t, []time.Time{
		local(2024, 5, 14, 12, 0),
		local(2024, 5, 14, 12, 30),
		local(2024, 5, 14, 13, 0),
		local(2024, 5, 14, 13, 30),
		local(2024, 5, 14, 14, 0),
	}, slots)
}

func TestFindSlotsAlignsAndFillsToClosing(t *testing.T) {
	now := local(2024, 5, 14, 13, 10)
	e := newEngine(calendartest.New(), now)

	slots, err := e.FindSlots(context.Background(), Query{Start: now, Location: mexico})
	require.NoError(t, err)
	assertStarts(t, []time.Time{
		local(2024, 5, 14, 14, 30),
		local(2024, 5, 15, 9, 0),
		local(2024, 5, 15, 9, 30),
		local(2024, 5, 15, 10, 0),
		local(2024, 5, 15, 10, 30),
	}, slots)
	assert.True(t, local(2024, 5, 14, 15, 0).Equal(slots[0].End))
}

func TestFindSlotsCustomLength(t *testing.T) {
	e := newEngine(calendartest.New(), tuesdayMorning)

	slots, err := e.FindSlots(context.Background(), Query{Start: tuesdayMorning, SlotMinutes: 45, Location: mexico})
	require.NoError(t, err)
	assertStarts(t, []time.Time{
		local(2024, 5, 14, 11, 15),
		local(2024, 5, 14, 12, 0),
		local(2024, 5, 14, 12, 45),
		local(2024, 5, 14, 13, 30),
		local(2024, 5, 14, 14, 15),
	}, slots)
}

func TestFindSlotsSkipsWeekend(t *testing.T) {
	now := local(2024, 5, 17, 14, 30) // Friday afternoon
	e := newEngine(calendartest.New(), now)

	slots, err := e.FindSlots(context.Background(), Query{Start: now, MaxSlots: 2, Location: mexico})
	require.NoError(t, err)
	assertStarts(t, []time.Time{
		local(2024, 5, 20, 9, 0),
		local(2024, 5, 20, 9, 30),
	}, slots)
}

func TestFindSlotsLookaheadExhausted(t *testing.T) {
	gw := calendartest.New()
	gw.Add(calendar.Event{
		Summary: "vacaciones",
		Start:   calendar.EventTime{Date: "2024-05-01"},
		End:     calendar.EventTime{Date: "2024-07-01"},
	})
	e := newEngine(gw, tuesdayMorning)

	slots, err := e.FindSlots(context.Background(), Query{Start: tuesdayMorning, Location: mexico})
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.LessOrEqual(t, gw.ListCalls, DefaultPolicy().LookaheadDays)
}

func TestFindSlotsGatewayError(t *testing.T) {
	gw := calendartest.New()
	gw.ListErr = errors.New("boom")
	e := newEngine(gw, tuesdayMorning)

	slots, err := e.FindSlots(context.Background(), Query{Start: tuesdayMorning, Location: mexico})
	assert.Error(t, err)
	assert.Empty(t, slots)
}

func TestFindSlotsUnconfigured(t *testing.T) {
	gw := calendartest.New()
	gw.Unconfigured = true
	e := newEngine(gw, tuesdayMorning)

	slots, err := e.FindSlots(context.Background(), Query{Start: tuesdayMorning, Location: mexico})
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Zero(t, gw.ListCalls)
}

func TestSlotsOnDate(t *testing.T) {
	gw := calendartest.New()
	gw.Busy(local(2024, 5, 16, 9, 0), local(2024, 5, 16, 10, 0))
	e := newEngine(gw, tuesdayMorning)
	ctx := context.Background()

	slots, err := e.SlotsOnDate(ctx, caltime.DateParts{Year: 2024, Month: 5, Day: 16}, mexico, 20)
	require.NoError(t, err)
	require.Len(t, slots, 10)
	assert.True(t, local(2024, 5, 16, 10, 0).Equal(slots[0].Start))
	assert.True(t, local(2024, 5, 16, 15, 0).Equal(slots[9].End))
	for _, s := range slots {
		assert.Equal(t, caltime.DateParts{Year: 2024, Month: 5, Day: 16}, s.Date)
	}

	slots, err = e.SlotsOnDate(ctx, caltime.DateParts{Year: 2024, Month: 5, Day: 18}, mexico, 5)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// already gone
	slots, err = e.SlotsOnDate(ctx, caltime.DateParts{Year: 2024, Month: 5, Day: 13}, mexico, 5)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEarliest(t *testing.T) {
	e := newEngine(calendartest.New(), tuesdayMorning)
	ctx := context.Background()

	slot, err := e.Earliest(ctx, nil, mexico)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.True(t, local(2024, 5, 14, 11, 0).Equal(slot.Start))

	date := caltime.DateParts{Year: 2024, Month: 5, Day: 15}
	slot, err = e.Earliest(ctx, &date, mexico)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.True(t, local(2024, 5, 15, 9, 0).Equal(slot.Start))

	sunday := caltime.DateParts{Year: 2024, Month: 5, Day: 19}
	slot, err = e.Earliest(ctx, &sunday, mexico)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestMoreNeverRepeats(t *testing.T) {
	e := newEngine(calendartest.New(), tuesdayMorning)
	ctx := context.Background()

	first, err := e.FindSlots(ctx, Query{Start: tuesdayMorning, Location: mexico})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	more, err := e.More(ctx, first[len(first)-1].End, mexico, 30, 5)
	require.NoError(t, err)
	assertStarts(t, []time.Time{
		local(2024, 5, 14, 13, 30),
		local(2024, 5, 14, 14, 0),
		local(2024, 5, 14, 14, 30),
		local(2024, 5, 15, 9, 0),
		local(2024, 5, 15, 9, 30),
	}, more)
	for _, m := range more {
		for _, f := range first {
			assert.False(t, m.Start.Before(f.End) && m.End.After(f.Start))
		}
	}
}

func TestSlotInvariants(t *testing.T) {
	gw := calendartest.New()
	gw.Busy(local(2024, 5, 14, 12, 15), local(2024, 5, 14, 13, 5))
	gw.Busy(local(2024, 5, 15, 9, 0), local(2024, 5, 15, 11, 0))
	gw.Busy(local(2024, 5, 16, 14, 45), local(2024, 5, 16, 18, 0))
	busy := calendar.BusyIntervals(gw.Events)
	policy := DefaultPolicy()

	for offset := 0; offset < 7*24*60; offset += 97 {
		now := local(2024, 5, 13, 0, 0).Add(time.Duration(offset) * time.Minute)
		e := newEngine(gw, now)
		slots, err := e.FindSlots(context.Background(), Query{Start: now, MaxSlots: 8, Location: mexico})
		require.NoError(t, err)

		for i, s := range slots {
			assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
			assert.False(t, s.Start.Before(now.Add(policy.MinimumNotice)))
			assert.False(t, caltime.IsWeekend(s.Start, mexico))
			assert.GreaterOrEqual(t, s.StartTime.Hour, policy.StartHour)
			assert.LessOrEqual(t, s.EndTime.Minutes(), policy.EndHour*60)
			assert.Equal(t, s.Date, caltime.DateOf(s.End, mexico))
			for _, iv := range busy {
				assert.False(t, iv.Overlaps(s.Start, s.End), "slot %s overlaps busy %s", s.Start, iv.Start)
			}
			if i > 0 {
				assert.False(t, s.Start.Before(slots[i-1].End))
			}
		}
	}
}
