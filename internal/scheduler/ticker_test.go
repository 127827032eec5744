package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/citabot/internal/booking"
	"github.com/christopherklint97/citabot/internal/calendar"
	"github.com/christopherklint97/citabot/internal/calendar/calendartest"
	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/christopherklint97/citabot/internal/store"
)

func TestNextAlignedTick(t *testing.T) {
	base := time.Date(2024, 5, 14, 10, 7, 30, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 5, 14, 10, 15, 0, 0, time.UTC), nextAlignedTick(base, 15*time.Minute))
	assert.Equal(t, time.Date(2024, 5, 14, 11, 0, 0, 0, time.UTC), nextAlignedTick(base, time.Hour))
	assert.Equal(t, time.Date(2024, 5, 14, 11, 0, 0, 0, time.UTC), nextAlignedTick(base, 0))
	assert.Equal(t, time.Date(2024, 5, 14, 11, 0, 0, 0, time.UTC),
		nextAlignedTick(time.Date(2024, 5, 14, 10, 45, 0, 0, time.UTC), 15*time.Minute))
}

func openDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "citabot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func failedBooking(name string, start time.Time) store.Booking {
	return store.Booking{
		UserID:    name,
		Name:      name,
		Email:     name + "@example.com",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		TimeZone:  "America/Mexico_City",
		Status:    store.StatusFailed,
		Error:     "calendar unavailable",
	}
}

func TestRetryFailed(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	now := time.Date(2024, 5, 14, 16, 0, 0, 0, time.UTC) // 10:00 in Mexico City

	ok := time.Date(2024, 5, 15, 16, 0, 0, 0, time.UTC)
	taken := time.Date(2024, 5, 15, 17, 0, 0, 0, time.UTC)
	past := time.Date(2024, 5, 14, 15, 0, 0, 0, time.UTC)
	for _, b := range []store.Booking{
		failedBooking("ana", ok),
		failedBooking("luis", taken),
		failedBooking("eva", past),
	} {
		require.NoError(t, db.RecordBooking(ctx, b))
	}

	gw := calendartest.New()
	gw.Busy(taken, taken.Add(time.Hour))
	r := New(db, gw, booking.DefaultSettings(), caltime.ClockFunc(func() time.Time { return now }), nil)

	res, err := r.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Booked: 1, Skipped: 2}, res)

	require.Len(t, gw.Created, 1)
	assert.Equal(t, "2024-05-15T10:00:00", gw.Created[0].Start)
	assert.Equal(t, "2024-05-15T10:30:00", gw.Created[0].End)
	assert.Equal(t, "Citabot - Llamada de orientación con ana", gw.Created[0].Summary)

	remaining, err := db.FailedBookings(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, b := range remaining {
		if b.Name == "luis" {
			assert.Equal(t, "slot is no longer free", b.Error)
		}
	}

	booked, err := db.BookingsBetween(ctx, ok, ok.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, store.StatusBooked, booked[0].Status)
	assert.Equal(t, "created-1", booked[0].CalendarID)
}

func TestRetryFailedKeepsFailures(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	now := time.Date(2024, 5, 14, 16, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordBooking(ctx, failedBooking("ana", now.Add(24*time.Hour))))

	gw := calendartest.New()
	gw.CreateErr = errors.New("still down")
	r := New(db, gw, booking.DefaultSettings(), caltime.ClockFunc(func() time.Time { return now }), nil)

	res, err := r.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	remaining, err := db.FailedBookings(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "still down", remaining[0].Error)
}

func TestRetryFailedNotConfigured(t *testing.T) {
	gw := calendartest.New()
	gw.Unconfigured = true
	r := New(openDB(t), gw, booking.DefaultSettings(), nil, nil)

	_, err := r.RetryFailed(context.Background())
	assert.True(t, errors.Is(err, calendar.ErrNotConfigured))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(openDB(t), calendartest.New(), booking.DefaultSettings(), nil, nil)
	assert.NoError(t, r.Run(ctx, time.Minute))
}
