package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christopherklint97/citabot/internal/session"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "citabot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestState(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetState("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, db.SetState("k", "one"))
	require.NoError(t, db.SetState("k", "two"))
	v, err = db.GetState("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)

	require.NoError(t, db.DeleteState("k"))
	v, err = db.GetState("k")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestSessions(t *testing.T) {
	db := openTestDB(t)
	s := db.Sessions()
	ctx := context.Background()

	st, err := s.Get(ctx, "5215550001")
	require.NoError(t, err)
	assert.True(t, st.Empty())

	want := session.State{
		Booking: &session.Booking{
			Step: session.StepCollectDate,
			Data: session.Data{Phone: "5215550001", Name: "Ana", Email: "ana@example.com"},
		},
	}
	require.NoError(t, s.Set(ctx, "5215550001", want))

	st, err = s.Get(ctx, "5215550001")
	require.NoError(t, err)
	assert.Equal(t, want, st)

	require.NoError(t, s.Set(ctx, "5215550001", session.State{}))
	st, err = s.Get(ctx, "5215550001")
	require.NoError(t, err)
	assert.True(t, st.Empty())
}

func TestSessionsCorrupt(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SetState("session:u1", `{"scheduling":{"step":"askShoeSize"}}`))

	_, err := db.Sessions().Get(context.Background(), "u1")
	assert.True(t, errors.Is(err, session.ErrCorrupt))
}

func TestBookings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 15, 15, 30, 0, 0, time.UTC)
	_, err := db.InsertBooking(ctx, &Booking{
		CalendarID: "evt-1",
		UserID:     "u1",
		Name:       "Ana",
		Email:      "ana@example.com",
		Phone:      "u1",
		StartTime:  start,
		EndTime:    start.Add(30 * time.Minute),
		TimeZone:   "America/Mexico_City",
	})
	require.NoError(t, err)

	require.NoError(t, db.RecordBooking(ctx, Booking{
		UserID:    "u2",
		Name:      "Luis",
		Email:     "luis@example.com",
		StartTime: start.Add(24 * time.Hour),
		EndTime:   start.Add(24*time.Hour + 30*time.Minute),
		TimeZone:  "America/Mexico_City",
		Status:    StatusFailed,
		Error:     "calendar unavailable",
	}))

	day, err := db.BookingsBetween(ctx, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "evt-1", day[0].CalendarID)
	assert.Equal(t, StatusBooked, day[0].Status)
	assert.True(t, start.Equal(day[0].StartTime))
	assert.Equal(t, "", day[0].Notes)

	failed, err := db.FailedBookings(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "Luis", failed[0].Name)
	assert.Equal(t, "calendar unavailable", failed[0].Error)

	require.NoError(t, db.UpdateBookingStatus(ctx, failed[0].ID, StatusBooked, "evt-2", ""))
	failed, err = db.FailedBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
}
