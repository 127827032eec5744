package caltime

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateParts(t *testing.T) {
	d, err := ParseDateParts("2024-05-15")
	require.NoError(t, err)
	assert.Equal(t, DateParts{Year: 2024, Month: 5, Day: 15}, d)
	assert.Equal(t, "2024-05-15", d.String())

	for _, bad := range []string{"2024-02-30", "2023-02-29", "2024-13-01", "2024-5", "hoy", ""} {
		_, err := ParseDateParts(bad)
		assert.True(t, errors.Is(err, ErrInvalidDate), bad)
	}

	_, err = ParseDateParts("2024-02-29")
	assert.NoError(t, err)
}

func TestParseTimeParts(t *testing.T) {
	tp, err := ParseTimeParts("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeParts{Hour: 9, Minute: 30}, tp)
	assert.Equal(t, 570, tp.Minutes())

	for _, bad := range []string{"24:00", "12:60", "9", "ab:cd", "9:5"} {
		_, err := ParseTimeParts(bad)
		assert.True(t, errors.Is(err, ErrInvalidTime), bad)
	}
}

func TestAddMinutesCarries(t *testing.T) {
	s := AddMinutes(DateParts{2024, 12, 31}, TimeParts{23, 45}, 30)
	assert.Equal(t, DateParts{2025, 1, 1}, s.Date)
	assert.Equal(t, TimeParts{0, 15}, s.Time)
	assert.Equal(t, "2025-01-01T00:15:00", s.ISO)

	s = AddMinutes(DateParts{2024, 2, 28}, TimeParts{10, 0}, 24*60)
	assert.Equal(t, DateParts{2024, 2, 29}, s.Date)

	s = AddMinutes(DateParts{2024, 3, 1}, TimeParts{0, 10}, -20)
	assert.Equal(t, DateParts{2024, 2, 29}, s.Date)
	assert.Equal(t, TimeParts{23, 50}, s.Time)
}

func TestResolveZone(t *testing.T) {
	loc, err := ResolveZone("America/Mexico_City")
	require.NoError(t, err)
	assert.Equal(t, "America/Mexico_City", loc.String())

	loc, err = ResolveZone("gmt-5")
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -5*3600, offset)

	loc, err = ResolveZone("UTC+05:30")
	require.NoError(t, err)
	_, offset = time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	for _, bad := range []string{"", "Mars/Olympus", "UTC+20", "Local"} {
		_, err := ResolveZone(bad)
		assert.True(t, errors.Is(err, ErrUnknownZone), bad)
		assert.False(t, ValidZone(bad), bad)
	}
}

func TestNormalizeZone(t *testing.T) {
	assert.Equal(t, "UTC-5", NormalizeZone(" GMT-5 "))
	assert.Equal(t, "UTC+3", NormalizeZone("utc+3"))
	assert.Equal(t, "UTC", NormalizeZone("gmt"))
	assert.Equal(t, "Europe/Madrid", NormalizeZone("Europe/Madrid"))
}

func TestToZonedInstantRoundTrip(t *testing.T) {
	zones := []string{"America/Mexico_City", "Europe/Madrid", "Asia/Kolkata", "UTC-5", "America/New_York"}
	dates := []DateParts{{2024, 1, 15}, {2024, 5, 15}, {2024, 7, 1}, {2024, 11, 3}}
	times := []TimeParts{{0, 0}, {9, 30}, {14, 45}, {23, 59}}

	for _, z := range zones {
		loc, err := ResolveZone(z)
		require.NoError(t, err)
		for _, d := range dates {
			for _, tm := range times {
				instant, ok := ToZonedInstant(d, tm, z)
				require.True(t, ok)
				assert.Equal(t, d, DateOf(instant, loc), "%s %s %s", z, d, tm)
				assert.Equal(t, tm, TimeOf(instant, loc), "%s %s %s", z, d, tm)
			}
		}
	}
}

func TestToZonedInstantUnknownZone(t *testing.T) {
	_, ok := ToZonedInstant(DateParts{2024, 5, 15}, TimeParts{9, 0}, "Nowhere/Town")
	assert.False(t, ok)
}

func TestToZonedInstantDSTGap(t *testing.T) {
	// 02:30 does not exist on 2024-03-10 in New York.
	instant, ok := ToZonedInstant(DateParts{2024, 3, 10}, TimeParts{2, 30}, "America/New_York")
	require.True(t, ok)
	assert.Equal(t, DateParts{2024, 3, 10}, DateOf(instant, mustZone(t, "America/New_York")))
	assert.WithinDuration(t, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC), instant, time.Hour)
}

func TestIsWeekendUsesZone(t *testing.T) {
	mx, err := ResolveZone("America/Mexico_City")
	require.NoError(t, err)

	// Saturday 02:00 UTC is still Friday evening in Mexico City.
	instant := time.Date(2024, 5, 18, 2, 0, 0, 0, time.UTC)
	assert.False(t, IsWeekend(instant, mx))
	assert.True(t, IsWeekend(instant, time.UTC))

	assert.True(t, IsWeekend(time.Date(2024, 5, 19, 18, 0, 0, 0, time.UTC), mx))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "15 de mayo de 2024", FormatDate(DateParts{2024, 5, 15}))
	assert.Equal(t, "miércoles 15 de mayo de 2024", FormatLongDate(DateParts{2024, 5, 15}))
	assert.Equal(t, "09:05", FormatTime(TimeParts{9, 5}))
}

func TestDatePartsHelpers(t *testing.T) {
	d := DateParts{2024, 12, 30}
	assert.Equal(t, DateParts{2025, 1, 2}, d.AddDays(3))
	assert.True(t, d.Before(DateParts{2024, 12, 31}))
	assert.False(t, d.Before(d))
	assert.Equal(t, time.Monday, d.Weekday())
	assert.True(t, DateParts{}.IsZero())
}

func mustZone(t *testing.T, zone string) *time.Location {
	t.Helper()
	loc, err := ResolveZone(zone)
	require.NoError(t, err)
	return loc
}
