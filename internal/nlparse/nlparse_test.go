package nlparse

import (
	"testing"
	"time"

	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday 2024-05-14, 10:00 UTC.
var ref = time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)

var hours = BusinessHours{StartHour: 9, EndHour: 15}

func date(y, m, d int) caltime.DateParts {
	return caltime.DateParts{Year: y, Month: m, Day: d}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  caltime.DateParts
	}{
		{"mañana", date(2024, 5, 15)},
		{"Mañana por favor", date(2024, 5, 15)},
		{"pasado mañana", date(2024, 5, 16)},
		{"hoy", date(2024, 5, 14)},
		{"el día de hoy", date(2024, 5, 14)},
		{"en 3 días", date(2024, 5, 17)},
		{"2024-06-03", date(2024, 6, 3)},
		{"2025/01/07", date(2025, 1, 7)},
		{"20/05", date(2024, 5, 20)},
		{"20-05-25", date(2025, 5, 20)},
		{"03/06/2024", date(2024, 6, 3)},
		{"15 de mayo", date(2024, 5, 15)},
		{"el 3 de junio de 2024", date(2024, 6, 3)},
		{"mayo 20", date(2024, 5, 20)},
		{"4 de Septiembre", date(2024, 9, 4)},
		{"el viernes", date(2024, 5, 17)},
		{"el próximo martes", date(2024, 5, 21)},
		{"mañana por la mañana", date(2024, 5, 15)},
		{"15demayo", date(2024, 5, 15)},
		{"mayo20", date(2024, 5, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input, ref)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateRollsPastDatesForward(t *testing.T) {
	got, ok := ParseDate("10 de marzo", ref)
	require.True(t, ok)
	assert.Equal(t, date(2025, 3, 10), got)

	got, ok = ParseDate("01/02", ref)
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 1), got)

	// an explicit year is honored even when it is in the past
	got, ok = ParseDate("10 de marzo de 2024", ref)
	require.True(t, ok)
	assert.Equal(t, date(2024, 3, 10), got)
}

func TestParseDateRejects(t *testing.T) {
	for _, input := range []string{
		"",
		"hola",
		"31/02",
		"2024-02-30",
		"a las 11 de la mañana",
		"de mayo",
	} {
		_, ok := ParseDate(input, ref)
		assert.False(t, ok, input)
	}
}

func TestParseDateIsDeterministic(t *testing.T) {
	for _, input := range []string{"mañana", "15 de mayo", "20/05", "el viernes"} {
		a, okA := ParseDate(input, ref)
		b, okB := ParseDate(input, ref)
		assert.Equal(t, okA, okB)
		assert.Equal(t, a, b)
	}
}

func TestParseDateUsesUTCDay(t *testing.T) {
	mx, err := caltime.ResolveZone("America/Mexico_City")
	require.NoError(t, err)

	// 20:00 on the 14th in Mexico City is already the 15th in UTC.
	evening := time.Date(2024, 5, 14, 20, 0, 0, 0, mx)
	got, ok := ParseDate("mañana", evening)
	require.True(t, ok)
	assert.Equal(t, date(2024, 5, 16), got)

	got, ok = ParseDate("hoy", evening)
	require.True(t, ok)
	assert.Equal(t, date(2024, 5, 15), got)

	got, ok = ParseDate("mañana", evening.UTC())
	require.True(t, ok)
	assert.Equal(t, date(2024, 5, 16), got)
}

func TestParseDateEnglishFallback(t *testing.T) {
	got, ok := ParseDate("tomorrow", ref)
	require.True(t, ok)
	assert.Equal(t, date(2024, 5, 15), got)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input  string
		status TimeStatus
		time   caltime.TimeParts
	}{
		{"1 pm", TimeOK, caltime.TimeParts{Hour: 13}},
		{"11am", TimeOK, caltime.TimeParts{Hour: 11}},
		{"10:30", TimeOK, caltime.TimeParts{Hour: 10, Minute: 30}},
		{"a las 9h15", TimeOK, caltime.TimeParts{Hour: 9, Minute: 15}},
		{"a las 10 de la mañana", TimeOK, caltime.TimeParts{Hour: 10}},
		{"mañana a las 10", TimeOK, caltime.TimeParts{Hour: 10}},
		{"mañana a las 8", TimeOutOfRange, caltime.TimeParts{Hour: 8}},
		{"temprano, a las 7", TimeOutOfRange, caltime.TimeParts{Hour: 7}},
		{"12", TimeOK, caltime.TimeParts{Hour: 12}},
		{"al mediodía", TimeOK, caltime.TimeParts{Hour: 12}},
		{"20:00", TimeOutOfRange, caltime.TimeParts{Hour: 20}},
		{"15:00", TimeOutOfRange, caltime.TimeParts{Hour: 15}},
		{"8 am", TimeOutOfRange, caltime.TimeParts{Hour: 8}},
		{"12 am", TimeOutOfRange, caltime.TimeParts{Hour: 0}},
		{"9:75", TimeInvalid, caltime.TimeParts{}},
		{"abc", TimeInvalid, caltime.TimeParts{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseTime(tt.input, hours)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.time, got.Time)
		})
	}
}

func TestParseTimeClarifiesAmbiguousHours(t *testing.T) {
	got := ParseTime("8", hours)
	assert.Equal(t, TimeClarify, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 20}, got.Suggestion)

	got = ParseTime("a las 3:30", hours)
	assert.Equal(t, TimeClarify, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 15, Minute: 30}, got.Suggestion)

	got = ParseTime("el viernes a las 3", hours)
	assert.Equal(t, TimeClarify, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 15}, got.Suggestion)
}

func TestParseTimeAfternoonMarkers(t *testing.T) {
	late := BusinessHours{StartHour: 9, EndHour: 18}
	got := ParseTime("3 de la tarde", late)
	assert.Equal(t, TimeOK, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 15}, got.Time)

	got = ParseTime("4 p.m.", late)
	assert.Equal(t, TimeOK, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 16}, got.Time)
}

func TestParseTimeIgnoresDateNumbers(t *testing.T) {
	got := ParseTime("el 15 de mayo a las 11", hours)
	assert.Equal(t, TimeOK, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 11}, got.Time)

	got = ParseTime("15demayo a las 11", hours)
	assert.Equal(t, TimeOK, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 11}, got.Time)

	got = ParseTime("20/05 10:30", hours)
	assert.Equal(t, TimeOK, got.Status)
	assert.Equal(t, caltime.TimeParts{Hour: 10, Minute: 30}, got.Time)
}

func TestHasTimeReference(t *testing.T) {
	for _, s := range []string{"a las 11", "10:30", "4pm", "al mediodía", "11 hrs"} {
		assert.True(t, HasTimeReference(s), s)
	}
	for _, s := range []string{"15 de mayo", "mañana", "hola", "20/05"} {
		assert.False(t, HasTimeReference(s), s)
	}
}

func TestExtractZone(t *testing.T) {
	assert.Equal(t, "UTC-5", ExtractZone("mañana a las 10 GMT-5"))
	assert.Equal(t, "UTC+3", ExtractZone("10am utc+3"))
	assert.Equal(t, "America/Bogota", ExtractZone("a las 11 hora America/Bogota"))
	assert.Equal(t, "", ExtractZone("a las 11 y/o a las 12"))
	assert.Equal(t, "", ExtractZone("mañana"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "manana a las 10", Normalize("  Mañana a las 10 "))
	assert.Equal(t, "miercoles", Normalize("Miércoles"))
}
