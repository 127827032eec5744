package caltime

import (
	"fmt"
	"time"
)

// MonthNames are the Spanish month names, January first.
var MonthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var weekdayNames = [7]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

// FormatDate renders a date for the user, e.g. "15 de mayo de 2024".
func FormatDate(d DateParts) string {
	if d.Month < 1 || d.Month > 12 {
		return d.String()
	}
	return fmt.Sprintf("%d de %s de %d", d.Day, MonthNames[d.Month-1], d.Year)
}

// FormatLongDate adds the weekday, e.g. "miércoles 15 de mayo de 2024".
func FormatLongDate(d DateParts) string {
	return WeekdayName(d.Weekday()) + " " + FormatDate(d)
}

// FormatTime renders "HH:MM" on a 24 hour clock.
func FormatTime(t TimeParts) string {
	return t.String()
}

func WeekdayName(w time.Weekday) string {
	return weekdayNames[w]
}

// Clock is the source of "now" for anything that depends on the current
// instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
