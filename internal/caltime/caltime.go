// Package caltime holds the calendar arithmetic shared by the parser, the
// availability engine and the booking flow: wall-clock date and time parts,
// zone resolution and conversion of a local wall clock to an instant.
package caltime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time")
	ErrUnknownZone = errors.New("unknown time zone")
)

// DateParts is a calendar date without a zone.
type DateParts struct {
	Year  int
	Month int
	Day   int
}

// NewDateParts validates y/m/d by round-tripping through a UTC construction,
// so 2024-02-30 is rejected instead of normalized to March.
func NewDateParts(year, month, day int) (DateParts, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return DateParts{}, errors.Wrapf(ErrInvalidDate, "%04d-%02d-%02d", year, month, day)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return DateParts{}, errors.Wrapf(ErrInvalidDate, "%04d-%02d-%02d", year, month, day)
	}
	return DateParts{Year: year, Month: month, Day: day}, nil
}

// ParseDateParts parses "YYYY-MM-DD".
func ParseDateParts(iso string) (DateParts, error) {
	parts := strings.Split(strings.TrimSpace(iso), "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return DateParts{}, errors.Wrapf(ErrInvalidDate, "%q", iso)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return DateParts{}, errors.Wrapf(ErrInvalidDate, "%q", iso)
		}
		nums[i] = n
	}
	return NewDateParts(nums[0], nums[1], nums[2])
}

func (d DateParts) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d DateParts) IsZero() bool {
	return d == DateParts{}
}

// Before reports whether d is an earlier calendar day than o.
func (d DateParts) Before(o DateParts) bool {
	return d.midnight().Before(o.midnight())
}

// AddDays shifts the date by n days, carrying across months and years.
func (d DateParts) AddDays(n int) DateParts {
	t := d.midnight().AddDate(0, 0, n)
	return DateParts{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Weekday of the date itself, independent of any zone.
func (d DateParts) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

func (d DateParts) midnight() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

// TimeParts is a wall-clock time of day with minute resolution.
type TimeParts struct {
	Hour   int
	Minute int
}

func NewTimeParts(hour, minute int) (TimeParts, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeParts{}, errors.Wrapf(ErrInvalidTime, "%02d:%02d", hour, minute)
	}
	return TimeParts{Hour: hour, Minute: minute}, nil
}

// ParseTimeParts parses "HH:MM".
func ParseTimeParts(hhmm string) (TimeParts, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return TimeParts{}, errors.Wrapf(ErrInvalidTime, "%q", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeParts{}, errors.Wrapf(ErrInvalidTime, "%q", hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 {
		return TimeParts{}, errors.Wrapf(ErrInvalidTime, "%q", hhmm)
	}
	return NewTimeParts(hour, minute)
}

func (t TimeParts) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes since midnight.
func (t TimeParts) Minutes() int {
	return t.Hour*60 + t.Minute
}

// ISODateTime renders a zone-less local timestamp, e.g. "2024-05-15T09:30:00".
func ISODateTime(d DateParts, t TimeParts) string {
	return fmt.Sprintf("%sT%s:00", d, t)
}

// Shifted is the result of minute arithmetic on a wall clock.
type Shifted struct {
	Date DateParts
	Time TimeParts
	ISO  string
}

// AddMinutes adds minutes to a wall-clock date/time, carrying into days,
// months and years. No zone is involved.
func AddMinutes(d DateParts, t TimeParts, minutes int) Shifted {
	base := time.Date(d.Year, time.Month(d.Month), d.Day, t.Hour, t.Minute, 0, 0, time.UTC)
	s := base.Add(time.Duration(minutes) * time.Minute)
	date := DateParts{Year: s.Year(), Month: int(s.Month()), Day: s.Day()}
	tm := TimeParts{Hour: s.Hour(), Minute: s.Minute()}
	return Shifted{Date: date, Time: tm, ISO: ISODateTime(date, tm)}
}

var offsetZonePattern = regexp.MustCompile(`^(?:UTC|GMT)([+-])(\d{1,2})(?::?(\d{2}))?$`)

// NormalizeZone trims a user supplied zone and rewrites the GMT offset
// spelling to UTC, e.g. "gmt-5" becomes "UTC-5". IANA names are returned
// as written.
func NormalizeZone(raw string) string {
	z := strings.TrimSpace(raw)
	upper := strings.ToUpper(z)
	if strings.HasPrefix(upper, "GMT") || strings.HasPrefix(upper, "UTC") {
		if upper == "GMT" {
			return "UTC"
		}
		return "UTC" + upper[3:]
	}
	return z
}

// ResolveZone maps an IANA name or a UTC/GMT offset (UTC-5, GMT+3,
// UTC+05:30) to a location.
func ResolveZone(zone string) (*time.Location, error) {
	z := NormalizeZone(zone)
	if z == "" {
		return nil, errors.Wrap(ErrUnknownZone, "empty zone")
	}
	if m := offsetZonePattern.FindStringSubmatch(z); m != nil {
		hours, _ := strconv.Atoi(m[2])
		mins := 0
		if m[3] != "" {
			mins, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || mins > 59 {
			return nil, errors.Wrapf(ErrUnknownZone, "%q", zone)
		}
		offset := hours*3600 + mins*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(z, offset), nil
	}
	loc, err := time.LoadLocation(z)
	if err != nil || strings.EqualFold(z, "local") {
		return nil, errors.Wrapf(ErrUnknownZone, "%q", zone)
	}
	return loc, nil
}

func ValidZone(zone string) bool {
	_, err := ResolveZone(zone)
	return err == nil
}

// ToZonedInstant returns the instant at which the wall clock in zone reads
// d t. A wall clock inside a DST gap resolves the way time.Date resolves it.
func ToZonedInstant(d DateParts, t TimeParts, zone string) (time.Time, bool) {
	loc, err := ResolveZone(zone)
	if err != nil {
		return time.Time{}, false
	}
	return InLocation(d, t, loc), true
}

// InLocation is ToZonedInstant for an already resolved location.
func InLocation(d DateParts, t TimeParts, loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// DateOf returns the calendar date of instant as observed in loc.
func DateOf(instant time.Time, loc *time.Location) DateParts {
	l := instant.In(loc)
	return DateParts{Year: l.Year(), Month: int(l.Month()), Day: l.Day()}
}

// TimeOf returns the wall-clock time of instant as observed in loc.
func TimeOf(instant time.Time, loc *time.Location) TimeParts {
	l := instant.In(loc)
	return TimeParts{Hour: l.Hour(), Minute: l.Minute()}
}

// IsWeekend reports whether instant falls on a Saturday or Sunday in loc.
func IsWeekend(instant time.Time, loc *time.Location) bool {
	switch instant.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
