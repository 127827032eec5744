package nlparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/christopherklint97/citabot/internal/caltime"
	"github.com/tj/go-naturaldate"
)

type dateCandidate struct {
	date caltime.DateParts
	// fixed dates are never rolled into the next year
	fixed bool
}

type dateMatcher func(text string, today caltime.DateParts, ref time.Time) (dateCandidate, bool)

// Order matters: the first matcher that recognizes something wins.
var dateMatchers = []dateMatcher{
	matchRelative,
	matchNumeric,
	matchTextual,
	matchWeekday,
	matchEnglish,
}

var (
	// "de la mañana" is a part of the day, not tomorrow
	dayPartPattern = regexp.MustCompile(`\b(?:de|por|en)\s+la\s+manana\b`)

	pasadoMananaPattern = regexp.MustCompile(`\bpasado\s+manana\b`)
	inDaysPattern       = regexp.MustCompile(`\ben\s+(\d{1,2})\s+dias?\b`)
	mananaPattern       = regexp.MustCompile(`\bmanana\b`)
	hoyPattern          = regexp.MustCompile(`\bhoy\b`)

	isoDatePattern   = regexp.MustCompile(`\b(\d{4})[/-](\d{1,2})[/-](\d{1,2})\b`)
	shortDatePattern = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2}|\d{4}))?\b`)

	// month names match anywhere, so "15demayo" still reads as a date
	monthPattern    = regexp.MustCompile(`(` + strings.Join(append(caltime.MonthNames[:], "setiembre"), "|") + `)`)
	dayBeforeMonth  = regexp.MustCompile(`\b(\d{1,2})\s*(?:de\s*)?$`)
	dayAfterMonth   = regexp.MustCompile(`^\s*(?:de\s*)?(\d{1,2})\b`)
	yearPattern     = regexp.MustCompile(`\b(\d{4})\b`)
	weekdayPattern  = regexp.MustCompile(`\b(lunes|martes|miercoles|jueves|viernes|sabado|domingo)\b`)
	englishDateHint = regexp.MustCompile(`\b(?:next|this)\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|week)\b|\btomorrow\b|\bin\s+\d{1,2}\s+days?\b`)
)

var weekdays = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

// ParseDate extracts a calendar date from free text. Relative words are
// resolved against the UTC calendar day of ref. A date written without a
// year that already passed this year moves to next year.
func ParseDate(text string, ref time.Time) (caltime.DateParts, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return caltime.DateParts{}, false
	}
	ref = ref.UTC()
	normalized = dayPartPattern.ReplaceAllString(normalized, " ")
	today := caltime.DateParts{Year: ref.Year(), Month: int(ref.Month()), Day: ref.Day()}

	for _, match := range dateMatchers {
		c, ok := match(normalized, today, ref)
		if !ok {
			continue
		}
		return ensureFuture(c, today)
	}
	return caltime.DateParts{}, false
}

func ensureFuture(c dateCandidate, today caltime.DateParts) (caltime.DateParts, bool) {
	if c.fixed || !c.date.Before(today) {
		return c.date, true
	}
	next, err := caltime.NewDateParts(c.date.Year+1, c.date.Month, c.date.Day)
	if err != nil {
		// Feb 29 without a leap year ahead
		return caltime.DateParts{}, false
	}
	return next, true
}

func matchRelative(text string, today caltime.DateParts, _ time.Time) (dateCandidate, bool) {
	switch {
	case pasadoMananaPattern.MatchString(text):
		return dateCandidate{date: today.AddDays(2), fixed: true}, true
	case inDaysPattern.MatchString(text):
		n, _ := strconv.Atoi(inDaysPattern.FindStringSubmatch(text)[1])
		return dateCandidate{date: today.AddDays(n), fixed: true}, true
	case mananaPattern.MatchString(text):
		return dateCandidate{date: today.AddDays(1), fixed: true}, true
	case hoyPattern.MatchString(text):
		return dateCandidate{date: today, fixed: true}, true
	}
	return dateCandidate{}, false
}

func matchNumeric(text string, today caltime.DateParts, _ time.Time) (dateCandidate, bool) {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		d, err := caltime.NewDateParts(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		if err != nil {
			return dateCandidate{}, false
		}
		return dateCandidate{date: d, fixed: true}, true
	}

	m := shortDatePattern.FindStringSubmatch(text)
	if m == nil {
		return dateCandidate{}, false
	}
	year, fixed := today.Year, false
	if m[3] != "" {
		year, fixed = atoi(m[3]), true
		if year < 100 {
			year += 2000
		}
	}
	d, err := caltime.NewDateParts(year, atoi(m[2]), atoi(m[1]))
	if err != nil {
		return dateCandidate{}, false
	}
	return dateCandidate{date: d, fixed: fixed}, true
}

func matchTextual(text string, today caltime.DateParts, _ time.Time) (dateCandidate, bool) {
	loc := monthPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return dateCandidate{}, false
	}
	month := monthNumber(text[loc[2]:loc[3]])

	var day int
	if m := dayBeforeMonth.FindStringSubmatch(text[:loc[0]]); m != nil {
		day = atoi(m[1])
	} else if m := dayAfterMonth.FindStringSubmatch(text[loc[1]:]); m != nil {
		day = atoi(m[1])
	} else {
		return dateCandidate{}, false
	}

	year, fixed := today.Year, false
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		year, fixed = atoi(m[1]), true
	}
	d, err := caltime.NewDateParts(year, month, day)
	if err != nil {
		return dateCandidate{}, false
	}
	return dateCandidate{date: d, fixed: fixed}, true
}

// matchWeekday resolves "el viernes" to the next Friday after today.
func matchWeekday(text string, today caltime.DateParts, _ time.Time) (dateCandidate, bool) {
	m := weekdayPattern.FindStringSubmatch(text)
	if m == nil {
		return dateCandidate{}, false
	}
	ahead := (int(weekdays[m[1]]) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return dateCandidate{date: today.AddDays(ahead), fixed: true}, true
}

// matchEnglish hands a few English phrasings to go-naturaldate. The hint
// pattern keeps arbitrary text away from it, since the library resolves
// unknown input to the reference time.
func matchEnglish(text string, today caltime.DateParts, ref time.Time) (dateCandidate, bool) {
	if !englishDateHint.MatchString(text) {
		return dateCandidate{}, false
	}
	t, err := naturaldate.Parse(text, ref, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return dateCandidate{}, false
	}
	d := caltime.DateOf(t, ref.Location())
	if d == today {
		return dateCandidate{}, false
	}
	return dateCandidate{date: d, fixed: true}, true
}

func monthNumber(name string) int {
	if name == "setiembre" {
		return 9
	}
	for i, n := range caltime.MonthNames {
		if n == name {
			return i + 1
		}
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
