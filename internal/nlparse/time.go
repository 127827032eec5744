package nlparse

import (
	"regexp"

	"github.com/christopherklint97/citabot/internal/caltime"
)

// TimeStatus classifies the outcome of ParseTime.
type TimeStatus int

const (
	TimeInvalid TimeStatus = iota
	TimeOK
	// TimeClarify means the hour is ambiguous between morning and
	// afternoon; Suggestion holds the afternoon reading.
	TimeClarify
	// TimeOutOfRange means the time parsed but falls outside business hours.
	TimeOutOfRange
)

func (s TimeStatus) String() string {
	switch s {
	case TimeOK:
		return "ok"
	case TimeClarify:
		return "clarify"
	case TimeOutOfRange:
		return "out_of_range"
	default:
		return "invalid"
	}
}

// BusinessHours is the half-open range [StartHour:00, EndHour:00) in which
// appointments may start.
type BusinessHours struct {
	StartHour int
	EndHour   int
}

func (h BusinessHours) Contains(t caltime.TimeParts) bool {
	return t.Hour >= h.StartHour && t.Minutes() < h.EndHour*60
}

type TimeResult struct {
	Status     TimeStatus
	Time       caltime.TimeParts
	Suggestion caltime.TimeParts
}

var (
	// candidates for the hour, most specific first
	timeCandidates = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{1,2})[:h.](\d{2})\b`),
		regexp.MustCompile(`\ba\s+las?\s+(\d{1,2})(?:[:h.](\d{2}))?`),
		regexp.MustCompile(`\b(\d{1,2})\s*(?:am|pm|a\.\s?m|p\.\s?m|hrs|horas)\b`),
		regexp.MustCompile(`\b(\d{1,2})\b`),
	}

	afternoonPattern = regexp.MustCompile(`(?:\d\s*|\b)(?:pm\b|p\.\s?m\b)|\b(?:tarde|noche)\b`)
	// "manana" counts as a morning marker even when it also names tomorrow
	morningPattern   = regexp.MustCompile(`(?:\d\s*|\b)(?:am\b|a\.\s?m\b)|\b(?:manana|madrugada|temprano)\b`)
	noonPattern      = regexp.MustCompile(`\bmediodia\b`)
	midnightPattern  = regexp.MustCompile(`\bmedianoche\b`)

	timeReferencePattern = regexp.MustCompile(`\b\d{1,2}[:h.]\d{2}\b|\ba\s+las?\s+\d{1,2}\b|\b\d{1,2}\s*(?:am|pm|a\.\s?m|p\.\s?m|hrs|horas)\b|\bmediodia\b|\bmedianoche\b`)

	textualDatePattern = regexp.MustCompile(`\b\d{1,2}\s*(?:de\s*)?(?:` + monthAlternation() + `)|(?:` + monthAlternation() + `)\s*(?:de\s*)?\d{1,2}\b`)
)

// HasTimeReference reports whether text names a concrete time of day,
// e.g. "a las 11", "10:30" or "4pm". A bare number does not count.
func HasTimeReference(text string) bool {
	return timeReferencePattern.MatchString(Normalize(text))
}

// ParseTime reads a time of day from free text. Hours below the business
// start without an am/pm style marker are ambiguous and produce a
// clarification request instead of a guess.
func ParseTime(text string, hours BusinessHours) TimeResult {
	normalized := stripDates(Normalize(text))

	hour, minute, found := findHour(normalized)
	if !found {
		switch {
		case noonPattern.MatchString(normalized):
			hour, minute, found = 12, 0, true
		case midnightPattern.MatchString(normalized):
			hour, minute, found = 0, 0, true
		}
		if !found {
			return TimeResult{Status: TimeInvalid}
		}
		return classify(caltime.TimeParts{Hour: hour, Minute: minute}, hours)
	}
	if minute > 59 {
		return TimeResult{Status: TimeInvalid}
	}

	afternoon := afternoonPattern.MatchString(normalized)
	morning := morningPattern.MatchString(normalized)
	switch {
	case afternoon && hour < 12:
		hour += 12
	case morning && !afternoon && hour == 12:
		hour = 0
	}

	if !afternoon && !morning && hour != 0 && hour <= 12 && hour < hours.StartHour {
		return TimeResult{
			Status:     TimeClarify,
			Suggestion: caltime.TimeParts{Hour: hour + 12, Minute: minute},
		}
	}
	if hour > 23 {
		return TimeResult{Status: TimeInvalid}
	}
	return classify(caltime.TimeParts{Hour: hour, Minute: minute}, hours)
}

func classify(t caltime.TimeParts, hours BusinessHours) TimeResult {
	if !hours.Contains(t) {
		return TimeResult{Status: TimeOutOfRange, Time: t}
	}
	return TimeResult{Status: TimeOK, Time: t}
}

func findHour(text string) (hour, minute int, found bool) {
	for _, re := range timeCandidates {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hour = atoi(m[1])
		if len(m) > 2 && m[2] != "" {
			minute = atoi(m[2])
		}
		return hour, minute, true
	}
	return 0, 0, false
}

// stripDates removes date expressions so their numbers are not read as
// hours.
func stripDates(text string) string {
	text = isoDatePattern.ReplaceAllString(text, " ")
	text = shortDatePattern.ReplaceAllString(text, " ")
	text = textualDatePattern.ReplaceAllString(text, " ")
	text = inDaysPattern.ReplaceAllString(text, " ")
	return yearPattern.ReplaceAllString(text, " ")
}

func monthAlternation() string {
	out := "setiembre"
	for _, m := range caltime.MonthNames {
		out += "|" + m
	}
	return out
}
