// Package nlparse turns loose Spanish (and a little English) chat text into
// calendar dates, times of day and time zones.
package nlparse

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/christopherklint97/citabot/internal/caltime"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, trims it and strips diacritics, so "Mañana"
// and "manana" match the same patterns.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.TrimSpace(strings.ToLower(out))
}

var zonePattern = regexp.MustCompile(`(?i)\b(?:GMT|UTC)[+-]\d{1,2}(?::\d{2})?\b|\b(?:Africa|America|Antarctica|Asia|Atlantic|Australia|Europe|Indian|Pacific|Etc)/[A-Za-z_]+(?:/[A-Za-z_]+)?\b`)

// ExtractZone finds a time zone mention such as "GMT-5" or
// "America/Bogota" in text and returns it normalized. It returns "" when
// the text names no zone; the result is not validated.
func ExtractZone(text string) string {
	m := zonePattern.FindString(text)
	if m == "" {
		return ""
	}
	return caltime.NormalizeZone(m)
}
