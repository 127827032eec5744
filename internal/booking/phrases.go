package booking

import (
	"regexp"
	"strings"

	"github.com/christopherklint97/citabot/internal/nlparse"
)

// All patterns run against nlparse.Normalize output: lower case, no accents.
var (
	startPattern = regexp.MustCompile(`\b(?:agendar|reservar|programar|apartar)\s+(?:una\s+|la\s+|mi\s+)?(?:cita|llamada|reunion|sesion)\b`)

	cancelPattern = regexp.MustCompile(`\bcancelar\b|\bya\s+no\b`)

	showMorePattern = regexp.MustCompile(`\b(?:mostrar|ver|muestrame|dame)\s+mas\s+(?:horarios|opciones)\b|^mas\s+(?:horarios|opciones)\b`)

	asapPattern = regexp.MustCompile(`\blo\s+antes\s+posible\b|\blo\s+mas\s+pronto(?:\s+posible)?\b|\bcuanto\s+antes\b|\bprimer\s+horario\s+disponible\b`)

	dateChangePattern = regexp.MustCompile(`\botra\s+fecha\b|\bcambiar\s+(?:la\s+)?fecha\b|\bprefer\w*\s+otra\s+fecha\b|\botro\s+dia\b`)

	availabilityQueryPattern = regexp.MustCompile(`\bhorarios?\s+disponibles?\b|\bdisponibilidad\b|\bque\s+horarios\s+(?:tienen|hay|manejan)\b|\bcuando\s+(?:hay|tienen)\s+(?:espacio|lugar)\b`)

	noNotesPattern = regexp.MustCompile(`^(?:no|ninguno|ninguna|nada|sin\s+notas?|n/a)[.!]*$`)

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// startMatcher recognizes the messages that open a booking conversation.
type startMatcher struct {
	keywords []*regexp.Regexp
}

func newStartMatcher(keywords []string) startMatcher {
	var m startMatcher
	for _, k := range keywords {
		k = nlparse.Normalize(k)
		if k == "" {
			continue
		}
		words := strings.Fields(k)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		m.keywords = append(m.keywords, regexp.MustCompile(`\b`+strings.Join(words, `\s+`)+`\b`))
	}
	return m
}

func (m startMatcher) match(normalized string) bool {
	if startPattern.MatchString(normalized) {
		return true
	}
	for _, re := range m.keywords {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}
