// Package validator gates extracted text before it reaches the summarizer.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/textutil"
)

// Options configures the acceptance thresholds.
type Options struct {
	MinWords           int
	ArtifactMaxRepeats int
	MinSentenceMarks   int
	MinLongWords       int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{MinWords: 25, ArtifactMaxRepeats: 2, MinSentenceMarks: 3, MinLongWords: 10}
}

const longWordLetters = 7

// artifactPatterns match markup and script residue left behind by a poor extraction.
var artifactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*(script|style|div|span|iframe|noscript)\b`),
	regexp.MustCompile(`(?i)\bfunction\s*\(`),
	regexp.MustCompile(`(?i)\b(var|let|const)\s+[a-z_$][\w$]*\s*=`),
	regexp.MustCompile(`(?i)\bdocument\.(getElement|querySelector|write|cookie)`),
	regexp.MustCompile(`(?i)\bwindow\.[a-z_$]`),
	regexp.MustCompile(`(?i)\{\s*[a-z-]+\s*:\s*[^;{}]+;`),
	regexp.MustCompile(`&(nbsp|amp|quot|lt|gt|#\d+);`),
	regexp.MustCompile(`[{}]`),
}

// signalTerms are reporting verbs, institutional nouns and temporal markers typical of news prose.
var signalTerms = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		anunció anuncia afirmó afirma declaró declara informó informa aseguró asegura explicó explica
		señaló señala indicó indica confirmó confirma reveló revela denunció denuncia advirtió advierte
		presentó presenta aprobó aprueba según dijo dijeron detalló destacó agregó añadió
		gobierno presidente presidenta ministro ministra ministerio congreso senado tribunal juez
		empresa compañía autoridades policía alcalde alcaldía universidad organización ciudadanos
		hoy ayer mañana semana mes año lunes martes miércoles jueves viernes sábado domingo
		enero febrero marzo abril mayo junio julio agosto septiembre octubre noviembre diciembre
		announced said says reported reports stated confirmed revealed according told added
		government president minister ministry court police company officials authorities
		today yesterday monday tuesday wednesday thursday friday saturday sunday week year`) {
		signalTerms[w] = struct{}{}
	}
}

// Validator applies the acceptance heuristics.
type Validator struct {
	opts Options
}

// New constructs a Validator.
func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate returns nil when text looks like article prose, or a *domain.ValidationRejectedError.
func (v *Validator) Validate(text string) error {
	words := strings.Fields(text)
	if len(words) < v.opts.MinWords {
		return reject("too short: %d words (min %d)", len(words), v.opts.MinWords)
	}

	for _, re := range artifactPatterns {
		if n := len(re.FindAllStringIndex(text, -1)); n > v.opts.ArtifactMaxRepeats {
			return reject("markup artifact %q repeated %d times", re.String(), n)
		}
	}

	if hasSignalTerm(words) || v.legible(text, words) {
		return nil
	}
	return reject("no journalistic or legibility signal")
}

func hasSignalTerm(words []string) bool {
	for _, w := range words {
		if _, ok := signalTerms[strings.ToLower(textutil.TrimPunct(w))]; ok {
			return true
		}
	}
	return false
}

func (v *Validator) legible(text string, words []string) bool {
	marks := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if marks >= v.opts.MinSentenceMarks {
		return true
	}
	long := 0
	for _, w := range words {
		w = textutil.TrimPunct(w)
		if len([]rune(w)) >= longWordLetters && textutil.IsAlphaWord(w) {
			long++
		}
	}
	return long >= v.opts.MinLongWords
}

func reject(format string, args ...any) error {
	return &domain.ValidationRejectedError{Reason: fmt.Sprintf(format, args...)}
}
