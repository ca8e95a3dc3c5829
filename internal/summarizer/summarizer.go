// Package summarizer produces bounded article summaries with a model and falls back to an extractive digest.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
	"github.com/samvad-hq/samvad-news-digest/internal/retry"
	"github.com/samvad-hq/samvad-news-digest/internal/textutil"
)

// Completer is the slice of an LLM client the summarizer needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Options holds the summary window and fallback tuning.
type Options struct {
	MinWords                 int
	MaxWords                 int
	MaxInputChars            int
	FallbackSentences        int
	FallbackSentenceMinWords int
	Blacklist                []string
	Retry                    retry.Config
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MinWords:                 100,
		MaxWords:                 350,
		MaxInputChars:            12000,
		FallbackSentences:        6,
		FallbackSentenceMinWords: 6,
		Blacklist: []string{
			"contenido insuficiente",
			"resumen no disponible",
			"content insufficient",
			"summary unavailable",
		},
		Retry: retry.Config{MaxAttempts: 1},
	}
}

// Summarizer produces domain.Summary values.
type Summarizer struct {
	model     Completer
	opts      Options
	blacklist []string
	log       logger.Logger
}

// New constructs a Summarizer. A nil model means every summary is extractive.
func New(model Completer, opts Options, log logger.Logger) *Summarizer {
	blacklist := make([]string, 0, len(opts.Blacklist))
	for _, b := range opts.Blacklist {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			blacklist = append(blacklist, b)
		}
	}
	return &Summarizer{model: model, opts: opts, blacklist: blacklist, log: logger.Ensure(log)}
}

// Summarize returns a summary whose word count lies in [MinWords, MaxWords], or a
// *domain.SummaryUnavailableError.
func (s *Summarizer) Summarize(ctx context.Context, title, text string) (domain.Summary, error) {
	input := textutil.TruncateRunes(textutil.Collapse(text), s.opts.MaxInputChars)

	if s.model != nil {
		sum, err := s.fromModel(ctx, title, input)
		if err == nil {
			return sum, nil
		}
		s.log.WarnObj("model summary unusable, using extractive fallback", "summary", map[string]any{
			"title": title,
			"model": s.model.Model(),
			"error": err.Error(),
		})
	}

	return s.extractive(input)
}

func (s *Summarizer) fromModel(ctx context.Context, title, input string) (domain.Summary, error) {
	prompt := buildPrompt(title, input, s.opts.MinWords, s.opts.MaxWords)

	var out string
	err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
		var err error
		out, err = s.model.Complete(ctx, prompt)
		return err
	})
	if err != nil {
		return domain.Summary{}, err
	}

	text := normalize(out)
	if reason := s.check(text); reason != "" {
		return domain.Summary{}, fmt.Errorf("model output rejected: %s", reason)
	}
	return domain.Summary{
		Text:      text,
		WordCount: textutil.CountWords(text),
		Method:    domain.SummaryLLM,
		Model:     s.model.Model(),
	}, nil
}

// extractive joins the first qualifying sentences without exceeding MaxWords.
func (s *Summarizer) extractive(input string) (domain.Summary, error) {
	var (
		picked []string
		words  int
	)
	for _, sentence := range textutil.Sentences(input) {
		if len(picked) >= s.opts.FallbackSentences {
			break
		}
		n := textutil.CountWords(sentence)
		if n <= s.opts.FallbackSentenceMinWords {
			continue
		}
		if words+n > s.opts.MaxWords {
			break
		}
		picked = append(picked, sentence)
		words += n
	}

	text := strings.Join(picked, " ")
	if reason := s.check(text); reason != "" {
		return domain.Summary{}, &domain.SummaryUnavailableError{Reason: "extractive fallback " + reason}
	}
	return domain.Summary{Text: text, WordCount: words, Method: domain.SummaryExtractive}, nil
}

// check returns an empty string when text is an acceptable summary.
func (s *Summarizer) check(text string) string {
	n := textutil.CountWords(text)
	if n < s.opts.MinWords || n > s.opts.MaxWords {
		return fmt.Sprintf("has %d words (window %d-%d)", n, s.opts.MinWords, s.opts.MaxWords)
	}
	lower := strings.ToLower(text)
	for _, b := range s.blacklist {
		if strings.Contains(lower, b) {
			return fmt.Sprintf("matches placeholder %q", b)
		}
	}
	return ""
}

var labelPrefixes = []string{"resumen:", "summary:"}

// normalize flattens model output into one paragraph.
func normalize(out string) string {
	text := textutil.Collapse(strings.ReplaceAll(out, "**", ""))
	lower := strings.ToLower(text)
	for _, p := range labelPrefixes {
		if strings.HasPrefix(lower, p) {
			text = strings.TrimSpace(text[len(p):])
			break
		}
	}
	return strings.Trim(text, "\"'“”«» ")
}
