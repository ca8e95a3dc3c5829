package pipeline

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/pkg/publishers"
)

// CandidateSource returns fresh candidates for one category token.
type CandidateSource interface {
	Fetch(ctx context.Context, token string, n int, known map[string]struct{}) []domain.Candidate
}

// Deduper rejects candidates that collide with a stored record.
type Deduper interface {
	Check(ctx context.Context, c domain.Candidate) error
	Commit(c domain.Candidate)
	Reset()
}

// ContentExtractor turns a candidate into article text.
type ContentExtractor interface {
	Extract(ctx context.Context, c domain.Candidate) (domain.ExtractionResult, error)
}

// ContentValidator decides whether text is article prose.
type ContentValidator interface {
	Validate(text string) error
}

// ArticleSummarizer produces a bounded summary.
type ArticleSummarizer interface {
	Summarize(ctx context.Context, title, text string) (domain.Summary, error)
}

// ArticleStore is the persistence surface the pipeline writes through.
type ArticleStore interface {
	KnownURLs(ctx context.Context) (map[string]struct{}, error)
	Insert(ctx context.Context, a *domain.Article) error
	DeleteOlderThan(ctx context.Context, horizon time.Duration) (int, error)
	Stats(ctx context.Context, day time.Time) (domain.Stats, error)
}

// EventPublisher publishes stored articles downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Recorder receives per-candidate and per-run observations.
type Recorder interface {
	Outcome(category domain.Category, o domain.Outcome)
	Extraction(method domain.ExtractionMethod)
	StageDuration(stage string, d time.Duration)
	Run(report domain.RunReport)
}

type nopRecorder struct{}

func (nopRecorder) Outcome(domain.Category, domain.Outcome) {}
func (nopRecorder) Extraction(domain.ExtractionMethod)      {}
func (nopRecorder) StageDuration(string, time.Duration)     {}
func (nopRecorder) Run(domain.RunReport)                    {}
