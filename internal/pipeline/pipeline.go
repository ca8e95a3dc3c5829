// Package pipeline runs one digest pass: fetch, dedup, extract, validate, summarize and persist
// every category in turn, then sweep expired records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/categories"
	"github.com/samvad-hq/samvad-news-digest/internal/dedup"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
	"github.com/samvad-hq/samvad-news-digest/pkg/publishers"
)

// Stage names reported to the Recorder.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageSummarize = "summarize"
	StagePersist   = "persist"
)

// Options tunes one run.
type Options struct {
	ArticlesPerCategory int
	CategoryDelay       time.Duration
	Retention           time.Duration
}

// Deps are the collaborators of a Service. Publisher and Recorder are optional.
type Deps struct {
	Categories *categories.Mapping
	Source     CandidateSource
	Dedup      Deduper
	Extractor  ContentExtractor
	Validator  ContentValidator
	Summarizer ArticleSummarizer
	Store      ArticleStore
	Publisher  EventPublisher
	Recorder   Recorder
	Logger     logger.Logger
}

// Service coordinates a run across all configured categories.
type Service struct {
	deps  Deps
	opts  Options
	log   logger.Logger
	rec   Recorder
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewService wires a pipeline. Missing required collaborators surface as an error from Run.
func NewService(deps Deps, opts Options) *Service {
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	if opts.ArticlesPerCategory <= 0 {
		opts.ArticlesPerCategory = 2
	}
	return &Service{
		deps:  deps,
		opts:  opts,
		log:   logger.Ensure(deps.Logger),
		rec:   rec,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func (s *Service) validate() error {
	switch {
	case s == nil:
		return errors.New("pipeline service is not initialized")
	case s.deps.Categories == nil:
		return errors.New("pipeline: categories mapping is required")
	case s.deps.Source == nil:
		return errors.New("pipeline: source is required")
	case s.deps.Dedup == nil:
		return errors.New("pipeline: deduplicator is required")
	case s.deps.Extractor == nil:
		return errors.New("pipeline: extractor is required")
	case s.deps.Validator == nil:
		return errors.New("pipeline: validator is required")
	case s.deps.Summarizer == nil:
		return errors.New("pipeline: summarizer is required")
	case s.deps.Store == nil:
		return errors.New("pipeline: store is required")
	}
	return nil
}

// Run executes one pass and returns its report. Per-candidate failures are counted, never returned.
// A cancelled ctx stops the run between candidates and returns the partial report with ctx's error.
func (s *Service) Run(ctx context.Context) (domain.RunReport, error) {
	if err := s.validate(); err != nil {
		return domain.RunReport{}, err
	}

	report := domain.RunReport{StartedAt: s.now().UTC()}
	defer s.deps.Dedup.Reset()

	known, err := s.deps.Store.KnownURLs(ctx)
	if err != nil {
		s.log.WarnObj("known urls unavailable, relying on dedup lookups", "pipeline_warning", map[string]any{
			"error": err.Error(),
		})
		known = map[string]struct{}{}
	}

	tokens := s.deps.Categories.Tokens()
	for i, token := range tokens {
		if i > 0 && !s.sleep(ctx, s.opts.CategoryDelay) {
			break
		}
		cr := s.runCategory(ctx, token, known, &report)
		report.Categories = append(report.Categories, cr)
		if ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		report.FinishedAt = s.now().UTC()
		s.rec.Run(report)
		return report, ctx.Err()
	}

	s.sweep(ctx, &report)
	if totals, err := s.deps.Store.Stats(ctx, s.now()); err != nil {
		s.log.WarnObj("store stats unavailable", "pipeline_warning", map[string]any{"error": err.Error()})
	} else {
		report.Totals = totals
	}

	report.FinishedAt = s.now().UTC()
	s.rec.Run(report)
	s.log.InfoObj("pipeline run completed", "pipeline_report", map[string]any{
		"saved":          report.Saved,
		"saved_llm":      report.SavedLLM,
		"saved_fallback": report.SavedFallback,
		"rejected":       report.Rejected,
		"fetch_failed":   report.FetchFailed,
		"duplicates":     report.Duplicates,
		"store_failed":   report.StoreFailed,
		"deleted":        report.Deleted,
		"duration":       report.FinishedAt.Sub(report.StartedAt).String(),
	})
	return report, nil
}

// sweep deletes expired records. A failure is reported, not returned.
func (s *Service) sweep(ctx context.Context, report *domain.RunReport) {
	if s.opts.Retention <= 0 {
		return
	}
	deleted, err := s.deps.Store.DeleteOlderThan(ctx, s.opts.Retention)
	if err != nil {
		report.SweepError = err.Error()
		s.log.ErrorObj("retention sweep failed", "pipeline_error", map[string]any{"error": err.Error()})
		return
	}
	report.Deleted = deleted
	if deleted > 0 {
		s.log.InfoObj("retention sweep removed records", "pipeline_sweep", map[string]any{
			"deleted":   deleted,
			"retention": s.opts.Retention.String(),
		})
	}
}

func (s *Service) runCategory(ctx context.Context, token string, known map[string]struct{}, report *domain.RunReport) domain.CategoryReport {
	cr := domain.CategoryReport{Token: token, Category: s.deps.Categories.Normalize(token)}

	start := s.now()
	candidates := s.deps.Source.Fetch(ctx, token, s.opts.ArticlesPerCategory, known)
	s.rec.StageDuration(StageFetch, s.now().Sub(start))
	cr.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if c.Category == "" {
			c.Category = cr.Category
		}
		outcome := s.process(ctx, c)
		cr.Record(outcome)
		report.Record(outcome)
		s.rec.Outcome(c.Category, outcome)
		if outcome == domain.OutcomeStoredLLM || outcome == domain.OutcomeStoredExtractive {
			known[c.URL] = struct{}{}
		}
	}

	s.log.InfoObj("category processed", "pipeline_category", cr)
	return cr
}

// process carries one candidate to a terminal outcome. A panic inside a stage is
// recovered and classified as that stage's failure outcome.
func (s *Service) process(ctx context.Context, c domain.Candidate) (outcome domain.Outcome) {
	failure := domain.OutcomeStoreFailed
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorObj("candidate stage panicked", "pipeline_candidate", candidateFields(c, fmt.Errorf("panic: %v", r)))
			outcome = failure
		}
	}()

	if err := s.deps.Dedup.Check(ctx, c); err != nil {
		if domain.IsDuplicate(err) {
			s.log.DebugObj("candidate skipped as duplicate", "pipeline_candidate", candidateFields(c, err))
			return domain.OutcomeDuplicate
		}
		s.log.ErrorObj("dedup lookup failed", "pipeline_candidate", candidateFields(c, err))
		return domain.OutcomeStoreFailed
	}

	failure = domain.OutcomeFetchFailed
	start := s.now()
	extracted, err := s.deps.Extractor.Extract(ctx, c)
	s.rec.StageDuration(StageExtract, s.now().Sub(start))
	if err != nil {
		s.log.WarnObj("extraction failed", "pipeline_candidate", candidateFields(c, err))
		return domain.OutcomeFetchFailed
	}
	s.rec.Extraction(extracted.Method)

	failure = domain.OutcomeRejected
	if err := s.deps.Validator.Validate(extracted.Text); err != nil {
		s.log.WarnObj("content rejected", "pipeline_candidate", candidateFields(c, err))
		return domain.OutcomeRejected
	}

	start = s.now()
	summary, err := s.deps.Summarizer.Summarize(ctx, c.Title, extracted.Text)
	s.rec.StageDuration(StageSummarize, s.now().Sub(start))
	if err != nil {
		s.log.WarnObj("summary unavailable", "pipeline_candidate", candidateFields(c, err))
		return domain.OutcomeRejected
	}

	failure = domain.OutcomeStoreFailed
	article := s.articleFrom(c, extracted, summary)
	start = s.now()
	err = s.deps.Store.Insert(ctx, article)
	s.rec.StageDuration(StagePersist, s.now().Sub(start))
	if err != nil {
		if domain.IsDuplicate(err) {
			s.log.DebugObj("store reported duplicate", "pipeline_candidate", candidateFields(c, err))
			return domain.OutcomeDuplicate
		}
		s.log.ErrorObj("store insert failed", "pipeline_candidate", candidateFields(c, err))
		return domain.OutcomeStoreFailed
	}
	s.deps.Dedup.Commit(c)

	stored := domain.OutcomeStoredExtractive
	if summary.Method == domain.SummaryLLM {
		stored = domain.OutcomeStoredLLM
	}
	failure = stored

	s.publish(ctx, *article)

	s.log.InfoObj("article stored", "pipeline_article", map[string]any{
		"url":            article.URL,
		"category":       article.Category,
		"extraction":     extracted.Method,
		"summary_method": summary.Method,
		"summary_words":  summary.WordCount,
	})
	return stored
}

func (s *Service) articleFrom(c domain.Candidate, ex domain.ExtractionResult, sum domain.Summary) *domain.Article {
	published := c.PublishedAt
	if published.IsZero() {
		published = s.now()
	}
	image := c.ImageURL
	if image == "" {
		image = ex.ImageURL
	}
	return &domain.Article{
		Title:         c.Title,
		URL:           c.URL,
		Category:      c.Category,
		SourceName:    c.SourceName,
		ImageURL:      image,
		PublishedAt:   published,
		Summary:       sum.Text,
		SummaryMethod: sum.Method,
		TitleHash:     dedup.TitleHash(c.Title),
	}
}

// publish notifies downstream sinks. Delivery failures never change the outcome.
func (s *Service) publish(ctx context.Context, a domain.Article) {
	if s.deps.Publisher == nil {
		return
	}
	if _, err := s.deps.Publisher.Publish(ctx, publishers.NewEvent(a)); err != nil {
		s.log.WarnObj("event publish failed", "pipeline_publish", map[string]any{
			"url":   a.URL,
			"error": err.Error(),
		})
	}
}

func candidateFields(c domain.Candidate, err error) map[string]any {
	return map[string]any{
		"url":      c.URL,
		"category": c.Category,
		"error":    fmt.Sprint(err),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
