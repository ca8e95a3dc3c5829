package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/categories"
	"github.com/samvad-hq/samvad-news-digest/internal/config"
	"github.com/samvad-hq/samvad-news-digest/internal/dedup"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/extractor"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
	"github.com/samvad-hq/samvad-news-digest/internal/metrics"
	"github.com/samvad-hq/samvad-news-digest/internal/pipeline"
	"github.com/samvad-hq/samvad-news-digest/internal/retry"
	"github.com/samvad-hq/samvad-news-digest/internal/source"
	"github.com/samvad-hq/samvad-news-digest/internal/storage"
	"github.com/samvad-hq/samvad-news-digest/internal/summarizer"
	"github.com/samvad-hq/samvad-news-digest/internal/validator"
	"github.com/samvad-hq/samvad-news-digest/pkg/httpclient"
	"github.com/samvad-hq/samvad-news-digest/pkg/llm"
	"github.com/samvad-hq/samvad-news-digest/pkg/providers"
	"github.com/samvad-hq/samvad-news-digest/pkg/publishers"
)

// Digester is the news digest runtime. It owns the store, the model client and the
// publisher connections, and runs the pipeline once or on a cron schedule.
type Digester struct {
	cfg      *config.Config
	log      logger.Logger
	store    storage.Store
	model    llm.Client
	fanout   *publishers.Fanout
	metrics  *metrics.Metrics
	pipeline *pipeline.Service
	reader   *storage.Reader
}

// Option customizes NewDigester.
type Option func(*options)

type options struct {
	feedClient providers.HTTPClient
	pageClient httpclient.Client
	model      llm.Client
}

// WithFeedClient overrides the HTTP client used for feed requests.
func WithFeedClient(c providers.HTTPClient) Option { return func(o *options) { o.feedClient = c } }

// WithPageClient overrides the HTTP client used to download article pages.
func WithPageClient(c httpclient.Client) Option { return func(o *options) { o.pageClient = c } }

// WithModel uses c instead of the configured LLM backend.
func WithModel(c llm.Client) Option { return func(o *options) { o.model = c } }

// NewDigester builds a runtime from config. The store is opened here and released by Close.
func NewDigester(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Digester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	providerReg, err := providers.LoadRegistry(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers registry: %w", err)
	}
	provider, ok := providerReg.ByID(cfg.FeedProvider)
	if !ok {
		return nil, fmt.Errorf("feed provider %q not found in %s", cfg.FeedProvider, cfg.ProvidersFile)
	}
	log.InfoObj("feed provider selected", "providers_meta", map[string]any{
		"id":   provider.ID,
		"type": provider.Type,
	})

	mapping, err := loadCategories(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}
	log.InfoObj("categories loaded", "categories_meta", map[string]any{
		"tokens":  mapping.Tokens(),
		"default": mapping.DefaultCategory(),
	})

	d := &Digester{cfg: cfg, log: log, metrics: metrics.New()}

	d.store, err = storage.NewStore(storageOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	d.reader = storage.NewReader(d.store)
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":           cfg.StorageType,
		"retention_days": cfg.RetentionDays,
	})

	d.fanout, err = buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.model = o.model
	if d.model == nil {
		d.model, err = llm.New(ctx, llmConfig(cfg.LLM))
		switch {
		case errors.Is(err, llm.ErrDisabled):
			log.WarnObj("llm disabled; summaries will be extractive", "llm_config", map[string]any{
				"provider": cfg.LLM.Provider,
				"reason":   err.Error(),
			})
			d.model = nil
		case err != nil:
			d.Close()
			return nil, fmt.Errorf("init llm: %w", err)
		}
	}
	var completer summarizer.Completer
	if d.model != nil {
		completer = d.model
		log.InfoObj("llm initialized", "llm_config", map[string]any{
			"provider":            cfg.LLM.Provider,
			"model":               d.model.Model(),
			"requests_per_minute": cfg.LLM.RequestsPerMinute,
		})
	}

	feedClient := o.feedClient
	if feedClient == nil {
		feedClient = httpclient.NewRestyClient(cfg.FeedTimeout)
	}
	pageClient := o.pageClient
	if pageClient == nil {
		pageClient = httpclient.NewRestyClientWithOptions(httpclient.Options{
			Timeout:   cfg.PageTimeout,
			UserAgent: cfg.PageUserAgent,
		})
	}

	src := source.New(providers.DefaultFetcherRegistry(feedClient), provider, mapping, source.Options{
		OverfetchFactor:     cfg.OverfetchFactor,
		MinTitleChars:       cfg.MinTitleChars,
		MinDescriptionChars: cfg.MinDescriptionChars,
	}, log)

	extractOpts := extractorOptions(cfg)
	extractOpts.Degraded = completer == nil

	d.pipeline = pipeline.NewService(pipeline.Deps{
		Categories: mapping,
		Source:     src,
		Dedup:      dedup.New(d.store),
		Extractor:  extractor.New(pageClient, extractOpts, log),
		Validator:  validator.New(validatorOptions(cfg)),
		Summarizer: summarizer.New(completer, summarizerOptions(cfg), log),
		Store:      d.store,
		Publisher:  d.fanout,
		Recorder:   d.metrics,
		Logger:     log,
	}, pipeline.Options{
		ArticlesPerCategory: cfg.ArticlesPerCategory,
		CategoryDelay:       cfg.CategoryDelay,
		Retention:           cfg.Retention,
	})

	return d, nil
}

func loadCategories(path string) (*categories.Mapping, error) {
	if strings.TrimSpace(path) == "" {
		return categories.Default(), nil
	}
	m, err := categories.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return m, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return publishers.NewFanout(nil), nil
	}
	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

func storageOptions(cfg *config.Config) storage.Options {
	opts := storage.Options{Type: cfg.StorageType, DSN: cfg.PostgresDSN}
	switch strings.ToLower(cfg.StorageType) {
	case storage.TypeSQLite:
		opts.Path = cfg.SQLitePath
	default:
		opts.Path = cfg.BBoltPath
	}
	return opts
}

func llmConfig(c config.LLMConfig) llm.Config {
	out := llm.Config{
		Provider:          c.Provider,
		RequestsPerMinute: c.RequestsPerMinute,
		Timeout:           c.Timeout,
	}
	switch c.Provider {
	case llm.ProviderOpenAI:
		out.APIKey, out.Model, out.BaseURL = c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL
	default:
		out.APIKey, out.Model = c.GeminiAPIKey, c.GeminiModel
	}
	return out
}

func extractorOptions(cfg *config.Config) extractor.Options {
	e := cfg.Extraction
	return extractor.Options{
		ReadabilityMinWords: e.ReadabilityMinWords,
		SelectorMinWords:    e.SelectorMinWords,
		ParagraphsMinWords:  e.ParagraphsMinWords,
		ParagraphMinChars:   e.ParagraphMinChars,
		StrippedMinWords:    e.StrippedMinWords,
		DescriptionMinWords: e.DescriptionMinWords,
		UserAgent:           cfg.PageUserAgent,

		StrippedMinWordsDegraded: e.StrippedMinWordsDegraded,
	}
}

func validatorOptions(cfg *config.Config) validator.Options {
	v := cfg.Validation
	return validator.Options{
		MinWords:           v.MinWords,
		ArtifactMaxRepeats: v.ArtifactMaxRepeats,
		MinSentenceMarks:   v.MinSentenceMarks,
		MinLongWords:       v.MinLongWords,
	}
}

func summarizerOptions(cfg *config.Config) summarizer.Options {
	s := cfg.Summary
	return summarizer.Options{
		MinWords:                 s.MinWords,
		MaxWords:                 s.MaxWords,
		MaxInputChars:            s.MaxInputChars,
		FallbackSentences:        s.FallbackSentences,
		FallbackSentenceMinWords: s.FallbackSentenceMinWords,
		Blacklist:                s.Blacklist,
		Retry: retry.Config{
			MaxAttempts: cfg.LLM.MaxAttempts,
			Delay:       cfg.LLM.RetryDelay,
			Backoff:     true,
		},
	}
}

// RunOnce executes one pipeline pass.
func (d *Digester) RunOnce(ctx context.Context) (domain.RunReport, error) {
	if d == nil || d.pipeline == nil {
		return domain.RunReport{}, fmt.Errorf("digester is not initialized")
	}
	return d.pipeline.Run(ctx)
}

// Sweep deletes records published before the retention horizon.
func (d *Digester) Sweep(ctx context.Context) (int, error) {
	if d == nil || d.store == nil {
		return 0, fmt.Errorf("digester is not initialized")
	}
	deleted, err := d.store.DeleteOlderThan(ctx, d.cfg.Retention)
	d.metrics.Sweep(deleted, err != nil)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	d.log.InfoObj("retention sweep completed", "sweep_result", map[string]any{
		"deleted":        deleted,
		"retention_days": d.cfg.RetentionDays,
	})
	return deleted, nil
}

// Reader exposes the read accessors over the store.
func (d *Digester) Reader() *storage.Reader { return d.reader }

// Metrics returns the run metrics.
func (d *Digester) Metrics() *metrics.Metrics { return d.metrics }

// Close releases publishers, the model client and the store.
func (d *Digester) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if err := d.fanout.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.model != nil {
		if err := d.model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close llm: %w", err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// runLogged runs once and logs the outcome, for use by the scheduler.
func (d *Digester) runLogged(ctx context.Context) {
	start := time.Now()
	report, err := d.RunOnce(ctx)
	if err != nil {
		d.log.ErrorObj("scheduled run failed", "run_error", map[string]any{
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return
	}
	d.log.InfoObj("scheduled run finished", "run_report", map[string]any{
		"saved":      report.Saved,
		"rejected":   report.Rejected,
		"duplicates": report.Duplicates,
		"deleted":    report.Deleted,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}
