// Package source pulls headline candidates from the configured feed provider.
package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/categories"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/internal/logger"
	"github.com/samvad-hq/samvad-news-digest/pkg/providers"
)

// Options tunes candidate filtering.
type Options struct {
	OverfetchFactor     int
	MinTitleChars       int
	MinDescriptionChars int
}

// Fetcher asks the feed provider for candidates of one category. It never returns an error:
// every failure degrades to zero candidates.
type Fetcher struct {
	registry providers.FetcherRegistry
	provider providers.Provider
	mapping  *categories.Mapping
	opts     Options
	log      logger.Logger
	sleep    func(ctx context.Context, d time.Duration) bool
}

// New builds a source Fetcher for provider.
func New(reg providers.FetcherRegistry, provider providers.Provider, mapping *categories.Mapping, opts Options, log logger.Logger) *Fetcher {
	if opts.OverfetchFactor < 1 {
		opts.OverfetchFactor = 3
	}
	if mapping == nil {
		mapping = categories.Default()
	}
	return &Fetcher{
		registry: reg,
		provider: provider,
		mapping:  mapping,
		opts:     opts,
		log:      logger.Ensure(log),
		sleep:    sleepCtx,
	}
}

// Fetch returns at most n candidates for token whose url is not in known.
func (f *Fetcher) Fetch(ctx context.Context, token string, n int, known map[string]struct{}) []domain.Candidate {
	if f == nil || f.registry == nil || n <= 0 {
		return nil
	}

	fetcher, err := f.registry.FetcherFor(f.provider)
	if err != nil {
		f.log.ErrorObj("feed fetcher unavailable", "feed_error", map[string]any{
			"provider_id": f.provider.ID,
			"error":       err.Error(),
		})
		return nil
	}

	if !f.sleep(ctx, f.provider.RequestDelay()) {
		return nil
	}

	raw, err := fetcher.Fetch(ctx, f.provider, providers.Query{Category: token, Max: n * f.opts.OverfetchFactor})
	if err != nil {
		var statusErr *providers.StatusError
		if errors.As(err, &statusErr) && statusErr.RateLimited() {
			f.log.WarnObj("feed rate limited; cooling down", "feed_rate_limit", map[string]any{
				"provider_id": f.provider.ID,
				"category":    token,
				"cooldown_ms": f.provider.Cooldown().Milliseconds(),
			})
			f.sleep(ctx, f.provider.Cooldown())
			return nil
		}
		f.log.WarnObj("feed fetch failed", "feed_error", map[string]any{
			"provider_id": f.provider.ID,
			"category":    token,
			"error":       err.Error(),
		})
		return nil
	}

	category := f.mapping.Normalize(token)
	out := make([]domain.Candidate, 0, n)
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		if len(out) >= n {
			break
		}
		c.URL = strings.TrimSpace(c.URL)
		if c.URL == "" {
			continue
		}
		if _, ok := known[c.URL]; ok {
			continue
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		if !f.passesLength(c) {
			continue
		}
		seen[c.URL] = struct{}{}
		c.CategoryToken = token
		c.Category = category
		out = append(out, c)
	}

	f.log.InfoObj("feed candidates fetched", "feed_result", map[string]any{
		"provider_id": f.provider.ID,
		"category":    token,
		"received":    len(raw),
		"accepted":    len(out),
	})
	return out
}

func (f *Fetcher) passesLength(c domain.Candidate) bool {
	title := strings.TrimSpace(c.Title)
	desc := strings.TrimSpace(c.Description)
	if title == "" || desc == "" {
		return false
	}
	return len([]rune(title)) >= f.opts.MinTitleChars && len([]rune(desc)) >= f.opts.MinDescriptionChars
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
