package providers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

// rssFetcher implements Fetcher for plain RSS/Atom feeds, one feed url per category token.
type rssFetcher struct {
	client HTTPClient
	now    func() time.Time
}

// NewRSSFetcher builds a fetcher that reads the per-category feeds listed under config.feeds.
func NewRSSFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &rssFetcher{client: client, now: time.Now}
}

func (f *rssFetcher) ID() string {
	return ProviderTypeRSS
}

func (f *rssFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Candidate, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeRSS) {
		return nil, fmt.Errorf("rss fetcher received incompatible provider type %q", cfg.Type)
	}
	feedURL := ConfigStringMap(cfg, ConfigFeedsKey)[strings.ToLower(strings.TrimSpace(q.Category))]
	if feedURL == "" {
		return nil, fmt.Errorf("provider %q has no feed for category %q", cfg.ID, q.Category)
	}

	raw, err := fetchFeed(ctx, f.client, feedURL, cfg.ID, nil, Headers(cfg))
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s feed: %w", cfg.ID, err)
	}

	fetchedAt := f.now().UTC()
	source := firstNonEmpty(feed.Title, cfg.Name)
	out := make([]domain.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		published := fetchedAt
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		out = append(out, domain.Candidate{
			URL:           strings.TrimSpace(item.Link),
			Title:         plainText(item.Title),
			Description:   plainText(item.Description),
			PublishedAt:   published,
			SourceName:    source,
			ImageURL:      itemImage(item),
			CategoryToken: q.Category,
		})
		if q.Max > 0 && len(out) >= q.Max {
			break
		}
	}
	return out, nil
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return strings.TrimSpace(item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return strings.TrimSpace(enc.URL)
		}
	}
	return ""
}
