package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

const gnewsDefaultLanguage = "es"

// gnewsFetcher implements Fetcher for the GNews top-headlines API.
type gnewsFetcher struct {
	client HTTPClient
	now    func() time.Time
}

type gnewsResponse struct {
	TotalArticles int            `json:"totalArticles"`
	Articles      []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

// NewGNewsFetcher builds a fetcher for the GNews API.
func NewGNewsFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &gnewsFetcher{client: client, now: time.Now}
}

func (f *gnewsFetcher) ID() string {
	return ProviderTypeGNews
}

func (f *gnewsFetcher) Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Candidate, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeGNews) {
		return nil, fmt.Errorf("gnews fetcher received incompatible provider type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.SourceURL) == "" {
		return nil, fmt.Errorf("provider %q source_url is empty", cfg.ID)
	}
	apiKey := APIKey(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("provider %q has no api key configured", cfg.ID)
	}

	params := map[string]string{
		"category": q.Category,
		"lang":     ConfigString(cfg, ConfigLanguageKey, gnewsDefaultLanguage),
		"max":      strconv.Itoa(q.Max),
		"apikey":   apiKey,
	}
	if country := ConfigString(cfg, ConfigCountryKey, ""); country != "" {
		params["country"] = country
	}

	raw, err := fetchFeed(ctx, f.client, cfg.SourceURL, cfg.ID, params, Headers(cfg))
	if err != nil {
		return nil, err
	}

	var payload gnewsResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode gnews response: %w", err)
	}

	fetchedAt := f.now().UTC()
	out := make([]domain.Candidate, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		link := strings.TrimSpace(a.URL)
		if link == "" {
			continue
		}
		out = append(out, domain.Candidate{
			URL:           link,
			Title:         strings.TrimSpace(a.Title),
			Description:   plainText(a.Description),
			PublishedAt:   parsePublished(a.PublishedAt, fetchedAt),
			SourceName:    firstNonEmpty(a.Source.Name, cfg.Name),
			ImageURL:      strings.TrimSpace(a.Image),
			CategoryToken: q.Category,
		})
	}
	return out, nil
}

func parsePublished(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
