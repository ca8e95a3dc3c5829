package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-digest/pkg/httpclient"
)

const (
	ProviderTypeGNews = "gnews_api"
	ProviderTypeRSS   = "rss"
)

// typeRegistry resolves fetchers by provider type.
type typeRegistry map[string]Fetcher

// NewFetcherRegistry keys each fetcher by the provider type it serves (its ID).
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := make(typeRegistry, len(fetchers))
	for _, f := range fetchers {
		if f == nil {
			continue
		}
		if key := strings.ToLower(strings.TrimSpace(f.ID())); key != "" {
			reg[key] = f
		}
	}
	return reg
}

// FetcherFor returns the fetcher registered for cfg.Type.
func (r typeRegistry) FetcherFor(cfg Provider) (Fetcher, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("provider id is empty")
	}
	if f, ok := r[strings.ToLower(strings.TrimSpace(cfg.Type))]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for provider %q (type %q)", cfg.ID, cfg.Type)
}

// DefaultHTTPClient returns the resty-backed client used by feed fetchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(15 * time.Second) }

// DefaultFetcherRegistry wires up the GNews and RSS fetchers over client.
func DefaultFetcherRegistry(client HTTPClient) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return NewFetcherRegistry(NewGNewsFetcher(client), NewRSSFetcher(client))
}
