package providers

import (
	"context"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/pkg/httpclient"
)

// Query selects headlines for one category.
type Query struct {
	Category string
	Max      int
}

// Fetcher retrieves headline candidates for a provider.
// Concrete implementations live in provider-specific files (e.g., gnews.go).
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, cfg Provider, q Query) ([]domain.Candidate, error)
}

// FetcherRegistry resolves the fetcher implementation for a given provider config.
type FetcherRegistry interface {
	FetcherFor(cfg Provider) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.QueryClient interface for clarity within providers.
type HTTPClient = httpclient.QueryClient
