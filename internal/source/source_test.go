package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/categories"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"github.com/samvad-hq/samvad-news-digest/pkg/providers"
)

// fakeFetcher returns preset candidates or an error and records the query.
type fakeFetcher struct {
	cands []domain.Candidate
	err   error
	query providers.Query
	calls int
}

func (f *fakeFetcher) ID() string { return "fake" }
func (f *fakeFetcher) Fetch(_ context.Context, _ providers.Provider, q providers.Query) ([]domain.Candidate, error) {
	f.calls++
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	return f.cands, nil
}

type fakeRegistry struct {
	fetcher providers.Fetcher
}

func (f *fakeRegistry) FetcherFor(providers.Provider) (providers.Fetcher, error) {
	if f.fetcher == nil {
		return nil, errors.New("missing fetcher")
	}
	return f.fetcher, nil
}

// recordSleeps replaces real waits with a log of requested durations.
func recordSleeps(f *Fetcher) *[]time.Duration {
	var waits []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}
	return &waits
}

func candidate(url string) domain.Candidate {
	return domain.Candidate{
		URL:         url,
		Title:       "Titular suficientemente largo",
		Description: "Una descripción que supera el mínimo de caracteres.",
	}
}

func newFetcher(ff *fakeFetcher) *Fetcher {
	provider := providers.Provider{ID: "gnews", RequestDelayMs: 2000, CooldownMs: 10000}
	return New(&fakeRegistry{fetcher: ff}, provider, categories.Default(), Options{
		OverfetchFactor:     3,
		MinTitleChars:       10,
		MinDescriptionChars: 20,
	}, nil)
}

func TestFetchOverfetchesAndFiltersKnown(t *testing.T) {
	short := candidate("https://x/short")
	short.Description = "corta"
	ff := &fakeFetcher{cands: []domain.Candidate{
		candidate("https://x/known"),
		short,
		candidate("https://x/a"),
		candidate("https://x/a"),
		candidate("https://x/b"),
		candidate("https://x/c"),
	}}
	f := newFetcher(ff)
	waits := recordSleeps(f)

	got := f.Fetch(context.Background(), "business", 2, map[string]struct{}{"https://x/known": {}})

	if ff.query.Max != 6 || ff.query.Category != "business" {
		t.Fatalf("expected over-fetch of 6 for business, got %+v", ff.query)
	}
	if len(got) != 2 || got[0].URL != "https://x/a" || got[1].URL != "https://x/b" {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if got[0].Category != domain.CategoryBusiness {
		t.Fatalf("category not normalized: %q", got[0].Category)
	}
	if len(*waits) != 1 || (*waits)[0] != 2*time.Second {
		t.Fatalf("expected one pacing delay of 2s, got %v", *waits)
	}
}

func TestFetchCoolsDownOnRateLimit(t *testing.T) {
	ff := &fakeFetcher{err: &providers.StatusError{ProviderID: "gnews", Code: 429}}
	f := newFetcher(ff)
	waits := recordSleeps(f)

	got := f.Fetch(context.Background(), "health", 2, nil)
	if len(got) != 0 {
		t.Fatalf("expected no candidates on 429, got %d", len(got))
	}
	if len(*waits) != 2 || (*waits)[1] != 10*time.Second {
		t.Fatalf("expected pacing then 10s cooldown, got %v", *waits)
	}
	if ff.calls != 1 {
		t.Fatalf("must not retry within the same call, got %d calls", ff.calls)
	}
}

func TestFetchSwallowsTransportErrors(t *testing.T) {
	f := newFetcher(&fakeFetcher{err: errors.New("timeout")})
	waits := recordSleeps(f)

	if got := f.Fetch(context.Background(), "science", 2, nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	if len(*waits) != 1 {
		t.Fatalf("no cooldown expected on plain errors, got %v", *waits)
	}
}

func TestFetchUnknownTokenUsesDefaultCategory(t *testing.T) {
	f := newFetcher(&fakeFetcher{cands: []domain.Candidate{candidate("https://x/w")}})
	recordSleeps(f)

	got := f.Fetch(context.Background(), "world", 1, nil)
	if len(got) != 1 || got[0].Category != domain.CategoryGeneral {
		t.Fatalf("expected General fallback, got %+v", got)
	}
}

func TestSleepCtxStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Fatalf("expected sleep to abort on cancelled context")
	}
}
