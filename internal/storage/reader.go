package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

const (
	maxLatestCategories = 6
	defaultReadLimit    = 10
	month               = 30 * 24 * time.Hour
)

// Reader exposes the query accessors used by the API and chat collaborators.
// It never mutates core fields; IncrementClicks only bumps the counter.
type Reader struct {
	store Store
	now   func() time.Time
}

// NewReader wraps a Store.
func NewReader(store Store) *Reader {
	return &Reader{store: store, now: time.Now}
}

func limitOr(limit int) int {
	if limit <= 0 {
		return defaultReadLimit
	}
	return limit
}

// Latest returns the newest articles, optionally restricted to a category.
func (r *Reader) Latest(ctx context.Context, category domain.Category, limit int) ([]domain.Article, error) {
	return r.store.Find(ctx, Query{Category: category, Limit: limitOr(limit)})
}

// LatestByCategory returns the newest article of each category, at most six.
func (r *Reader) LatestByCategory(ctx context.Context) ([]domain.Article, error) {
	all, err := r.store.Find(ctx, Query{})
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.Category]struct{})
	var out []domain.Article
	for _, a := range all {
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		out = append(out, a)
		if len(out) == maxLatestCategories {
			break
		}
	}
	return out, nil
}

// Related returns other articles in the same category.
func (r *Reader) Related(ctx context.Context, category domain.Category, excludeID string, limit int) ([]domain.Article, error) {
	return r.store.Find(ctx, Query{Category: category, ExcludeID: excludeID, Limit: limitOr(limit)})
}

// BySource returns the newest articles from one outlet.
func (r *Reader) BySource(ctx context.Context, source string, limit int) ([]domain.Article, error) {
	return r.store.Find(ctx, Query{Source: source, Limit: limitOr(limit)})
}

// Popular returns the most clicked articles.
func (r *Reader) Popular(ctx context.Context, limit int, excludeID string) ([]domain.Article, error) {
	return r.store.Find(ctx, Query{ExcludeID: excludeID, Order: OrderPopular, Limit: limitOr(limit)})
}

// Random returns a random sample of articles.
func (r *Reader) Random(ctx context.Context, limit int) ([]domain.Article, error) {
	return r.store.Find(ctx, Query{Order: OrderRandom, Limit: limitOr(limit)})
}

// Search matches text case-insensitively against the title, source or category.
func (r *Reader) Search(ctx context.Context, text, field string, limit int) ([]domain.Article, error) {
	f, err := ParseSearchField(field)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("search text is empty")
	}
	return r.store.Find(ctx, Query{Text: text, Field: f, Limit: limitOr(limit)})
}

// Categories lists the distinct categories with at least one article.
func (r *Reader) Categories(ctx context.Context) ([]domain.Category, error) {
	all, err := r.store.Find(ctx, Query{})
	if err != nil {
		return nil, err
	}
	set := make(map[domain.Category]struct{})
	for _, a := range all {
		set[a.Category] = struct{}{}
	}
	out := make([]domain.Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Sources lists the distinct source names.
func (r *Reader) Sources(ctx context.Context) ([]string, error) {
	all, err := r.store.Find(ctx, Query{})
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, a := range all {
		if a.SourceName != "" {
			set[a.SourceName] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Stats returns store totals for today.
func (r *Reader) Stats(ctx context.Context) (domain.Stats, error) {
	return r.store.Stats(ctx, r.now())
}

// IncrementClicks bumps the click counter of one article.
func (r *Reader) IncrementClicks(ctx context.Context, id string) (bool, error) {
	return r.store.IncrementClicks(ctx, id)
}

// AgeDistribution counts records by publish age in months.
type AgeDistribution struct {
	UnderOneMonth    int `json:"menos_1_mes"`
	OneToThree       int `json:"1_3_meses"`
	ThreeToSix       int `json:"3_6_meses"`
	SixToTwelve      int `json:"6_12_meses"`
	OverTwelveMonths int `json:"mas_12_meses"`
	Total            int `json:"total"`
}

// AgeDistribution buckets every record by how long ago it was published.
func (r *Reader) AgeDistribution(ctx context.Context) (AgeDistribution, error) {
	var dist AgeDistribution
	all, err := r.store.Find(ctx, Query{})
	if err != nil {
		return dist, err
	}
	now := r.now()
	for _, a := range all {
		age := now.Sub(a.PublishedAt)
		switch {
		case age < month:
			dist.UnderOneMonth++
		case age < 3*month:
			dist.OneToThree++
		case age < 6*month:
			dist.ThreeToSix++
		case age < 12*month:
			dist.SixToTwelve++
		default:
			dist.OverTwelveMonths++
		}
		dist.Total++
	}
	return dist, nil
}

// ExpiringSoon returns records the next sweep with horizon will delete within window.
func (r *Reader) ExpiringSoon(ctx context.Context, horizon, window time.Duration) ([]domain.Article, error) {
	cutoff := r.now().Add(-horizon)
	return r.store.Find(ctx, Query{
		PublishedFrom:   cutoff,
		PublishedBefore: cutoff.Add(window),
	})
}
