package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

func newTestReader(t *testing.T) (*Reader, Store) {
	t.Helper()
	store, err := NewStore(Options{Type: "bbolt", Path: filepath.Join(t.TempDir(), "digest.db")})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewReader(store), store
}

func daysAgo(d int) time.Time { return time.Now().Add(-time.Duration(d) * 24 * time.Hour) }

func TestReaderLatestByCategoryCapsAtSix(t *testing.T) {
	r, store := newTestReader(t)
	for i, c := range domain.Categories {
		mustInsert(t, store, article(i, c, daysAgo(i)))
	}
	mustInsert(t, store, article(100, domain.CategoryBusiness, daysAgo(20)))

	latest, err := r.LatestByCategory(context.Background())
	if err != nil {
		t.Fatalf("LatestByCategory: %v", err)
	}
	if len(latest) != 6 {
		t.Fatalf("expected 6 articles, got %d", len(latest))
	}
	seen := map[domain.Category]bool{}
	for _, a := range latest {
		if seen[a.Category] {
			t.Fatalf("category %s repeated", a.Category)
		}
		seen[a.Category] = true
	}
	if latest[0].Category != domain.CategoryBusiness || latest[0].URL != "https://diario.example/nota/0" {
		t.Fatalf("expected the newest business article first, got %+v", latest[0])
	}
}

func TestReaderAccessors(t *testing.T) {
	r, store := newTestReader(t)
	ctx := context.Background()
	a1 := article(1, domain.CategoryHealth, daysAgo(1))
	a2 := article(2, domain.CategoryHealth, daysAgo(2))
	a3 := article(3, domain.CategoryScience, daysAgo(3))
	a3.SourceName = "Ciencia Hoy"
	mustInsert(t, store, a1, a2, a3)

	related, err := r.Related(ctx, domain.CategoryHealth, a1.ID, 5)
	if err != nil || len(related) != 1 || related[0].ID != a2.ID {
		t.Fatalf("unexpected related %+v err=%v", related, err)
	}

	bySource, err := r.BySource(ctx, "Ciencia Hoy", 0)
	if err != nil || len(bySource) != 1 {
		t.Fatalf("unexpected by-source %+v err=%v", bySource, err)
	}

	hits, err := r.Search(ctx, "ciencia", "fuente", 0)
	if err != nil || len(hits) != 1 || hits[0].ID != a3.ID {
		t.Fatalf("unexpected search hits %+v err=%v", hits, err)
	}
	if _, err := r.Search(ctx, "x", "resumen", 0); err == nil {
		t.Fatalf("expected error for unknown search field")
	}
	if _, err := r.Search(ctx, "  ", "titulo", 0); err == nil {
		t.Fatalf("expected error for blank search text")
	}

	if _, err := r.IncrementClicks(ctx, a2.ID); err != nil {
		t.Fatalf("IncrementClicks: %v", err)
	}
	popular, err := r.Popular(ctx, 1, "")
	if err != nil || len(popular) != 1 || popular[0].ID != a2.ID {
		t.Fatalf("unexpected popular %+v err=%v", popular, err)
	}

	random, err := r.Random(ctx, 2)
	if err != nil || len(random) != 2 {
		t.Fatalf("unexpected random sample %+v err=%v", random, err)
	}

	cats, err := r.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if want := []domain.Category{domain.CategoryScience, domain.CategoryHealth}; !reflect.DeepEqual(cats, want) {
		t.Fatalf("expected %v, got %v", want, cats)
	}

	sources, err := r.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if want := []string{"Ciencia Hoy", "Diario Ejemplo"}; !reflect.DeepEqual(sources, want) {
		t.Fatalf("expected %v, got %v", want, sources)
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalArticles != 3 || stats.TotalClicks != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestReaderAgeDistributionAndExpiringSoon(t *testing.T) {
	r, store := newTestReader(t)
	ctx := context.Background()
	for i, d := range []int{15, 60, 120, 170, 240, 420} {
		mustInsert(t, store, article(i, domain.CategoryGeneral, daysAgo(d)))
	}

	dist, err := r.AgeDistribution(ctx)
	if err != nil {
		t.Fatalf("AgeDistribution: %v", err)
	}
	want := AgeDistribution{
		UnderOneMonth:    1,
		OneToThree:       1,
		ThreeToSix:       2,
		SixToTwelve:      1,
		OverTwelveMonths: 1,
		Total:            6,
	}
	if dist != want {
		t.Fatalf("expected %+v, got %+v", want, dist)
	}

	expiring, err := r.ExpiringSoon(ctx, 180*24*time.Hour, 15*24*time.Hour)
	if err != nil {
		t.Fatalf("ExpiringSoon: %v", err)
	}
	if len(expiring) != 1 || expiring[0].URL != "https://diario.example/nota/3" {
		t.Fatalf("expected only the 170-day record, got %+v", expiring)
	}
}
