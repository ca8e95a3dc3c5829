package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

// backends opens every embedded backend in a temp dir.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	bolt, err := NewStore(Options{Type: "bbolt", Path: filepath.Join(dir, "digest.db")})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	sqlite, err := NewStore(Options{Type: "sqlite", Path: filepath.Join(dir, "digest.sqlite")})
	if err != nil {
		bolt.Close()
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() {
		bolt.Close()
		sqlite.Close()
	})
	return map[string]Store{"bbolt": bolt, "sqlite": sqlite}
}

func article(n int, category domain.Category, published time.Time) *domain.Article {
	return &domain.Article{
		Title:         fmt.Sprintf("Titular %d", n),
		URL:           fmt.Sprintf("https://diario.example/nota/%d", n),
		Category:      category,
		SourceName:    "Diario Ejemplo",
		PublishedAt:   published,
		Summary:       "resumen",
		SummaryMethod: domain.SummaryLLM,
		TitleHash:     fmt.Sprintf("hash-%d", n),
	}
}

// mustInsert fails the test when a fresh record cannot be stored.
func mustInsert(t *testing.T, store Store, articles ...*domain.Article) {
	t.Helper()
	for _, a := range articles {
		if err := store.Insert(context.Background(), a); err != nil {
			t.Fatalf("Insert %s: %v", a.URL, err)
		}
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := article(1, domain.CategoryHealth, time.Now())
			mustInsert(t, store, a)
			if a.ID == "" {
				t.Fatalf("insert must assign an id")
			}

			var dup *domain.DuplicateKeyError
			err := store.Insert(ctx, article(1, domain.CategoryHealth, time.Now()))
			if !errors.As(err, &dup) || dup.Field != "url" {
				t.Fatalf("expected url duplicate, got %v", err)
			}

			sameTitle := article(2, domain.CategoryHealth, time.Now())
			sameTitle.TitleHash = a.TitleHash
			err = store.Insert(ctx, sameTitle)
			if !errors.As(err, &dup) || dup.Field != "title_hash" {
				t.Fatalf("expected title duplicate, got %v", err)
			}

			all, err := store.Find(ctx, Query{})
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if len(all) != 1 {
				t.Fatalf("expected 1 record, got %d", len(all))
			}

			exists, err := store.Exists(ctx, "https://other", a.TitleHash)
			if err != nil || !exists {
				t.Fatalf("expected title hash match, exists=%v err=%v", exists, err)
			}
			exists, err = store.Exists(ctx, "https://other", "other-hash")
			if err != nil || exists {
				t.Fatalf("expected no match, exists=%v err=%v", exists, err)
			}

			known, err := store.KnownURLs(ctx)
			if err != nil {
				t.Fatalf("KnownURLs: %v", err)
			}
			if _, ok := known[a.URL]; !ok {
				t.Fatalf("stored url missing from known set %v", known)
			}
		})
	}
}

func TestDeleteOlderThanKeepsRecentRecords(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			old := article(1, domain.CategoryScience, now.AddDate(0, -7, 0))
			recent := article(2, domain.CategoryScience, now.AddDate(0, -1, 0))
			mustInsert(t, store, old, recent)

			deleted, err := store.DeleteOlderThan(ctx, 180*24*time.Hour)
			if err != nil || deleted != 1 {
				t.Fatalf("expected 1 deleted, got %d err=%v", deleted, err)
			}

			left, err := store.Find(ctx, Query{})
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if len(left) != 1 || left[0].URL != recent.URL {
				t.Fatalf("expected only the recent record to remain, got %+v", left)
			}

			// The deleted url is free again.
			exists, err := store.Exists(ctx, old.URL, old.TitleHash)
			if err != nil || exists {
				t.Fatalf("expired record still visible, exists=%v err=%v", exists, err)
			}

			deleted, err = store.DeleteOlderThan(ctx, 180*24*time.Hour)
			if err != nil || deleted != 0 {
				t.Fatalf("second sweep should delete nothing, got %d err=%v", deleted, err)
			}
		})
	}
}

func TestFindFiltersAndOrders(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			a1 := article(1, domain.CategorySports, now.AddDate(0, 0, -2))
			a2 := article(2, domain.CategorySports, now.AddDate(0, 0, -1))
			a3 := article(3, domain.CategoryTechnology, now)
			a3.SourceName = "Tech Hoy"
			mustInsert(t, store, a1, a2, a3)

			newest, err := store.Find(ctx, Query{Category: domain.CategorySports})
			if err != nil {
				t.Fatalf("Find by category: %v", err)
			}
			if len(newest) != 2 || newest[0].URL != a2.URL {
				t.Fatalf("expected newest sports first, got %+v", newest)
			}

			bySource, err := store.Find(ctx, Query{Source: "tech hoy"})
			if err != nil {
				t.Fatalf("Find by source: %v", err)
			}
			if len(bySource) != 1 || bySource[0].URL != a3.URL {
				t.Fatalf("source match must ignore case, got %+v", bySource)
			}

			found, err := store.Find(ctx, Query{Text: "titular 1", Field: FieldTitle})
			if err != nil {
				t.Fatalf("Find by text: %v", err)
			}
			if len(found) != 1 || found[0].URL != a1.URL {
				t.Fatalf("unexpected title search result %+v", found)
			}

			ok, err := store.IncrementClicks(ctx, a1.ID)
			if err != nil || !ok {
				t.Fatalf("IncrementClicks: ok=%v err=%v", ok, err)
			}
			ok, err = store.IncrementClicks(ctx, "missing")
			if err != nil || ok {
				t.Fatalf("missing id must report false, ok=%v err=%v", ok, err)
			}

			popular, err := store.Find(ctx, Query{Order: OrderPopular, Limit: 1})
			if err != nil {
				t.Fatalf("Find popular: %v", err)
			}
			if len(popular) != 1 || popular[0].URL != a1.URL || popular[0].Clicks != 1 {
				t.Fatalf("unexpected popular result %+v", popular)
			}

			stats, err := store.Stats(ctx, now)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.TotalArticles != 3 || stats.TotalClicks != 1 || stats.ArticlesToday != 1 {
				t.Fatalf("unexpected stats %+v", stats)
			}
		})
	}
}

func TestNewStoreRejectsBadOptions(t *testing.T) {
	for _, opts := range []Options{
		{Type: "bbolt"},
		{Type: "postgres"},
		{Type: "mongo", Path: "x"},
	} {
		if _, err := NewStore(opts); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}

func TestParseSearchField(t *testing.T) {
	if f, err := ParseSearchField(""); err != nil || f != FieldTitle {
		t.Fatalf("empty field should default to title, got %q err=%v", f, err)
	}
	if f, err := ParseSearchField("Fuente"); err != nil || f != FieldSource {
		t.Fatalf("expected source field, got %q err=%v", f, err)
	}
	if _, err := ParseSearchField("resumen"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestPostgresInsertQuery(t *testing.T) {
	p := newPostgresStore(nil)
	a := article(1, domain.CategoryBusiness, time.Now())
	prepare(a, time.Now())

	query, args, err := p.insertQuery(a).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	for _, want := range []string{"INSERT INTO articles (id,title,url,category", "$12", "ON CONFLICT DO NOTHING"} {
		if !strings.Contains(query, want) {
			t.Fatalf("query %q missing %q", query, want)
		}
	}
	if len(args) != len(articleColumns) {
		t.Fatalf("expected %d args, got %d", len(articleColumns), len(args))
	}
}

func TestPostgresFindQuery(t *testing.T) {
	p := newPostgresStore(nil)
	query, args, err := p.findQuery(Query{
		Category:  domain.CategorySports,
		ExcludeID: "abc",
		Text:      "liga",
		Field:     FieldTitle,
		Order:     OrderPopular,
		Limit:     5,
	}).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	for _, want := range []string{
		"category = $1",
		"id <> $2",
		"title ILIKE $3",
		"ORDER BY clicks DESC, published_at DESC",
		"LIMIT 5",
	} {
		if !strings.Contains(query, want) {
			t.Fatalf("query %q missing %q", query, want)
		}
	}
	if !reflect.DeepEqual(args, []interface{}{"Deportes", "abc", "%liga%"}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestDuplicateFromPQ(t *testing.T) {
	a := article(1, domain.CategoryGeneral, time.Now())
	var dup *domain.DuplicateKeyError

	err := duplicateFromPQ(&pq.Error{Code: "23505", Constraint: "articles_title_hash_key"}, a)
	if !errors.As(err, &dup) || dup.Field != "title_hash" {
		t.Fatalf("expected title_hash duplicate, got %v", err)
	}

	err = duplicateFromPQ(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505", Constraint: "articles_url_key"}), a)
	if !errors.As(err, &dup) || dup.Field != "url" {
		t.Fatalf("expected url duplicate, got %v", err)
	}

	if err := duplicateFromPQ(&pq.Error{Code: "23503"}, a); err != nil {
		t.Fatalf("foreign key violation is not a duplicate: %v", err)
	}
	if err := duplicateFromPQ(errors.New("boom"), a); err != nil {
		t.Fatalf("plain error is not a duplicate: %v", err)
	}
}
