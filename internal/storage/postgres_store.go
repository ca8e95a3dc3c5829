package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

const pgUniqueViolation = "23505"

const pgSchema = `CREATE TABLE IF NOT EXISTS articles (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	url            TEXT NOT NULL,
	category       TEXT NOT NULL,
	source_name    TEXT NOT NULL DEFAULT '',
	image_url      TEXT NOT NULL DEFAULT '',
	published_at   TIMESTAMPTZ NOT NULL,
	summary        TEXT NOT NULL,
	summary_method TEXT NOT NULL DEFAULT '',
	title_hash     TEXT NOT NULL,
	clicks         BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT articles_url_key UNIQUE (url),
	CONSTRAINT articles_title_hash_key UNIQUE (title_hash)
);
CREATE INDEX IF NOT EXISTS articles_published_at_idx ON articles (published_at);
CREATE INDEX IF NOT EXISTS articles_category_idx ON articles (category);`

var articleColumns = []string{
	"id", "title", "url", "category", "source_name", "image_url",
	"published_at", "summary", "summary_method", "title_hash", "clicks", "created_at",
}

// postgresStore implements a Store on PostgreSQL with squirrel-built statements.
type postgresStore struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

func openPostgres(dsn string) (*postgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return newPostgresStore(db), nil
}

func newPostgresStore(db *sql.DB) *postgresStore {
	return &postgresStore{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db),
		now: time.Now,
	}
}

func (p *postgresStore) Close() error { return p.db.Close() }

func (p *postgresStore) Exists(ctx context.Context, url, titleHash string) (bool, error) {
	var n int64
	err := p.sb.Select("COUNT(*)").From("articles").
		Where(sq.Or{sq.Eq{"url": url}, sq.Eq{"title_hash": titleHash}}).
		QueryRowContext(ctx).Scan(&n)
	return n > 0, err
}

func (p *postgresStore) KnownURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := p.sb.Select("url").From("articles").QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		out[u] = struct{}{}
	}
	return out, rows.Err()
}

func (p *postgresStore) insertQuery(a *domain.Article) sq.InsertBuilder {
	return p.sb.Insert("articles").Columns(articleColumns...).
		Values(a.ID, a.Title, a.URL, string(a.Category), a.SourceName, a.ImageURL,
			a.PublishedAt, a.Summary, string(a.SummaryMethod), a.TitleHash, a.Clicks, a.CreatedAt).
		Suffix("ON CONFLICT DO NOTHING")
}

func (p *postgresStore) Insert(ctx context.Context, a *domain.Article) error {
	if a.URL == "" || a.TitleHash == "" {
		return fmt.Errorf("article requires url and title hash")
	}
	prepare(a, p.now())

	res, err := p.insertQuery(a).ExecContext(ctx)
	if err != nil {
		if dup := duplicateFromPQ(err, a); dup != nil {
			return dup
		}
		return fmt.Errorf("insert article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return p.duplicateOf(ctx, a)
	}
	return nil
}

// duplicateFromPQ maps a unique violation to a DuplicateKeyError.
func duplicateFromPQ(err error, a *domain.Article) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgUniqueViolation {
		return nil
	}
	if strings.Contains(pqErr.Constraint, "title_hash") {
		return &domain.DuplicateKeyError{Field: "title_hash", Value: a.TitleHash}
	}
	return &domain.DuplicateKeyError{Field: "url", Value: a.URL}
}

func (p *postgresStore) duplicateOf(ctx context.Context, a *domain.Article) error {
	var n int64
	_ = p.sb.Select("COUNT(*)").From("articles").Where(sq.Eq{"url": a.URL}).QueryRowContext(ctx).Scan(&n)
	if n > 0 {
		return &domain.DuplicateKeyError{Field: "url", Value: a.URL}
	}
	return &domain.DuplicateKeyError{Field: "title_hash", Value: a.TitleHash}
}

func (p *postgresStore) DeleteOlderThan(ctx context.Context, horizon time.Duration) (int, error) {
	cutoff := p.now().Add(-horizon).UTC()
	res, err := p.sb.Delete("articles").Where(sq.Lt{"published_at": cutoff}).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *postgresStore) findQuery(q Query) sq.SelectBuilder {
	sel := p.sb.Select(articleColumns...).From("articles")
	if q.Category != "" {
		sel = sel.Where(sq.Eq{"category": string(q.Category)})
	}
	if q.Source != "" {
		sel = sel.Where(sq.ILike{"source_name": q.Source})
	}
	if q.ExcludeID != "" {
		sel = sel.Where(sq.NotEq{"id": q.ExcludeID})
	}
	if !q.PublishedBefore.IsZero() {
		sel = sel.Where(sq.Lt{"published_at": q.PublishedBefore.UTC()})
	}
	if !q.PublishedFrom.IsZero() {
		sel = sel.Where(sq.GtOrEq{"published_at": q.PublishedFrom.UTC()})
	}
	if q.Text != "" {
		sel = sel.Where(sq.ILike{searchColumn(q.Field): "%" + q.Text + "%"})
	}

	switch q.Order {
	case OrderPopular:
		sel = sel.OrderBy("clicks DESC", "published_at DESC")
	case OrderRandom:
		sel = sel.OrderBy("random()")
	default:
		sel = sel.OrderBy("published_at DESC", "created_at DESC")
	}
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}
	return sel
}

func (p *postgresStore) Find(ctx context.Context, q Query) ([]domain.Article, error) {
	rows, err := p.findQuery(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		var (
			a                domain.Article
			category, method string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &category, &a.SourceName, &a.ImageURL,
			&a.PublishedAt, &a.Summary, &method, &a.TitleHash, &a.Clicks, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Category = domain.Category(category)
		a.SummaryMethod = domain.SummaryMethod(method)
		a.PublishedAt = a.PublishedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *postgresStore) Stats(ctx context.Context, day time.Time) (domain.Stats, error) {
	var stats domain.Stats
	err := p.sb.Select(
		"COUNT(*)",
		"COALESCE(SUM(clicks), 0)",
	).Column(sq.Expr("COUNT(*) FILTER (WHERE published_at = ?)", domain.PublishDay(day))).
		From("articles").
		QueryRowContext(ctx).
		Scan(&stats.TotalArticles, &stats.TotalClicks, &stats.ArticlesToday)
	return stats, err
}

func (p *postgresStore) IncrementClicks(ctx context.Context, id string) (bool, error) {
	res, err := p.sb.Update("articles").Set("clicks", sq.Expr("clicks + 1")).
		Where(sq.Eq{"id": id}).ExecContext(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
