// Package storage persists digest articles and exposes the read accessors used by collaborators.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

// Store is the persistence gateway. Insert is idempotent with respect to the url and
// title-hash unique constraints: a conflict returns *domain.DuplicateKeyError and leaves
// the stored record untouched.
type Store interface {
	Close() error
	Exists(ctx context.Context, url, titleHash string) (bool, error)
	KnownURLs(ctx context.Context) (map[string]struct{}, error)
	Insert(ctx context.Context, a *domain.Article) error
	DeleteOlderThan(ctx context.Context, horizon time.Duration) (int, error)
	Find(ctx context.Context, q Query) ([]domain.Article, error)
	Stats(ctx context.Context, day time.Time) (domain.Stats, error)
	IncrementClicks(ctx context.Context, id string) (bool, error)
}

// Order selects how Find sorts results.
type Order int

const (
	OrderNewest Order = iota
	OrderPopular
	OrderRandom
)

// SearchField names the column a text search applies to.
type SearchField string

const (
	FieldTitle    SearchField = "titulo"
	FieldSource   SearchField = "fuente"
	FieldCategory SearchField = "categoria"
)

// ParseSearchField maps a request field name to a SearchField, defaulting to the title.
func ParseSearchField(raw string) (SearchField, error) {
	switch SearchField(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FieldTitle:
		return FieldTitle, nil
	case FieldSource:
		return FieldSource, nil
	case FieldCategory:
		return FieldCategory, nil
	default:
		return "", fmt.Errorf("invalid search field %q (must be titulo, fuente or categoria)", raw)
	}
}

// Query filters Find. Zero values mean "no filter".
type Query struct {
	Category        domain.Category
	Source          string
	ExcludeID       string
	PublishedBefore time.Time
	PublishedFrom   time.Time
	Text            string
	Field           SearchField
	Order           Order
	Limit           int
}

// Options selects and configures a backend.
type Options struct {
	Type string
	Path string
	DSN  string
}

// Backend names.
const (
	TypeBolt     = "bbolt"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// NewStore creates the configured storage backend.
func NewStore(opts Options) (Store, error) {
	typ := strings.TrimSpace(strings.ToLower(opts.Type))

	switch typ {
	case "", TypeBolt:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		store, err := openBolt(opts.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case TypeSQLite:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		store, err := openSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case TypePostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		store, err := openPostgres(opts.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// prepare fills the generated fields of a new record.
func prepare(a *domain.Article, now time.Time) {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now.UTC()
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	a.PublishedAt = domain.PublishDay(a.PublishedAt)
}

func newID() string { return uuid.NewString() }

// matches applies q's filters to a in memory; used by backends without a query language.
func matches(a domain.Article, q Query) bool {
	if q.Category != "" && a.Category != q.Category {
		return false
	}
	if q.Source != "" && !strings.EqualFold(a.SourceName, q.Source) {
		return false
	}
	if q.ExcludeID != "" && a.ID == q.ExcludeID {
		return false
	}
	if !q.PublishedBefore.IsZero() && !a.PublishedAt.Before(q.PublishedBefore) {
		return false
	}
	if !q.PublishedFrom.IsZero() && a.PublishedAt.Before(q.PublishedFrom) {
		return false
	}
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		var hay string
		switch q.Field {
		case FieldSource:
			hay = a.SourceName
		case FieldCategory:
			hay = string(a.Category)
		default:
			hay = a.Title
		}
		if !strings.Contains(strings.ToLower(hay), needle) {
			return false
		}
	}
	return true
}
