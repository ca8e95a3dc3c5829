package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormStore implements a Store on SQLite through gorm; uniqueness is enforced by the
// url and title_hash unique indexes declared on domain.Article.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func openSQLite(path string) (*gormStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&domain.Article{}); err != nil {
		return nil, fmt.Errorf("migrate articles: %w", err)
	}
	return &gormStore{db: db, now: time.Now}, nil
}

func (g *gormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *gormStore) Exists(ctx context.Context, url, titleHash string) (bool, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&domain.Article{}).
		Where("url = ? OR title_hash = ?", url, titleHash).
		Count(&n).Error
	return n > 0, err
}

func (g *gormStore) KnownURLs(ctx context.Context) (map[string]struct{}, error) {
	var urls []string
	if err := g.db.WithContext(ctx).Model(&domain.Article{}).Pluck("url", &urls).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		out[u] = struct{}{}
	}
	return out, nil
}

func (g *gormStore) Insert(ctx context.Context, a *domain.Article) error {
	if a.URL == "" || a.TitleHash == "" {
		return fmt.Errorf("article requires url and title hash")
	}
	prepare(a, g.now())

	err := g.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return g.duplicateOf(ctx, a)
	}
	return err
}

// duplicateOf reports which unique key a rejected insert collided on.
func (g *gormStore) duplicateOf(ctx context.Context, a *domain.Article) error {
	var n int64
	g.db.WithContext(ctx).Model(&domain.Article{}).Where("url = ?", a.URL).Count(&n)
	if n > 0 {
		return &domain.DuplicateKeyError{Field: "url", Value: a.URL}
	}
	return &domain.DuplicateKeyError{Field: "title_hash", Value: a.TitleHash}
}

func (g *gormStore) DeleteOlderThan(ctx context.Context, horizon time.Duration) (int, error) {
	cutoff := g.now().Add(-horizon).UTC()
	res := g.db.WithContext(ctx).Where("published_at < ?", cutoff).Delete(&domain.Article{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (g *gormStore) Find(ctx context.Context, q Query) ([]domain.Article, error) {
	tx := g.db.WithContext(ctx).Model(&domain.Article{})
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Source != "" {
		tx = tx.Where("LOWER(source_name) = LOWER(?)", q.Source)
	}
	if q.ExcludeID != "" {
		tx = tx.Where("id <> ?", q.ExcludeID)
	}
	if !q.PublishedBefore.IsZero() {
		tx = tx.Where("published_at < ?", q.PublishedBefore.UTC())
	}
	if !q.PublishedFrom.IsZero() {
		tx = tx.Where("published_at >= ?", q.PublishedFrom.UTC())
	}
	if q.Text != "" {
		tx = tx.Where(fmt.Sprintf("LOWER(%s) LIKE ?", searchColumn(q.Field)), "%"+strings.ToLower(q.Text)+"%")
	}

	switch q.Order {
	case OrderPopular:
		tx = tx.Order("clicks DESC").Order("published_at DESC")
	case OrderRandom:
		tx = tx.Order("RANDOM()")
	default:
		tx = tx.Order("published_at DESC").Order("created_at DESC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []domain.Article
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func searchColumn(f SearchField) string {
	switch f {
	case FieldSource:
		return "source_name"
	case FieldCategory:
		return "category"
	default:
		return "title"
	}
}

func (g *gormStore) Stats(ctx context.Context, day time.Time) (domain.Stats, error) {
	var stats domain.Stats
	db := g.db.WithContext(ctx).Model(&domain.Article{})
	if err := db.Count(&stats.TotalArticles).Error; err != nil {
		return stats, err
	}
	if err := g.db.WithContext(ctx).Model(&domain.Article{}).
		Select("COALESCE(SUM(clicks), 0)").Scan(&stats.TotalClicks).Error; err != nil {
		return stats, err
	}
	err := g.db.WithContext(ctx).Model(&domain.Article{}).
		Where("published_at = ?", domain.PublishDay(day)).
		Count(&stats.ArticlesToday).Error
	return stats, err
}

func (g *gormStore) IncrementClicks(ctx context.Context, id string) (bool, error) {
	res := g.db.WithContext(ctx).Model(&domain.Article{}).
		Where("id = ?", id).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
