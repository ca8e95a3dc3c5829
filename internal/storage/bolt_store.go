package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	articleBucket   = "articles"
	urlIndexBucket  = "by_url"
	hashIndexBucket = "by_title_hash"
)

// boltStore implements a Store backed by BoltDB. Records live in the articles bucket keyed
// by id; by_url and by_title_hash map unique keys back to ids and are maintained in the
// same transaction as the record.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (*boltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{articleBucket, urlIndexBucket, hashIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db, now: time.Now}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) Exists(_ context.Context, url, titleHash string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		if url != "" && tx.Bucket([]byte(urlIndexBucket)).Get([]byte(url)) != nil {
			exists = true
			return nil
		}
		if titleHash != "" && tx.Bucket([]byte(hashIndexBucket)).Get([]byte(titleHash)) != nil {
			exists = true
		}
		return nil
	})
	return exists, err
}

func (b *boltStore) KnownURLs(_ context.Context) (map[string]struct{}, error) {
	urls := make(map[string]struct{})
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(urlIndexBucket)).ForEach(func(k, _ []byte) error {
			urls[string(k)] = struct{}{}
			return nil
		})
	})
	return urls, err
}

func (b *boltStore) Insert(_ context.Context, a *domain.Article) error {
	if a.URL == "" || a.TitleHash == "" {
		return fmt.Errorf("article requires url and title hash")
	}
	prepare(a, b.now())

	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode article: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		byURL := tx.Bucket([]byte(urlIndexBucket))
		byHash := tx.Bucket([]byte(hashIndexBucket))
		if byURL.Get([]byte(a.URL)) != nil {
			return &domain.DuplicateKeyError{Field: "url", Value: a.URL}
		}
		if byHash.Get([]byte(a.TitleHash)) != nil {
			return &domain.DuplicateKeyError{Field: "title_hash", Value: a.TitleHash}
		}
		if err := tx.Bucket([]byte(articleBucket)).Put([]byte(a.ID), raw); err != nil {
			return err
		}
		if err := byURL.Put([]byte(a.URL), []byte(a.ID)); err != nil {
			return err
		}
		return byHash.Put([]byte(a.TitleHash), []byte(a.ID))
	})
}

func (b *boltStore) DeleteOlderThan(_ context.Context, horizon time.Duration) (int, error) {
	cutoff := b.now().Add(-horizon)
	deleted := 0

	err := b.db.Update(func(tx *bolt.Tx) error {
		articles := tx.Bucket([]byte(articleBucket))
		byURL := tx.Bucket([]byte(urlIndexBucket))
		byHash := tx.Bucket([]byte(hashIndexBucket))

		cursor := articles.Cursor()
		for k, v := cursor.First(); k != nil; {
			var a domain.Article
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("decode article %s: %w", k, err)
			}
			if !a.PublishedAt.Before(cutoff) {
				k, v = cursor.Next()
				continue
			}
			key := append([]byte(nil), k...)
			if err := cursor.Delete(); err != nil {
				return err
			}
			if err := byURL.Delete([]byte(a.URL)); err != nil {
				return err
			}
			if err := byHash.Delete([]byte(a.TitleHash)); err != nil {
				return err
			}
			deleted++
			// Delete moves the cursor; Seek lands on the next key.
			k, v = cursor.Seek(key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (b *boltStore) Find(_ context.Context, q Query) ([]domain.Article, error) {
	var out []domain.Article
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(articleBucket)).ForEach(func(_, v []byte) error {
			var a domain.Article
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if matches(a, q) {
				out = append(out, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	switch q.Order {
	case OrderPopular:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Clicks != out[j].Clicks {
				return out[i].Clicks > out[j].Clicks
			}
			return newer(out[i], out[j])
		})
	case OrderRandom:
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	default:
		sort.SliceStable(out, func(i, j int) bool { return newer(out[i], out[j]) })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func newer(a, b domain.Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (b *boltStore) Stats(_ context.Context, day time.Time) (domain.Stats, error) {
	var stats domain.Stats
	today := domain.PublishDay(day)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(articleBucket)).ForEach(func(_, v []byte) error {
			var a domain.Article
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			stats.TotalArticles++
			stats.TotalClicks += a.Clicks
			if a.PublishedAt.Equal(today) {
				stats.ArticlesToday++
			}
			return nil
		})
	})
	return stats, err
}

func (b *boltStore) IncrementClicks(_ context.Context, id string) (bool, error) {
	var found bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(articleBucket))
		raw := bucket.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var a domain.Article
		if err := json.Unmarshal(raw, &a); err != nil {
			return fmt.Errorf("decode article %s: %w", id, err)
		}
		a.Clicks++
		updated, err := json.Marshal(a)
		if err != nil {
			return err
		}
		found = true
		return bucket.Put([]byte(id), updated)
	})
	return found, err
}
