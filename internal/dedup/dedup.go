// Package dedup rejects candidates that are already stored under the same url or title.
package dedup

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
)

// Lookup is the store query the deduplicator depends on.
type Lookup interface {
	Exists(ctx context.Context, url, titleHash string) (bool, error)
}

// TitleHash fingerprints a title after trimming and lower-casing it.
func TitleHash(title string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(title)))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Deduplicator checks candidates against the store and against what this run already stored.
type Deduplicator struct {
	store Lookup

	mu     sync.Mutex
	urls   map[string]struct{}
	titles map[string]struct{}
}

// New builds a Deduplicator over store.
func New(store Lookup) *Deduplicator {
	return &Deduplicator{
		store:  store,
		urls:   make(map[string]struct{}),
		titles: make(map[string]struct{}),
	}
}

// Check returns a *domain.DuplicateKeyError when c collides on url or title hash with a stored record.
func (d *Deduplicator) Check(ctx context.Context, c domain.Candidate) error {
	hash := TitleHash(c.Title)

	d.mu.Lock()
	if _, ok := d.urls[c.URL]; ok {
		d.mu.Unlock()
		return &domain.DuplicateKeyError{Field: "url", Value: c.URL}
	}
	if _, ok := d.titles[hash]; ok {
		d.mu.Unlock()
		return &domain.DuplicateKeyError{Field: "title_hash", Value: hash}
	}
	d.mu.Unlock()

	if d.store != nil {
		exists, err := d.store.Exists(ctx, c.URL, hash)
		if err != nil {
			return fmt.Errorf("dedup lookup: %w", err)
		}
		if exists {
			return &domain.DuplicateKeyError{Field: "url_or_title_hash", Value: c.URL}
		}
	}
	return nil
}

// Commit remembers a candidate that was stored so later copies in the run skip the store lookup.
func (d *Deduplicator) Commit(c domain.Candidate) {
	d.mu.Lock()
	d.urls[c.URL] = struct{}{}
	d.titles[TitleHash(c.Title)] = struct{}{}
	d.mu.Unlock()
}

// Reset forgets what the current run stored.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.urls = make(map[string]struct{})
	d.titles = make(map[string]struct{})
	d.mu.Unlock()
}
