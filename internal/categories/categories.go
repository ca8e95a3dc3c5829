// Package categories maps raw feed category tokens onto the fixed display categories.
package categories

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/samvad-news-digest/internal/domain"
	"gopkg.in/yaml.v3"
)

// Entry binds one feed token to a display category.
type Entry struct {
	Token string          `json:"token" yaml:"token"`
	Name  domain.Category `json:"name" yaml:"name"`
}

type mappingFile struct {
	Default    domain.Category `json:"default" yaml:"default"`
	Categories []Entry         `json:"categories" yaml:"categories"`
}

// Mapping is an ordered token to category table with a default for unknown tokens.
type Mapping struct {
	def     domain.Category
	entries []Entry
	idx     map[string]domain.Category
}

// Default returns the mapping used when no file is configured.
func Default() *Mapping {
	m, _ := New(domain.CategoryGeneral, []Entry{
		{Token: "business", Name: domain.CategoryBusiness},
		{Token: "entertainment", Name: domain.CategoryEntertainment},
		{Token: "health", Name: domain.CategoryHealth},
		{Token: "science", Name: domain.CategoryScience},
		{Token: "sports", Name: domain.CategorySports},
		{Token: "technology", Name: domain.CategoryTechnology},
	})
	return m
}

// New validates entries and builds a Mapping.
func New(def domain.Category, entries []Entry) (*Mapping, error) {
	if def == "" {
		def = domain.CategoryGeneral
	}
	if !def.Valid() {
		return nil, fmt.Errorf("default category %q is not a known category", def)
	}
	if len(entries) == 0 {
		return nil, errors.New("categories mapping contains no entries")
	}

	m := &Mapping{
		def:     def,
		entries: make([]Entry, 0, len(entries)),
		idx:     make(map[string]domain.Category, len(entries)),
	}
	for i, e := range entries {
		e.Token = normalizeToken(e.Token)
		e.Name = domain.Category(strings.TrimSpace(string(e.Name)))
		if e.Token == "" {
			return nil, fmt.Errorf("categories[%d]: token is required", i)
		}
		if !e.Name.Valid() {
			return nil, fmt.Errorf("categories[%d]: %q is not a known category", i, e.Name)
		}
		if _, exists := m.idx[e.Token]; exists {
			return nil, fmt.Errorf("duplicate category token %q", e.Token)
		}
		m.idx[e.Token] = e.Name
		m.entries = append(m.entries, e)
	}
	return m, nil
}

// Load reads a mapping from a YAML or JSON file.
func Load(path string) (*Mapping, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("categories file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}

	var file mappingFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &file)
	default:
		err = yaml.Unmarshal(raw, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode categories file: %w", err)
	}
	return New(file.Default, file.Categories)
}

// Normalize maps a raw token to its display category, falling back to the default.
func (m *Mapping) Normalize(token string) domain.Category {
	if m == nil {
		return domain.CategoryGeneral
	}
	if c, ok := m.idx[normalizeToken(token)]; ok {
		return c
	}
	return m.def
}

// Tokens returns the feed tokens in declaration order.
func (m *Mapping) Tokens() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Token
	}
	return out
}

// DefaultCategory returns the fallback category.
func (m *Mapping) DefaultCategory() domain.Category {
	if m == nil {
		return domain.CategoryGeneral
	}
	return m.def
}

func normalizeToken(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
