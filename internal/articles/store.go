// Package articles serves and edits editorial posts kept in a JSON file.
package articles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft       = "draft"
	StatusPublished   = "published"
	StatusUnpublished = "unpublished"
)

var (
	ErrNotFound  = errors.New("article not found")
	ErrSlugTaken = errors.New("slug already in use")
	ErrInvalid   = errors.New("invalid article")
)

type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Content     string    `json:"content,omitempty"`
	Category    string    `json:"category,omitempty"`
	ContentType string    `json:"contentType"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Author      string    `json:"author"`
	ReadTime    string    `json:"readTime"`
	Status      string    `json:"status"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store holds the article collection in memory. When it was loaded from a file,
// every change is written back to that file before it becomes visible.
type Store struct {
	mu       sync.RWMutex
	articles []Article
	path     string

	now   func() time.Time
	newID func() string
}

// NewStore creates a memory-only store.
func NewStore(articles []Article) *Store {
	return &Store{
		articles: append([]Article(nil), articles...),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Load reads articles from a JSON array file. A missing file gives an empty store
// that creates the file on the first change.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read articles file: %w", err)
	}

	var articles []Article
	if len(data) > 0 {
		if err := json.Unmarshal(data, &articles); err != nil {
			return nil, fmt.Errorf("failed to parse articles file %s: %w", path, err)
		}
	}

	s := NewStore(articles)
	s.path = path
	return s, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// Published returns published articles, newest first.
func (s *Store) Published() []Article {
	return s.filter(func(a Article) bool {
		return a.Status == StatusPublished
	})
}

// ByContentType returns published articles of one content type, newest first.
func (s *Store) ByContentType(contentType string) []Article {
	return s.filter(func(a Article) bool {
		return a.Status == StatusPublished && a.ContentType == contentType
	})
}

// All returns articles in any status, optionally limited to one content type, newest first.
func (s *Store) All(contentType string) []Article {
	return s.filter(func(a Article) bool {
		return contentType == "" || a.ContentType == contentType
	})
}

// ByID looks an article up regardless of status.
func (s *Store) ByID(id string) (Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.articles[i], nil
	}
	return Article{}, ErrNotFound
}

// BySlug looks an article up regardless of status.
func (s *Store) BySlug(slug string) (Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.articles {
		if a.Slug == slug {
			return a, nil
		}
	}
	return Article{}, ErrNotFound
}

func (s *Store) filter(keep func(Article) bool) []Article {
	s.mu.RLock()
	out := make([]Article, 0, len(s.articles))
	for _, a := range s.articles {
		if keep(a) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i, a := range s.articles {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// commit persists next and swaps it in. Must be called with mu held for writing.
func (s *Store) commit(next []Article) error {
	if s.path != "" {
		if err := writeFile(s.path, next); err != nil {
			return err
		}
	}
	s.articles = next
	return nil
}

// writeFile replaces path atomically so a crash never leaves a half-written file.
func writeFile(path string, articles []Article) error {
	if articles == nil {
		articles = []Article{}
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode articles: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create articles dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".articles-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write articles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write articles: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace articles file: %w", err)
	}
	return nil
}
