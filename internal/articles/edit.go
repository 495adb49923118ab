package articles

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

const wordsPerMinute = 200

var (
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Draft is the editor payload for a new article.
type Draft struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Excerpt     string `json:"excerpt"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	Category    string `json:"category"`
	CoverImage  string `json:"coverImage"`
	Author      string `json:"author"`
	Status      string `json:"status"`
}

// Patch changes only the fields that are set.
type Patch struct {
	Title       *string `json:"title"`
	Slug        *string `json:"slug"`
	Excerpt     *string `json:"excerpt"`
	Content     *string `json:"content"`
	ContentType *string `json:"contentType"`
	Category    *string `json:"category"`
	CoverImage  *string `json:"coverImage"`
	Author      *string `json:"author"`
	Status      *string `json:"status"`
}

// Create adds a new article. An empty slug is derived from the title and an empty status means draft.
func (s *Store) Create(d Draft) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	a := Article{
		ID:          s.newID(),
		Title:       strings.TrimSpace(d.Title),
		Slug:        strings.TrimSpace(d.Slug),
		Excerpt:     d.Excerpt,
		Content:     d.Content,
		Category:    d.Category,
		ContentType: d.ContentType,
		CoverImage:  d.CoverImage,
		Author:      d.Author,
		Status:      d.Status,
		PublishedAt: now,
		UpdatedAt:   now,
	}
	if a.Slug == "" {
		a.Slug = Slugify(a.Title)
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	a.ReadTime = ReadTime(a.Content)

	if err := s.validate(a); err != nil {
		return Article{}, err
	}

	next := append(append([]Article(nil), s.articles...), a)
	if err := s.commit(next); err != nil {
		return Article{}, err
	}
	return a, nil
}

// Update applies p to the article with id. Publishing an unpublished article moves PublishedAt to now.
func (s *Store) Update(id string, p Patch) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Article{}, ErrNotFound
	}

	a := s.articles[i]
	wasPublished := a.Status == StatusPublished

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.Title, p.Title)
	set(&a.Slug, p.Slug)
	set(&a.Excerpt, p.Excerpt)
	set(&a.Content, p.Content)
	set(&a.ContentType, p.ContentType)
	set(&a.Category, p.Category)
	set(&a.CoverImage, p.CoverImage)
	set(&a.Author, p.Author)
	set(&a.Status, p.Status)

	a.Title = strings.TrimSpace(a.Title)
	a.Slug = strings.TrimSpace(a.Slug)
	if p.Content != nil {
		a.ReadTime = ReadTime(a.Content)
	}

	now := s.now()
	a.UpdatedAt = now
	if a.Status == StatusPublished && !wasPublished {
		a.PublishedAt = now
	}

	if err := s.validate(a); err != nil {
		return Article{}, err
	}

	next := append([]Article(nil), s.articles...)
	next[i] = a
	if err := s.commit(next); err != nil {
		return Article{}, err
	}
	return a, nil
}

// Delete removes the article with id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}

	next := make([]Article, 0, len(s.articles)-1)
	next = append(next, s.articles[:i]...)
	next = append(next, s.articles[i+1:]...)
	return s.commit(next)
}

// validate must be called with mu held.
func (s *Store) validate(a Article) error {
	switch {
	case a.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case a.Slug == "":
		return fmt.Errorf("%w: slug is required", ErrInvalid)
	case a.ContentType == "":
		return fmt.Errorf("%w: contentType is required", ErrInvalid)
	}

	switch a.Status {
	case StatusDraft, StatusPublished, StatusUnpublished:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, a.Status)
	}

	for _, other := range s.articles {
		if other.Slug == a.Slug && other.ID != a.ID {
			return fmt.Errorf("%w: %s", ErrSlugTaken, a.Slug)
		}
	}
	return nil
}

// Slugify lower-cases title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// ReadTime estimates reading time of HTML content at 200 words per minute.
func ReadTime(content string) string {
	words := len(strings.Fields(htmlTag.ReplaceAllString(content, " ")))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}
