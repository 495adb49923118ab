package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crypto-portal/internal/articles"
)

// maxPostBody bounds CMS request bodies; article HTML is well under this.
const maxPostBody = 1 << 20

// handleListArticles handles GET /api/articles?type=
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	if contentType := r.URL.Query().Get("type"); contentType != "" {
		writeJSON(w, http.StatusOK, s.articles.ByContentType(contentType))
		return
	}
	writeJSON(w, http.StatusOK, s.articles.Published())
}

// handleArticleByID handles GET /api/articles/{id} and GET /api/blog-posts/{id}
func (s *Server) handleArticleByID(w http.ResponseWriter, r *http.Request) {
	article, err := s.articles.ByID(chi.URLParam(r, "id"))
	s.writeArticle(w, http.StatusOK, article, err)
}

// handleArticleBySlug handles GET /api/articles/slug/{slug}
func (s *Server) handleArticleBySlug(w http.ResponseWriter, r *http.Request) {
	article, err := s.articles.BySlug(chi.URLParam(r, "slug"))
	s.writeArticle(w, http.StatusOK, article, err)
}

// handleListPosts handles GET /api/blog-posts?contentType= and lists every status for the CMS.
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.articles.All(r.URL.Query().Get("contentType")))
}

// handleCreatePost handles POST /api/blog-posts
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var draft articles.Draft
	if !s.decodeBody(w, r, &draft) {
		return
	}

	article, err := s.articles.Create(draft)
	if err == nil {
		s.log.Info().Str("id", article.ID).Str("slug", article.Slug).Msg("Article created")
	}
	s.writeArticle(w, http.StatusCreated, article, err)
}

// handleUpdatePost handles PATCH /api/blog-posts/{id}
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var patch articles.Patch
	if !s.decodeBody(w, r, &patch) {
		return
	}

	article, err := s.articles.Update(chi.URLParam(r, "id"), patch)
	if err == nil {
		s.log.Info().Str("id", article.ID).Str("status", article.Status).Msg("Article updated")
	}
	s.writeArticle(w, http.StatusOK, article, err)
}

// handleDeletePost handles DELETE /api/blog-posts/{id}
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.articles.Delete(id); err != nil {
		s.writeArticle(w, http.StatusOK, articles.Article{}, err)
		return
	}

	s.log.Info().Str("id", id).Msg("Article deleted")
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeArticle(w http.ResponseWriter, status int, article articles.Article, err error) {
	switch {
	case err == nil:
		writeJSON(w, status, article)
	case errors.Is(err, articles.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "article not found"})
	case errors.Is(err, articles.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, articles.ErrSlugTaken):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.log.Error().Err(err).Msg("Article store failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}
