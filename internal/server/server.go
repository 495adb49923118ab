// Package server provides the HTTP API and the single-page app host.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"crypto-portal/internal/articles"
	"crypto-portal/internal/models"
)

// MarketData is the market query surface the API exposes.
type MarketData interface {
	GetTopCoins(ctx context.Context, limit int) ([]models.CoinSummary, error)
	GetTickerCoins(ctx context.Context, limit int) ([]models.CoinSummary, error)
	GetCoinDetail(ctx context.Context, coinID string) (*models.CoinDetail, error)
	GetCoinChartData(ctx context.Context, coinID string, days int) (*models.ChartData, error)
	SearchCoins(ctx context.Context, query string) ([]models.SearchCoin, error)
	GetGlobalData(ctx context.Context) (*models.GlobalData, error)
	GetTrending(ctx context.Context) (*models.TrendingResponse, error)
}

// ArticleStore backs the public article feed and the CMS collection.
type ArticleStore interface {
	Published() []articles.Article
	ByContentType(contentType string) []articles.Article
	All(contentType string) []articles.Article
	ByID(id string) (articles.Article, error)
	BySlug(slug string) (articles.Article, error)
	Create(d articles.Draft) (articles.Article, error)
	Update(id string, p articles.Patch) (articles.Article, error)
	Delete(id string) error
}

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	StaticDir string
	Market    MarketData
	Articles  ArticleStore
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	port     int
	market   MarketData
	articles ArticleStore
	spa      http.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		port:     cfg.Port,
		market:   cfg.Market,
		articles: cfg.Articles,
	}

	spa, err := newSPAHandler(cfg.StaticDir, s.log)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", cfg.StaticDir).Msg("Frontend not available, serving API only")
	} else {
		s.spa = spa
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/market", func(r chi.Router) {
			r.Get("/top", s.handleTopCoins)
			r.Get("/ticker", s.handleTickerCoins)
			r.Get("/coins/{id}", s.handleCoinDetail)
			r.Get("/coins/{id}/chart", s.handleCoinChart)
			r.Get("/search", s.handleSearch)
			r.Get("/global", s.handleGlobal)
			r.Get("/trending", s.handleTrending)
		})

		// Upstream-shaped paths the bundled frontend calls.
		r.Route("/crypto", func(r chi.Router) {
			r.Get("/coins/markets", s.handleTopCoins)
			r.Get("/coins/{id}", s.handleCoinDetail)
			r.Get("/coins/{id}/market_chart", s.handleCoinChart)
			r.Get("/search", s.handleSearchEnvelope)
			r.Get("/global", s.handleGlobalEnvelope)
			r.Get("/trending", s.handleTrending)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleListArticles)
			r.Get("/slug/{slug}", s.handleArticleBySlug)
			r.Get("/{id}", s.handleArticleByID)
		})

		r.Route("/blog-posts", func(r chi.Router) {
			r.Get("/", s.handleListPosts)
			r.Post("/", s.handleCreatePost)
			r.Get("/{id}", s.handleArticleByID)
			r.Patch("/{id}", s.handleUpdatePost)
			r.Delete("/{id}", s.handleDeletePost)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		})
	})

	if s.spa != nil {
		s.router.Get("/", s.spa.ServeHTTP)
		s.router.NotFound(s.spa.ServeHTTP)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
