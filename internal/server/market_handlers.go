package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"crypto-portal/internal/coingecko"
	"crypto-portal/internal/models"
)

// maxListLimit caps per_page at what the upstream accepts.
const maxListLimit = 250

// handleTopCoins handles GET /api/market/top?limit= and GET /api/crypto/coins/markets?per_page=
func (s *Server) handleTopCoins(w http.ResponseWriter, r *http.Request) {
	name := "limit"
	if r.URL.Query().Has("per_page") {
		name = "per_page"
	}
	limit, ok := intParam(r, name)
	if !ok || limit > maxListLimit {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: name + " must be an integer between 1 and 250"})
		return
	}

	coins, err := s.market.GetTopCoins(r.Context(), limit)
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

// handleTickerCoins handles GET /api/market/ticker?limit=
func (s *Server) handleTickerCoins(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit")
	if !ok || limit > maxListLimit {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be an integer between 1 and 250"})
		return
	}

	coins, err := s.market.GetTickerCoins(r.Context(), limit)
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

// handleCoinDetail handles GET /api/market/coins/{id}
func (s *Server) handleCoinDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.market.GetCoinDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleCoinChart handles GET /api/market/coins/{id}/chart?days=
func (s *Server) handleCoinChart(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(r, "days")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "days must be a positive integer"})
		return
	}

	chart, err := s.market.GetCoinChartData(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// handleSearch handles GET /api/market/search?query=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "query is required"})
		return
	}

	coins, err := s.market.SearchCoins(r.Context(), query)
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

// handleSearchEnvelope handles GET /api/crypto/search?query= with the upstream {"coins": [...]} body.
func (s *Server) handleSearchEnvelope(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "query is required"})
		return
	}

	coins, err := s.market.SearchCoins(r.Context(), query)
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SearchResponse{Coins: coins})
}

// handleGlobal handles GET /api/market/global
func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	global, err := s.market.GetGlobalData(r.Context())
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, global)
}

// handleGlobalEnvelope handles GET /api/crypto/global, keeping the upstream {"data": ...} wrapper.
func (s *Server) handleGlobalEnvelope(w http.ResponseWriter, r *http.Request) {
	global, err := s.market.GetGlobalData(r.Context())
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	var resp models.GlobalResponse
	if global != nil {
		resp.Data = *global
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTrending handles GET /api/market/trending and GET /api/crypto/trending
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	trending, err := s.market.GetTrending(r.Context())
	if err != nil {
		s.writeMarketError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trending)
}

// writeMarketError passes 429 and 404 through, everything else is a bad gateway.
func (s *Server) writeMarketError(w http.ResponseWriter, r *http.Request, err error) {
	upstream := coingecko.StatusCode(err)

	status := http.StatusBadGateway
	switch {
	case upstream == http.StatusTooManyRequests, upstream == http.StatusNotFound:
		status = upstream
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	s.log.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Int("upstream_status", upstream).
		Int("status", status).
		Msg("Market data request failed")

	writeJSON(w, status, errorBody{
		Error:          "market data unavailable, please retry",
		UpstreamStatus: upstream,
	})
}
