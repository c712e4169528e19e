// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/factcheck-votes/cliparse"
	"github.com/danielhkuo/factcheck-votes/handlers"
	"github.com/danielhkuo/factcheck-votes/middleware"
	"github.com/danielhkuo/factcheck-votes/voting"
)

func NewRouter(svc *voting.Service, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	votingHandler := handlers.NewVotingHandler(svc, cfg)

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithMetrics(h))
	}

	// Only the intake API is rate limited; health checks and scrapes are not
	limit := middleware.RateLimit(cfg.RateLimit, cfg.RateBurst, cfg.TrustProxy)
	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return wrap(limit(h).ServeHTTP)
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	// Voting (requires voter token)
	mux.HandleFunc("POST /items/{id}/votes", limited(votingHandler.SubmitVote))
	mux.HandleFunc("DELETE /items/{id}/votes", limited(votingHandler.DeleteVote))
	mux.HandleFunc("GET /items/{id}/votes/me", limited(votingHandler.GetUserVote))

	// Stats (public, eventually consistent)
	mux.HandleFunc("GET /items/{id}/stats", limited(votingHandler.GetStats))
	mux.HandleFunc("GET /stats", limited(votingHandler.GetStatsBatch))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("factcheck-votes API v1"))
	})

	return mux
}
