// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Voter-Token, and exposes X-Stats-Degraded and
Retry-After to scripts.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.SubmitVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)

Those headers are whatever the client sent unless a proxy rewrites them.
RemoteIP returns the connection's peer address instead.

# Rate Limiting

RateLimit gives every client IP its own token bucket:

	limit := middleware.RateLimit(cfg.RateLimit, cfg.RateBurst, cfg.TrustProxy)
	mux.Handle("POST /items/{id}/votes", limit(handler))

Buckets are keyed on RemoteIP, or on GetClientIP when trustProxy is set.
Requests over budget get 429 with a Retry-After header. OPTIONS requests
are never counted. A rate of 0 turns the limiter off.

# Metrics

WithMetrics observes http_request_duration_seconds labelled by method,
route pattern and status code:

	mux.HandleFunc("GET /items/{id}/stats", middleware.WithMetrics(h.GetStats))
*/
package middleware
