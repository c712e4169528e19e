// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the vote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, cfg)

# Endpoints

Health and monitoring:

	GET /health  - Liveness
	GET /metrics - Prometheus exposition

Voting (requires X-Voter-Token or Authorization: Bearer):

	POST   /items/{id}/votes    - Toggle a vote, body {"value":"up"|"down"}
	DELETE /items/{id}/votes    - Remove the caller's vote
	GET    /items/{id}/votes/me - The caller's current vote

Stats (public):

	GET /items/{id}/stats - Aggregate counts and trust score
	GET /stats?ids=a,b,c  - Batch stats, up to 100 items

Stats lag writes by at most one flush interval. Degraded reads set the
X-Stats-Degraded response header.

# Middleware

Every API route is wrapped with WithLogging and WithMetrics, and with the
per-client RateLimit inside them so rejections are logged and measured.
/health and /metrics are never rate limited. CORS wraps the whole mux in main.
*/
package router
