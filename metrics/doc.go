// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics declares the Prometheus collectors for the vote service.
// They register with the default registry and are served on GET /metrics.
package metrics
