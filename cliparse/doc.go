// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: SQLite file URL or PostgreSQL connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - VoterTokenSalt: Secret for voter token HMAC (required)
  - FlushInterval: How often pending deltas are written to the aggregate store (default: 5s)
  - CacheTTL: Lifetime of a cached aggregate (default: 5m)
  - BatchSize: Max items per aggregate batch (default: 500)
  - RateLimit, RateBurst: Per-IP token bucket (default: 20 rps, burst 40; 0 disables)
  - TrustProxy: Key rate limits on X-Forwarded-For instead of the peer address (default: false)
  - Rebuild: Recount every aggregate from the ledger at startup (default: false)
  - Trust: Trust score weights, settable only from the config file

# Sources

Values are resolved in this order, first match wins:

	1. CLI flags         -p -d -t -voter-salt -flush-interval -cache-ttl -batch-size -rate-limit -rate-burst -trust-proxy -rebuild
	2. Environment       PORT DATABASE_URL DATABASE_TYPE VOTER_TOKEN_SALT FLUSH_INTERVAL CACHE_TTL BATCH_SIZE RATE_LIMIT RATE_BURST TRUST_PROXY REBUILD_AGGREGATES
	3. YAML file         -config path or CONFIG_FILE
	4. Built-in defaults

A .env file in the working directory is loaded into the environment at
startup. Variables that are already set are left alone.

# Config File

	port: 3318
	database_url: file:votes.db
	flush_interval: 5s
	cache_ttl: 5m
	trust:
	  up_weight: 1
	  down_weight: 1
	  neutral: 50

The voter salt and the rebuild switch are never read from the file.

# Validation

ParseFlags returns an error if required values are missing or out of range.
*/
package cliparse
