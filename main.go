package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/factcheck-votes/aggregate"
	"github.com/danielhkuo/factcheck-votes/cache"
	"github.com/danielhkuo/factcheck-votes/cliparse"
	"github.com/danielhkuo/factcheck-votes/db"
	"github.com/danielhkuo/factcheck-votes/ledger"
	"github.com/danielhkuo/factcheck-votes/middleware"
	"github.com/danielhkuo/factcheck-votes/reconciler"
	"github.com/danielhkuo/factcheck-votes/router"
	"github.com/danielhkuo/factcheck-votes/voting"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect and verify
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Wire the vote pipeline
	store := aggregate.NewStore(dbConn)
	aggCache := cache.New(cfg.CacheTTL)
	recon := reconciler.New(store, aggCache,
		reconciler.WithInterval(cfg.FlushInterval),
		reconciler.WithBatchSize(cfg.BatchSize),
	)
	votes := ledger.New(dbConn)
	svc := voting.NewService(votes, store, aggCache, recon, cfg.Trust)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recount before the flush loop starts so no increment can race the rewrite
	if cfg.Rebuild {
		if _, err := reconciler.Rebuild(ctx, votes, store); err != nil {
			slog.Error("aggregate rebuild failed", "error", err)
			os.Exit(1)
		}
	}

	aggCache.Start(ctx)
	recon.Start(ctx)

	// Create router
	mux := router.NewRouter(svc, cfg)
	handler := middleware.CORS(mux)

	// Create server
	server := http.Server{
		Handler:           handler,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown timed out", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "flush_interval", cfg.FlushInterval)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}

	// No more requests can queue deltas past this point
	if err := recon.Stop(); err != nil {
		slog.Error("pending aggregate deltas dropped; restart with -rebuild", "error", err)
	}
	aggCache.Stop()
}
