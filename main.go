package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rebase/config"
	"rebase/config/database"
	"rebase/internal/gateway"
	"rebase/internal/journal"
	"rebase/pkg/logger"
	"rebase/router"
	"rebase/socket"
)

func main() {
	// 1. Configuration comes first; it decides the log level.
	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so fall back to log here.
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. SIGINT/SIGTERM cancel ctx, which stops the hub and the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. The hub must be running before any route can broadcast.
	hub := socket.NewHub()
	go hub.Run(ctx)

	// 4. Optional collaborators: event journal and workflow template.
	j := setupJournal(ctx, cfg)

	// A missing template only disables the reset route.
	tmpl, err := gateway.LoadTemplate(cfg.WorkflowTemplate)
	if err != nil {
		logger.Sugar.Errorf("Reset route disabled: %v", err)
	} else {
		logger.Sugar.Infof("Loaded workflow template from %s", tmpl.Path())
	}

	gw := gateway.New(hub, j, tmpl, gateway.Options{EnforceAllowlist: cfg.EnforceEventAllowlist})
	if cfg.EnforceEventAllowlist {
		logger.Sugar.Infof("Event allow-list enforced: %v", gateway.DefaultAllowedEvents)
	}

	// 5. Mount routes and start serving.
	handler, err := router.Setup(cfg, hub, gw, j)
	if err != nil {
		logger.Sugar.Fatalf("Failed to set up routes: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Sugar.Info("Shutdown signal received, cleaning up...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar.Errorf("Server shutdown error: %v", err)
		}
	}()

	logger.Sugar.Infof("Rebase backend listening on %s (data dir %s)", cfg.Addr(), cfg.DataDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Sugar.Fatalf("Server error: %v", err)
	}
}

// setupJournal connects the Postgres event journal when DATABASE_URL is set.
// Any failure falls back to no journal; event relay never depends on it.
func setupJournal(ctx context.Context, cfg *config.Config) journal.Journal {
	if cfg.DatabaseURL == "" {
		return journal.Nop{}
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Sugar.Errorf("Event journal disabled: %v", err)
		return journal.Nop{}
	}

	pj := journal.NewPostgresJournal(db)
	if err := pj.EnsureSchema(ctx); err != nil {
		logger.Sugar.Errorf("Event journal disabled: %v", err)
		db.Close()
		return journal.Nop{}
	}
	return pj
}
