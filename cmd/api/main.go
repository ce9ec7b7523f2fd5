package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ilyasfares/sakina/backend/internal/config"
	"github.com/ilyasfares/sakina/backend/internal/handler"
	"github.com/ilyasfares/sakina/backend/internal/profile"
	chatservice "github.com/ilyasfares/sakina/backend/internal/service/chat"
	"github.com/ilyasfares/sakina/backend/internal/service/provider"
	"github.com/ilyasfares/sakina/backend/internal/service/ratelimit"
	"github.com/ilyasfares/sakina/backend/internal/service/suggest"
	"github.com/ilyasfares/sakina/backend/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	sink := newTelemetryStore(cfg.Telemetry)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("warning: failed to close telemetry store: %v", err)
		}
	}()

	profileStore := profile.NewMemoryStore(profile.Seed())
	chatService := chatservice.NewService()

	providers := buildProviders(ctx, cfg.Providers)
	if len(providers) == 0 {
		log.Println("no remote providers configured, serving from the local pool only")
	}

	gateway := provider.NewGateway(providers, time.Duration(cfg.Providers.TimeoutSeconds)*time.Second)
	limiter := ratelimit.New(sink, cfg.RateLimit.Max, cfg.RateLimit.WindowMinutes, cfg.RateLimit.Bypass)
	suggestService := suggest.NewService(gateway, limiter, sink, profileStore, nil)

	router := handler.NewRouter(profileStore, chatService, suggestService)

	startServer(ctx, cfg.Server, router)
}

// newTelemetryStore opens the sqlite sink when a path is configured and
// falls back to the in-memory sink otherwise. A broken sqlite path degrades
// to memory rather than refusing to start.
func newTelemetryStore(cfg config.TelemetryConfig) telemetry.Store {
	if cfg.DBPath == "" {
		log.Println("TELEMETRY_DB_PATH not set, using in-memory telemetry store")
		return telemetry.NewMemoryStore()
	}

	store, err := telemetry.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Printf("warning: failed to open telemetry db at %s: %v", cfg.DBPath, err)
		log.Println("falling back to in-memory telemetry store")
		return telemetry.NewMemoryStore()
	}

	log.Printf("telemetry store opened at %s", cfg.DBPath)
	return store
}

// buildProviders initializes the configured remote providers in failover
// order. A provider that fails to initialize is skipped, not fatal.
func buildProviders(ctx context.Context, cfg config.ProvidersConfig) []provider.Provider {
	var providers []provider.Provider
	for _, pc := range cfg.Ordered() {
		p, err := provider.NewModelProvider(ctx, pc)
		if err != nil {
			log.Printf("warning: failed to initialize provider %s: %v", pc.Name, err)
			continue
		}
		log.Printf("provider %s initialized (model=%s)", pc.Name, pc.Model)
		providers = append(providers, p)
	}
	return providers
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Sakina backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
