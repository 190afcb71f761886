package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/the-bazaar/bazaar-backend/internal/auth"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/container"
	"github.com/the-bazaar/bazaar-backend/internal/database"
	"github.com/the-bazaar/bazaar-backend/internal/edge"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/middleware"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(&cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	metrics.Init()

	app, err := edge.ForApp(cfg.Edge.App)
	if err != nil {
		log.Fatalf("Invalid edge app: %v", err)
	}

	upstream, err := url.Parse(cfg.Edge.UpstreamURL)
	if err != nil || upstream.Host == "" {
		log.Fatalf("Invalid upstream URL %q: %v", cfg.Edge.UpstreamURL, err)
	}

	provider, err := container.NewIdentityProvider(cfg.Identity)
	if err != nil {
		log.Fatalf("Failed to initialize identity provider: %v", err)
	}

	opts := edge.Options{
		App:      app,
		Provider: provider,
		Cookies:  &cfg.Edge,
		Upstream: upstream,
	}

	// only the admin portal reads staff and profile rows
	if app.Admin {
		store, err := database.New(&cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		opts.Authenticator = auth.NewAuthenticator(provider, store.Queries())
		opts.Profiles = store.Queries()
	}

	trusted, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP(trusted))
	r.Use(middleware.RequestContext)
	r.Use(middleware.LoggingMiddleware)
	r.Use(metrics.Instrument)

	r.Get("/_edge/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/_edge/metrics", metrics.Handler())
	r.Handle("/*", edge.New(opts))

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Edge.Port)
	s := &http.Server{
		Handler:           r,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info("Edge gateway starting", "app", app.Name, "addr", addr, "upstream", upstream.String())
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Edge gateway failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down edge gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown failed", "error", err)
	}
}
