// Package main is the entry point for the cockpit API server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netopscockpit/cockpit/internal/cache"
	"github.com/netopscockpit/cockpit/internal/config"
	"github.com/netopscockpit/cockpit/internal/database"
	"github.com/netopscockpit/cockpit/internal/gitrepo"
	"github.com/netopscockpit/cockpit/internal/handler"
	"github.com/netopscockpit/cockpit/internal/inventory"
	"github.com/netopscockpit/cockpit/internal/middleware"
	"github.com/netopscockpit/cockpit/internal/query"
	"github.com/netopscockpit/cockpit/internal/repository"
	"github.com/netopscockpit/cockpit/internal/scan"
	"github.com/netopscockpit/cockpit/internal/service"
	"github.com/netopscockpit/cockpit/internal/sms"
	"github.com/netopscockpit/cockpit/internal/vault"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting cockpit API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	db, err := database.Open(cfg.Data.SettingsDB())
	if err != nil {
		log.Fatalf("Failed to open settings database: %v", err)
	}
	defer db.Close()
	logger.Info("Settings database ready", slog.String("path", cfg.Data.SettingsDB()))

	v, err := vault.New(cfg.Vault.SecretKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	clock := clockwork.NewRealClock()

	// Repositories
	credentialRepo := repository.NewCredentialRepository(db)
	gitRepoRepo := repository.NewGitRepositoryRepository(db)
	templateRepo := repository.NewTemplateRepository(db, cfg.Data.TemplatesDir())

	// Credential service mediates every decrypt: the Git orchestrator
	// and the scan engine both resolve through it.
	credentialSvc := service.NewCredentialService(credentialRepo, v, clock)

	// Git working trees + cached views
	manager := gitrepo.NewManager(cfg.Data.GitDir(), gitrepo.Timeouts{
		Clone:  cfg.Git.CloneTimeout,
		Pull:   cfg.Git.PullTimeout,
		Remote: cfg.Git.RemoteTimeout,
		Test:   cfg.Git.TestTimeout,
	}, credentialSvc, cfg.Git.SSLCAInfo, cfg.Git.SSLCert)

	viewCache := cache.New(cfg.Cache.TTL, clock)
	views := gitrepo.NewViews(manager, viewCache, cfg.Cache.TTL)
	gitRepoSvc := service.NewGitRepositoryService(gitRepoRepo, manager, views, clock)

	// Scan engine
	registry := scan.NewRegistry(cfg.Scan.JobTTL, clock)
	pinger := scan.NewICMPPinger(cfg.Scan.PingTimeout, cfg.Scan.PingAttempts, cfg.Scan.Privileged)
	parserTemplates := service.ParserTemplateSource{Templates: templateRepo}
	engine := scan.NewEngine(registry, pinger, credentialSvc, parserTemplates, cfg.Scan.SSHTimeout, clock)

	// SMS clients
	smsClient := sms.NewClient(cfg.SMS.URL, cfg.SMS.Token, cfg.SMS.Timeout)
	querier := sms.NewGraphQLClient(cfg.SMS.URL, cfg.SMS.Token, cfg.SMS.Timeout)

	// Inventory generation
	generator := inventory.NewGenerator(manager, cfg.Data.InventoryDir())
	queryEngine := query.NewEngine(querier)
	inventorySvc := service.NewInventoryService(queryEngine, templateRepo, generator, querier)

	scanSvc := service.NewScanService(engine, registry, smsClient, templateRepo, gitRepoRepo, generator)

	// Optional cache warming for the selected configs repository.
	warmCtx, warmCancel := context.WithCancel(context.Background())
	defer warmCancel()
	if cfg.Cache.PrefetchOnStart {
		go func() {
			repo, err := gitRepoRepo.GetSelected(warmCtx)
			if err != nil || repo == nil {
				return
			}
			views.Prefetch(warmCtx, repo)
		}()
	}
	views.StartRefresher(warmCtx, cfg.Cache.RefreshInterval, gitRepoRepo.GetSelected)

	// Router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(nil))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Timeout(5 * time.Minute))

	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{Token: cfg.Auth.Token}))

		r.Mount("/credentials", handler.NewCredentialHandler(credentialSvc).Routes())
		r.Mount("/git-repositories", handler.NewGitRepositoryHandler(gitRepoSvc).Routes())
		r.Mount("/scan", handler.NewScanHandler(scanSvc).Routes())
		r.Mount("/ansible-inventory", handler.NewInventoryHandler(inventorySvc).Routes())
		r.Mount("/cache", handler.NewCacheHandler(viewCache).Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server", slog.String("signal", sig.String()))
	warmCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}

// healthHandler reports liveness only.
func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// readyHandler verifies the settings database answers.
func readyHandler(db interface {
	PingContext(ctx context.Context) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","component":"database"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
