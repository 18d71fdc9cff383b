package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"alarmtrack/internal/api"
	"alarmtrack/internal/auth"
	"alarmtrack/internal/auth/oidc"
	"alarmtrack/internal/domain"
	"alarmtrack/internal/observability"
	"alarmtrack/internal/storage"
)

func main() {
	// Initialize structured logger from environment configuration
	logCfg := observability.ConfigFromEnv()
	logger := observability.NewLogger(logCfg)

	configPath := flag.String("config", envOr("ALARMTRACK_CONFIG", ""), "path to YAML config file")
	addrFlag := flag.String("addr", "", "listen address (host:port); overrides config")
	migrate := flag.Bool("migrate", false, "apply pending schema migrations and exit")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	// Opening a store applies pending migrations, so -migrate just opens
	// and closes it.
	if *migrate {
		st := selectStore(logger, cfg)
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
		return
	}

	// Initialize Sentry if DSN is provided
	sentryDSN := os.Getenv("SENTRY_DSN")
	sentryEnabled := false
	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", envOr("SENTRY_ENVIRONMENT", "production"),
				"release", envOr("APP_VERSION", "dev"),
			)
			sentryEnabled = true
		}
	}

	// Select storage based on build tags and env (see store_*.go in this package).
	store := selectStore(logger, cfg)

	// Initialize metrics
	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled",
			"namespace", metricsCfg.Namespace,
			"version", metricsCfg.Version,
		)
	} else {
		logger.Info("metrics disabled")
	}

	rateCfg := api.DefaultRateLimitConfig()
	if rateCfg.Enabled() {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	} else {
		logger.Info("rate limiting disabled")
	}

	// Token verification against the identity provider. Without an issuer
	// the API runs unauthenticated, which is only suitable for local
	// development.
	var authenticator *auth.Authenticator
	if cfg.OIDC.IssuerURL != "" {
		provider, err := oidc.NewProvider(context.Background(), oidc.ProviderConfig{
			IssuerURL:         cfg.OIDC.IssuerURL,
			ClientID:          cfg.OIDC.ClientID,
			SkipClientIDCheck: cfg.OIDC.SkipClientIDCheck,
		})
		if err != nil {
			logger.Error("oidc provider initialization failed", "issuer", cfg.OIDC.IssuerURL, "error", err)
			os.Exit(1)
		}
		authenticator = auth.NewAuthenticator(provider, store)
		logger.Info("oidc authentication enabled", "issuer", cfg.OIDC.IssuerURL)
	} else {
		logger.Warn("no oidc issuer configured: API is running unauthenticated")
	}

	// Bootstrap admin account from config (idempotent).
	if cfg.AdminEmail != "" {
		bootstrapAdmin(logger, store, cfg.AdminEmail, cfg.AdminPassword)
	}

	mux := http.NewServeMux()
	auditLogger := selectAuditLogger(logger, store)
	srv := api.NewServer(mux, store, logger, metrics, auditLogger, authenticator)
	srv.RegisterRoutes()

	// Middleware order: metrics (outermost) -> requestID -> logging -> rate limiting
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger),
		api.RateLimitMiddleware(rateCfg, logger),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("alarmtrack listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	} else {
		logger.Info("database connection closed")
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// bootstrapAdmin ensures an admin staff record exists for the given email.
// Regular sign-in goes through the identity provider; the password hash is
// stored only so break-glass tooling can verify it.
func bootstrapAdmin(logger observability.Logger, store storage.Store, email, password string) {
	ctx := context.Background()

	if existing, ok, err := store.GetStaffByEmail(ctx, email); err == nil && ok && existing.Role == domain.RoleAdmin {
		logger.Info("bootstrap admin already exists", "email", email)
		return
	}

	in := domain.StaffInput{Email: email, Role: domain.RoleAdmin}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			logger.Error("failed to hash admin password", "error", err)
			return
		}
		in.PasswordHash = hash
	}

	staff, err := store.UpsertStaffByEmail(ctx, in)
	if err != nil {
		logger.Error("failed to create bootstrap admin", "email", email, "error", err)
		return
	}
	logger.Info("bootstrap admin ready", "email", staff.Email, "id", staff.ID)
}
