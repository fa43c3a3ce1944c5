package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/time/rate"

	"github.com/username/finwatch/src/config"
	"github.com/username/finwatch/src/database"
	"github.com/username/finwatch/src/handlers"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/remote"
	"github.com/username/finwatch/src/security"
	"github.com/username/finwatch/src/services"
	"github.com/username/finwatch/src/watchlist"
)

// watchlistBackend is the remote watchlist table with the owner-wide
// operations used for stats and account deletion.
type watchlistBackend interface {
	watchlist.RemoteTable
	CountByOwner(ctx context.Context, owner string) (int, error)
	DeleteByOwner(ctx context.Context, owner string) error
}

// openWatchlistBackend picks the remote table named by cfg.RemoteDriver.
// The returned func releases it.
func openWatchlistBackend(ctx context.Context, cfg *config.AppConfig, db *sql.DB) (watchlistBackend, func(), error) {
	switch cfg.RemoteDriver {
	case "", "sqlite":
		return model.NewWatchlistTable(db), func() {}, nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, nil, errors.New("REMOTE_DRIVER=postgres requires POSTGRES_URL")
		}
		pg, err := remote.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown REMOTE_DRIVER %q", cfg.RemoteDriver)
}

type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API server" }
func (*serveCmd) Usage() string {
	return `serve [-port <port>]

  Starts the API server. This is the default when no command is given.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "Port to listen on. Overrides PORT.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	cfg := config.Cfg
	if c.port != "" {
		cfg.Port = c.port
	}

	logger.L.Info("finwatch backend server starting...")
	if len(cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		return subcommands.ExitFailure
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.L.Info("Initializing database...", "path", cfg.DatabasePath)
	database.InitDB(cfg.DatabasePath)
	defer database.DB.Close()
	database.RunMigrations()

	backend, closeBackend, err := openWatchlistBackend(ctx, cfg, database.DB)
	if err != nil {
		logger.L.Error("Failed to open watchlist backend", "driver", cfg.RemoteDriver, "error", err)
		return subcommands.ExitFailure
	}
	defer closeBackend()

	registry := market.NewDefaultRegistry(cfg)
	workspaces := services.NewManager(backend, registry, services.WorkspaceOptions{
		CacheDir: cfg.WatchlistCacheDir,
		IdleTTL:  cfg.WorkspaceIdleTTL,
		Intervals: map[watchlist.InstrumentType]time.Duration{
			watchlist.US:     cfg.RefreshIntervalUS,
			watchlist.Indian: cfg.RefreshIntervalIndian,
			watchlist.Crypto: cfg.RefreshIntervalCrypto,
		},
		FetchTimeout:  cfg.MarketHTTPTimeout,
		RemoteTimeout: cfg.RemoteTimeout,
		InboxSize:     cfg.NotificationInboxSize,
	})
	defer workspaces.Shutdown()

	authService := security.NewAuthService(cfg.JWTSecret, cfg.AccessTokenExpiry)
	ledgerService := services.NewLedgerService(model.NewLedgerRepository(database.DB), backend)
	subscriptionService := services.NewSubscriptionService(database.DB, services.NewMockPaymentProvider())

	var generator services.InsightGenerator
	if gemini, err := services.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err == nil {
		generator = gemini
	} else if !errors.Is(err, services.ErrAssistantOffline) {
		logger.L.Warn("Gemini client unavailable, assistant falls back to plain reports", "error", err)
	}
	assistantService := services.NewAssistantService(ledgerService, generator, cfg.DisplayCurrency)

	userHandler := handlers.NewUserHandler(database.DB, authService, workspaces, backend, cfg.RefreshTokenExpiry)
	router := &handlers.Router{
		Users:          userHandler,
		Watchlist:      handlers.NewWatchlistHandler(workspaces, registry),
		Market:         handlers.NewMarketHandler(registry),
		Transactions:   handlers.NewTransactionHandler(ledgerService),
		Expenses:       handlers.NewExpenseHandler(ledgerService),
		Subscriptions:  handlers.NewSubscriptionHandler(database.DB, subscriptionService),
		Assistant:      handlers.NewAssistantHandler(assistantService),
		CSRFAuthKey:    cfg.CSRFAuthKey,
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
	}
	if cfg.GoogleClientID != "" {
		router.OAuth = handlers.NewOAuthHandler(userHandler, cfg)
	}

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		logger.L.Info("Shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
			return subcommands.ExitFailure
		}
	}
	logger.L.Info("Server stopped")
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply database migrations and exit" }
func (*migrateCmd) Usage() string {
	return `migrate

  Applies the embedded SQLite migrations. With REMOTE_DRIVER=postgres the
  remote watchlist migrations are applied as well.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	config.LoadToolConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	conn, err := database.Open(config.Cfg.DatabasePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer conn.Close()
	if err := database.Migrate(conn); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if config.Cfg.RemoteDriver == "postgres" {
		_, closeBackend, err := openWatchlistBackend(ctx, config.Cfg, conn)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		closeBackend()
	}
	fmt.Println("migrations applied")
	return subcommands.ExitSuccess
}
