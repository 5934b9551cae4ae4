package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booklist/internal/config"
	"booklist/internal/notify"
	"booklist/internal/state"
	"booklist/internal/storage"
	"booklist/internal/storage/airtable"
	"booklist/internal/storage/ch"
	"booklist/internal/storage/stubs"
	"booklist/internal/tracker"
	"booklist/internal/web"
)

// App represents the application
type App struct {
	config  *config.Config
	logger  *zap.Logger
	db      storage.Storage
	store   *state.Store
	tracker *tracker.Tracker
	server  *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}
	logger.Info("Starting book list", zap.String("backend", cfg.Backend))

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initTracker(); err != nil {
		return nil, err
	}

	if err := app.initHTTPServer(); err != nil {
		return nil, err
	}

	return app, nil
}

// newLogger builds a production zap logger at the given level
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = format
	if format == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

// initDatabase initializes the selected store backend
func (a *App) initDatabase() error {
	var db storage.Storage
	switch a.config.Backend {
	case config.BackendMemory:
		a.logger.Info("Using in-memory store")
		db = stubs.NewMockDB()

	case config.BackendClickHouse:
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB

	default:
		a.logger.Info("Using Airtable",
			zap.String("base_id", a.config.AirtableBaseID),
			zap.String("table", a.config.AirtableTable),
		)
		client, err := airtable.NewClient(
			a.config.AirtableAPIURL,
			a.config.AirtableBaseID,
			a.config.AirtableTable,
			a.config.AirtableToken,
			a.config.RequestTimeout,
			a.logger.Named("airtable"),
		)
		if err != nil {
			return fmt.Errorf("failed to create Airtable client: %w", err)
		}
		db = client
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.config.RequestTimeout)
	defer cancel()
	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initTracker wires the state store, the notifier and the tracker, then
// loads the first page of books
func (a *App) initTracker() error {
	var notifier notify.Notifier = notify.Nop{}
	if a.config.NotificationsEnabled() {
		tg, err := notify.NewTelegram(
			a.config.TelegramToken,
			a.config.TelegramChatID,
			a.config.TelegramThreadID,
			a.logger.Named("notify"),
		)
		if err != nil {
			return fmt.Errorf("failed to create Telegram notifier: %w", err)
		}
		notifier = tg
	}

	a.store = state.NewStore(state.Initial(), a.logger.Named("state"))
	a.tracker = tracker.New(a.store, a.db, notifier, tracker.Options{
		PageSize: a.config.PageSize,
		Locale:   a.config.SortLocale,
	}, a.logger.Named("tracker"))

	// a failed first load is shown in the page's error banner, not fatal
	ctx, cancel := context.WithTimeout(context.Background(), a.config.RequestTimeout)
	defer cancel()
	if err := a.tracker.Fetch(ctx); err != nil {
		a.logger.Warn("Initial fetch failed", zap.Error(err))
	}
	return nil
}

// initHTTPServer builds the page and API server
func (a *App) initHTTPServer() error {
	hs, err := web.NewHTTPServer(a.tracker, a.logger.Named("web"))
	if err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:    ":" + a.config.Port,
		Handler: hs.Handler(),
		// remote store calls happen inside handlers
		ReadTimeout:  10 * time.Second,
		WriteTimeout: a.config.RequestTimeout + 10*time.Second,
	}
	return nil
}

// Run serves HTTP and blocks until SIGINT/SIGTERM or a server error
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down...")
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	a.store.Close()

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
