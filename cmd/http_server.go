package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/internal/proxy"
	"github.com/frahmantamala/admin-lite-gateway/internal/session"
	sessionstore "github.com/frahmantamala/admin-lite-gateway/internal/session/postgres"
	"github.com/frahmantamala/admin-lite-gateway/internal/token"
	"github.com/frahmantamala/admin-lite-gateway/internal/transport/middleware"
	"github.com/frahmantamala/admin-lite-gateway/internal/transport/rest"
	"github.com/frahmantamala/admin-lite-gateway/internal/upstream"
	"github.com/frahmantamala/admin-lite-gateway/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the gateway HTTP server`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	Router      *chi.Mux
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.RateLimiter.Stop()
		if deps.DB != nil {
			if err := deps.DB.Close(); err != nil {
				deps.Logger.Error("Database close error", "error", err)
			}
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(internal.Environment(), config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	// The staff database backs only the legacy credential path; the gateway
	// runs without it when no DSN is configured.
	var db *sqlx.DB
	var store session.StaffStore
	if config.Database.Source != "" {
		db, err = initDB(config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		gormDB, err := gorm.Open(gormpg.New(gormpg.Config{Conn: db.DB}), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to wrap database connection: %w", err)
		}
		store = sessionstore.NewRepository(gormDB)
	} else {
		lg.Warn("DATABASE_URL not set; legacy credential fallback disabled")
	}

	client := upstream.NewClient(config.Upstream.Timeout, lg)
	codec := token.NewCodec()

	adminBase := proxy.AdminBase(proxy.ResolveUpstreamRoot(config, nil))
	sessionService := session.NewService(config, codec, client, store, adminBase, lg)
	sessionHandler := session.NewHandler(sessionService)

	proxyHandler := proxy.NewHandler(config, client, lg)
	gate := middleware.NewAuthGate(config, codec, lg)
	limiter := middleware.NewRateLimiter(config.RateLimit, lg)

	router := chi.NewRouter()
	var sqlDB *sql.DB
	if db != nil {
		sqlDB = db.DB
	}
	rest.RegisterAllRoutes(router, sqlDB, config, sessionHandler, proxyHandler, gate, limiter, client, lg)

	return &Dependencies{
		Config:      config,
		DB:          db,
		Router:      router,
		RateLimiter: limiter,
		Logger:      lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
