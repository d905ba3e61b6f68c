package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/account-service/internal"
	"github.com/frahmantamala/account-service/internal/auth"
	authpostgres "github.com/frahmantamala/account-service/internal/auth/postgres"
	"github.com/frahmantamala/account-service/internal/core/events"
	"github.com/frahmantamala/account-service/internal/notification"
	"github.com/frahmantamala/account-service/internal/permission"
	permissionpostgres "github.com/frahmantamala/account-service/internal/permission/postgres"
	"github.com/frahmantamala/account-service/internal/transport/rest"
	"github.com/frahmantamala/account-service/internal/user"
	userpostgres "github.com/frahmantamala/account-service/internal/user/postgres"
	"github.com/frahmantamala/account-service/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger
	Mailer *notification.Mailer
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to wire handlers: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
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
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if deps.Mailer != nil {
			deps.Mailer.Stop()
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	log := deps.Logger

	grantStore := permissionpostgres.NewGrantStore(deps.GormDB)
	engine := permission.NewEngine(grantStore, cfg.Security.AnonymousEmail, log)

	// The admins group must exist before any signup can grant into it.
	ctx, cancel := internal.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := grantStore.EnsureGroup(ctx, permission.AdminsGroup); err != nil {
		return fmt.Errorf("ensure admins group: %w", err)
	}

	bus := events.NewEventBus(log)

	if cfg.Mail.Enabled {
		mailer := notification.NewMailer(notification.Config{
			APIURL:      cfg.Mail.APIURL,
			APIKey:      cfg.Mail.APIKey,
			FromAddress: cfg.Mail.FromAddress,
			Workers:     cfg.Mail.Workers,
		}, log)
		mailer.Start()
		mailer.SubscribeToUserEvents(bus)
		deps.Mailer = mailer
	}

	hasher := auth.NewBcryptHasher(cfg.Security.BCryptCost, cfg.Security.MinPasswordLength)

	userRepo := userpostgres.NewUserRepository(deps.GormDB, engine)
	userService := user.NewService(userRepo, hasher, engine, bus, cfg.Security.AnonymousEmail, log)
	userHandler := user.NewHandler(userService, engine)

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authRepo := authpostgres.NewRepository(deps.GormDB)
	authService := auth.NewService(authRepo, tokenGen)
	authHandler := auth.NewHandler(authService, cfg.Security.AnonymousEmail)

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, cfg.Server.AllowedOrigins, authHandler, userHandler, log)
	return nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over db connection: %w", err)
	}

	router := chi.NewRouter()

	return &Dependencies{
		Config: config,
		Logger: logger.LoggerWrapper(),
		DB:     db,
		GormDB: gormDB,
		Router: router,
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
