package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	"github.com/frahmantamala/user-management/internal/auth"
	"github.com/frahmantamala/user-management/internal/query"
	"github.com/frahmantamala/user-management/internal/role"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/internal/transport/openapi"
	"github.com/frahmantamala/user-management/internal/transport/rest"
	"github.com/frahmantamala/user-management/internal/user"
	"github.com/frahmantamala/user-management/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
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
	Config      *internal.Config
	DB          *Database
	Router      *chi.Mux
	Logger      *slog.Logger
	AuthService *auth.Service
	Users       *user.Service
	Roles       *role.Service
	Query       *query.Facade
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

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
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) {
	hasher := deps.AuthService

	rest.RegisterAllRoutes(deps.Router, deps.DB.SQL(), deps.DB.Driver, rest.Handlers{
		Auth:  auth.NewHandler(deps.AuthService),
		RBAC:  auth.NewRBACAuthorization(deps.Logger),
		Users: user.NewHandler(deps.Users, deps.Query, hasher),
		Roles: role.NewHandler(deps.Roles, deps.Query),
		Logs:  audit.NewHandler(deps.Query),
	}, deps.Config.Server, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	if _, err := openapi.Load(context.Background()); err != nil {
		return nil, err
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	services := newServices(config, db, lg)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.JWTAccessSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(auth.NewRepository(db.Gorm), tokens, config.Security.BCryptCost)

	return &Dependencies{
		Config:      config,
		Logger:      lg,
		DB:          db,
		Router:      chi.NewRouter(),
		AuthService: authService,
		Users:       services.Users,
		Roles:       services.Roles,
		Query:       query.New(db.SQLX),
	}, nil
}

type domainServices struct {
	Users *user.Service
	Roles *role.Service
	Audit *audit.Service
}

// newServices builds the transactional services over one runner.
func newServices(cfg *internal.Config, db *Database, lg *slog.Logger) domainServices {
	runner := store.NewRunner(db.Gorm,
		store.WithIsolation(cfg.Database.Isolation()),
		store.WithTimeout(cfg.Users.OperationTimeout),
		store.WithLogger(lg),
	)
	recorder := audit.NewRecorder(lg)

	return domainServices{
		Users: user.NewService(runner, recorder,
			user.WithDefaultRoleCode(cfg.Users.DefaultRoleCode),
			user.WithLogger(lg),
		),
		Roles: role.NewService(runner, recorder, lg),
		Audit: audit.NewService(runner, lg),
	}
}
