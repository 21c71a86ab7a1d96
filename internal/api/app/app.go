package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/geofleet/geofleet/internal/api/http"
	"github.com/geofleet/geofleet/internal/api/oidc"
	"github.com/geofleet/geofleet/internal/api/service"
	"github.com/geofleet/geofleet/internal/api/store"
	"github.com/geofleet/geofleet/internal/api/store/drivers/sqlite"
	"github.com/geofleet/geofleet/pkg/signx"
	"github.com/geofleet/geofleet/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the API service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	tokens *signx.TokenManager

	loginService        *service.LoginService
	userService         *service.UserService
	auditService        *service.AuditService
	usageService        *service.UsageService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "geofleet-api",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys := signx.NewKeyManager(&store.KeystoreAdapter{Keystore: app.db.Keystore()})
	app.tokens = signx.NewTokenManager(keys)

	app.initServices()

	if err := app.bootstrap(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.usageService.Start()

	app.logger.Info("api service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.usageService.Stop()
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("api service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	app.loginService = &service.LoginService{
		Store:               app.db,
		Tokens:              app.tokens,
		ServiceAccountToken: app.cfg.ServiceAccountToken,
		ForceDirectory:      app.cfg.ForceDirectory,
		ForceRedirect:       app.cfg.ForceRedirect,
	}
	app.userService = &service.UserService{Store: app.db}
	app.auditService = service.NewAuditService(app.db, app.logger)
	app.usageService = service.NewUsageService(app.db, app.logger, app.cfg.UsageFlushInterval)
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

func (app *Application) bootstrap() error {
	bootstrapService := &service.BootstrapService{
		Store:         app.db,
		Logger:        app.logger,
		AdminEmail:    app.cfg.AdminEmail,
		AdminPassword: app.cfg.AdminPassword,
	}
	return bootstrapService.EnsureAdmin(context.Background())
}

func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(app.db, BuildVersion, app.logger)

	sessions := &httpapi.SessionHandler{
		Login:           app.loginService,
		Users:           app.userService,
		Tokens:          app.tokens,
		Store:           app.db,
		Audit:           app.auditService,
		SessionLifetime: app.cfg.SessionLifetime,
		SecureCookies:   app.cfg.SecureCookies,
	}
	router.Sessions = sessions
	router.Users = &httpapi.UserHandler{Users: app.userService}
	router.Authenticator = &httpapi.Authenticator{
		Login: app.loginService,
		Usage: app.usageService,
	}

	if app.cfg.OIDCIssuerURL != "" {
		provider, err := oidc.NewProvider(context.Background(), oidc.Config{
			IssuerURL:    app.cfg.OIDCIssuerURL,
			ClientID:     app.cfg.OIDCClientID,
			ClientSecret: app.cfg.OIDCClientSecret,
			RedirectURL:  app.cfg.OIDCRedirectURL,
			SuccessURL:   app.cfg.OIDCSuccessURL,
			AdminGroup:   app.cfg.OIDCAdminGroup,
			AllowedGroup: app.cfg.OIDCAllowedGroup,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize identity provider: %w", err)
		}
		router.OpenID = &httpapi.OpenIDHandler{
			Provider: provider,
			Login:    app.loginService,
			Sessions: sessions,
			Audit:    app.auditService,
		}
	}

	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
	return nil
}
