package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/aths/internal/audit"
	"github.com/prperemyshlev/aths/internal/config"
	"github.com/prperemyshlev/aths/internal/crms"
	"github.com/prperemyshlev/aths/internal/dispatch"
	"github.com/prperemyshlev/aths/internal/domain"
	"github.com/prperemyshlev/aths/internal/handler"
	"github.com/prperemyshlev/aths/internal/notify"
	"github.com/prperemyshlev/aths/internal/repository"
	"github.com/prperemyshlev/aths/internal/service"
	"github.com/prperemyshlev/aths/internal/utils"
	"github.com/prperemyshlev/aths/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	infra      Infrastructure
	config     *config.Config
	dispatcher *dispatch.Dispatcher
	services   *service.Services
	router     *gin.Engine
	server     *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()

	jwtManager, err := utils.NewJWTManager(utils.JWTConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTokenExpiry.Duration,
		RefreshTTL: cfg.JWT.RefreshTokenExpiry.Duration,
	}, time.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT manager: %w", err)
	}

	meter := infra.Telemetry().Meter()

	dispatcher := dispatch.New(dispatch.Config{
		Workers:     cfg.Dispatch.Workers,
		BufferSize:  cfg.Dispatch.BufferSize,
		TaskTimeout: cfg.Dispatch.TaskTimeout.Duration,
	}, logger)
	if err := dispatcher.RegisterMetrics(meter); err != nil {
		return nil, err
	}

	metrics, err := service.NewMetrics(meter)
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(infra, cfg)
	if err != nil {
		return nil, err
	}

	deps := service.Dependencies{
		Repositories: repository.NewRepositories(infra.Postgres()),
		JWT:          jwtManager,
		Hasher:       utils.NewPasswordHasher(cfg.Security.BCryptCost),
		Executor:     dispatcher,
		Audit:        audit.NewRecorder(newAuditSink(infra, cfg), dispatcher, time.Now),
		Mailer:       mailer,
		Metrics:      metrics,
		Logger:       logger,
		Clock:        time.Now,

		PasswordResetTTL:     cfg.Security.PasswordResetExpiry.Duration,
		EmailVerificationTTL: cfg.Security.EmailVerificationExpiry.Duration,
	}
	if cfg.CRMS.BaseURL != "" {
		deps.Customers = crms.NewClient(cfg.CRMS.BaseURL, cfg.CRMS.Timeout.Duration)
	} else {
		logger.Warn("CRMS_BASE_URL is empty, customer records will not be created")
	}

	services := service.New(deps)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))
	router.Use(handler.ClientContextMiddleware())

	setupRoutes(router, services, handler.NewErrorResponder(logger, !cfg.IsProduction()), NewHealthChecker(infra), infra.Telemetry().Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:      infra,
		config:     cfg,
		dispatcher: dispatcher,
		services:   services,
		router:     router,
		server:     srv,
	}, nil
}

func newMailer(infra Infrastructure, cfg *config.Config) (notify.Mailer, error) {
	links := notify.Links{FrontendURL: cfg.Mail.FrontendURL}

	if cfg.Mail.Transport == config.MailTransportQueue {
		if infra.Broker() == nil {
			return nil, errors.New("mail transport is queue but no broker is connected")
		}
		return notify.NewQueueMailer(infra.Broker(), cfg.Mail.Queue, links, dispatch.DefaultRetryPolicy), nil
	}

	if cfg.IsProduction() {
		infra.Logger().Warn("Using log mail transport in production, emails will not be delivered")
	}
	return notify.NewLogMailer(infra.Logger(), links), nil
}

func newAuditSink(infra Infrastructure, cfg *config.Config) audit.Sink {
	if cfg.Audit.Sink == config.AuditSinkRedis {
		return audit.NewRedisStreamSink(infra.Redis().Client, cfg.Audit.Stream, cfg.Audit.MaxLength)
	}
	return audit.NewLogSink(infra.Logger())
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Services() *service.Services {
	return a.services
}

func setupRoutes(
	router *gin.Engine,
	services *service.Services,
	errs *handler.ErrorResponder,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	authHandler := handler.NewAuthHandler(services.Auth, services.Account, errs)
	recoveryHandler := handler.NewRecoveryHandler(services.Recovery, errs)
	adminHandler := handler.NewAdminHandler(services.Account, errs)
	requireAuth := handler.AuthMiddleware(services.Auth, errs)

	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", requireAuth, authHandler.Logout)

			auth.GET("/me", requireAuth, authHandler.GetMe)
			auth.PATCH("/me", requireAuth, authHandler.UpdateMe)
			auth.DELETE("/me", requireAuth, authHandler.DeleteMe)
			auth.PUT("/me/password", requireAuth, authHandler.ChangePassword)
			auth.GET("/sessions", requireAuth, authHandler.ListSessions)

			auth.POST("/password/forgot", recoveryHandler.ForgotPassword)
			auth.POST("/password/reset", recoveryHandler.ResetPassword)
			auth.POST("/email/verification", requireAuth, recoveryHandler.SendVerificationEmail)
			auth.POST("/email/verify", recoveryHandler.VerifyEmail)
		}

		admin := api.Group("/admin", requireAuth, handler.RequireRole(domain.RoleAdministrator, errs))
		{
			admin.PATCH("/users/:id/role", adminHandler.ChangeRole)
			admin.PATCH("/users/:id/status", adminHandler.SetStatus)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

// Shutdown stops the HTTP server, drains queued side effects and then closes
// the infrastructure, in that order
func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.infra.Logger().Info("Side effect queue drained",
		zap.Uint64("dropped", a.dispatcher.Dropped()),
		zap.Uint64("failed", a.dispatcher.Failed()),
	)
	if err := a.infra.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("infrastructure: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
