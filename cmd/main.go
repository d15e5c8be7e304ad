package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/config"
	"github.com/CeliaPro/ysm2-sub001/internal/handler"
	"github.com/CeliaPro/ysm2-sub001/internal/handler/middleware"
	"github.com/CeliaPro/ysm2-sub001/internal/migrate"
	"github.com/CeliaPro/ysm2-sub001/internal/repository/postgres"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/assistant"
	"github.com/CeliaPro/ysm2-sub001/pkg/email"
	"github.com/CeliaPro/ysm2-sub001/pkg/geo"
	"github.com/CeliaPro/ysm2-sub001/pkg/hash"
	"github.com/CeliaPro/ysm2-sub001/pkg/jwt"
	"github.com/CeliaPro/ysm2-sub001/pkg/logger"
	"github.com/CeliaPro/ysm2-sub001/pkg/storage"
	"github.com/CeliaPro/ysm2-sub001/pkg/throttle"
	"github.com/CeliaPro/ysm2-sub001/pkg/totp"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDB(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := migrate.Up(ctx, db.DB); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	redisClient, err := initRedis(cfg)
	if err != nil {
		return fmt.Errorf("initialize redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warn("closing redis", zap.Error(err))
		}
	}()
	log.Info("redis connection established")

	validate := validator.NewValidator()

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	activityRepo := postgres.NewActivityRepository(db)
	inviteRepo := postgres.NewInviteRepository(db)
	resetRepo := postgres.NewPasswordResetRepository(db)
	projectRepo := postgres.NewProjectRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	chatRepo := postgres.NewChatRepository(db)

	tokenService, err := jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("initialize token service: %w", err)
	}
	hasher := hash.NewHasher(hash.DefaultConfig)
	otp := totp.NewAuthenticator(cfg.Auth.TOTPIssuer, time.Now)
	limiter := throttle.NewLoginThrottle(redisClient, cfg.Auth.MaxFailedLogins, cfg.Auth.LockDuration)

	var locator geo.Locator
	if cfg.Geo.Enabled {
		locator = geo.NewCachedLocator(geo.NewHTTPLocator(cfg.Geo.BaseURL, cfg.Geo.Timeout), redisClient, cfg.Geo.CacheTTL)
		log.Info("session geolocation enabled", zap.String("provider", cfg.Geo.BaseURL))
	}

	mailer, err := initMailer(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize email: %w", err)
	}

	var store storage.ObjectStore
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			URLExpiry:       cfg.Storage.URLExpiry,
		})
		if err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		store = s3Store
		log.Info("object storage enabled", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		log.Info("object storage disabled (set S3_BUCKET to enable)")
	}

	var asst assistant.Assistant
	if cfg.Assistant.Enabled {
		asst = assistant.NewClient(assistant.Config{
			BaseURL:      cfg.Assistant.BaseURL,
			APIKey:       cfg.Assistant.APIKey,
			Model:        cfg.Assistant.Model,
			SystemPrompt: cfg.Assistant.SystemPrompt,
			Timeout:      cfg.Assistant.Timeout,
		})
		log.Info("assistant enabled", zap.String("model", cfg.Assistant.Model))
	}

	// Services
	recorder := service.NewActivityRecorder(activityRepo, log)
	sessionService := service.NewSessionService(sessionRepo, locator, recorder, log)
	authService := service.NewAuthService(userRepo, sessionService, recorder, tokenService, hasher, otp, limiter, log)
	userService := service.NewUserService(userRepo, resetRepo, sessionService, recorder, hasher, mailer, log, cfg.Server.PublicURL, cfg.Auth.ResetExpiry)
	inviteService := service.NewInviteService(inviteRepo, userRepo, recorder, hasher, mailer, log, cfg.Server.PublicURL, cfg.Auth.InviteExpiry)
	projectService := service.NewProjectService(projectRepo, userRepo, recorder, log)
	documentService := service.NewDocumentService(documentRepo, projectRepo, store, recorder, log)
	chatService := service.NewChatService(chatRepo, documentService, asst, cfg.Assistant.HistoryLimit, log)

	created, err := userService.BootstrapAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminName, cfg.Auth.BootstrapAdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		log.Info("first admin account created; unset BOOTSTRAP_ADMIN_PASSWORD")
	}

	cookies := handler.Cookies{Secure: cfg.Server.IsProduction()}
	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authService, sessionService, validate, cookies),
		Password: handler.NewPasswordHandler(authService, userService, validate),
		Invite:   handler.NewInviteHandler(inviteService, validate),
		User:     handler.NewUserHandler(userService, validate),
		Session:  handler.NewSessionHandler(sessionService, cookies),
		Activity: handler.NewActivityHandler(recorder),
		Project:  handler.NewProjectHandler(projectService, validate),
		Document: handler.NewDocumentHandler(documentService, validate),
		Chat:     handler.NewChatHandler(chatService, validate),
		Health:   handler.NewHealthHandler(db, redisClient),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	fiberCfg := fiber.Config{
		AppName:      "Docflow",
		ErrorHandler: middleware.ErrorHandler(log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if len(cfg.Server.TrustedProxies) > 0 {
		fiberCfg.ProxyHeader = fiber.HeaderXForwardedFor
		fiberCfg.EnableTrustedProxyCheck = true
		fiberCfg.TrustedProxies = cfg.Server.TrustedProxies
		fiberCfg.EnableIPValidation = true
	}
	app := fiber.New(fiberCfg)

	app.Use(metrics.Instrument())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.RecoveryMiddleware(log))
	app.Use(middleware.CORSMiddleware(cfg.Server.AllowOrigins))

	gate := middleware.NewGate(authService, sessionService, log)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst).Middleware()
	handler.SetupRoutes(app, handlers, gate, authLimiter, metrics)

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		log.Info("server starting", zap.String("addr", addr), zap.String("environment", cfg.Server.Environment))
		serveErr <- app.Listen(addr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

// initDB opens PostgreSQL with retries so the service survives a slow database start.
func initDB(cfg *config.Config, log *zap.Logger) (*sqlx.DB, error) {
	const maxRetries = 5
	const retryInterval = 2 * time.Second

	var db *sqlx.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", cfg.Database.DSN())
		if err == nil {
			break
		}
		log.Warn("database connection failed", zap.Int("attempt", i+1), zap.Int("max", maxRetries), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func initMailer(cfg *config.Config, log *zap.Logger) (email.Sender, error) {
	if !cfg.Email.Enabled {
		log.Info("email delivery disabled (set EMAIL_ENABLED=true to enable)")
		return email.NewLogSender(log), nil
	}
	sender, err := email.NewResendSender(&email.EmailConfig{
		APIKey:    cfg.Email.APIKey,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	}, log)
	if err != nil {
		return nil, err
	}
	log.Info("email delivery enabled (resend)")
	return sender, nil
}
