package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/auth"
	"certificate-studio/certificate-backend/internal/bulk"
	"certificate-studio/certificate-backend/internal/certificates"
	"certificate-studio/certificate-backend/internal/config"
	"certificate-studio/certificate-backend/internal/database"
	"certificate-studio/certificate-backend/internal/metrics"
	"certificate-studio/certificate-backend/internal/middleware"
	"certificate-studio/certificate-backend/internal/notifications/websocket"
	"certificate-studio/certificate-backend/internal/render"
	"certificate-studio/certificate-backend/internal/templates"
	"certificate-studio/certificate-backend/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

// devJWTSecret signs tokens when debug logging is on and no secret is set
const devJWTSecret = "certificate-studio-dev-secret"

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, db, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout.Duration, logger)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(disconnectCtx)
	}()
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	app, err := newApp(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.cleaner.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("version", version))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}

// app holds the wired components of a running server
type app struct {
	router  *gin.Engine
	ws      *websocket.Manager
	cleaner *bulk.Cleaner
	limits  []*middleware.RateLimiter
}

func (a *app) close() {
	a.cleaner.Stop()
	a.ws.Close()
	for _, l := range a.limits {
		l.Stop()
	}
}

func newApp(ctx context.Context, cfg *config.Config, db *mongo.Database, logger *zap.Logger) (*app, error) {
	secret := cfg.Security.JWTSecret
	if secret == "" {
		logger.Warn("No JWT secret configured, using the development secret")
		secret = devJWTSecret
	}
	tokens := auth.NewTokenManager(secret, cfg.Security.TokenTTL.Duration)

	uploads, err := storage.NewDisk(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}
	outputs, err := storage.NewDisk(cfg.Storage.OutputDir)
	if err != nil {
		return nil, err
	}
	archives, err := storage.NewDisk(cfg.Storage.ArchiveDir)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var mirror certificates.Mirror
	if cfg.S3.Enabled {
		s3Client, err := storage.NewS3Client(ctx, storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		mirror = certificates.NewS3Mirror(s3Client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.PresignExpiry.Duration)
		logger.Info("Mirroring generated files to S3", zap.String("bucket", cfg.S3.Bucket))
	}

	ws := websocket.NewManager(func(r *http.Request) (string, error) {
		claims, err := tokens.Parse(auth.TokenFromRequest(r))
		if err != nil {
			return "", err
		}
		return claims.AdminID, nil
	}, cfg.Server.AllowedOrigins, logger.Named("ws"))

	pipeline := render.NewDefaultPipeline(cfg.Storage.FontDir, m.ObserveRender)

	authService := auth.NewService(auth.NewRepository(db), tokens, cfg.Security.BcryptCost, logger.Named("auth"))
	templateService := templates.NewService(templates.NewRepository(db), uploads, pipeline, cfg.Render.DefaultContainerWidth, logger.Named("templates"))
	certService := certificates.NewService(certificates.Deps{
		Repo:          certificates.NewRepository(db),
		IDs:           certificates.NewIDGenerator(certificates.NewSequence(db)),
		Templates:     templateService,
		Renderer:      pipeline,
		Files:         outputs,
		Mirror:        mirror,
		Notifier:      ws,
		Metrics:       m,
		DefaultWidth:  cfg.Render.DefaultContainerWidth,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Logger:        logger.Named("certificates"),
	})

	registry := bulk.NewRegistry()
	packager := bulk.NewPackager(certService, archives, registry, ws, m, cfg.Storage.PublicBaseURL, logger.Named("bulk"))
	cleaner := bulk.NewCleaner(archives, registry, cfg.Storage.ArchiveRetention.Duration, cfg.Storage.CleanupSchedule, m, logger.Named("cleanup"))

	authLimit := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration).OnReject(m.IncRateLimitExceeded)
	generationLimit := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration).OnReject(m.IncRateLimitExceeded)

	if cfg.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger.Named("http")),
		middleware.Recovery(logger),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.SecureHeaders(),
	)
	if m != nil {
		router.Use(m.GinMiddleware())
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"connections": ws.GetConnectionCount(),
		})
	})
	router.GET("/ws", ws.Handle)

	requireAuth := auth.RequireAuth(tokens)
	api := router.Group("/api/v1")
	auth.NewHandler(authService, logger).RegisterRoutes(api.Group("", authLimit.Middleware()), requireAuth)

	protected := api.Group("", requireAuth)
	templates.NewHandler(templateService, cfg.Storage.MaxUploadBytes, logger).RegisterRoutes(protected)
	certificates.NewHandler(certService, cfg.Storage.MaxUploadBytes, logger).RegisterRoutes(protected, generationLimit.Middleware())
	bulk.NewHandler(packager, logger).RegisterRoutes(protected)

	return &app{
		router:  router,
		ws:      ws,
		cleaner: cleaner,
		limits:  []*middleware.RateLimiter{authLimit, generationLimit},
	}, nil
}
