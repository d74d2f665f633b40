package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stageportal/internal/app"
	"stageportal/internal/config"
	"stageportal/internal/database"
	apphttp "stageportal/internal/http"
	"stageportal/internal/http/handlers"
	"stageportal/internal/http/metrics"
	httpmw "stageportal/internal/http/middleware"
	"stageportal/internal/http/response"
	"stageportal/internal/observability"
	"stageportal/internal/repository/postgres"
	"stageportal/internal/scoring"
	"stageportal/internal/security"
	"stageportal/internal/storage"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	response.SetDevelopment(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, database.PostgresConfig{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxIdle:     cfg.DBConnMaxIdle,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redisClient := connectRedis(cfg.RedisURL, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("redis close failed: " + err.Error())
			}
		}()
	}

	documents, err := storage.NewLocalStore(cfg.UploadDir, cfg.DocumentMaxSize)
	if err != nil {
		return err
	}
	invoker, err := scoring.NewCommandInvoker(cfg.ScorerCommand, cfg.ScorerTimeout)
	if err != nil {
		return err
	}

	candidateRepo := postgres.NewCandidateRepository(db)
	adminRepo := postgres.NewAdminRepository(db)
	applicationRepo := postgres.NewApplicationRepository(db)

	var (
		queue   scoring.Queue
		limiter httpmw.Limiter
	)
	if redisClient != nil {
		queue = scoring.NewRedisQueue(redisClient, "")
		limiter = httpmw.NewRedisLimiter(redisClient, "")
	} else {
		queue = scoring.NewMemoryQueue(0)
		limiter = httpmw.NewRateLimiter()
	}

	collector := metrics.NewCollector()
	jwtProvider := security.NewJWTProvider(cfg.JWTSecret)

	authService := app.NewAuthService(candidateRepo, adminRepo, documents, jwtProvider, logger, cfg.TokenTTL)
	applicationService := app.NewApplicationService(applicationRepo, documents, queue, collector, logger)
	reviewService := app.NewReviewService(applicationRepo, logger)

	worker := scoring.NewWorker(queue, applicationRepo, invoker, documents, logger, collector, scoring.WorkerConfig{
		Concurrency: cfg.ScoringWorkers,
		StaleAfter:  cfg.ScoringStaleAfter,
	})
	sweeper := scoring.NewSweeper(applicationRepo, queue, logger, collector, scoring.SweeperConfig{
		Interval:    cfg.ScoringSweepEvery,
		StaleAfter:  cfg.ScoringStaleAfter,
		MaxAttempts: cfg.ScoringMaxAttempts,
	})

	if recovered, err := queue.Recover(ctx); err != nil {
		logger.Error("scoring queue recovery failed: " + err.Error())
	} else if recovered > 0 {
		logger.Info(fmt.Sprintf("requeued %d in-flight scoring jobs", recovered))
	}

	router := apphttp.NewRouter(apphttp.RouterDependencies{
		AuthHandler:        handlers.NewAuthHandler(authService),
		ApplicationHandler: handlers.NewApplicationHandler(applicationService),
		ReviewHandler:      handlers.NewReviewHandler(reviewService),
		DocumentHandler:    handlers.NewDocumentHandler(documents),
		HealthHandler:      handlers.NewHealthHandler(db, version),
		MetricsHandler:     handlers.NewMetricsHandler(collector),
		AuthMiddleware:     httpmw.NewAuthMiddleware(authService),
		Metrics:            collector,
		Logger:             logger.Logger,
		Limiter:            limiter,
		LoginPerMinute:     cfg.LoginRatePerMin,
		RegisterPerMinute:  cfg.RegisterRatePerMin,
		SubmitPerMinute:    cfg.SubmitRatePerMin,
		RequestTimeout:     cfg.RequestTimeout,
		MaxBodyBytes:       2*cfg.DocumentMaxSize + 1<<20,
		TrustProxyHeaders:  cfg.TrustProxy,
	})
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		worker.Run(workerCtx)
	}()
	if err := sweeper.Start(); err != nil {
		cancelWorkers()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("API started on :" + cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed: " + err.Error())
	}
	<-sweeper.Stop().Done()
	cancelWorkers()
	workers.Wait()
	logger.Info("API stopped")
	return nil
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// API then falls back to in-process queue and rate limiting.
func connectRedis(url string, logger *observability.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("redis url parse failed: " + err.Error())
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed: " + err.Error())
		_ = client.Close()
		return nil
	}
	return client
}
