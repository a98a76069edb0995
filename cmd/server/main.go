package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/progressive-loan-engine/internal/cache"
	"github.com/segyhp/progressive-loan-engine/internal/config"
	"github.com/segyhp/progressive-loan-engine/internal/events"
	"github.com/segyhp/progressive-loan-engine/internal/handler"
	"github.com/segyhp/progressive-loan-engine/internal/logging"
	"github.com/segyhp/progressive-loan-engine/internal/repository"
	"github.com/segyhp/progressive-loan-engine/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	requestRepo := repository.NewRescheduleRequestRepository(db)
	balanceRepo := repository.NewCapitalizedIncomeRepository(db)

	// Initialize services
	scheduleService := service.NewScheduleService(
		loanRepo, transactionRepo, scheduleRepo, requestRepo,
		cache.NewScheduleCache(redisClient, cfg.Cache.ScheduleTTL),
		cfg, logger,
	)
	incomeService := service.NewCapitalizedIncomeService(
		loanRepo, transactionRepo, balanceRepo,
		events.NewRedisPublisher(redisClient, cfg.Redis.Channel),
		cfg, logger,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	healthHandler := handler.NewHealthHandler(cfg.Health.Timeout, map[string]handler.Check{
		"database": db.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	router := handler.NewRouter(
		handler.NewScheduleHandler(scheduleService, logger),
		handler.NewCapitalizedIncomeHandler(incomeService, logger),
		healthHandler,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logger,
	)
	router.Use(handler.MetricsMiddleware(registry))

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
