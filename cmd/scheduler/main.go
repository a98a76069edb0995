package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/segyhp/progressive-loan-engine/internal/cob"
	"github.com/segyhp/progressive-loan-engine/internal/config"
	"github.com/segyhp/progressive-loan-engine/internal/events"
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
	logger.Info("starting close of business scheduler")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	incomeService := service.NewCapitalizedIncomeService(
		loanRepo,
		repository.NewTransactionRepository(db),
		repository.NewCapitalizedIncomeRepository(db),
		events.NewRedisPublisher(redisClient, cfg.Redis.Channel),
		cfg, logger,
	)

	registry := prometheus.NewRegistry()
	runner := cob.NewRunner(loanRepo, incomeService, cfg.COB.Workers, cob.NewMetrics(registry), logger)

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.COBLocation()))

	// Schedule tasks
	if err := setupCronJobs(c, cfg, runner, logger); err != nil {
		logger.Fatal("failed to schedule close of business", zap.Error(err))
	}

	metricsServer := &http.Server{Addr: ":9090", Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// Start the scheduler
	c.Start()
	logger.Info("scheduler started", zap.String("cron", cfg.COB.Schedule))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	// waits for a running close of business to finish
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(ctx)
	logger.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, runner *cob.Runner, logger *zap.Logger) error {
	// Daily close of business: recognize capitalized income of every active loan
	_, err := c.AddFunc(cfg.COB.Schedule, func() {
		businessDate := time.Now().In(cfg.COBLocation()).AddDate(0, 0, -1)
		logger.Info("running close of business", zap.Time("business_date", businessDate))

		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		defer cancel()
		if _, err := runner.Run(ctx, businessDate); err != nil {
			logger.Error("close of business aborted", zap.Error(err))
		}
	})
	return err
}
