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
	"go.uber.org/zap"

	"fitshare/fitness-api/internal/api"
	"fitshare/fitness-api/internal/auth"
	"fitshare/fitness-api/internal/config"
	"fitshare/fitness-api/internal/logger"
	"fitshare/fitness-api/internal/mailer"
	"fitshare/fitness-api/internal/metrics"
	"fitshare/fitness-api/internal/queue"
	"fitshare/fitness-api/internal/quota"
	"fitshare/fitness-api/internal/repository"
	"fitshare/fitness-api/internal/repository/memory"
	"fitshare/fitness-api/internal/repository/mongo"
	"fitshare/fitness-api/internal/service"
	"fitshare/fitness-api/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// openStore returns the configured backend and a func releasing it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (repository.Store, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn("using in-memory storage; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	client, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return repository.Store{}, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	closeFn := func() {
		if err := mongo.DisconnectDB(client); err != nil {
			log.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}
	db := client.Database(cfg.Name)

	idxCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(idxCtx, db); err != nil {
		closeFn()
		return repository.Store{}, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("database connection established", zap.String("database", cfg.Name))
	return mongo.NewStore(client, db), closeFn, nil
}

func runServe(parent context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	files, err := storage.NewS3Storage(ctx, cfg.S3, log)
	if err != nil {
		return fmt.Errorf("init s3 storage: %w", err)
	}

	rdb, err := queue.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	tasks := queue.NewRedisQueue(log, rdb, cfg.Queue)

	var m *metrics.Metrics
	limits := quota.FromConfig(cfg.Limits)
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		limits = limits.WithObserver(m)
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret)
	services := api.Services{
		Auth: service.NewAuthService(store, tokens, tasks, service.AuthOptions{
			AccessTTL:     cfg.JWT.Expiration,
			VerifyTTL:     cfg.Auth.VerifyTokenTTL,
			BcryptCost:    cfg.Auth.BcryptCost,
			AppBaseURL:    cfg.Auth.AppBaseURL,
			EmailQueue:    cfg.Queue.EmailQueue,
			SignupSubject: cfg.Mail.SignupSubject,
		}, log),
		Users:     service.NewUserService(store, files, log),
		Exercises: service.NewExerciseService(store, limits, files, log),
		Workouts:  service.NewWorkoutService(store, limits, log),
		Groups:    service.NewGroupService(store, limits, log),
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	api.SetupRoutes(router, services, api.Options{
		Logger:         log.Named("http"),
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Metrics:        m,
		MetricsPath:    cfg.Metrics.Path,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("address", cfg.Server.Address), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exiting")
	return nil
}

func runWorker(parent context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := queue.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	sender, err := mailer.NewSESSender(ctx, cfg.Mail, log)
	if err != nil {
		return err
	}

	worker := queue.NewWorker(log, queue.NewRedisQueue(log, rdb, cfg.Queue), cfg.Queue.EmailQueue, cfg.Queue)
	worker.Handle(mailer.TaskSignupConfirmation, mailer.SignupConfirmationHandler(sender))

	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.Metrics)
		worker.SetObserver(m)

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer := &http.Server{Addr: cfg.Metrics.WorkerAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	log.Info("worker starting", zap.String("queue", cfg.Queue.EmailQueue), zap.String("version", version))
	return worker.Run(ctx)
}

func runIndexes(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != "mongo" {
		return fmt.Errorf("indexes: database.driver is %q, not mongo", cfg.Database.Driver)
	}
	_, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	closeStore()
	log.Info("indexes ensured")
	return nil
}
