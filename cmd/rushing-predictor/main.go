package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/cache"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/config"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/hub"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/logging"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/modelstore"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/predictor"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/ratelimit"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/registry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/retry"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/store"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/trainer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logger")
	}
	log := logging.Component(logger, "main")
	log.Info("=== NFL Rushing Predictor ===")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional collaborators stay nil interfaces when disabled.
	var (
		runs    trainer.RunRecorder
		history handlers.RunLister
		audit   predictor.PredictionLog
		cacher  predictor.Cache
		limiter handlers.Limiter
		sinks   []trainer.EventSink
	)

	// WebSocket hub
	h := hub.NewHub(logging.Component(logger, "hub"))
	go h.Run(ctx)

	// Training history and prediction audit log
	if cfg.Store.DSN != "" {
		db, err := connectStore(ctx, cfg.Store, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to store")
		}
		defer db.Close()

		runs, history, audit = db, db, db
		log.WithField("driver", cfg.Store.Driver).Info("✓ Connected to store")
	}

	// Prediction cache and training event stream
	if cfg.Redis.URL != "" {
		redisClient, err := connectRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer redisClient.Close()

		cacher = cache.NewRedisCache(redisClient, cfg.Redis.PredictionTTL)
		limiter = ratelimit.NewWindowLimiter(redisClient, cfg.Redis.RetrainLimit, cfg.Redis.RetrainLimitWindow)

		// Events go through the stream so clients on every replica see them.
		sinks = append(sinks, publisher.NewStreamPublisher(redisClient, cfg.Redis.TrainingStream, cfg.Redis.StreamMaxLen))
		streamConsumer := consumer.NewStreamConsumer(redisClient, cfg.Redis.TrainingStream, h, logging.Component(logger, "consumer"))
		go streamConsumer.Start(ctx)

		log.WithField("stream", cfg.Redis.TrainingStream).Info("✓ Connected to Redis")
	} else {
		sinks = append(sinks, h)
	}

	reg := registry.NewRegistry()
	modelStore := modelstore.New(cfg.Training.ModelPath)
	tr := trainer.New(cfg.Training.Trainer(), reg, modelStore, runs, logging.Component(logger, "trainer"), sinks...)

	if cfg.Training.TrainOnStart {
		// Serve health and pages while the first run is in progress.
		go func() {
			if err := tr.LoadOrTrain(ctx); err != nil {
				log.WithError(err).Error("initial training failed, predictions unavailable until a retrain succeeds")
			}
		}()
	} else if set, err := modelStore.Load(); err != nil {
		log.WithError(err).Warn("no saved models loaded, predictions unavailable until a retrain succeeds")
	} else {
		reg.Swap(set)
		log.WithField("version", set.Version).Info("loaded saved models")
	}

	pred := predictor.New(reg, cacher, audit, logging.Component(logger, "predictor"))

	handler := handlers.NewHandler(ctx, handlers.Deps{
		Registry:  reg,
		Predictor: pred,
		Trainer:   tr,
		Runs:      history,
		Limiter:   limiter,
		Hub:       h,
	}, logging.Component(logger, "http"))

	router := handler.Routes(handlers.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Start server
	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	serverErrors := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("✓ Rushing predictor listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}

	case sig := <-shutdown:
		log.WithField("signal", sig.String()).Warn("received signal, shutting down")

		// Give outstanding requests a deadline for completion
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
			if err := srv.Close(); err != nil {
				log.WithError(err).Error("could not stop server")
			}
		}
	}

	cancel()
	log.Info("✓ Shutdown complete")
}

// connectStore opens and migrates the SQL store, retrying while the database
// comes up
func connectStore(ctx context.Context, cfg config.StoreConfig, log *logrus.Entry) (*store.SQLStore, error) {
	db, err := store.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	policy := retry.NewPolicy(5, time.Second)
	err = policy.Do(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.Ping(pingCtx)
	}, func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).Warn("store not ready, retrying")
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// connectRedis builds a client from a redis:// URL and waits for it to answer
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logrus.Entry) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)

	policy := retry.NewPolicy(5, time.Second)
	err = policy.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, func(attempt int, err error) {
		log.WithError(err).WithField("attempt", attempt).Warn("Redis not ready, retrying")
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
