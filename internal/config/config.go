package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/regression"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/trainer"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8000"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

// StoreConfig selects the SQL store. An empty DSN disables it.
type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"STORE_DSN"`
}

// RedisConfig holds Redis connection configuration. An empty URL disables
// the prediction cache and the event stream.
type RedisConfig struct {
	URL            string        `env:"REDIS_URL"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB" envDefault:"0"`
	PredictionTTL  time.Duration `env:"PREDICTION_CACHE_TTL" envDefault:"10m"`
	TrainingStream string        `env:"TRAINING_STREAM" envDefault:"models.training"`
	StreamMaxLen   int64         `env:"TRAINING_STREAM_MAXLEN" envDefault:"10000"`

	// Retrains allowed per window across all replicas; 0 disables the limit
	RetrainLimit       int           `env:"RETRAIN_RATE_LIMIT" envDefault:"6"`
	RetrainLimitWindow time.Duration `env:"RETRAIN_RATE_WINDOW" envDefault:"1h"`
}

// TrainingConfig holds data locations and hyperparameters
type TrainingConfig struct {
	ModelPath    string  `env:"MODEL_PATH" envDefault:"models"`
	DataPath     string  `env:"DATA_PATH" envDefault:"csv/train.csv"`
	TestSize     float64 `env:"TEST_SIZE" envDefault:"0.2"`
	Seed         int64   `env:"RANDOM_SEED" envDefault:"42"`
	TrainOnStart bool    `env:"TRAIN_ON_START" envDefault:"true"`

	BoostEstimators   int     `env:"BOOST_N_ESTIMATORS" envDefault:"200"`
	BoostMaxDepth     int     `env:"BOOST_MAX_DEPTH" envDefault:"6"`
	BoostLearningRate float64 `env:"BOOST_LEARNING_RATE" envDefault:"0.1"`
	ForestEstimators  int     `env:"FOREST_N_ESTIMATORS" envDefault:"100"`
	StackingFolds     int     `env:"STACKING_FOLDS" envDefault:"5"`
	RidgeAlpha        float64 `env:"RIDGE_ALPHA" envDefault:"1.0"`
	FinalEstimators   int     `env:"FINAL_N_ESTIMATORS" envDefault:"50"`
	FinalLearningRate float64 `env:"FINAL_LEARNING_RATE" envDefault:"0.05"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Redis    RedisConfig
	Training TrainingConfig
	Log      LogConfig
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges env parsing cannot express
func (c *Config) Validate() error {
	t := c.Training
	if t.TestSize <= 0 || t.TestSize >= 1 {
		return fmt.Errorf("TEST_SIZE must be in (0, 1), got %v", t.TestSize)
	}
	if t.BoostEstimators < 1 || t.ForestEstimators < 1 || t.FinalEstimators < 1 {
		return fmt.Errorf("estimator counts must be positive")
	}
	if t.BoostMaxDepth < 1 {
		return fmt.Errorf("BOOST_MAX_DEPTH must be positive, got %d", t.BoostMaxDepth)
	}
	if t.StackingFolds < 2 {
		return fmt.Errorf("STACKING_FOLDS must be at least 2, got %d", t.StackingFolds)
	}
	if c.Redis.RetrainLimit < 0 {
		return fmt.Errorf("RETRAIN_RATE_LIMIT must not be negative, got %d", c.Redis.RetrainLimit)
	}
	if c.Redis.RetrainLimit > 0 && c.Redis.RetrainLimitWindow <= 0 {
		return fmt.Errorf("RETRAIN_RATE_WINDOW must be positive, got %v", c.Redis.RetrainLimitWindow)
	}
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

// Trainer builds the trainer configuration
func (t TrainingConfig) Trainer() trainer.Config {
	boosting := regression.DefaultBoostingParams()
	boosting.NEstimators = t.BoostEstimators
	boosting.MaxDepth = t.BoostMaxDepth
	boosting.LearningRate = t.BoostLearningRate

	stacking := regression.DefaultStackingParams()
	stacking.Folds = t.StackingFolds
	stacking.Alpha = t.RidgeAlpha
	stacking.Forest.NEstimators = t.ForestEstimators
	stacking.Forest.Seed = t.Seed
	stacking.Final.NEstimators = t.FinalEstimators
	stacking.Final.LearningRate = t.FinalLearningRate

	return trainer.Config{
		DataPath: t.DataPath,
		TestSize: t.TestSize,
		Seed:     t.Seed,
		Boosting: boosting,
		Stacking: stacking,
	}
}
