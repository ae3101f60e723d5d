// Package store records training runs and served predictions in SQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store defines the persistence operations of the service
type Store interface {
	Migrate(ctx context.Context) error
	RecordRun(ctx context.Context, run *models.TrainingRun) error
	ListRuns(ctx context.Context, limit int) ([]*models.TrainingRun, error)
	LogPrediction(ctx context.Context, rec *models.PredictionRecord) error
	Ping(ctx context.Context) error
	Close() error
}

// SQLStore implements Store over database/sql for PostgreSQL and SQLite
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database named by driver and dsn. Nothing is sent to
// the server until the first query; call Ping to verify the connection.
func Open(driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// One connection keeps an in-memory database alive and serializes writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &SQLStore{db: db, dialect: d}, nil
}

// Ping checks database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// RecordRun inserts a training run, or updates it when the ID already exists
func (s *SQLStore) RecordRun(ctx context.Context, run *models.TrainingRun) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	importance, err := json.Marshal(run.FeatureImportance)
	if err != nil {
		return fmt.Errorf("marshal feature importance: %w", err)
	}

	var finished interface{}
	if run.FinishedAt != nil {
		finished = s.dialect.timeArg(*run.FinishedAt)
	}

	query := s.dialect.rebind(`
		INSERT INTO training_runs (
			id, status, trigger_source, started_at, finished_at,
			report, metrics, feature_importance, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			report = excluded.report,
			metrics = excluded.metrics,
			feature_importance = excluded.feature_importance,
			error = excluded.error
	`)

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.Trigger,
		s.dialect.timeArg(run.StartedAt),
		finished,
		string(report),
		string(metrics),
		string(importance),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record training run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent training runs, newest first
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]*models.TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := s.dialect.rebind(`
		SELECT id, status, trigger_source, started_at, finished_at,
			report, metrics, feature_importance, error
		FROM training_runs
		ORDER BY started_at DESC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query training runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.TrainingRun{}
	for rows.Next() {
		var (
			run                         models.TrainingRun
			started, finished           interface{}
			report, metrics, importance string
		)
		if err := rows.Scan(&run.ID, &run.Status, &run.Trigger, &started, &finished,
			&report, &metrics, &importance, &run.Error); err != nil {
			return nil, fmt.Errorf("scan training run: %w", err)
		}

		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("training run %s started_at: %w", run.ID, err)
		}
		if finished != nil {
			t, err := parseTime(finished)
			if err != nil {
				return nil, fmt.Errorf("training run %s finished_at: %w", run.ID, err)
			}
			run.FinishedAt = &t
		}

		if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
			return nil, fmt.Errorf("parse report JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
			return nil, fmt.Errorf("parse metrics JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(importance), &run.FeatureImportance); err != nil {
			return nil, fmt.Errorf("parse feature importance JSON: %w", err)
		}

		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training runs: %w", err)
	}
	return runs, nil
}

// LogPrediction writes a prediction audit row
func (s *SQLStore) LogPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	vector, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	query := s.dialect.rebind(`
		INSERT INTO prediction_logs (
			model_version, features, predicted_yards, confidence, cached, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err = s.db.ExecContext(ctx, query,
		rec.ModelVersion,
		string(vector),
		rec.PredictedYards,
		rec.Confidence,
		rec.Cached,
		s.dialect.timeArg(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("log prediction: %w", err)
	}
	return nil
}

// CountPredictions returns the number of logged predictions for a model version
func (s *SQLStore) CountPredictions(ctx context.Context, version string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT COUNT(*) FROM prediction_logs WHERE model_version = ?`),
		version,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

type dialect struct {
	positional bool // $1, $2, ... instead of ?
	textTime   bool // timestamps stored as sortable UTC text
	schema     []string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		positional: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS training_runs (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				trigger_source TEXT NOT NULL,
				started_at TIMESTAMPTZ NOT NULL,
				finished_at TIMESTAMPTZ,
				report TEXT NOT NULL,
				metrics TEXT NOT NULL,
				feature_importance TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS prediction_logs (
				id BIGSERIAL PRIMARY KEY,
				model_version TEXT NOT NULL,
				features TEXT NOT NULL,
				predicted_yards DOUBLE PRECISION NOT NULL,
				confidence DOUBLE PRECISION NOT NULL,
				cached BOOLEAN NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_prediction_logs_version ON prediction_logs (model_version)`,
		},
	},
	DriverSQLite: {
		textTime: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS training_runs (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				trigger_source TEXT NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT,
				report TEXT NOT NULL,
				metrics TEXT NOT NULL,
				feature_importance TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS prediction_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				model_version TEXT NOT NULL,
				features TEXT NOT NULL,
				predicted_yards REAL NOT NULL,
				confidence REAL NOT NULL,
				cached INTEGER NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_prediction_logs_version ON prediction_logs (model_version)`,
		},
	},
}

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (d dialect) timeArg(t time.Time) interface{} {
	if d.textTime {
		return t.UTC().Format(timeLayout)
	}
	return t.UTC()
}

// rebind rewrites ? placeholders as $n for positional dialects.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(timeLayout, t)
	case []byte:
		return time.Parse(timeLayout, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}
