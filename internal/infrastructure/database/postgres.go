// Package database persists the search audit log in PostgreSQL. The log is
// write-only from the store's point of view; it only feeds operational stats.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
)

// QueryRecorder observes database calls.
type QueryRecorder interface {
	RecordDBQuery(ctx context.Context, operation string, duration time.Duration, err error)
}

// PostgresDB is the audit log store.
type PostgresDB struct {
	db       *sql.DB
	logger   *zap.Logger
	recorder QueryRecorder
}

// Config holds connection settings.
type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
	AutoMigrate           bool
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// NewPostgresDB opens and pings the database, applying migrations when cfg.AutoMigrate is set.
//
// Parameters:
//   - cfg: Connection and pool settings
//   - logger: Zap logger for database operations
//
// Returns:
//   - *PostgresDB: Connected audit store
//   - error: Connection, ping or migration error
func NewPostgresDB(cfg Config, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &PostgresDB{db: db, logger: logger}, nil
}

// SetQueryRecorder installs r for every subsequent call. Call it before the store starts writing.
func (p *PostgresDB) SetQueryRecorder(r QueryRecorder) {
	p.recorder = r
}

func (p *PostgresDB) observe(ctx context.Context, operation string, start time.Time, err error) {
	if p.recorder != nil {
		p.recorder.RecordDBQuery(ctx, operation, time.Since(start), err)
	}
}

// LogSearch inserts one finished search.
func (p *PostgresDB) LogSearch(ctx context.Context, audit domain.SearchAudit) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "LogSearch")

	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", audit.SessionID),
		attribute.String("request_id", audit.RequestID),
		attribute.String("outcome", string(audit.Outcome)),
	)

	query := `
		INSERT INTO search_audits (
			session_id, request_id, provider, query, outcome,
			cache_hit, attempts, duration_ms, error_message, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var errorMessage sql.NullString
	if audit.ErrorMessage != "" {
		errorMessage = sql.NullString{String: audit.ErrorMessage, Valid: true}
	}

	finishedAt := audit.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := p.db.ExecContext(ctx, query,
		audit.SessionID,
		audit.RequestID,
		string(audit.Provider),
		audit.Query,
		string(audit.Outcome),
		audit.CacheHit,
		audit.Attempts,
		audit.Duration.Milliseconds(),
		errorMessage,
		finishedAt,
	)
	duration := time.Since(start)
	p.observe(ctx, "LogSearch", start, err)

	if err != nil {
		p.logger.Error("failed to log search",
			zap.Error(err),
			zap.String("request_id", audit.RequestID),
			zap.Duration("duration", duration))
		span.RecordError(err)

		return err
	}

	p.logger.Debug("search logged",
		zap.String("request_id", audit.RequestID),
		zap.Duration("duration", duration))

	return nil
}

// RecordSearch implements ports.SearchAuditor.
func (p *PostgresDB) RecordSearch(ctx context.Context, audit domain.SearchAudit) error {
	return p.LogSearch(ctx, audit)
}

// SearchStats summarises the audit log since a point in time.
type SearchStats struct {
	TotalSearches int                          `json:"total_searches"`
	AvgDurationMs float64                      `json:"avg_duration_ms"`
	MaxDurationMs int64                        `json:"max_duration_ms"`
	CacheHitRate  float64                      `json:"cache_hit_rate"`
	ByOutcome     map[domain.SearchOutcome]int `json:"by_outcome"`
	ByProvider    map[domain.Provider]int      `json:"by_provider"`
}

// GetSearchStats aggregates searches finished at or after since.
func (p *PostgresDB) GetSearchStats(ctx context.Context, since time.Time) (stats *SearchStats, err error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "GetSearchStats")

	defer span.End()

	start := time.Now()
	defer func() { p.observe(ctx, "GetSearchStats", start, err) }()

	query := `
		SELECT
			COUNT(*),
			AVG(duration_ms),
			MAX(duration_ms),
			SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END)::float / NULLIF(COUNT(*), 0)::float
		FROM search_audits
		WHERE finished_at >= $1
	`

	var (
		total       int
		avgDuration sql.NullFloat64
		maxDuration sql.NullInt64
		hitRate     sql.NullFloat64
	)

	if err := p.db.QueryRowContext(ctx, query, since).Scan(&total, &avgDuration, &maxDuration, &hitRate); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query search stats: %w", err)
	}

	stats = &SearchStats{
		TotalSearches: total,
		AvgDurationMs: avgDuration.Float64,
		MaxDurationMs: maxDuration.Int64,
		CacheHitRate:  hitRate.Float64,
		ByOutcome:     make(map[domain.SearchOutcome]int),
		ByProvider:    make(map[domain.Provider]int),
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT provider, outcome, COUNT(*)
		FROM search_audits
		WHERE finished_at >= $1
		GROUP BY provider, outcome
	`, since)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query search breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			provider string
			outcome  string
			count    int
		)

		if err := rows.Scan(&provider, &outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan search breakdown: %w", err)
		}

		stats.ByOutcome[domain.SearchOutcome(outcome)] += count
		stats.ByProvider[domain.Provider(provider)] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search breakdown: %w", err)
	}

	return stats, nil
}

// DB exposes the connection for migrations.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping checks connectivity.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
