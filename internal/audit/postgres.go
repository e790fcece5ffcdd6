package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresSink appends audit records to the redaction_audit table. Writes are
// insert-only; the table has no update or delete path in this codebase.
type PostgresSink struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration for the audit sink.
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// NewPostgresSink connects to the audit database.
func NewPostgresSink(config *Config, logger *zap.Logger) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Audit sink initialized", zap.Int("max_open_conns", config.MaxOpenConns))

	return &PostgresSink{db: db, logger: logger}, nil
}

// Write appends one audit record.
func (s *PostgresSink) Write(ctx context.Context, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.RedactedPreview = Preview(record.RedactedPreview)

	query := `
		INSERT INTO redaction_audit
			(org_id, policy_id, agent_id, run_id, data_type,
			 redaction_count, patterns_matched, original_hash, redacted_preview, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		record.OrgID,
		record.PolicyID,
		record.AgentID,
		record.RunID,
		record.DataType,
		record.RedactionCount,
		pq.StringArray(record.PatternsMatched),
		record.OriginalHash,
		record.RedactedPreview,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		s.logger.Error("Failed to write audit record",
			zap.String("policy_id", record.PolicyID),
			zap.Error(err))
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	s.logger.Debug("Audit record written",
		zap.Int64("id", record.ID),
		zap.String("policy_id", record.PolicyID),
		zap.Int("redaction_count", record.RedactionCount))

	return nil
}

// ReadSince returns audit records created at or after the given time, oldest
// first. Used by the exporter; the hot path never reads.
func (s *PostgresSink) ReadSince(ctx context.Context, since time.Time, limit int) ([]*Record, error) {
	query := `
		SELECT id, org_id, policy_id, agent_id, run_id, data_type,
		       redaction_count, patterns_matched, original_hash, redacted_preview, created_at
		FROM redaction_audit
		WHERE created_at >= $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.db.QueryxContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("audit read failed: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var record Record
		var patterns pq.StringArray
		err := rows.Scan(
			&record.ID,
			&record.OrgID,
			&record.PolicyID,
			&record.AgentID,
			&record.RunID,
			&record.DataType,
			&record.RedactionCount,
			&patterns,
			&record.OriginalHash,
			&record.RedactedPreview,
			&record.CreatedAt,
		)
		if err != nil {
			s.logger.Error("Failed to scan audit record", zap.Error(err))
			continue
		}
		record.PatternsMatched = patterns
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
