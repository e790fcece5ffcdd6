package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/redaction"
)

// PostgresStore reads redaction policies from PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration for the policy store.
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// policyRow is the database shape of a policy; rules are stored as JSONB.
type policyRow struct {
	ID             string         `db:"id"`
	OrgID          string         `db:"org_id"`
	Status         string         `db:"status"`
	DataCategories pq.StringArray `db:"data_categories"`
	Rules          []byte         `db:"redaction_rules"`
}

// NewPostgresStore connects to the policy database.
func NewPostgresStore(config *Config, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Policy store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

// GetActive fetches the active policy with the given id. Inactive and missing
// policies both surface as ErrNotFound.
func (s *PostgresStore) GetActive(ctx context.Context, id string) (*redaction.Policy, error) {
	query := `
		SELECT id, org_id, status, data_categories, redaction_rules
		FROM redaction_policies
		WHERE id = $1 AND status = 'active'`

	var row policyRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
		}
		s.logger.Error("Policy lookup failed", zap.String("policy_id", id), zap.Error(err))
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}

	var rules []redaction.Rule
	if len(row.Rules) > 0 {
		if err := json.Unmarshal(row.Rules, &rules); err != nil {
			return nil, fmt.Errorf("policy %s has malformed rules: %w", id, err)
		}
	}

	return &redaction.Policy{
		ID:             row.ID,
		OrgID:          row.OrgID,
		Status:         redaction.PolicyStatus(row.Status),
		DataCategories: row.DataCategories,
		Rules:          rules,
	}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks the password component of a database URL for logging.
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
