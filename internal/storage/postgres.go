package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/xaenox/regretgpt/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the config as a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("dbname", config.DBName))
	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) SaveVerdict(ctx context.Context, verdict *models.Verdict) error {
	if verdict.ID == uuid.Nil {
		verdict.ID = uuid.New()
	}
	if verdict.CreatedAt.IsZero() {
		verdict.CreatedAt = time.Now()
	}

	var hour sql.NullInt16
	if verdict.Hour != nil {
		hour = sql.NullInt16{Int16: int16(*verdict.Hour), Valid: true}
	}

	query := `
		INSERT INTO verdicts (id, url, text_length, hour, regret_score, reason,
			intervention_strength, llm_message, simulation, model, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		verdict.ID,
		verdict.URL,
		verdict.TextLength,
		hour,
		verdict.Result.RegretScore,
		verdict.Result.Reason,
		string(verdict.Result.InterventionStrength),
		verdict.Result.LLMMessage,
		verdict.Result.Simulation,
		verdict.Model,
		verdict.Fallback,
		verdict.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving verdict: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentVerdicts(ctx context.Context, limit int) ([]*models.Verdict, error) {
	query := `
		SELECT id, url, text_length, hour, regret_score, reason,
			intervention_strength, llm_message, simulation, model, fallback, created_at
		FROM verdicts
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []*models.Verdict
	for rows.Next() {
		v := &models.Verdict{}
		var hour sql.NullInt16
		var strength string
		err := rows.Scan(
			&v.ID,
			&v.URL,
			&v.TextLength,
			&hour,
			&v.Result.RegretScore,
			&v.Result.Reason,
			&strength,
			&v.Result.LLMMessage,
			&v.Result.Simulation,
			&v.Model,
			&v.Fallback,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning verdict: %w", err)
		}
		if hour.Valid {
			h := int(hour.Int16)
			v.Hour = &h
		}
		v.Result.InterventionStrength = models.InterventionStrength(strength)
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verdicts: %w", err)
	}

	return verdicts, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
