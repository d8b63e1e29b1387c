package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/xaenox/emotrack/internal/models"
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

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err = s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetProfile(ctx context.Context, userID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying profile: %w", err)
	}
	return data, nil
}

func (s *PostgresStorage) SaveProfile(ctx context.Context, userID string, data []byte) error {
	query := `
		INSERT INTO profiles (user_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, userID, data, time.Now()); err != nil {
		return fmt.Errorf("error saving profile: %w", err)
	}
	return nil
}

func (s *PostgresStorage) AppendRecord(ctx context.Context, record *models.AnalysisRecord) error {
	current, profile, err := encodeTops(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_records (id, user_id, message, impact_score, current_top, profile_top,
			mid_term_active, long_term_active, profile_age_days, message_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Message,
		record.ImpactScore,
		current,
		profile,
		record.MidTermActive,
		record.LongTermActive,
		record.ProfileAgeDays,
		record.MessageCount,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating analysis record: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecentRecords(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	query := `
		SELECT id, user_id, message, impact_score, current_top, profile_top,
			mid_term_active, long_term_active, profile_age_days, message_count, created_at
		FROM analysis_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, recordLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying analysis records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
