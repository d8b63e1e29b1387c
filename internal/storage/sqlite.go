package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xaenox/emotrack/internal/models"
)

// SQLiteStorage keeps profiles and analysis records in a single local file.
type SQLiteStorage struct {
	conn *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer at a time
	conn.SetMaxOpenConns(1)

	db := &SQLiteStorage{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

func (db *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		impact_score REAL NOT NULL,
		current_top TEXT NOT NULL,
		profile_top TEXT NOT NULL,
		mid_term_active BOOLEAN NOT NULL,
		long_term_active BOOLEAN NOT NULL,
		profile_age_days INTEGER NOT NULL,
		message_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_records_user_created ON analysis_records(user_id, created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func (db *SQLiteStorage) GetProfile(ctx context.Context, userID string) ([]byte, error) {
	var data string
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (db *SQLiteStorage) SaveProfile(ctx context.Context, userID string, data []byte) error {
	query := `
	INSERT INTO profiles (user_id, data, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query, userID, string(data), time.Now().UTC())
	return err
}

func (db *SQLiteStorage) AppendRecord(ctx context.Context, record *models.AnalysisRecord) error {
	current, profile, err := encodeTops(record)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO analysis_records (id, user_id, message, impact_score, current_top, profile_top,
		mid_term_active, long_term_active, profile_age_days, message_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.conn.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Message,
		record.ImpactScore,
		string(current),
		string(profile),
		record.MidTermActive,
		record.LongTermActive,
		record.ProfileAgeDays,
		record.MessageCount,
		record.CreatedAt.UTC(),
	)
	return err
}

// RecentRecords returns up to limit records for the user, newest first.
func (db *SQLiteStorage) RecentRecords(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	query := `
	SELECT id, user_id, message, impact_score, current_top, profile_top,
		mid_term_active, long_term_active, profile_age_days, message_count, created_at
	FROM analysis_records
	WHERE user_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, userID, recordLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (db *SQLiteStorage) Close() error {
	return db.conn.Close()
}
