package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xaenox/emotrack/internal/models"
)

const maxRecordLimit = 1000

func recordLimit(limit int) int {
	if limit <= 0 || limit > maxRecordLimit {
		return maxRecordLimit
	}
	return limit
}

func encodeTops(record *models.AnalysisRecord) (current, profile []byte, err error) {
	if current, err = json.Marshal(record.Current); err != nil {
		return nil, nil, fmt.Errorf("marshal current emotions: %w", err)
	}
	if profile, err = json.Marshal(record.Profile); err != nil {
		return nil, nil, fmt.Errorf("marshal profile emotions: %w", err)
	}
	return current, profile, nil
}

func scanRecords(rows *sql.Rows) ([]*models.AnalysisRecord, error) {
	var records []*models.AnalysisRecord
	for rows.Next() {
		r := &models.AnalysisRecord{}
		var current, profile []byte
		err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.Message,
			&r.ImpactScore,
			&current,
			&profile,
			&r.MidTermActive,
			&r.LongTermActive,
			&r.ProfileAgeDays,
			&r.MessageCount,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning analysis record: %w", err)
		}
		if err := json.Unmarshal(current, &r.Current); err != nil {
			return nil, fmt.Errorf("unmarshal current emotions: %w", err)
		}
		if err := json.Unmarshal(profile, &r.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile emotions: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
