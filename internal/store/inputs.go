package store

import (
	"database/sql"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
)

// GetMetrics returns the stored metrics of a file, or metrics.None when no
// metrics were imported for it
func (s *Store) GetMetrics(fileID int64) (metrics.Metrics, error) {
	var raw string
	err := s.db.QueryRow(`SELECT metrics_json FROM file_metrics WHERE file_id = ?`, fileID).Scan(&raw)
	if err == sql.ErrNoRows {
		return metrics.None{}, nil
	}
	if err != nil {
		return nil, persistErr("get metrics", err)
	}

	m, err := metrics.DecodeJSON(raw)
	if err != nil {
		return nil, persistErr("decode metrics", err)
	}
	return m, nil
}

// ReplaceMetrics stores m as the file's current metrics. metrics.None clears them.
func (s *Store) ReplaceMetrics(fileID int64, m metrics.Metrics) error {
	if metrics.IsNone(m) {
		_, err := s.db.Exec(`DELETE FROM file_metrics WHERE file_id = ?`, fileID)
		if err != nil {
			return persistErr("clear metrics", err)
		}
		return nil
	}

	raw, err := metrics.EncodeJSON(m)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO file_metrics (file_id, metrics_json) VALUES (?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			metrics_json = excluded.metrics_json,
			updated_at = CURRENT_TIMESTAMP
	`, fileID, raw)
	if err != nil {
		return persistErr("store metrics", err)
	}
	return nil
}

// GetSuggestions returns the content suggestions of a file in insertion order.
// Priorities that cannot be parsed are returned as zero.
func (s *Store) GetSuggestions(fileID int64) ([]*model.ContentSuggestion, error) {
	rows, err := s.db.Query(`
		SELECT id, file_id, COALESCE(category, ''), COALESCE(priority, ''),
		       suggestion, COALESCE(reason, '')
		FROM content_suggestions
		WHERE file_id = ?
		ORDER BY id
	`, fileID)
	if err != nil {
		return nil, persistErr("query suggestions", err)
	}
	defer rows.Close()

	var out []*model.ContentSuggestion
	for rows.Next() {
		var sg model.ContentSuggestion
		var priority string
		if err := rows.Scan(&sg.ID, &sg.FileID, &sg.Category, &priority, &sg.Suggestion, &sg.Reason); err != nil {
			return nil, persistErr("scan suggestion", err)
		}
		sg.Priority, _ = model.ParsePriority(priority)
		out = append(out, &sg)
	}
	return out, rows.Err()
}

// ReplaceSuggestions swaps the file's suggestions for the given list in one transaction
func (s *Store) ReplaceSuggestions(fileID int64, suggestions []*model.ContentSuggestion) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM content_suggestions WHERE file_id = ?`, fileID); err != nil {
			return persistErr("clear suggestions", err)
		}
		if len(suggestions) == 0 {
			return nil
		}

		stmt, err := tx.Prepare(`
			INSERT INTO content_suggestions (file_id, category, priority, suggestion, reason)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return persistErr("prepare suggestion insert", err)
		}
		defer stmt.Close()

		for _, sg := range suggestions {
			priority := ""
			if sg.Priority != 0 {
				priority = sg.Priority.String()
			}
			res, err := stmt.Exec(fileID, sg.Category, priority, sg.Suggestion, sg.Reason)
			if err != nil {
				return persistErr("insert suggestion", err)
			}
			sg.FileID = fileID
			sg.ID, _ = res.LastInsertId()
		}
		return nil
	})
}
