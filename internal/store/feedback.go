package store

import (
	"database/sql"
	"time"

	"github.com/franz/file-curator/internal/model"
)

// InsertFeedback appends one feedback row and sets its ID
func (s *Store) InsertFeedback(f *model.Feedback) (int64, error) {
	var text any
	if f.Text != "" {
		text = f.Text
	}

	res, err := s.db.Exec(`
		INSERT INTO recommendation_feedback (
			recommendation_id, recommendation_type, helpful, feedback_text, created_at
		) VALUES (?, ?, ?, ?, ?)
	`, f.RecommendationID, string(f.Type), boolInt(f.Helpful), text, f.CreatedAt.UTC())
	if err != nil {
		return 0, persistErr("insert feedback", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("read feedback id", err)
	}
	f.ID = id
	return id, nil
}

// QueryRecentFeedback returns up to limit feedback rows for a recommendation
// type, newest first
func (s *Store) QueryRecentFeedback(t model.RecommendationType, limit int) ([]*model.Feedback, error) {
	rows, err := s.db.Query(`
		SELECT id, recommendation_id, recommendation_type, helpful,
		       COALESCE(feedback_text, ''), created_at
		FROM recommendation_feedback
		WHERE recommendation_type = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(t), limit)
	if err != nil {
		return nil, persistErr("query feedback", err)
	}
	defer rows.Close()

	var out []*model.Feedback
	for rows.Next() {
		var (
			f       model.Feedback
			typ     string
			helpful int
			created time.Time
		)
		if err := rows.Scan(&f.ID, &f.RecommendationID, &typ, &helpful, &f.Text, &created); err != nil {
			return nil, persistErr("scan feedback", err)
		}
		f.Type = model.RecommendationType(typ)
		f.Helpful = helpful != 0
		f.CreatedAt = created
		out = append(out, &f)
	}
	return out, rows.Err()
}

// FeedbackStat is the all-time vote count of one recommendation type
type FeedbackStat struct {
	Helpful int
	Total   int
}

// FeedbackStats returns all-time helpful/total counts per recommendation type
func (s *Store) FeedbackStats() (map[model.RecommendationType]FeedbackStat, error) {
	rows, err := s.db.Query(`
		SELECT recommendation_type, SUM(helpful), COUNT(*)
		FROM recommendation_feedback
		GROUP BY recommendation_type
	`)
	if err != nil {
		return nil, persistErr("query feedback stats", err)
	}
	defer rows.Close()

	stats := make(map[model.RecommendationType]FeedbackStat)
	for rows.Next() {
		var (
			typ     string
			helpful sql.NullInt64
			total   int
		)
		if err := rows.Scan(&typ, &helpful, &total); err != nil {
			return nil, persistErr("scan feedback stats", err)
		}
		stats[model.RecommendationType(typ)] = FeedbackStat{Helpful: int(helpful.Int64), Total: total}
	}
	return stats, rows.Err()
}
