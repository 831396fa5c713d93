package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/util"
)

const recommendationColumns = `id, file_id, COALESCE(assessment_id, 0), recommendation_type, text,
		priority, created_at, implemented, COALESCE(metadata_json, '')`

// InsertRecommendations appends recommendations in one transaction and sets
// their IDs. Either all rows are written or none.
func (s *Store) InsertRecommendations(recs []*model.Recommendation) ([]int64, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(recs))
	err := s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO file_recommendations (
				file_id, assessment_id, recommendation_type, text, priority,
				created_at, implemented, metadata_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return persistErr("prepare recommendation insert", err)
		}
		defer stmt.Close()

		for _, r := range recs {
			meta, err := encodeMeta(r.Metadata)
			if err != nil {
				return err
			}
			var assessmentID any
			if r.AssessmentID != 0 {
				assessmentID = r.AssessmentID
			}
			res, err := stmt.Exec(
				r.FileID, assessmentID, string(r.Type), r.Text, r.Priority.String(),
				r.CreatedAt.UTC(), boolInt(r.Implemented), meta,
			)
			if err != nil {
				return persistErr("insert recommendation", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return persistErr("read recommendation id", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, r := range recs {
		r.ID = ids[i]
	}
	return ids, nil
}

// GetRecommendation retrieves a recommendation by ID, or (nil, nil) when it does not exist
func (s *Store) GetRecommendation(id int64) (*model.Recommendation, error) {
	row := s.db.QueryRow(`SELECT `+recommendationColumns+` FROM file_recommendations WHERE id = ?`, id)
	r, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get recommendation", err)
	}
	return r, nil
}

// RecommendationsForFile returns a file's recommendations, newest first
func (s *Store) RecommendationsForFile(fileID int64) ([]*model.Recommendation, error) {
	rows, err := s.db.Query(`
		SELECT `+recommendationColumns+`
		FROM file_recommendations
		WHERE file_id = ?
		ORDER BY id DESC
	`, fileID)
	if err != nil {
		return nil, persistErr("query recommendations", err)
	}
	defer rows.Close()

	var out []*model.Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, persistErr("scan recommendation", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkImplemented flips implemented from false to true. It returns
// util.ErrNotFound for an unknown ID and util.ErrAlreadyImplemented when the
// flag is already set; the transition is never reversed.
func (s *Store) MarkImplemented(id int64) error {
	res, err := s.db.Exec(`
		UPDATE file_recommendations SET implemented = 1
		WHERE id = ? AND implemented = 0
	`, id)
	if err != nil {
		return persistErr("mark recommendation implemented", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("mark recommendation implemented", err)
	}
	if n == 1 {
		return nil
	}

	r, err := s.GetRecommendation(id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("recommendation %d: %w", id, util.ErrNotFound)
	}
	return fmt.Errorf("recommendation %d: %w", id, util.ErrAlreadyImplemented)
}

// RecommendationStat counts recommendations sharing a type, priority and state
type RecommendationStat struct {
	Type        model.RecommendationType
	Priority    model.Priority
	Implemented bool
	Count       int
}

// RecommendationStats groups all recommendations by type, priority and implemented flag
func (s *Store) RecommendationStats() ([]RecommendationStat, error) {
	rows, err := s.db.Query(`
		SELECT recommendation_type, priority, implemented, COUNT(*)
		FROM file_recommendations
		GROUP BY recommendation_type, priority, implemented
		ORDER BY recommendation_type, priority, implemented
	`)
	if err != nil {
		return nil, persistErr("query recommendation stats", err)
	}
	defer rows.Close()

	var out []RecommendationStat
	for rows.Next() {
		var (
			st          RecommendationStat
			typ, prio   string
			implemented int
		)
		if err := rows.Scan(&typ, &prio, &implemented, &st.Count); err != nil {
			return nil, persistErr("scan recommendation stats", err)
		}
		st.Type = model.RecommendationType(typ)
		st.Priority, _ = model.ParsePriority(prio)
		st.Implemented = implemented != 0
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanRecommendation(row rowScanner) (*model.Recommendation, error) {
	var (
		r           model.Recommendation
		typ, prio   string
		created     time.Time
		implemented int
		meta        string
	)
	err := row.Scan(&r.ID, &r.FileID, &r.AssessmentID, &typ, &r.Text, &prio, &created, &implemented, &meta)
	if err != nil {
		return nil, err
	}

	if r.Type, err = model.ParseRecommendationType(typ); err != nil {
		return nil, err
	}
	if r.Priority, err = model.ParsePriority(prio); err != nil {
		return nil, err
	}
	r.CreatedAt = created
	r.Implemented = implemented != 0
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode recommendation metadata: %w", err)
		}
	}
	return &r, nil
}

func encodeMeta(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommendation metadata: %w", err)
	}
	return string(data), nil
}
