package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
)

const assessmentColumns = `id, file_id, quality_score, normalized_score, monetization_eligible,
		needs_deletion, COALESCE(deletion_triggers, ''), assessment_date, metadata_json`

// InsertAssessment appends an assessment and sets its ID. Existing rows are
// never touched.
func (s *Store) InsertAssessment(a *model.Assessment) (int64, error) {
	raw, err := metrics.EncodeJSON(a.Metadata)
	if err != nil {
		return 0, err
	}

	var normalized sql.NullFloat64
	if a.NormalizedScore != nil {
		normalized = sql.NullFloat64{Float64: *a.NormalizedScore, Valid: true}
	}

	triggers := make([]string, len(a.DeletionTriggers))
	for i, t := range a.DeletionTriggers {
		triggers[i] = string(t)
	}

	res, err := s.db.Exec(`
		INSERT INTO assessments (
			file_id, quality_score, normalized_score, monetization_eligible,
			needs_deletion, deletion_triggers, assessment_date, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.FileID, a.QualityScore.String(), normalized, boolInt(a.MonetizationEligible),
		boolInt(a.NeedsDeletion), strings.Join(triggers, ","), a.AssessmentDate.UTC(), raw,
	)
	if err != nil {
		return 0, persistErr("insert assessment", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("read assessment id", err)
	}
	a.ID = id
	return id, nil
}

// LatestAssessment returns the most recent assessment of a file, or (nil, nil)
// when it was never assessed
func (s *Store) LatestAssessment(fileID int64) (*model.Assessment, error) {
	row := s.db.QueryRow(`
		SELECT `+assessmentColumns+`
		FROM assessments
		WHERE file_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, fileID)

	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get latest assessment", err)
	}
	return a, nil
}

// AssessmentHistory returns every assessment of a file, newest first
func (s *Store) AssessmentHistory(fileID int64) ([]*model.Assessment, error) {
	rows, err := s.db.Query(`
		SELECT `+assessmentColumns+`
		FROM assessments
		WHERE file_id = ?
		ORDER BY id DESC
	`, fileID)
	if err != nil {
		return nil, persistErr("query assessments", err)
	}
	return collectAssessments(rows)
}

// LatestAssessments returns the newest assessment of every assessed file
func (s *Store) LatestAssessments() ([]*model.Assessment, error) {
	rows, err := s.db.Query(`
		SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE id IN (SELECT MAX(id) FROM assessments GROUP BY file_id)
		ORDER BY file_id
	`)
	if err != nil {
		return nil, persistErr("query latest assessments", err)
	}
	return collectAssessments(rows)
}

func collectAssessments(rows *sql.Rows) ([]*model.Assessment, error) {
	defer rows.Close()

	var out []*model.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, persistErr("scan assessment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate assessments", err)
	}
	return out, nil
}

func scanAssessment(row rowScanner) (*model.Assessment, error) {
	var (
		a          model.Assessment
		tier       string
		normalized sql.NullFloat64
		monetize   int
		deletion   int
		triggers   string
		date       time.Time
		raw        string
	)
	err := row.Scan(&a.ID, &a.FileID, &tier, &normalized, &monetize, &deletion, &triggers, &date, &raw)
	if err != nil {
		return nil, err
	}

	if a.QualityScore, err = model.ParseTier(tier); err != nil {
		return nil, err
	}
	if normalized.Valid {
		v := normalized.Float64
		a.NormalizedScore = &v
	}
	a.MonetizationEligible = monetize != 0
	a.NeedsDeletion = deletion != 0
	if triggers != "" {
		for _, t := range strings.Split(triggers, ",") {
			a.DeletionTriggers = append(a.DeletionTriggers, model.DeletionTrigger(t))
		}
	}
	a.AssessmentDate = date
	if a.Metadata, err = metrics.DecodeJSON(raw); err != nil {
		return nil, err
	}
	return &a, nil
}
