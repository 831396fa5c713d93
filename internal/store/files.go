package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
)

const fileColumns = `id, path, COALESCE(extension, ''), category, COALESCE(size_bytes, 0),
		COALESCE(mtime_unix, 0), COALESCE(metadata_json, '')`

const upsertFileSQL = `
		INSERT INTO files (path, extension, category, size_bytes, mtime_unix, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			extension = excluded.extension,
			category = excluded.category,
			size_bytes = excluded.size_bytes,
			mtime_unix = excluded.mtime_unix,
			metadata_json = COALESCE(excluded.metadata_json, files.metadata_json),
			last_update_at = CURRENT_TIMESTAMP
		RETURNING id`

type rowScanner interface {
	Scan(dest ...any) error
}

// UpsertFile inserts a file or refreshes the stat fields of an existing path.
// Existing metadata is kept unless f carries new metadata.
func (s *Store) UpsertFile(f *model.FileRecord) error {
	blob, err := encodeBlob(f.Metadata)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(upsertFileSQL,
		f.Path, f.Extension, string(f.Type), f.SizeBytes, unixOrZero(f.LastModified), blob,
	).Scan(&f.ID)
	if err != nil {
		return persistErr("upsert file", err)
	}
	return nil
}

// UpsertFileBatch upserts multiple files in a single transaction
func (s *Store) UpsertFileBatch(files []*model.FileRecord) error {
	if len(files) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(upsertFileSQL)
		if err != nil {
			return persistErr("prepare file upsert", err)
		}
		defer stmt.Close()

		for _, f := range files {
			blob, err := encodeBlob(f.Metadata)
			if err != nil {
				return err
			}
			err = stmt.QueryRow(
				f.Path, f.Extension, string(f.Type), f.SizeBytes, unixOrZero(f.LastModified), blob,
			).Scan(&f.ID)
			if err != nil {
				return persistErr("upsert file "+f.Path, err)
			}
		}
		return nil
	})
}

// GetFile retrieves a file by its ID. It returns (nil, nil) when no such file exists.
func (s *Store) GetFile(id int64) (*model.FileRecord, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get file", err)
	}
	return f, nil
}

// GetFileByPath retrieves a file by its path. It returns (nil, nil) when the
// path has not been scanned.
func (s *Store) GetFileByPath(path string) (*model.FileRecord, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get file", err)
	}
	return f, nil
}

// ListFileIDs returns the IDs of all files in ascending order
func (s *Store) ListFileIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM files ORDER BY id`)
	if err != nil {
		return nil, persistErr("query files", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan file id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAllFilePathsMap returns every registered path for quick membership checks
func (s *Store) GetAllFilePathsMap() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT path FROM files`)
	if err != nil {
		return nil, persistErr("query file paths", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, persistErr("scan file path", err)
		}
		paths[p] = true
	}
	return paths, rows.Err()
}

// CountFilesByCategory returns how many files are registered per category
func (s *Store) CountFilesByCategory() (map[metrics.Category]int, error) {
	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM files GROUP BY category`)
	if err != nil {
		return nil, persistErr("count files", err)
	}
	defer rows.Close()

	counts := make(map[metrics.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, persistErr("scan file count", err)
		}
		counts[metrics.Category(category)] = n
	}
	return counts, rows.Err()
}

// MergeFileMetadata sets the given fields on a file's metadata blob, keeping
// the others. Empty values remove the field.
func (s *Store) MergeFileMetadata(fileID int64, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		var raw sql.NullString
		err := tx.QueryRow(`SELECT metadata_json FROM files WHERE id = ?`, fileID).Scan(&raw)
		if err != nil {
			return persistErr("read file metadata", err)
		}

		blob, err := decodeBlob(raw.String)
		if err != nil {
			return err
		}
		if blob == nil {
			blob = make(map[string]string, len(fields))
		}
		for k, v := range fields {
			if v == "" {
				delete(blob, k)
				continue
			}
			blob[k] = v
		}

		encoded, err := encodeBlob(blob)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE files SET metadata_json = ?, last_update_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, encoded, fileID)
		if err != nil {
			return persistErr("update file metadata", err)
		}
		return nil
	})
}

func scanFile(row rowScanner) (*model.FileRecord, error) {
	var (
		f        model.FileRecord
		category string
		mtime    int64
		blob     string
	)
	err := row.Scan(&f.ID, &f.Path, &f.Extension, &category, &f.SizeBytes, &mtime, &blob)
	if err != nil {
		return nil, err
	}

	f.Type = metrics.Category(category)
	if mtime > 0 {
		f.LastModified = time.Unix(mtime, 0)
	}
	if f.Metadata, err = decodeBlob(blob); err != nil {
		return nil, err
	}
	return &f, nil
}

// encodeBlob returns nil for an empty map so upserts keep existing metadata
func encodeBlob(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeBlob(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, persistErr("decode metadata", err)
	}
	return m, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
