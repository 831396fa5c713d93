package store

// Schema v1 - records read and written by the rules engine
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Files registered by scan; read-only input to the engine
CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT UNIQUE NOT NULL,
  extension TEXT,
  category TEXT NOT NULL DEFAULT 'other',
  size_bytes INTEGER,
  mtime_unix INTEGER,
  metadata_json TEXT,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_update_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Externally computed quality metrics (one row per file, at most one variant)
CREATE TABLE IF NOT EXISTS file_metrics (
  file_id INTEGER PRIMARY KEY REFERENCES files(id) ON DELETE CASCADE,
  metrics_json TEXT NOT NULL,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Externally computed organization suggestions
CREATE TABLE IF NOT EXISTS content_suggestions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  category TEXT,
  priority TEXT,
  suggestion TEXT NOT NULL,
  reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_content_suggestions_file_id ON content_suggestions(file_id);

-- Append-only assessment history
CREATE TABLE IF NOT EXISTS assessments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  quality_score TEXT NOT NULL,
  normalized_score REAL,
  monetization_eligible INTEGER NOT NULL DEFAULT 0,
  needs_deletion INTEGER NOT NULL DEFAULT 0,
  deletion_triggers TEXT,
  assessment_date DATETIME NOT NULL,
  metadata_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_file_id ON assessments(file_id, id);

-- Recommendations; only implemented changes after insert
CREATE TABLE IF NOT EXISTS file_recommendations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  assessment_id INTEGER REFERENCES assessments(id) ON DELETE SET NULL,
  recommendation_type TEXT NOT NULL,
  text TEXT NOT NULL,
  priority TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  implemented INTEGER NOT NULL DEFAULT 0,
  metadata_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_file_recommendations_file_id ON file_recommendations(file_id);

-- Append-only feedback
CREATE TABLE IF NOT EXISTS recommendation_feedback (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  recommendation_id INTEGER NOT NULL REFERENCES file_recommendations(id) ON DELETE CASCADE,
  recommendation_type TEXT NOT NULL,
  helpful INTEGER NOT NULL,
  feedback_text TEXT,
  created_at DATETIME NOT NULL
);
`

// Schema v2 - indexes for reports and feedback warm-up
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_files_category ON files(category);
CREATE INDEX IF NOT EXISTS idx_file_recommendations_type ON file_recommendations(recommendation_type, implemented);
CREATE INDEX IF NOT EXISTS idx_recommendation_feedback_type ON recommendation_feedback(recommendation_type, id);
`
