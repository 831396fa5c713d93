package execute

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/store"
	"github.com/franz/file-curator/internal/util"
)

func setupTestDB(t *testing.T) (*store.Store, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, tmpDir
}

func createTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

// registerRecommendation stores a file and one open recommendation for it
func registerRecommendation(t *testing.T, db *store.Store, path string, recType model.RecommendationType) *model.Recommendation {
	t.Helper()

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat %s: %v", path, err)
	}
	f := &model.FileRecord{
		Path:         path,
		Extension:    filepath.Ext(path),
		Type:         metrics.CategoryDocument,
		SizeBytes:    stat.Size(),
		LastModified: stat.ModTime(),
	}
	if err := db.UpsertFile(f); err != nil {
		t.Fatalf("Failed to register file: %v", err)
	}

	rec := &model.Recommendation{
		FileID:    f.ID,
		Type:      recType,
		Text:      "Consider removing this file",
		Priority:  model.PriorityLow,
		CreatedAt: time.Now(),
	}
	if _, err := db.InsertRecommendations([]*model.Recommendation{rec}); err != nil {
		t.Fatalf("Failed to insert recommendation: %v", err)
	}
	return rec
}

func TestDestination(t *testing.T) {
	executor := New(&Config{QuarantineDir: "/q"})

	tests := []struct {
		path     string
		expected string
	}{
		{"/home/user/notes.txt", "/q/home/user/notes.txt"},
		{"/home/user/../user/a.md", "/q/home/user/a.md"},
		{"/top.txt", "/q/top.txt"},
	}

	for _, tt := range tests {
		if got := executor.Destination(tt.path); got != tt.expected {
			t.Errorf("Destination(%s) = %s, expected %s", tt.path, got, tt.expected)
		}
	}
}

func TestCopyFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "source.txt")
	destPath := filepath.Join(tmpDir, "dest", "file.txt")
	content := []byte("test content")
	createTestFile(t, srcPath, content)

	executor := New(&Config{VerifyMode: VerifySize})

	bytesWritten, err := executor.copyFile(context.Background(), srcPath, destPath)
	if err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	if bytesWritten != int64(len(content)) {
		t.Errorf("Expected %d bytes written, got %d", len(content), bytesWritten)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("Failed to read dest: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Content mismatch: %q", got)
	}
	if _, err := os.Stat(destPath + ".part"); !os.IsNotExist(err) {
		t.Error("Temporary .part file should not remain")
	}
}

func TestCopyFileCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "source.txt")
	destPath := filepath.Join(tmpDir, "dest.txt")
	createTestFile(t, srcPath, []byte("some content"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := New(&Config{})
	if _, err := executor.copyFile(ctx, srcPath, destPath); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(destPath + ".part"); !os.IsNotExist(err) {
		t.Error("Temporary .part file should be removed on failure")
	}
	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Error("Destination should not exist after a cancelled copy")
	}
}

func TestVerifySize(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "file.txt")
	createTestFile(t, path, []byte("12345"))

	executor := New(&Config{})

	tests := []struct {
		size     int64
		expected bool
	}{
		{5, true},
		{4, false},
		{0, false},
	}
	for _, tt := range tests {
		ok, err := executor.verifySize(path, tt.size)
		if err != nil {
			t.Fatalf("verifySize failed: %v", err)
		}
		if ok != tt.expected {
			t.Errorf("verifySize(%d) = %v, expected %v", tt.size, ok, tt.expected)
		}
	}

	if _, err := executor.verifySize(filepath.Join(tmpDir, "missing"), 5); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestVerifyHash(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.txt")
	b := filepath.Join(tmpDir, "b.txt")
	c := filepath.Join(tmpDir, "c.txt")
	createTestFile(t, a, []byte("same content"))
	createTestFile(t, b, []byte("same content"))
	createTestFile(t, c, []byte("other content"))

	executor := New(&Config{VerifyMode: VerifyHash})

	ok, err := executor.verifyHash(a, b)
	if err != nil || !ok {
		t.Errorf("Expected identical files to verify, got %v, %v", ok, err)
	}
	ok, err = executor.verifyHash(a, c)
	if err != nil || ok {
		t.Errorf("Expected different files to fail verification, got %v, %v", ok, err)
	}
}

func TestMoveFile(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "source.txt")
	destPath := filepath.Join(tmpDir, "nested", "dir", "moved.txt")
	content := []byte("move me")
	createTestFile(t, srcPath, content)

	executor := New(&Config{VerifyMode: VerifyHash})

	n, err := executor.moveFile(context.Background(), srcPath, destPath)
	if err != nil {
		t.Fatalf("moveFile failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("Expected %d bytes, got %d", len(content), n)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Error("Source should be gone after move")
	}
	if got, _ := os.ReadFile(destPath); string(got) != string(content) {
		t.Errorf("Moved content mismatch: %q", got)
	}
}

func TestQuarantine(t *testing.T) {
	db, tmpDir := setupTestDB(t)
	srcPath := filepath.Join(tmpDir, "library", "old-draft.txt")
	createTestFile(t, srcPath, []byte("stale draft"))
	rec := registerRecommendation(t, db, srcPath, model.RecDeletion)

	quarantineDir := filepath.Join(tmpDir, "quarantine")
	executor := New(&Config{Store: db, QuarantineDir: quarantineDir, VerifyMode: VerifySize})

	action, err := executor.Quarantine(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}

	expectedDest := executor.Destination(srcPath)
	if action.Dest != expectedDest {
		t.Errorf("Dest = %s, expected %s", action.Dest, expectedDest)
	}
	if action.Bytes != int64(len("stale draft")) {
		t.Errorf("Bytes = %d", action.Bytes)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Error("Source should have been moved")
	}
	if got, _ := os.ReadFile(expectedDest); string(got) != "stale draft" {
		t.Errorf("Quarantined content mismatch: %q", got)
	}

	stored, err := db.GetRecommendation(rec.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetRecommendation failed: %v", err)
	}
	if !stored.Implemented {
		t.Error("Recommendation should be marked implemented")
	}

	// A second attempt is refused without touching the filesystem
	if _, err := executor.Quarantine(context.Background(), rec.ID); !errors.Is(err, util.ErrAlreadyImplemented) {
		t.Errorf("Expected ErrAlreadyImplemented, got %v", err)
	}
}

func TestQuarantineDryRun(t *testing.T) {
	db, tmpDir := setupTestDB(t)
	srcPath := filepath.Join(tmpDir, "keep.txt")
	createTestFile(t, srcPath, []byte("still here"))
	rec := registerRecommendation(t, db, srcPath, model.RecDeletion)

	executor := New(&Config{Store: db, QuarantineDir: filepath.Join(tmpDir, "q"), DryRun: true})

	action, err := executor.Quarantine(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Quarantine dry-run failed: %v", err)
	}
	if !action.DryRun {
		t.Error("Action should be flagged as dry-run")
	}
	if _, err := os.Stat(srcPath); err != nil {
		t.Errorf("Dry-run must not move the source: %v", err)
	}
	if _, err := os.Stat(action.Dest); !os.IsNotExist(err) {
		t.Error("Dry-run must not create the destination")
	}

	stored, _ := db.GetRecommendation(rec.ID)
	if stored == nil || stored.Implemented {
		t.Error("Dry-run must not mark the recommendation implemented")
	}
}

func TestQuarantineRefusals(t *testing.T) {
	db, tmpDir := setupTestDB(t)
	quarantineDir := filepath.Join(tmpDir, "q")

	orgPath := filepath.Join(tmpDir, "org.txt")
	createTestFile(t, orgPath, []byte("organize me"))
	orgRec := registerRecommendation(t, db, orgPath, model.RecOrganization)

	changedPath := filepath.Join(tmpDir, "changed.txt")
	createTestFile(t, changedPath, []byte("short"))
	changedRec := registerRecommendation(t, db, changedPath, model.RecDeletion)
	createTestFile(t, changedPath, []byte("grown since the scan"))

	goneDir := filepath.Join(tmpDir, "gone")
	gonePath := filepath.Join(goneDir, "gone.txt")
	createTestFile(t, gonePath, []byte("bye"))
	goneRec := registerRecommendation(t, db, gonePath, model.RecDeletion)
	if err := os.RemoveAll(goneDir); err != nil {
		t.Fatal(err)
	}

	executor := New(&Config{Store: db, QuarantineDir: quarantineDir})

	tests := []struct {
		name   string
		id     int64
		target error
	}{
		{"not a deletion", orgRec.ID, util.ErrUnsupported},
		{"unknown recommendation", 9999, util.ErrNotFound},
		{"changed since scan", changedRec.ID, ErrChangedSinceScan},
		{"source missing", goneRec.ID, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executor.Quarantine(context.Background(), tt.id)
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}

	if _, err := os.Stat(orgPath); err != nil {
		t.Errorf("Refused files must stay in place: %v", err)
	}
	if _, err := New(&Config{Store: db}).Quarantine(context.Background(), orgRec.ID); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig without a quarantine directory, got %v", err)
	}
}

func TestQuarantineExistingDestination(t *testing.T) {
	db, tmpDir := setupTestDB(t)
	srcPath := filepath.Join(tmpDir, "dup.txt")
	createTestFile(t, srcPath, []byte("original"))
	rec := registerRecommendation(t, db, srcPath, model.RecDeletion)

	executor := New(&Config{Store: db, QuarantineDir: filepath.Join(tmpDir, "q")})
	createTestFile(t, executor.Destination(srcPath), []byte("earlier copy"))

	if _, err := executor.Quarantine(context.Background(), rec.ID); err == nil {
		t.Fatal("Expected error when the destination already exists")
	}
	if got, _ := os.ReadFile(executor.Destination(srcPath)); string(got) != "earlier copy" {
		t.Error("Existing quarantined file must not be overwritten")
	}
	if _, err := os.Stat(srcPath); err != nil {
		t.Errorf("Source must stay in place: %v", err)
	}
}
