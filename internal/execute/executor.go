// Package execute carries out deletion recommendations by moving the file
// into a quarantine directory. Files are never removed outright.
package execute

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/report"
	"github.com/franz/file-curator/internal/util"
)

// Verify modes
const (
	VerifyNone = "none"
	VerifySize = "size"
	VerifyHash = "hash"
)

// ErrChangedSinceScan is returned when the file on disk no longer matches its record
var ErrChangedSinceScan = errors.New("file changed since it was scanned")

// Store is the part of the record store the executor needs
type Store interface {
	GetFile(id int64) (*model.FileRecord, error)
	GetRecommendation(id int64) (*model.Recommendation, error)
	MarkImplemented(id int64) error
}

// Executor moves files flagged for deletion into quarantine
type Executor struct {
	store         Store
	quarantineDir string
	verifyMode    string
	dryRun        bool
	bufferSize    int
	logger        *report.EventLogger
}

// Config holds executor configuration
type Config struct {
	Store         Store
	QuarantineDir string
	VerifyMode    string // "none", "size", "hash"
	DryRun        bool
	BufferSize    int // Buffer size for cross-device copies (0 = use default)
	Logger        *report.EventLogger
}

// New creates a new Executor
func New(cfg *Config) *Executor {
	if cfg.VerifyMode == "" {
		cfg.VerifyMode = VerifySize
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 128 * 1024
	}

	return &Executor{
		store:         cfg.Store,
		quarantineDir: cfg.QuarantineDir,
		verifyMode:    cfg.VerifyMode,
		dryRun:        cfg.DryRun,
		bufferSize:    cfg.BufferSize,
		logger:        cfg.Logger,
	}
}

// Action describes one quarantine move
type Action struct {
	RecommendationID int64
	FileID           int64
	Source           string
	Dest             string
	Bytes            int64
	Duration         time.Duration
	DryRun           bool
}

// Destination returns where path is kept inside the quarantine directory.
// The original absolute path is mirrored below it.
func (e *Executor) Destination(path string) string {
	clean := filepath.Clean(path)
	clean = strings.TrimPrefix(clean, filepath.VolumeName(clean))
	clean = strings.TrimLeft(clean, string(filepath.Separator))
	return filepath.Join(e.quarantineDir, clean)
}

// Quarantine moves the file of a deletion recommendation into quarantine and
// marks the recommendation implemented. In dry-run mode nothing is touched.
func (e *Executor) Quarantine(ctx context.Context, recommendationID int64) (*Action, error) {
	if e.quarantineDir == "" {
		return nil, fmt.Errorf("%w: no quarantine directory configured", util.ErrInvalidConfig)
	}

	rec, err := e.store.GetRecommendation(recommendationID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("recommendation #%d: %w", recommendationID, util.ErrNotFound)
	}
	if rec.Type != model.RecDeletion {
		return nil, fmt.Errorf("%w: only deletion recommendations can be quarantined (#%d is %s)",
			util.ErrUnsupported, rec.ID, rec.Type)
	}
	if rec.Implemented {
		return nil, fmt.Errorf("recommendation #%d: %w", rec.ID, util.ErrAlreadyImplemented)
	}

	file, err := e.store.GetFile(rec.FileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("file #%d: %w", rec.FileID, util.ErrNotFound)
	}

	stat, err := os.Stat(file.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot quarantine %s: %w", file.Path, err)
	}
	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", util.ErrUnsupported, file.Path)
	}
	if stat.Size() != file.SizeBytes {
		return nil, fmt.Errorf("%s: %w (size %d, recorded %d); rescan and reassess first",
			file.Path, ErrChangedSinceScan, stat.Size(), file.SizeBytes)
	}

	action := &Action{
		RecommendationID: rec.ID,
		FileID:           file.ID,
		Source:           file.Path,
		Dest:             e.Destination(file.Path),
		DryRun:           e.dryRun,
	}
	if _, err := os.Lstat(action.Dest); err == nil {
		return nil, fmt.Errorf("quarantine destination already exists: %s", action.Dest)
	}

	if e.dryRun {
		util.InfoLog("DRY-RUN: Would move %s -> %s", action.Source, action.Dest)
		action.Bytes = stat.Size()
		return action, nil
	}

	start := time.Now()
	action.Bytes, err = e.moveFile(ctx, action.Source, action.Dest)
	action.Duration = time.Since(start)
	if err != nil {
		e.logger.LogError("quarantine", file.ID, err)
		return nil, err
	}

	if err := e.store.MarkImplemented(rec.ID); err != nil {
		return action, fmt.Errorf("file moved to %s but recommendation not marked: %w", action.Dest, err)
	}
	e.logger.LogImplement(rec.ID)

	util.DebugLog("Quarantined: %s -> %s (%s)", action.Source, action.Dest, util.FormatBytes(action.Bytes))
	return action, nil
}

// copyFile copies a file atomically using a .part temporary file
func (e *Executor) copyFile(ctx context.Context, srcPath, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	tempPath := destPath + ".part"
	dest, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	bytesWritten, err := copyWithContext(ctx, dest, src, e.bufferSize)
	dest.Close()

	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to copy: %w", err)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	return bytesWritten, nil
}

// moveFile renames a file, falling back to copy + verify + delete across devices
func (e *Executor) moveFile(ctx context.Context, srcPath, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.Rename(srcPath, destPath); err == nil {
		stat, err := os.Stat(destPath)
		if err != nil {
			return 0, nil
		}
		return stat.Size(), nil
	}

	srcStat, err := os.Stat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}

	bytesWritten, err := e.copyFile(ctx, srcPath, destPath)
	if err != nil {
		return 0, err
	}

	// The source is only removed once the copy is verified
	verifyOK := true
	switch e.verifyMode {
	case VerifySize:
		verifyOK, err = e.verifySize(destPath, srcStat.Size())
	case VerifyHash:
		verifyOK, err = e.verifyHash(srcPath, destPath)
	}
	if err != nil || !verifyOK {
		os.Remove(destPath)
		return 0, fmt.Errorf("verification failed before deleting source: %v", err)
	}

	if err := os.Remove(srcPath); err != nil {
		util.WarnLog("Failed to delete source file %s: %v", srcPath, err)
	}

	return bytesWritten, nil
}

// verifySize verifies file size
func (e *Executor) verifySize(path string, expectedSize int64) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	return stat.Size() == expectedSize, nil
}

// verifyHash verifies file content using SHA1
func (e *Executor) verifyHash(srcPath, destPath string) (bool, error) {
	srcHash, err := hashFile(srcPath)
	if err != nil {
		return false, fmt.Errorf("failed to hash source: %w", err)
	}

	destHash, err := hashFile(destPath)
	if err != nil {
		return false, fmt.Errorf("failed to hash dest: %w", err)
	}

	return srcHash == destHash, nil
}

// hashFile computes SHA1 hash of a file
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	buf := make([]byte, bufferSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			return written, nil
		}
	}
}
