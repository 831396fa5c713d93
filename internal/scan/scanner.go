package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/file-curator/internal/meta"
	"github.com/franz/file-curator/internal/metrics"
	"github.com/franz/file-curator/internal/model"
	"github.com/franz/file-curator/internal/report"
	"github.com/franz/file-curator/internal/store"
	"github.com/franz/file-curator/internal/util"
)

// DefaultMaxDepth is how many directory levels below the root are visited
const DefaultMaxDepth = 5

const batchSize = 1000

// skippedNames are directory entries never descended into or registered
var skippedNames = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
}

// systemRoots are pseudo filesystems that are never walked
var systemRoots = []string{"/proc", "/sys", "/dev", "/run"}

// Scanner discovers files in a directory tree and registers them in the store
type Scanner struct {
	store       *store.Store
	concurrency int
	maxDepth    int
	probeVideo  bool
	logger      *report.EventLogger
}

// Config holds scanner configuration
type Config struct {
	Store       *store.Store
	Concurrency int
	MaxDepth    int
	// ProbeVideo fills video metrics from ffprobe for videos that have none
	ProbeVideo bool
	Logger     *report.EventLogger
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}

	return &Scanner{
		store:       cfg.Store,
		concurrency: cfg.Concurrency,
		maxDepth:    cfg.MaxDepth,
		probeVideo:  cfg.ProbeVideo,
		logger:      cfg.Logger,
	}
}

// Result represents a scan result
type Result struct {
	FilesDiscovered int // regular files registered (new + updated)
	FilesNew        int
	FilesUpdated    int
	FilesSkipped    int // hidden, excluded, too deep or not a regular file
	Revisited       int // symlink cycles and aliases of already visited targets
	VideosProbed    int
	Errors          []error
}

type discovered struct {
	path string
	info fs.FileInfo
}

type pending struct {
	file   *model.FileRecord
	probed metrics.Metrics
}

// Scan walks root and registers every regular file it finds. Re-scanning a
// path refreshes its stat fields. Access errors are recorded in the result
// and the walk continues.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot scan %s: not a directory", root)
	}
	if isSystemPath(root) {
		return nil, fmt.Errorf("%w: %s is a system directory", util.ErrUnsupported, root)
	}

	util.InfoLog("Starting scan of: %s", root)

	existingPaths, err := s.store.GetAllFilePathsMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load existing paths: %w", err)
	}
	util.DebugLog("Loaded %d existing paths", len(existingPaths))

	result := &Result{}
	var errMu sync.Mutex
	recordErr := func(err error) {
		errMu.Lock()
		result.Errors = append(result.Errors, err)
		errMu.Unlock()
	}

	paths := make(chan discovered, 100)
	records := make(chan *pending, batchSize)

	var (
		filesFound   atomic.Int64
		filesNew     atomic.Int64
		filesUpdated atomic.Int64
		filesSkipped atomic.Int64
		revisited    atomic.Int64
		probed       atomic.Int64
	)

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	var bar *progressbar.ProgressBar
	if util.ShowProgress() {
		// Indeterminate: the total is unknown until the walk ends
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				found := filesFound.Load()
				if found == 0 {
					continue
				}
				if bar != nil {
					bar.Describe(fmt.Sprintf("Scanning | %d found | %d new | %d skipped",
						found, filesNew.Load(), filesSkipped.Load()))
					bar.Set64(filesNew.Load() + filesUpdated.Load())
				} else {
					util.InfoLog("Progress: found %d files (new: %d, updated: %d, skipped: %d)",
						found, filesNew.Load(), filesUpdated.Load(), filesSkipped.Load())
				}
			}
		}
	}()

	// Batch writer
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		batch := make([]*pending, 0, batchSize)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := s.writeBatch(batch, &probed); err != nil {
				util.ErrorLog("Failed to write batch: %v", err)
				recordErr(err)
			}
			batch = batch[:0]
		}

		for {
			select {
			case p, ok := <-records:
				if !ok {
					flush()
					return
				}
				batch = append(batch, p)
				if len(batch) >= batchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()

	// Worker pool
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range paths {
				if ctx.Err() != nil {
					continue
				}
				p := s.processFile(ctx, d)
				if existingPaths[d.path] {
					filesUpdated.Add(1)
				} else {
					filesNew.Add(1)
				}
				records <- p
			}
		}()
	}

	w := &walker{
		maxDepth:  s.maxDepth,
		visited:   make(map[string]bool),
		out:       paths,
		found:     &filesFound,
		skipped:   &filesSkipped,
		revisited: &revisited,
		onError: func(err error) {
			util.WarnLog("%v", err)
			recordErr(err)
			s.logger.LogError("scan", 0, err)
		},
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		w.visited[real] = true
	}
	walkErr := w.walk(ctx, root, 0)

	close(paths)
	wg.Wait()
	close(records)
	writerWg.Wait()
	cancelProgress()

	if bar != nil {
		bar.Finish()
	}

	result.FilesNew = int(filesNew.Load())
	result.FilesUpdated = int(filesUpdated.Load())
	result.FilesDiscovered = result.FilesNew + result.FilesUpdated
	result.FilesSkipped = int(filesSkipped.Load())
	result.Revisited = int(revisited.Load())
	result.VideosProbed = int(probed.Load())

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("scan interrupted: %w", walkErr)
		}
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.SuccessLog("Scan complete: %d files (%d new, %d updated), %d skipped, %d errors",
		result.FilesDiscovered, result.FilesNew, result.FilesUpdated, result.FilesSkipped, len(result.Errors))

	return result, nil
}

// processFile builds the file record for a discovered path. Tag extraction
// and probing failures only cost the extra metadata.
func (s *Scanner) processFile(ctx context.Context, d discovered) *pending {
	ext := strings.ToLower(filepath.Ext(d.path))
	f := &model.FileRecord{
		Path:         d.path,
		Extension:    ext,
		Type:         CategoryFor(ext),
		SizeBytes:    d.info.Size(),
		LastModified: d.info.ModTime(),
	}
	p := &pending{file: f}

	if f.Type != metrics.CategoryVideo {
		return p
	}

	tags, err := meta.ExtractTags(d.path)
	if err != nil {
		util.DebugLog("No tags for %s: %v", d.path, err)
	} else {
		f.Metadata = tags
	}

	if s.probeVideo {
		v, err := meta.ProbeVideo(ctx, d.path)
		if err != nil {
			util.DebugLog("Probe failed for %s: %v", d.path, err)
		} else {
			p.probed = v
		}
	}
	return p
}

// writeBatch upserts the batch, then stores probed metrics for files that
// have none yet. Imported metrics are never overwritten.
func (s *Scanner) writeBatch(batch []*pending, probed *atomic.Int64) error {
	files := make([]*model.FileRecord, len(batch))
	for i, p := range batch {
		files[i] = p.file
	}
	if err := s.store.UpsertFileBatch(files); err != nil {
		return err
	}

	var errs []error
	for _, p := range batch {
		s.logger.LogScan(p.file)
		util.DebugLog("Registered: %s (%s)", p.file.Path, p.file.Type)

		if p.probed == nil {
			continue
		}
		current, err := s.store.GetMetrics(p.file.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !metrics.IsNone(current) {
			continue
		}
		if err := s.store.ReplaceMetrics(p.file.ID, p.probed); err != nil {
			errs = append(errs, err)
			continue
		}
		probed.Add(1)
	}
	return errors.Join(errs...)
}

type walker struct {
	maxDepth  int
	visited   map[string]bool
	out       chan<- discovered
	found     *atomic.Int64
	skipped   *atomic.Int64
	revisited *atomic.Int64
	onError   func(error)
}

// walk visits dir (at depth below the root), following symlinks. Resolved
// paths are visited at most once, which breaks symlink cycles.
func (w *walker) walk(ctx context.Context, dir string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.onError(fmt.Errorf("access error: %s: %w", dir, err))
		return nil
	}

	childDepth := depth + 1
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)

		if strings.HasPrefix(name, ".") || skippedNames[name] || isSystemPath(path) {
			w.skipped.Add(1)
			continue
		}
		if childDepth > w.maxDepth {
			util.DebugLog("Max depth reached: %s", path)
			w.skipped.Add(1)
			continue
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			w.onError(fmt.Errorf("access error: %s: %w", path, err))
			continue
		}
		if w.visited[real] {
			util.DebugLog("Already visited: %s -> %s", path, real)
			w.revisited.Add(1)
			continue
		}
		w.visited[real] = true

		info, err := os.Stat(path)
		if err != nil {
			w.onError(fmt.Errorf("access error: %s: %w", path, err))
			continue
		}

		switch {
		case info.IsDir():
			if err := w.walk(ctx, path, childDepth); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			w.found.Add(1)
			select {
			case w.out <- discovered{path: path, info: info}:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			w.skipped.Add(1)
		}
	}
	return nil
}

// isSystemPath reports whether path is inside one of the pseudo filesystems
func isSystemPath(path string) bool {
	for _, r := range systemRoots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
