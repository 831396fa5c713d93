package rules

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/franz/file-curator/internal/util"
)

// Source hands out the rules snapshot in effect
type Source interface {
	Current() *Rules
}

// Loader owns the process-wide rules snapshot. Readers take Current() once
// per evaluation; reloads swap the pointer atomically.
type Loader struct {
	path    string
	current atomic.Pointer[Rules]

	mu       sync.Mutex // serializes reloads
	onReload func(*Rules, error)
}

// NewLoader loads and validates the rules file. A malformed file is fatal.
func NewLoader(path string) (*Loader, error) {
	r, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	l := &Loader{path: path}
	l.current.Store(r)
	return l, nil
}

// Static returns a loader pinned to r, for callers that never reload
func Static(r *Rules) *Loader {
	l := &Loader{}
	l.current.Store(r)
	return l
}

// Current returns the snapshot in effect
func (l *Loader) Current() *Rules {
	return l.current.Load()
}

// Path returns the rules file path ("" for static loaders)
func (l *Loader) Path() string {
	return l.path
}

// OnReload registers a callback invoked after every reload attempt
func (l *Loader) OnReload(fn func(*Rules, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = fn
}

// Reload re-reads the rules file. On failure the previous snapshot stays in
// effect and the error is returned.
func (l *Loader) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return fmt.Errorf("%w: static rules cannot be reloaded", util.ErrUnsupported)
	}

	r, err := LoadFile(l.path)
	if err == nil {
		l.current.Store(r)
	}
	if l.onReload != nil {
		l.onReload(r, err)
	}
	return err
}

// Watch reloads the rules whenever the file changes on disk
func (l *Loader) Watch() error {
	if l.path == "" {
		return fmt.Errorf("%w: static rules cannot be watched", util.ErrUnsupported)
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to watch rules file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := l.Reload(); err != nil {
			util.ErrorLog("Rules reload rejected, keeping previous rules: %v", err)
			return
		}
		util.InfoLog("Rules reloaded from %s", l.path)
	})
	v.WatchConfig()

	return nil
}
