package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrInvalidLabelFile is returned when the label file cannot be parsed.
var ErrInvalidLabelFile = errors.New("labels: invalid label file")

// reloadDelay lets editors finish their write-rename dance before the
// file is re-read.
const reloadDelay = 200 * time.Millisecond

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Map is the decoded label file.
type Map struct {
	Labels        map[string]string `json:"labels"`
	TypeOverrides map[string]string `json:"typeOverrides"`
	EntityIDs     map[string]string `json:"entityIds"`
	Exclude       []string          `json:"exclude"`
}

// Store holds the current label map and serves lookups while the file
// may be reloaded underneath.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	path string

	mu      sync.RWMutex
	m       Map
	exclude map[string]struct{}

	watcher  *fsnotify.Watcher
	onReload func()
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// Load reads the label file at path. An empty path yields an empty
// store, which answers every lookup with "not found".
func Load(path string) (*Store, error) {
	s := &Store{
		path:    path,
		exclude: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	if path == "" {
		return s, nil
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload re-reads the file and swaps the map in one step.
func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLabelFile, err)
	}

	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidLabelFile, s.path, err)
	}

	excl := make(map[string]struct{}, len(m.Exclude))
	for _, addr := range m.Exclude {
		excl[addr] = struct{}{}
	}

	s.mu.Lock()
	s.m = m
	s.exclude = excl
	s.mu.Unlock()
	return nil
}

// Watch starts watching the label file for changes. onReload, if
// non-nil, fires after each successful reload so discovery can
// republish. A failed reload keeps the previous map.
func (s *Store) Watch(onReload func()) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("labels: watcher: %w", err)
	}

	// Watch the directory, not the file: editors typically replace the
	// file, which would orphan a file-level watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("labels: watch %s: %w", dir, err)
	}

	s.watcher = watcher
	s.onReload = onReload

	s.wg.Add(1)
	go s.watchLoop()

	s.logInfo("label file watch started", "path", s.path)
	return nil
}

// watchLoop reacts to filesystem events on the label file.
func (s *Store) watchLoop() {
	defer s.wg.Done()

	base := filepath.Base(s.path)
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			select {
			case <-s.done:
				return
			case <-time.After(reloadDelay):
			}

			if err := s.reload(); err != nil {
				s.logWarn("label reload failed, keeping previous map", "error", err)
				continue
			}
			s.logInfo("label map reloaded", "path", s.path)
			if s.onReload != nil {
				s.onReload()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logWarn("label watcher error", "error", err)
		}
	}
}

// Close stops watching. Safe to call multiple times, and on stores that
// never watched.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.wg.Wait()
	})
}

// Label returns the configured label for a group address.
func (s *Store) Label(addr string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.m.Labels[addr]
	return label, ok
}

// TypeOverride returns the forced component type for a group address.
// The value is not validated here; callers fall back to their own
// classification when it is unusable.
func (s *Store) TypeOverride(addr string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.m.TypeOverrides[addr]
	return t, ok
}

// EntityID returns the pinned Home Assistant object ID for a group
// address.
func (s *Store) EntityID(addr string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.m.EntityIDs[addr]
	return id, ok
}

// Excluded reports whether a group address is excluded from discovery.
func (s *Store) Excluded(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exclude[addr]
	return ok
}

// SetLogger sets the logger. Safe to call at any time.
func (s *Store) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Store) logInfo(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (s *Store) logWarn(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
