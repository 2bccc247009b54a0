package media

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"media-viewer-engine/internal/filesystem"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/mediatypes"
	"media-viewer-engine/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long a new file must go without writes before
// the watcher reports it.
const DefaultSettleDelay = 500 * time.Millisecond

// Entry is one image found under the scanner's root.
type Entry struct {
	// Path is slash-separated and relative to the root.
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Reference returns a by-path reference to the entry at quality q.
func (e Entry) Reference(q Quality) Reference {
	return ByPath(e.Path, e.Name, q)
}

// Scanner lists and watches a directory tree of images. Hidden files and
// directories are skipped.
type Scanner struct {
	root   string
	settle time.Duration
	retry  filesystem.RetryConfig
}

// NewScanner creates a scanner rooted at dir.
func NewScanner(dir string) *Scanner {
	return &Scanner{
		root:   dir,
		settle: DefaultSettleDelay,
		retry:  filesystem.DefaultRetryConfig(),
	}
}

// SetSettleDelay overrides DefaultSettleDelay.
func (s *Scanner) SetSettleDelay(d time.Duration) {
	s.settle = d
}

// Root returns the scanned directory.
func (s *Scanner) Root() string {
	return s.root
}

// List returns every image under the root sorted by path, case-insensitively.
func (s *Scanner) List() ([]Entry, error) {
	var entries []Entry
	if err := s.walk(context.Background(), s.root, &entries); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Path), strings.ToLower(entries[j].Path)
		if a == b {
			return entries[i].Path < entries[j].Path
		}
		return a < b
	})

	metrics.ScannerImagesFound.Add(float64(len(entries)))
	return entries, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, out *[]Entry) error {
	dirEntries, err := filesystem.ReadDirWithRetry(ctx, dir, s.retry)
	if err != nil {
		return err
	}

	for _, de := range dirEntries {
		if isHidden(de.Name()) {
			continue
		}
		full := filepath.Join(dir, de.Name())
		if de.IsDir() {
			if err := s.walk(ctx, full, out); err != nil {
				logging.Warn("Skipping unreadable directory %s: %v", full, err)
			}
			continue
		}
		if entry, ok := s.entryFor(ctx, full); ok {
			*out = append(*out, entry)
		}
	}
	return nil
}

// entryFor returns the Entry for an image file at full, or false if full
// is not a regular image file under the root.
func (s *Scanner) entryFor(ctx context.Context, full string) (Entry, bool) {
	if !mediatypes.IsImage(strings.ToLower(filepath.Ext(full))) {
		return Entry{}, false
	}
	info, err := filesystem.StatWithRetry(ctx, full, s.retry)
	if err != nil || !info.Mode().IsRegular() {
		return Entry{}, false
	}
	rel, err := filepath.Rel(s.root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Entry{}, false
	}
	return Entry{
		Path:    filepath.ToSlash(rel),
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Watch reports images created under the root until ctx is done. Each new
// path is reported once, after it has gone DefaultSettleDelay without
// further writes. New subdirectories are watched as they appear.
func (s *Scanner) Watch(ctx context.Context, onNew func(Entry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	count := s.addDirectories(watcher, s.root)
	logging.Debug("Watching %d directories under %s", count, s.root)

	w := &pendingFiles{
		timers: make(map[string]*time.Timer),
		seen:   make(map[string]bool),
	}
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, watcher, w, event, onNew)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

func (s *Scanner) addDirectories(watcher *fsnotify.Watcher, root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk %s for watcher: %v", root, err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (s *Scanner) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, w *pendingFiles, event fsnotify.Event, onNew func(Entry)) {
	if isHidden(filepath.Base(event.Name)) {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			s.addDirectories(watcher, event.Name)
			return
		}
	}

	path := event.Name
	w.touch(path, s.settle, func() {
		if entry, ok := s.entryFor(ctx, path); ok {
			metrics.ScannerImagesFound.Inc()
			onNew(entry)
		}
	})
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "chmod"
	}
}

// pendingFiles debounces write bursts per path and reports each path once.
type pendingFiles struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	seen    map[string]bool
	stopped bool
}

func (p *pendingFiles) touch(path string, delay time.Duration, fire func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.seen[path] {
		return
	}
	if t, ok := p.timers[path]; ok {
		t.Reset(delay)
		return
	}
	p.timers[path] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		if p.stopped || p.seen[path] {
			p.mu.Unlock()
			return
		}
		p.seen[path] = true
		delete(p.timers, path)
		p.mu.Unlock()
		fire()
	})
}

func (p *pendingFiles) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for _, t := range p.timers {
		t.Stop()
	}
}
