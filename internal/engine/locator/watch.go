package locator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"staticreflect/internal/shared/observability"
	"staticreflect/internal/shared/util"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher batches file system events under a set of roots and hands the
// changed PHP files to a callback once the tree has been quiet for the
// debounce interval.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	exclude    []glob.Glob
	extensions map[string]bool
	onChange   func([]string)
	callbackMu sync.Mutex
	limiter    *util.Limiter

	// skip reports directories or files excluded by the owner.
	skip func(path string) bool

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer
	closeOnce sync.Once
}

func NewWatcher(debounce time.Duration, exclude, extensions []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	compiled := make([]glob.Glob, 0, len(exclude))
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized != "" {
			exts[normalized] = true
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher:  fsw,
		debounce:   debounce,
		exclude:    compiled,
		extensions: exts,
		onChange:   onChange,
		pending:    make(map[string]struct{}),
	}, nil
}

// SetRateLimit caps how many batches per second reach the callback. Batches
// arriving faster are merged into the next allowed flush.
func (w *Watcher) SetRateLimit(perSecond float64, burst int) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.limiter = util.NewLimiter(perSecond, burst)
}

// Watch starts watching roots recursively. Watching stops when ctx is done
// or Close is called.
func (w *Watcher) Watch(ctx context.Context, roots []string) error {
	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.shouldExcludeDir(event.Name) {
				return
			}
			if err := w.watchRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
				return
			}
			w.enqueueExistingFiles(event.Name)
			return
		}
	}
	if w.shouldExcludeFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	w.resetTimerLocked(w.debounce)
}

func (w *Watcher) resetTimerLocked(d time.Duration) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(d, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	if !w.limiter.Allow(1) {
		delay := w.limiter.Delay(1)
		if delay < w.debounce {
			delay = w.debounce
		}
		w.resetTimerLocked(delay)
		w.pendingMu.Unlock()
		return
	}
	paths := util.SortedStringKeys(w.pending)
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	if w.skip != nil && w.skip(path) {
		return true
	}
	base := filepath.Base(path)
	for _, g := range w.exclude {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if len(w.extensions) > 0 && !w.extensions[filepath.Ext(base)] {
		return true
	}
	if w.skip != nil && w.skip(path) {
		return true
	}
	for _, g := range w.exclude {
		if g.Match(filepath.Base(path)) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if !w.shouldExcludeFile(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}
