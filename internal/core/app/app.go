// Package app wires the configured locators, parse cache, evaluator and
// type resolver into a Reflector and keeps it current while watching.
package app

import (
	"context"
	"log/slog"
	"sync"

	"staticreflect/internal/core/config"
	"staticreflect/internal/core/errors"
	"staticreflect/internal/data/index"
	"staticreflect/internal/engine/eval"
	"staticreflect/internal/engine/locator"
	"staticreflect/internal/engine/parser"
	"staticreflect/internal/engine/reflection"
	"staticreflect/internal/engine/typesys"
)

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	parser    *parser.Parser
	cache     *parser.Cache
	directory *locator.Directory
	store     *index.Store
	reflector *reflection.Reflector

	mu      sync.Mutex
	watcher *locator.Watcher
	changes int
}

// Options carries what the configuration file cannot express.
type Options struct {
	// Base anchors relative locator paths; usually the config file's
	// directory or the working directory.
	Base    string
	Runtime reflection.Runtime
}

func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	paths, err := config.ResolvePaths(cfg, opts.Base)
	if err != nil {
		return nil, err
	}
	version, err := cfg.PHPVersion()
	if err != nil {
		return nil, err
	}
	typeCfg, err := cfg.TypeConfig()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Paths: paths, parser: parser.NewParser()}
	if paths.IndexPath != "" {
		store, err := index.Open(paths.IndexPath)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInvalidConfiguration, "open class index"), errors.CtxPath, paths.IndexPath)
		}
		a.store = store
	}

	a.directory, err = locator.NewDirectory(paths.Roots, a.parser, locator.DirectoryOptions{
		Include:     cfg.Locator.Include,
		Exclude:     cfg.Locator.Exclude,
		Index:       a.store,
		RefreshRate: cfg.Locator.RefreshRate,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	chain := locator.Composite{a.directory}
	if cfg.Stubs.IsEnabled() {
		stub, err := locator.NewStub(a.parser)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, errors.CodeInternal, "load core stubs")
		}
		chain = append(chain, stub)
	}

	a.cache = parser.NewCache(a.parser, cfg.Cache.MaxFiles)
	a.reflector, err = reflection.NewReflector(reflection.Options{
		Locator:   chain,
		Cache:     a.cache,
		Evaluator: eval.NewEvaluator(eval.WithVersion(version)),
		Types:     typesys.NewResolver(typeCfg),
		Runtime:   opts.Runtime,
		MaxHeapMB: cfg.Cache.MaxHeapMB,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.directory.OnChange(a.handleChanges)
	return a, nil
}

func (a *App) Reflector() *reflection.Reflector { return a.reflector }

// Scan indexes every configured root.
func (a *App) Scan(ctx context.Context) (locator.ScanStats, error) {
	return a.directory.Scan(ctx)
}

// StartWatcher re-indexes changed files until ctx is cancelled or Close is
// called. It is a no-op when already watching.
func (a *App) StartWatcher(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watcher != nil {
		return nil
	}
	w, err := a.directory.Watch(ctx, a.Config.Locator.Debounce)
	if err != nil {
		return err
	}
	a.watcher = w
	slog.Info("watching locator roots", "roots", a.Paths.Roots)
	return nil
}

// handleChanges drops parsed trees of changed files and every entity, so
// later lookups see the new declarations.
func (a *App) handleChanges(paths []string) {
	for _, path := range paths {
		a.cache.Evict(path)
	}
	a.reflector.Release()

	a.mu.Lock()
	a.changes++
	a.mu.Unlock()
	slog.Info("re-indexed changed files", "files", len(paths))
}

// Changes counts the re-index batches handled so far.
func (a *App) Changes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.changes
}

func (a *App) Close() error {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	var firstErr error
	if w != nil {
		firstErr = w.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	return firstErr
}
