package locator

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/data/index"
	"staticreflect/internal/engine/parser"
	"staticreflect/internal/shared/observability"
	"staticreflect/internal/shared/util"
)

type DirectoryOptions struct {
	// Include restricts indexing to files matching one of the patterns.
	// Patterns match the slash-separated path relative to the root or the
	// base name.
	Include []string
	// Exclude skips matching files and directories.
	Exclude []string
	// Index persists declarations between runs; optional.
	Index *index.Store
	// RefreshRate caps watcher-driven re-indexing batches per second.
	// Zero means unlimited.
	RefreshRate float64
}

type ScanStats struct {
	Files   int
	Parsed  int
	Reused  int
	Failed  int
	Removed int
	Symbols int
}

// Directory locates symbols by scanning directory trees for PHP files. The
// first Locate call triggers a scan when Scan was not called explicitly.
type Directory struct {
	roots   []string
	parser  *parser.Parser
	include []glob.Glob
	exclude []glob.Glob
	store   *index.Store

	refreshRate float64

	mu      sync.RWMutex
	table   symbolTable
	scanned bool

	listenersMu sync.Mutex
	listeners   []func([]string)
}

func NewDirectory(roots []string, p *parser.Parser, opts DirectoryOptions) (*Directory, error) {
	if len(roots) == 0 {
		return nil, errors.New(errors.CodeInvalidConfiguration, "directory locator needs at least one root")
	}
	if p == nil {
		p = parser.NewParser()
	}
	include, err := compileGlobs(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobs(opts.Exclude)
	if err != nil {
		return nil, err
	}
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfiguration, "resolve locator root")
		}
		cleaned = append(cleaned, abs)
	}
	return &Directory{
		roots:   cleaned,
		parser:  p,
		include: include,
		exclude: exclude,
		store:   opts.Index,
		table:   make(symbolTable),

		refreshRate: opts.RefreshRate,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = util.NormalizePatternPath(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeInvalidConfiguration, "invalid locator pattern"), "pattern", pattern)
		}
		out = append(out, g)
	}
	return out, nil
}

func (d *Directory) Roots() []string {
	out := make([]string, len(d.roots))
	copy(out, d.roots)
	return out
}

// OnChange registers fn to receive the paths re-indexed by Refresh.
func (d *Directory) OnChange(fn func(paths []string)) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Directory) Locate(id Identifier) (Location, error) {
	d.mu.RLock()
	scanned := d.scanned
	loc, ok := d.table.lookup(id)
	d.mu.RUnlock()
	if ok {
		return loc, nil
	}
	if !scanned {
		if _, err := d.Scan(context.Background()); err != nil {
			return Location{}, err
		}
		d.mu.RLock()
		loc, ok = d.table.lookup(id)
		d.mu.RUnlock()
		if ok {
			return loc, nil
		}
	}
	return Location{}, notFound(id)
}

// Scan rebuilds the symbol table from every root. Files that fail to parse
// are logged and skipped.
func (d *Directory) Scan(ctx context.Context) (ScanStats, error) {
	start := time.Now()
	defer func() {
		observability.LocatorScanDuration.Observe(time.Since(start).Seconds())
	}()

	table := make(symbolTable)
	var stats ScanStats
	for _, root := range d.roots {
		if err := d.scanRoot(ctx, root, table, &stats); err != nil {
			return stats, err
		}
	}
	stats.Symbols = table.size()

	d.mu.Lock()
	d.table = table
	d.scanned = true
	d.mu.Unlock()

	observability.LocatorIndexedSymbols.Set(float64(stats.Symbols))
	slog.Debug("locator scan finished",
		"roots", len(d.roots), "files", stats.Files, "parsed", stats.Parsed,
		"reused", stats.Reused, "failed", stats.Failed, "symbols", stats.Symbols)
	return stats, nil
}

func (d *Directory) scanRoot(ctx context.Context, root string, table symbolTable, stats *ScanStats) error {
	ctx, span := observability.Tracer.Start(ctx, "locator.Directory.Scan",
		trace.WithAttributes(attribute.String("root", root)))
	defer span.End()

	scanID := ""
	if d.store != nil {
		id, err := d.store.BeginScan(root)
		if err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "begin index scan"), errors.CtxPath, root)
		}
		scanID = id
	}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("failed to read path", "path", path, "error", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if path != root && d.excluded(root, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.wanted(root, path) {
			return nil
		}
		stats.Files++
		d.indexFile(root, path, scanID, table, stats)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		code := errors.CodeInternal
		if stderrors.Is(err, fs.ErrNotExist) {
			code = errors.CodeNotFound
		}
		return errors.AddContext(errors.Wrap(err, code, "scan directory"), errors.CtxPath, root)
	}

	if d.store != nil {
		removed, err := d.store.FinishScan(scanID)
		if err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "finish index scan"), errors.CtxPath, root)
		}
		stats.Removed += removed
	}
	return nil
}

func (d *Directory) indexFile(root, path, scanID string, table symbolTable, stats *ScanStats) {
	info, err := os.Stat(path)
	if err != nil {
		stats.Failed++
		slog.Warn("failed to stat file", "path", path, "error", err)
		return
	}

	if d.store != nil {
		if rec, ok, err := d.store.File(path); err == nil && ok && rec.Unchanged(info) {
			if syms, err := d.store.FileSymbols(path); err == nil {
				for _, sym := range syms {
					table.add(identifierOf(sym), Location{Path: path, Line: sym.Line})
				}
				if err := d.store.MarkSeen(scanID, path); err != nil {
					slog.Warn("failed to update index", "path", path, "error", err)
				}
				stats.Reused++
				return
			}
		}
	}

	decls, err := d.parseDeclarations(path)
	if err != nil {
		stats.Failed++
		slog.Warn("failed to index file", "path", path, "error", err)
		return
	}
	stats.Parsed++
	for _, decl := range decls {
		table.add(decl.ID, Location{Path: path, Line: decl.Line})
	}

	if d.store != nil {
		rec := index.FileRecord{Path: path, Root: root, Size: info.Size(), ModTime: info.ModTime(), ScanID: scanID}
		if err := d.store.ReplaceFile(rec, symbolsOf(decls)); err != nil {
			slog.Warn("failed to update index", "path", path, "error", err)
		}
	}
}

func (d *Directory) parseDeclarations(path string) ([]Declaration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file, err := d.parser.ParseFile(path, content)
	if err != nil {
		return nil, err
	}
	return Declarations(file), nil
}

// Refresh re-indexes the given files, dropping those that no longer exist,
// then notifies OnChange listeners.
func (d *Directory) Refresh(paths []string) {
	changed := make([]string, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		root := d.rootOf(abs)
		if root == "" || !d.wanted(root, abs) {
			continue
		}
		changed = append(changed, abs)

		info, statErr := os.Stat(abs)
		var decls []Declaration
		if statErr == nil {
			decls, err = d.parseDeclarations(abs)
			if err != nil {
				slog.Warn("failed to re-index file", "path", abs, "error", err)
			}
		}

		d.mu.Lock()
		d.table.removePath(abs)
		for _, decl := range decls {
			d.table.add(decl.ID, Location{Path: abs, Line: decl.Line})
		}
		size := d.table.size()
		d.mu.Unlock()
		observability.LocatorIndexedSymbols.Set(float64(size))

		if d.store == nil {
			continue
		}
		if statErr != nil {
			err = d.store.RemoveFile(abs)
		} else if latest, ok, lerr := d.store.LatestScan(root); lerr == nil && ok {
			rec := index.FileRecord{Path: abs, Root: root, Size: info.Size(), ModTime: info.ModTime(), ScanID: latest.ID}
			err = d.store.ReplaceFile(rec, symbolsOf(decls))
		}
		if err != nil {
			slog.Warn("failed to update index", "path", abs, "error", err)
		}
	}
	if len(changed) == 0 {
		return
	}

	d.listenersMu.Lock()
	listeners := append([]func([]string){}, d.listeners...)
	d.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(changed)
	}
}

// Watch re-indexes files as they change until ctx is cancelled.
func (d *Directory) Watch(ctx context.Context, debounce time.Duration) (*Watcher, error) {
	w, err := NewWatcher(debounce, nil, parser.Extensions, d.Refresh)
	if err != nil {
		return nil, err
	}
	if d.refreshRate > 0 {
		w.SetRateLimit(d.refreshRate, 1)
	}
	w.skip = func(path string) bool {
		root := d.rootOf(path)
		return root != "" && path != root && d.excluded(root, path)
	}
	if err := w.Watch(ctx, d.roots); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (d *Directory) rootOf(path string) string {
	for _, root := range d.roots {
		if util.HasPathPrefix(filepath.ToSlash(path), filepath.ToSlash(root)) {
			return root
		}
	}
	return ""
}

func (d *Directory) wanted(root, path string) bool {
	if !d.parser.IsSupportedPath(path) || d.excluded(root, path) {
		return false
	}
	if len(d.include) == 0 {
		return true
	}
	return matchAny(d.include, root, path)
}

func (d *Directory) excluded(root, path string) bool {
	return matchAny(d.exclude, root, path)
}

func matchAny(globs []glob.Glob, root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = util.NormalizePatternPath(rel)
	base := filepath.Base(path)
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

func identifierOf(sym index.Symbol) Identifier {
	switch sym.Kind {
	case index.KindFunction:
		return Function(sym.Name)
	case index.KindConstant:
		return Constant(sym.Name)
	default:
		return Class(sym.Name)
	}
}

func symbolsOf(decls []Declaration) []index.Symbol {
	out := make([]index.Symbol, 0, len(decls))
	for _, decl := range decls {
		out = append(out, index.Symbol{Kind: decl.ID.Kind.String(), Name: strings.TrimPrefix(decl.ID.Name, `\`), Line: decl.Line})
	}
	return out
}
