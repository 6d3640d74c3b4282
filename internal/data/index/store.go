// Package index persists the declarations found by directory scans so later
// runs only re-parse files whose size or modification time changed.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Symbol kinds stored in the index.
const (
	KindClass    = "class"
	KindFunction = "function"
	KindConstant = "constant"
)

type Symbol struct {
	Kind string
	Name string
	Path string
	Line int
}

type FileRecord struct {
	Path    string
	Root    string
	Size    int64
	ModTime time.Time
	ScanID  string
}

// Unchanged reports whether info still describes the indexed file.
func (r FileRecord) Unchanged(info os.FileInfo) bool {
	return info != nil && info.Size() == r.Size && info.ModTime().UnixNano() == r.ModTime.UnixNano()
}

type Scan struct {
	ID          string
	Root        string
	StartedAt   time.Time
	FinishedAt  time.Time
	FileCount   int
	SymbolCount int
}

// NameKey is the lookup key of a symbol name. Class and function names are
// case-insensitive. Constants only fold the case of their namespace.
func NameKey(kind, name string) string {
	name = strings.TrimPrefix(name, `\`)
	if kind == KindConstant {
		if idx := strings.LastIndex(name, `\`); idx >= 0 {
			return strings.ToLower(name[:idx]) + name[idx:]
		}
		return name
	}
	return strings.ToLower(name)
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("index path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts while a watcher re-indexes.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite index %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginScan records a new scan of root and returns its id.
func (s *Store) BeginScan(root string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	err := s.withRetry("begin scan", func() error {
		_, err := s.db.Exec(
			`INSERT INTO scans (id, root, started_at_utc) VALUES (?, ?, ?)`,
			id, root, time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// File returns the indexed record for path.
func (s *Store) File(path string) (FileRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rec     FileRecord
		modNano int64
	)
	err := s.withRetry("load file", func() error {
		return s.db.QueryRow(
			`SELECT path, root, size, mod_time_unix_nano, scan_id FROM files WHERE path = ?`, path,
		).Scan(&rec.Path, &rec.Root, &rec.Size, &modNano, &rec.ScanID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileRecord{}, false, nil
		}
		return FileRecord{}, false, err
	}
	rec.ModTime = time.Unix(0, modNano).UTC()
	return rec, true, nil
}

// ReplaceFile stores rec and swaps the symbols declared by it.
func (s *Store) ReplaceFile(rec FileRecord, symbols []Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("replace file", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.Exec(`
INSERT INTO files (path, root, size, mod_time_unix_nano, scan_id) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
  root=excluded.root,
  size=excluded.size,
  mod_time_unix_nano=excluded.mod_time_unix_nano,
  scan_id=excluded.scan_id
`, rec.Path, rec.Root, rec.Size, rec.ModTime.UnixNano(), rec.ScanID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM symbols WHERE path = ?`, rec.Path); err != nil {
			return err
		}
		for _, sym := range symbols {
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO symbols (kind, name, name_key, path, line) VALUES (?, ?, ?, ?, ?)`,
				sym.Kind, sym.Name, NameKey(sym.Kind, sym.Name), rec.Path, sym.Line,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// MarkSeen attributes an unchanged file to scanID so FinishScan keeps it.
func (s *Store) MarkSeen(scanID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("mark file", func() error {
		_, err := s.db.Exec(`UPDATE files SET scan_id = ? WHERE path = ?`, scanID, path)
		return err
	})
}

// RemoveFile drops path and its symbols.
func (s *Store) RemoveFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("remove file", func() error {
		_, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path)
		return err
	})
}

// FileSymbols returns the symbols declared by path.
func (s *Store) FileSymbols(path string) ([]Symbol, error) {
	return s.querySymbols("load file symbols",
		`SELECT kind, name, path, line FROM symbols WHERE path = ? ORDER BY line, name`, path)
}

// Lookup returns the files declaring a symbol of kind with name.
func (s *Store) Lookup(kind, name string) ([]Symbol, error) {
	return s.querySymbols("lookup symbol",
		`SELECT kind, name, path, line FROM symbols WHERE kind = ? AND name_key = ? ORDER BY path`,
		kind, NameKey(kind, name))
}

func (s *Store) querySymbols(op, query string, args ...any) ([]Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry(op, func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Symbol, 0)
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.Kind, &sym.Name, &sym.Path, &sym.Line); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return out, nil
}

// FinishScan removes files under the scan's root that the scan did not see
// and records the final counts. It returns the number of removed files.
func (s *Store) FinishScan(scanID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := s.withRetry("finish scan", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var root string
		if err := tx.QueryRow(`SELECT root FROM scans WHERE id = ?`, scanID).Scan(&root); err != nil {
			return fmt.Errorf("unknown scan %q: %w", scanID, err)
		}
		res, err := tx.Exec(`DELETE FROM files WHERE root = ? AND scan_id <> ?`, root, scanID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		removed = int(n)

		var files, symbols int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM files WHERE scan_id = ?`, scanID).Scan(&files); err != nil {
			return err
		}
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM symbols s JOIN files f ON f.path = s.path WHERE f.scan_id = ?`, scanID,
		).Scan(&symbols); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`UPDATE scans SET finished_at_utc = ?, file_count = ?, symbol_count = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano), files, symbols, scanID,
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	return removed, err
}

// LatestScan returns the most recent finished scan of root.
func (s *Store) LatestScan(root string) (Scan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		scan                  Scan
		startedRaw, finishRaw string
	)
	err := s.withRetry("load scan", func() error {
		return s.db.QueryRow(`
SELECT id, root, started_at_utc, finished_at_utc, file_count, symbol_count
FROM scans
WHERE root = ? AND finished_at_utc <> ''
ORDER BY rowid DESC
LIMIT 1
`, root).Scan(&scan.ID, &scan.Root, &startedRaw, &finishRaw, &scan.FileCount, &scan.SymbolCount)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scan{}, false, nil
		}
		return Scan{}, false, err
	}
	if scan.StartedAt, err = time.Parse(time.RFC3339Nano, startedRaw); err != nil {
		return Scan{}, false, fmt.Errorf("parse scan timestamp %q: %w", startedRaw, err)
	}
	if scan.FinishedAt, err = time.Parse(time.RFC3339Nano, finishRaw); err != nil {
		return Scan{}, false, fmt.Errorf("parse scan timestamp %q: %w", finishRaw, err)
	}
	return scan, true, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
