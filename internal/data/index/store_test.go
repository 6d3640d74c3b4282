package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "index.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_ReplaceAndLookup(t *testing.T) {
	store := openStore(t)

	scanID, err := store.BeginScan("/src")
	if err != nil {
		t.Fatalf("begin scan: %v", err)
	}
	mod := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := FileRecord{Path: "/src/User.php", Root: "/src", Size: 120, ModTime: mod, ScanID: scanID}
	symbols := []Symbol{
		{Kind: KindClass, Name: `App\User`, Line: 5},
		{Kind: KindConstant, Name: `App\VERSION`, Line: 3},
	}
	if err := store.ReplaceFile(rec, symbols); err != nil {
		t.Fatalf("replace file: %v", err)
	}

	got, err := store.Lookup(KindClass, `\app\user`)
	if err != nil {
		t.Fatalf("lookup class: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/src/User.php" || got[0].Line != 5 {
		t.Fatalf("unexpected class lookup result: %+v", got)
	}

	// constants are case-sensitive
	got, err = store.Lookup(KindConstant, `App\version`)
	if err != nil {
		t.Fatalf("lookup constant: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no case-insensitive constant match, got %+v", got)
	}

	loaded, ok, err := store.File("/src/User.php")
	if err != nil || !ok {
		t.Fatalf("load file: ok=%v err=%v", ok, err)
	}
	if !loaded.ModTime.Equal(mod) || loaded.Size != 120 || loaded.ScanID != scanID {
		t.Fatalf("file record did not roundtrip: %+v", loaded)
	}
}

func TestStore_ReplaceSwapsSymbols(t *testing.T) {
	store := openStore(t)
	scanID, _ := store.BeginScan("/src")
	rec := FileRecord{Path: "/src/a.php", Root: "/src", ScanID: scanID, ModTime: time.Unix(0, 1)}

	if err := store.ReplaceFile(rec, []Symbol{{Kind: KindClass, Name: "Old"}}); err != nil {
		t.Fatalf("replace file: %v", err)
	}
	if err := store.ReplaceFile(rec, []Symbol{{Kind: KindFunction, Name: "fresh"}}); err != nil {
		t.Fatalf("replace file again: %v", err)
	}

	syms, err := store.FileSymbols("/src/a.php")
	if err != nil {
		t.Fatalf("file symbols: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "fresh" {
		t.Fatalf("expected only the new symbol, got %+v", syms)
	}
}

func TestStore_FinishScanPrunesUnseenFiles(t *testing.T) {
	store := openStore(t)

	first, _ := store.BeginScan("/src")
	for _, p := range []string{"/src/a.php", "/src/b.php"} {
		rec := FileRecord{Path: p, Root: "/src", ScanID: first, ModTime: time.Unix(0, 1)}
		if err := store.ReplaceFile(rec, []Symbol{{Kind: KindClass, Name: filepath.Base(p)}}); err != nil {
			t.Fatalf("replace %s: %v", p, err)
		}
	}
	if _, err := store.FinishScan(first); err != nil {
		t.Fatalf("finish first scan: %v", err)
	}

	second, _ := store.BeginScan("/src")
	if err := store.MarkSeen(second, "/src/a.php"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	removed, err := store.FinishScan(second)
	if err != nil {
		t.Fatalf("finish second scan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removed file, got %d", removed)
	}

	if _, ok, _ := store.File("/src/b.php"); ok {
		t.Fatal("expected b.php to be pruned")
	}
	if syms, _ := store.Lookup(KindClass, "b.php"); len(syms) != 0 {
		t.Fatalf("expected symbols of pruned file to cascade, got %+v", syms)
	}

	scan, ok, err := store.LatestScan("/src")
	if err != nil || !ok {
		t.Fatalf("latest scan: ok=%v err=%v", ok, err)
	}
	if scan.ID != second || scan.FileCount != 1 || scan.SymbolCount != 1 {
		t.Fatalf("unexpected latest scan: %+v", scan)
	}
}

func TestStore_RemoveFile(t *testing.T) {
	store := openStore(t)
	scanID, _ := store.BeginScan("/src")
	rec := FileRecord{Path: "/src/a.php", Root: "/src", ScanID: scanID, ModTime: time.Unix(0, 1)}
	if err := store.ReplaceFile(rec, []Symbol{{Kind: KindClass, Name: "A"}}); err != nil {
		t.Fatalf("replace file: %v", err)
	}
	if err := store.RemoveFile("/src/a.php"); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if syms, _ := store.Lookup(KindClass, "A"); len(syms) != 0 {
		t.Fatalf("expected no symbols after removal, got %+v", syms)
	}
}

func TestStore_MissingRecords(t *testing.T) {
	store := openStore(t)
	if _, ok, err := store.File("/nope.php"); ok || err != nil {
		t.Fatalf("expected missing file without error, ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.LatestScan("/nope"); ok || err != nil {
		t.Fatalf("expected missing scan without error, ok=%v err=%v", ok, err)
	}
	if _, err := store.FinishScan("unknown"); err == nil {
		t.Fatal("expected error for unknown scan id")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	scanID, _ := store.BeginScan("/src")
	rec := FileRecord{Path: "/src/a.php", Root: "/src", ScanID: scanID, ModTime: time.Unix(0, 1)}
	if err := store.ReplaceFile(rec, []Symbol{{Kind: KindClass, Name: "A"}}); err != nil {
		t.Fatalf("replace file: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if syms, _ := reopened.Lookup(KindClass, "a"); len(syms) != 1 {
		t.Fatalf("expected symbol to survive reopen, got %+v", syms)
	}
}

func TestFileRecord_Unchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.php")
	if err := os.WriteFile(path, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := FileRecord{Size: info.Size(), ModTime: info.ModTime()}
	if !rec.Unchanged(info) {
		t.Fatal("expected record to match file info")
	}
	rec.Size++
	if rec.Unchanged(info) {
		t.Fatal("expected size change to be detected")
	}
}
