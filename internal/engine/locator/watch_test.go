package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 4)
	w, err := NewWatcher(100*time.Millisecond, []string{"cache", "*.tmp.php"}, []string{".php"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(context.Background(), []string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "User.php")
	if err := os.WriteFile(testFile, []byte("<?php class User {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected to find %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for file change event")
	}

	for _, name := range []string{"notes.txt", "draft.tmp.php"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if base := filepath.Base(p); base == "notes.txt" || base == "draft.tmp.php" {
				t.Errorf("excluded file triggered event: %s", p)
			}
		}
	case <-time.After(400 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "Model")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "Post.php")
	if err := os.WriteFile(subFile, []byte("<?php class Post {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(2 * time.Second)
	for !foundNested {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcher_StopsWithContext(t *testing.T) {
	tmpDir := t.TempDir()
	w, err := NewWatcher(10*time.Millisecond, nil, nil, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Watch(ctx, []string{tmpDir}); err != nil {
		t.Fatal(err)
	}
	cancel()
	time.Sleep(50 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("expected repeated close to succeed, got %v", err)
	}
}

func TestWatcher_RateLimitMergesBatches(t *testing.T) {
	batches := make(chan []string, 8)
	w, err := NewWatcher(10*time.Millisecond, nil, []string{".php"}, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetRateLimit(2, 1)

	w.scheduleChange("/src/A.php")
	first := <-batches
	if len(first) != 1 {
		t.Fatalf("expected first batch to flush alone, got %v", first)
	}

	w.scheduleChange("/src/B.php")
	time.Sleep(30 * time.Millisecond)
	w.scheduleChange("/src/C.php")

	select {
	case paths := <-batches:
		if len(paths) != 2 || paths[0] != "/src/B.php" || paths[1] != "/src/C.php" {
			t.Fatalf("expected merged batch, got %v", paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rate limited batch")
	}
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, nil, []string{".PHP", " .inc "}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if !w.shouldExcludeFile("main.go") {
		t.Fatal("expected .go to be excluded")
	}
	if w.shouldExcludeFile("Legacy.INC") {
		t.Fatal("expected .inc to be included regardless of case")
	}
}
