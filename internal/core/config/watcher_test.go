package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "staticreflect.toml", "[cache]\nmax_files = 1\n")

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { reloaded <- cfg })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[cache]\nmax_files = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Cache.MaxFiles != 7 {
			t.Errorf("expected reloaded max_files 7, got %d", cfg.Cache.MaxFiles)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	path := writeConfig(t, "staticreflect.toml", "")
	w := NewWatcher(path, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
