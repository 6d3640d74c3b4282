package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.reflector == nil {
		status.Status = "down"
		status.Components["reflector"] = "missing"
	} else {
		status.Components["reflector"] = "ok"
	}

	if s.app.cache != nil {
		status.Components["parse_cache"] = fmt.Sprintf("ok (%d/%d files)", s.app.cache.Len(), s.app.cache.Cap())
	}

	if s.app.store != nil {
		if _, _, err := s.app.store.LatestScan(s.app.directory.Roots()[0]); err != nil {
			status.Status = "degraded"
			status.Components["index"] = "error: " + err.Error()
		} else {
			status.Components["index"] = "ok (" + s.app.store.Path() + ")"
		}
	} else if s.app.Config.Locator.IndexPath != "" {
		status.Status = "degraded"
		status.Components["index"] = "missing but enabled in config"
	}

	s.app.mu.Lock()
	watching := s.app.watcher != nil
	changes := s.app.changes
	s.app.mu.Unlock()
	if watching {
		status.Components["watcher"] = fmt.Sprintf("ok (%d batches)", changes)
	} else if s.app.Config.Locator.Watch {
		status.Status = "degraded"
		status.Components["watcher"] = "not running but enabled in config"
	}

	return status
}
