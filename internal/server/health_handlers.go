package server

import (
	"net/http"
	"os"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Database  string         `json:"database"`
	Storage   string         `json:"storage"`
	Clients   int            `json:"clients"`
	Songs     int            `json:"songCount"`
	Details   map[string]any `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (ms *MusicServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(ms.startedAt).Round(time.Second).String(),
		Database:  "ok",
		Storage:   "ok",
		Clients:   ms.clients.Count(),
		Songs:     ms.catalog.Size(),
		Details:   make(map[string]any),
	}

	if err := ms.checkDatabaseHealth(); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details["database_error"] = err.Error()
	}

	if err := ms.checkStorageHealth(); err != nil {
		health.Status = "unhealthy"
		health.Storage = "error"
		health.Details["storage_error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	ms.respondJSON(w, health)
}

// checkDatabaseHealth performs a trivial query to validate DB access.
func (ms *MusicServer) checkDatabaseHealth() error {
	if ms.db == nil {
		return nil
	}
	_, err := ms.db.Items()
	return err
}

// checkStorageHealth checks that the library folder is accessible.
func (ms *MusicServer) checkStorageHealth() error {
	_, err := os.Stat(ms.config.Library.Path)
	return err
}
