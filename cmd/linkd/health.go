package main

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/tcplink/internal/connection"
	"github.com/rickgao/tcplink/internal/driver"
	"github.com/rickgao/tcplink/internal/publisher"
	"github.com/rickgao/tcplink/internal/version"
)

// createHealthHandler creates the HTTP handler for health checks. pool and
// ingest may be nil when those components are disabled.
func createHealthHandler(
	registry *connection.Registry,
	pool *pgxpool.Pool,
	dispatcher *driver.Dispatcher,
	ingest *publisher.IngestHandler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string            `json:"status"`
			Version    version.BuildInfo `json:"version"`
			Components map[string]any    `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Info(),
			Components: make(map[string]any),
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		// Check connections
		stats := registry.Stats()
		health.Components["connections"] = map[string]int{
			"configured": stats.Configured,
			"live":       stats.Live,
			"active":     stats.Active,
			"pending":    stats.Pending,
		}
		if stats.Configured > 0 && stats.Active == 0 && health.Status == "healthy" {
			health.Status = "degraded"
		}

		health.Components["dispatcher"] = dispatcher.Stats()
		if ingest != nil {
			health.Components["ingest"] = ingest.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/connections", func(w http.ResponseWriter, r *http.Request) {
		conns := registry.Connections()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":       len(conns),
			"connections": conns,
		})
	})

	return mux
}
