// Package status exposes a read-only HTTP surface for the watch daemon:
// liveness, the last pass summary, and an SSE stream of sync events.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akida/ankitex/internal/cache"
	"github.com/akida/ankitex/internal/sse"
	"github.com/akida/ankitex/internal/syncer"
)

type statusPayload struct {
	LastPass  *syncer.Summary `json:"last_pass,omitempty"`
	Cache     *cache.Stats    `json:"cache,omitempty"`
	Listeners int             `json:"sse_clients"`
}

// NewRouter builds the status router. db and broker may be nil.
func NewRouter(engine *syncer.Engine, db *cache.DB, broker *sse.Broker) chi.Router {
	r := chi.NewRouter()

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		var payload statusPayload
		if summary, ok := engine.LastSummary(); ok {
			payload.LastPass = &summary
		}
		if db != nil {
			if stats, err := db.Stats(); err == nil {
				payload.Cache = &stats
			}
		}
		if broker != nil {
			payload.Listeners = broker.ClientCount()
		}
		writeJSON(w, http.StatusOK, payload)
	})

	if broker != nil {
		r.Get("/api/events", broker.ServeHTTP)
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}
