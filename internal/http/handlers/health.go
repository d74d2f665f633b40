package handlers

import (
	"context"
	"net/http"
	"time"

	"stageportal/internal/http/response"
)

const healthPingTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	started time.Time
	version string
	now     func() time.Time
}

func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now(), version: version, now: time.Now}
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Database  string  `json:"database"`
	Version   string  `json:"version"`
}

// Get always answers 200 while the process serves; database reachability
// is reported in the body.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	database := "up"
	if h.db == nil {
		database = "unknown"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			database = "down"
		}
	}
	response.JSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.started).Seconds(),
		Database:  database,
		Version:   h.version,
	})
}
