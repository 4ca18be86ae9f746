package http

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pairwave/pairwave/internal/app"
	"github.com/pairwave/pairwave/internal/config"
)

var startedAt = time.Now()

type healthResponse struct {
	Status      string       `json:"status"`
	Rooms       int          `json:"rooms"`
	MaxRooms    int          `json:"maxRooms"`
	Uptime      float64      `json:"uptime"`
	Environment string       `json:"environment"`
	Timestamp   string       `json:"timestamp"`
	Memory      healthMemory `json:"memory"`
}

type healthMemory struct {
	Used  string `json:"used"`
	Total string `json:"total"`
}

// HealthHandler reports liveness plus the store's read-only room count
// and configured capacity, for load balancers and monitoring.
func HealthHandler(store *app.RoomStore, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, healthResponse{
			Status:      "ok",
			Rooms:       store.Count(),
			MaxRooms:    store.Capacity(),
			Uptime:      time.Since(startedAt).Seconds(),
			Environment: cfg.Mode,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Memory: healthMemory{
				Used:  fmt.Sprintf("%dMB", m.HeapAlloc/1024/1024),
				Total: fmt.Sprintf("%dMB", m.HeapSys/1024/1024),
			},
		})
	}
}
