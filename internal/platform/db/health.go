package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// HealthResponse is the body of the database health check.
type HealthResponse struct {
	Status            string     `json:"status"`
	Pool              *PoolStats `json:"pool"`
	PendingMigrations int        `json:"pending_migrations"`
	Error             string     `json:"error,omitempty"`
}

// HealthHandler pings the database and reports pool statistics. The check
// fails while migrations from migrationsDir are still pending, so traffic is
// held back until the schema is current.
func HealthHandler(pool *pgxpool.Pool, migrationsDir string) echo.HandlerFunc {
	m := NewMigrator(pool, migrationsDir)
	return healthHandler(pool, func() *PoolStats { return GetPoolStats(pool) }, m.PendingCount)
}

func healthHandler(p Pinger, stats func() *PoolStats, pending func(ctx context.Context) (int, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "healthy", Pool: stats()}

		if err := p.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Pool.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, resp)
		}

		if pending != nil {
			n, err := pending(ctx)
			switch {
			case err != nil:
				resp.Status = "unhealthy"
				resp.Error = "migration status unavailable"
				return c.JSON(http.StatusServiceUnavailable, resp)
			case n > 0:
				resp.Status = "migrations_pending"
				resp.PendingMigrations = n
				return c.JSON(http.StatusServiceUnavailable, resp)
			}
		}

		return c.JSON(http.StatusOK, resp)
	}
}
