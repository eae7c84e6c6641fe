package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// HealthConfig configures HealthChecker's checks. Grounded on the teacher's
// SQLHealthConfig, trimmed to the checks an audit sink (rather than a
// monitored upstream service) needs: a reachability ping and connection-pool
// pressure, not query-latency sampling against arbitrary service traffic.
type HealthConfig struct {
	QueryTimeout    time.Duration
	PoolWarnPercent int // connection-pool usage percentage that degrades (not fails) the result
}

// DefaultHealthConfig returns conservative defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		QueryTimeout:    2 * time.Second,
		PoolWarnPercent: 80,
	}
}

// HealthResult reports one health check's outcome.
type HealthResult struct {
	Healthy  bool
	Degraded bool
	Message  string
	Duration time.Duration
}

// HealthChecker pings the audit database and inspects its connection pool.
// Grounded on internal/rotation/health.SQLHealthChecker's Check, reduced to
// the two signals relevant to an audit sink's own db handle.
type HealthChecker struct {
	db     *sql.DB
	config HealthConfig
}

// NewHealthChecker constructs a HealthChecker over db.
func NewHealthChecker(db *sql.DB, config HealthConfig) *HealthChecker {
	if config.PoolWarnPercent <= 0 {
		config = DefaultHealthConfig()
	}
	return &HealthChecker{db: db, config: config}
}

// Check pings the database and reports pool pressure.
func (c *HealthChecker) Check(ctx context.Context) (HealthResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return HealthResult{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err), Duration: time.Since(start)}, err
	}

	stats := c.db.Stats()
	result := HealthResult{Healthy: true, Duration: time.Since(start), Message: "ok"}

	maxConns := stats.MaxOpenConnections
	if maxConns > 0 {
		usagePct := (stats.InUse * 100) / maxConns
		if usagePct >= c.config.PoolWarnPercent {
			result.Degraded = true
			result.Message = fmt.Sprintf("connection pool at %d%% usage (%d/%d in use)", usagePct, stats.InUse, maxConns)
		}
	}
	return result, nil
}
