package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRegistry_GetOverallHealth(t *testing.T) {
	t.Run("empty registry is healthy", func(t *testing.T) {
		r := NewHealthRegistry()
		overall := r.GetOverallHealth(context.Background())
		assert.Equal(t, HealthStatusHealthy, overall.Status)
		assert.Empty(t, overall.Checks)
	})

	t.Run("unhealthy component dominates", func(t *testing.T) {
		r := NewHealthRegistry()
		r.Register("database", DatabaseHealthChecker(func(context.Context) error {
			return errors.New("connection refused")
		}))
		r.Register("redis", RedisHealthChecker(func(context.Context) error { return nil }))

		overall := r.GetOverallHealth(context.Background())
		assert.Equal(t, HealthStatusUnhealthy, overall.Status)
		require.Contains(t, overall.Checks, "database")
		assert.Contains(t, overall.Checks["database"].Message, "connection refused")
	})

	t.Run("redis failure only degrades", func(t *testing.T) {
		r := NewHealthRegistry()
		r.Register("database", DatabaseHealthChecker(func(context.Context) error { return nil }))
		r.Register("redis", RedisHealthChecker(func(context.Context) error {
			return errors.New("timeout")
		}))

		overall := r.GetOverallHealth(context.Background())
		assert.Equal(t, HealthStatusDegraded, overall.Status)
	})

	t.Run("check records duration and timestamp", func(t *testing.T) {
		r := NewHealthRegistry()
		r.Register("database", DatabaseHealthChecker(func(context.Context) error { return nil }))

		results := r.Check(context.Background())
		require.Contains(t, results, "database")
		assert.False(t, results["database"].Timestamp.IsZero())
	})
}
