package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// generationTTL must outlive every dashboard entry.
const generationTTL = 24 * time.Hour

func dashboardGenerationKey(studentID uint) string {
	return fmt.Sprintf("student:%d:generation", studentID)
}

// DashboardKey is the cache key of a student's phase dashboard for a year.
// The key embeds the student's current generation; a submission bumps the
// generation, so a view computed before the bump is never read again.
func (cm *CacheManager) DashboardKey(ctx context.Context, studentID uint, year int) string {
	gen := cm.Dashboard.Generation(ctx, dashboardGenerationKey(studentID))
	return fmt.Sprintf("student:%d:v:%d:year:%d", studentID, gen, year)
}

// InvalidateStudentDashboard moves the student to a new dashboard generation
// and drops the views cached under earlier ones. Failures are logged; a stale
// dashboard expires with its TTL.
func (cm *CacheManager) InvalidateStudentDashboard(ctx context.Context, studentID uint) {
	if err := cm.Dashboard.Bump(ctx, dashboardGenerationKey(studentID), generationTTL); err != nil {
		slog.ErrorContext(ctx, "Failed to bump dashboard generation",
			"error", err,
			"student_id", studentID)
	}

	pattern := fmt.Sprintf("student:%d:v:*", studentID)
	if err := cm.Dashboard.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate dashboard cache",
			"error", err,
			"student_id", studentID,
			"pattern", pattern)
	}
}

// Generation returns the counter stored under key, or 0 when it is unset or
// the cache is unavailable.
func (c *CacheHelper) Generation(ctx context.Context, key string) int64 {
	if !c.Available() {
		return 0
	}
	n, err := c.client.Get(ctx, c.GetCacheKey(key)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Cache generation read error", "error", err, "key", key)
		}
		return 0
	}
	return n
}

// Bump increments the counter stored under key and refreshes its TTL.
func (c *CacheHelper) Bump(ctx context.Context, key string, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, c.GetCacheKey(key))
	pipe.Expire(ctx, c.GetCacheKey(key), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache generation bump error: %w", err)
	}
	return nil
}
