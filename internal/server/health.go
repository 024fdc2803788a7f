package server

import (
	"context"

	transporthttp "github.com/kochabx/portal/transport/http"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheMode reports whether the cache currently runs on process memory.
type CacheMode interface {
	Degraded() bool
}

// Health reports the database and the cache. Only the database decides
// availability; a degraded cache still serves.
func Health(db Pinger, cache CacheMode) transporthttp.HealthFunc {
	return func(ctx context.Context) (map[string]string, bool) {
		checks := map[string]string{"db": "ok", "cache": "ok"}
		ok := true
		if err := db.Ping(ctx); err != nil {
			checks["db"] = "down"
			ok = false
		}
		if cache != nil && cache.Degraded() {
			checks["cache"] = "degraded"
		}
		return checks, ok
	}
}
