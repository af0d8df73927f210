package cache

import (
	"context"
	"time"
)

// Cache stores finished transcription results keyed by content hash so an
// identical re-upload skips the pipeline entirely.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
