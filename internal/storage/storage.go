package storage

import (
	"context"
	"io"
	"time"
)

// Uploader archives a finished transcription result. storedPath is a
// backend-specific locator (gs:// URL or filesystem path).
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// Signer issues time-limited read access to an archived result.
type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
