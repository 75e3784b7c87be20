package storage

import (
	"context"
	"time"
)

// DefaultPresignedURLExpiry is used when callers pass a non-positive expiry.
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage gives clients temporary read access to exercise media.
type FileStorage interface {
	// GeneratePresignedDownloadURL returns a GET URL for objectKey that stays valid for expires.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}
