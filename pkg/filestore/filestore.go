package filestore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Storage persists binary artifacts (probe screenshots) and hands out
// time-limited download URLs.
type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// Key builds the canonical object key for an organization's file
func Key(organizationID, fileID uuid.UUID) string {
	return fmt.Sprintf("storagev1/%s.%s", organizationID, fileID)
}
