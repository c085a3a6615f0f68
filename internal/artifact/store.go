package artifact

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates the requested object does not exist in the store.
var ErrNotFound = errors.New("artifact: not found")

// Store is content storage for raw project file bytes, addressed by
// owner/slug/path keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Key builds the storage key for a project file:
// {ownerKey}/{projectSlug}{filePath}, normalizing a missing leading slash on
// the file path.
func Key(ownerKey, slug, filePath string) string {
	if !strings.HasPrefix(filePath, "/") {
		filePath = "/" + filePath
	}
	return ownerKey + "/" + slug + filePath
}

// RequirementsKey is the fixed location of a project's dependency manifest.
func RequirementsKey(ownerKey, slug string) string {
	return Key(ownerKey, slug, "/requirements.txt")
}
