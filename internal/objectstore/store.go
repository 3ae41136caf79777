package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound reports a missing key.
	ErrNotFound = errors.New("object not found")
	// ErrPreconditionFailed reports that a conditional create found an existing object.
	ErrPreconditionFailed = errors.New("object already exists")
)

// DefaultContentType is used when a writer does not declare one.
const DefaultContentType = "application/octet-stream"

// Object is a fetched blob.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Updated     time.Time
}

// ObjectInfo describes a listed blob.
type ObjectInfo struct {
	Key     string
	Size    int64
	Updated time.Time
}

// Store is the minimal object store contract. Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (Object, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects keys that cannot be addressed safely on every backend.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return errors.New("object key is empty")
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("object key %q must be relative", key)
	case strings.HasSuffix(key, "/"):
		return fmt.Errorf("object key %q must not end with a slash", key)
	case strings.Contains(key, "\\"):
		return fmt.Errorf("object key %q must use forward slashes", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("object key %q has an invalid segment", key)
		}
	}
	return nil
}

func normalizeContentType(contentType string) string {
	if ct := strings.TrimSpace(contentType); ct != "" {
		return ct
	}
	return DefaultContentType
}
