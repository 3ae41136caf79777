package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCS opens a client using application default credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket name is empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return NewGCSWithClient(client, bucket), nil
}

// NewGCSWithClient wraps an existing client.
func NewGCSWithClient(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket}
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Get(ctx context.Context, key string) (Object, error) {
	reader, err := g.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return Object{}, fmt.Errorf("get gs://%s/%s: %w", g.name, key, ErrNotFound)
		}
		return Object{}, fmt.Errorf("get gs://%s/%s: %w", g.name, key, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return Object{}, fmt.Errorf("read gs://%s/%s: %w", g.name, key, err)
	}
	return Object{
		Key:         key,
		Data:        data,
		ContentType: normalizeContentType(reader.Attrs.ContentType),
		Updated:     reader.Attrs.LastModified.UTC(),
	}, nil
}

func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return g.write(ctx, g.bucket.Object(key), key, data, contentType)
}

// PutIfAbsent uses a DoesNotExist precondition; GCS answers 412 when the
// object is already present.
func (g *GCS) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	obj := g.bucket.Object(key).If(storage.Conditions{DoesNotExist: true})
	return g.write(ctx, obj, key, data, contentType)
}

func (g *GCS) write(ctx context.Context, obj *storage.ObjectHandle, key string, data []byte, contentType string) error {
	writer := obj.NewWriter(ctx)
	writer.ContentType = normalizeContentType(contentType)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return g.writeError(key, err)
	}
	if err := writer.Close(); err != nil {
		return g.writeError(key, err)
	}
	return nil
}

func (g *GCS) writeError(key string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("put gs://%s/%s: %w", g.name, key, ErrPreconditionFailed)
	}
	return fmt.Errorf("put gs://%s/%s: %w", g.name, key, err)
}

func (g *GCS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", g.name, prefix, err)
		}
		out = append(out, ObjectInfo{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated.UTC()})
	}
	return out, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", g.name, key, err)
	}
	return nil
}
