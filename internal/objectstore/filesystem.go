package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const (
	fsMetaDir    = ".meta"
	fsTempGlob   = ".proofbuild-tmp-*"
	fsTempMark   = ".proofbuild-tmp-"
	fsLockName   = ".proofbuild-store.lock"
	fsMetaSuffix = ".json"
)

type fsMeta struct {
	ContentType string `json:"contentType"`
}

// Filesystem stores objects as files under a root directory. Writes go
// through a temp file and rename so readers never observe partial objects.
// Conditional creates and deletes take an advisory flock so several
// processes sharing the tree agree on claim ownership.
type Filesystem struct {
	root string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFilesystem prepares root for use as an object store.
func NewFilesystem(root string) (*Filesystem, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("filesystem store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	return &Filesystem{root: root, lock: flock.New(filepath.Join(root, fsLockName))}, nil
}

// Root returns the directory backing the store.
func (f *Filesystem) Root() string { return f.root }

func (f *Filesystem) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if strings.HasPrefix(key, fsMetaDir+"/") {
		return "", fmt.Errorf("object key %q uses a reserved prefix", key)
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

func (f *Filesystem) metaPath(key string) string {
	return filepath.Join(f.root, fsMetaDir, filepath.FromSlash(key)+fsMetaSuffix)
}

func (f *Filesystem) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	path, err := f.path(key)
	if err != nil {
		return Object{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, fmt.Errorf("get %s: %w", key, ErrNotFound)
		}
		return Object{}, fmt.Errorf("get %s: %w", key, err)
	}
	obj := Object{Key: key, Data: data, ContentType: DefaultContentType}
	if info, err := os.Stat(path); err == nil {
		obj.Updated = info.ModTime().UTC()
	}
	if raw, err := os.ReadFile(f.metaPath(key)); err == nil {
		var meta fsMeta
		if json.Unmarshal(raw, &meta) == nil && meta.ContentType != "" {
			obj.ContentType = meta.ContentType
		}
	}
	return obj, nil
}

func (f *Filesystem) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return f.writeMeta(key, contentType)
}

// PutIfAbsent links a fully written temp file into place; the link fails if
// the target exists.
func (f *Filesystem) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	unlock, err := f.exclusive()
	if err != nil {
		return err
	}
	defer unlock()

	tmpPath, err := writeTemp(path, data)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer os.Remove(tmpPath)
	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("put %s: %w", key, ErrPreconditionFailed)
		}
		return fmt.Errorf("put %s: %w", key, err)
	}
	return f.writeMeta(key, contentType)
}

func (f *Filesystem) writeMeta(key, contentType string) error {
	raw, err := json.Marshal(fsMeta{ContentType: normalizeContentType(contentType)})
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", key, err)
	}
	if err := writeAtomic(f.metaPath(key), raw); err != nil {
		return fmt.Errorf("write metadata for %s: %w", key, err)
	}
	return nil
}

func (f *Filesystem) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Walk from the deepest directory fully named by the prefix.
	base := f.root
	if idx := strings.LastIndex(prefix, "/"); idx >= 0 {
		base = filepath.Join(f.root, filepath.FromSlash(prefix[:idx]))
	}
	var out []ObjectInfo
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != base && (name == fsMetaDir && filepath.Dir(path) == f.root) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, fsTempMark) || (name == fsLockName && filepath.Dir(path) == f.root) {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), Updated: info.ModTime().UTC()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *Filesystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	unlock, err := f.exclusive()
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	_ = os.Remove(f.metaPath(key))
	return nil
}

// exclusive serializes goroutines with a mutex and processes with the flock.
func (f *Filesystem) exclusive() (func(), error) {
	f.mu.Lock()
	if err := f.lock.Lock(); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return func() {
		_ = f.lock.Unlock()
		f.mu.Unlock()
	}, nil
}

func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create parent for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, fsTempGlob)
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file for %s: %w", path, err)
	}
	return tmpPath, nil
}

func writeAtomic(path string, data []byte) error {
	tmpPath, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
