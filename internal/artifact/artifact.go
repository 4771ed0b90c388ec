// Package artifact acquires uploaded schema artifacts from local paths or the
// object store.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/schemaquery/schemaquery/internal/schema"
	"github.com/schemaquery/schemaquery/internal/storage"
)

var ErrTooLarge = errors.New("artifact exceeds size limit")

// Artifact is one uploaded file held in memory for the length of a request.
type Artifact struct {
	Name    string
	Kind    schema.FileKind
	Content []byte
}

// FromBytes wraps content supplied by a caller. The kind comes from the name's
// extension.
func FromBytes(name string, content []byte) (Artifact, error) {
	kind, err := schema.DetectKind(name)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: name, Kind: kind, Content: content}, nil
}

type Resolver struct {
	Store    storage.ObjectStore
	MaxBytes int64
}

// Resolve reads ref, either a local path or an s3:// object key.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Artifact, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Artifact{}, fmt.Errorf("artifact reference is required")
	}
	if storage.IsObjectRef(ref) {
		return r.resolveObject(ctx, ref)
	}
	return r.resolveFile(ref)
}

func (r *Resolver) resolveFile(name string) (Artifact, error) {
	kind, err := schema.DetectKind(name)
	if err != nil {
		return Artifact{}, err
	}
	info, err := os.Stat(name)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact %q is a directory", name)
	}
	if err := r.checkSize(name, info.Size()); err != nil {
		return Artifact{}, err
	}
	file, err := os.Open(name)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = file.Close() }()

	content, err := r.readLimited(name, file)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: filepath.Base(name), Kind: kind, Content: content}, nil
}

func (r *Resolver) resolveObject(ctx context.Context, ref string) (Artifact, error) {
	if r.Store == nil {
		return Artifact{}, fmt.Errorf("resolve %q: object store is not configured", ref)
	}
	key, err := storage.ObjectKeyFromRef(ref)
	if err != nil {
		return Artifact{}, err
	}
	kind, err := schema.DetectKind(key)
	if err != nil {
		info, statErr := r.Store.Stat(ctx, key)
		if statErr != nil {
			return Artifact{}, fmt.Errorf("stat object %q: %w", key, statErr)
		}
		detected, ok := kindFromContentType(info.ContentType)
		if !ok {
			return Artifact{}, err
		}
		kind = detected
	}

	object, err := r.Store.Fetch(ctx, key, r.MaxBytes)
	if errors.Is(err, storage.ErrObjectTooLarge) {
		return Artifact{}, fmt.Errorf("%w: %w", ErrTooLarge, err)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("fetch object %q: %w", key, err)
	}
	return Artifact{Name: path.Base(key), Kind: kind, Content: object.Content}, nil
}

var contentTypeKinds = map[string]schema.FileKind{
	"text/csv":                       schema.KindCSV,
	"text/tab-separated-values":      schema.KindTSV,
	"application/vnd.apache.parquet": schema.KindParquet,
	"application/x-parquet":          schema.KindParquet,
	"application/sql":                schema.KindSQL,
	"text/x-sql":                     schema.KindSQL,
}

// kindFromContentType covers object keys without a recognised extension.
func kindFromContentType(contentType string) (schema.FileKind, bool) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	kind, ok := contentTypeKinds[strings.ToLower(strings.TrimSpace(mediaType))]
	return kind, ok
}

func (r *Resolver) checkSize(name string, size int64) error {
	if r.MaxBytes > 0 && size > r.MaxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, name, size, r.MaxBytes)
	}
	return nil
}

// readLimited reads at most MaxBytes and fails if the source holds more, in
// case the stat size was stale.
func (r *Resolver) readLimited(name string, reader io.Reader) ([]byte, error) {
	if r.MaxBytes <= 0 {
		content, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return content, nil
	}
	content, err := io.ReadAll(io.LimitReader(reader, r.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(content)) > r.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, r.MaxBytes)
	}
	return content, nil
}
