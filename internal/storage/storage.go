package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds size limit")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Object is a fetched object held in memory.
type Object struct {
	Info    ObjectInfo
	Content []byte
}

// ObjectStore is the read side of an object store holding uploaded
// artifacts.
type ObjectStore interface {
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Fetch reads the whole object. A positive maxBytes bounds the read and
	// oversized objects fail with ErrObjectTooLarge.
	Fetch(ctx context.Context, key string, maxBytes int64) (Object, error)
}
