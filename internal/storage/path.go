package storage

import (
	"fmt"
	"path"
	"strings"
)

// RefScheme prefixes artifact references resolved from the object store.
const RefScheme = "s3://"

// IsObjectRef reports whether ref names an object rather than a local path.
func IsObjectRef(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), RefScheme)
}

// ObjectKeyFromRef returns the cleaned object key of an s3:// reference.
func ObjectKeyFromRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, RefScheme) {
		return "", fmt.Errorf("invalid object reference %q: missing %s", ref, RefScheme)
	}
	return CleanKey(strings.TrimPrefix(ref, RefScheme))
}

// CleanKey normalizes an object key and rejects keys escaping their root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return cleaned, nil
}
