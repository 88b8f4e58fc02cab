package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// fullpath maps bucket and key under baseDir. An empty bucket with an absolute key is a
// plain filesystem path, unless the store is confined to baseDir.
func (s *LocalObjectStore) fullpath(bucket, key string) (string, error) {
	if !s.confined {
		if bucket == "" && filepath.IsAbs(key) {
			return filepath.Clean(key), nil
		}
		return filepath.Join(s.baseDir, bucket, key), nil
	}

	if filepath.IsAbs(key) || filepath.IsAbs(bucket) {
		return "", fmt.Errorf("%w: absolute path %s", ErrOutsideRoot, filepath.Join(bucket, key))
	}
	path := filepath.Join(s.baseDir, bucket, key)
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, filepath.Join(bucket, key))
	}
	return path, nil
}
