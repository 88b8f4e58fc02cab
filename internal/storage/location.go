package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const s3Scheme = "s3://"

// Location addresses a file either on local disk (Bucket empty, Key is a path) or in S3.
type Location struct {
	Bucket string
	Key    string
}

func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	if !strings.HasPrefix(raw, s3Scheme) {
		return Location{Key: raw}, nil
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(raw, s3Scheme), "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q: missing bucket", raw)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) Base() string {
	if l.IsS3() {
		return path.Base(l.Key)
	}
	return filepath.Base(l.Key)
}

// Join treats the location as a directory or prefix and appends name to it.
func (l Location) Join(name string) Location {
	if l.IsS3() {
		if l.Key == "" {
			return Location{Bucket: l.Bucket, Key: name}
		}
		return Location{Bucket: l.Bucket, Key: strings.TrimSuffix(l.Key, "/") + "/" + name}
	}
	return Location{Key: filepath.Join(l.Key, name)}
}

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Key
}
