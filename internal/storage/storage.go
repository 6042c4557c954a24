package storage

import (
	"context"
	"strings"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket           string
	Key              string
	ProgressCallback func(done, total int64)
}

// ListOptions narrows a listing to direct children of Prefix. A nil Match
// accepts every key.
type ListOptions struct {
	Prefix string
	Match  func(key string) bool
}

func (o ListOptions) Matches(key string) bool {
	rest, ok := strings.CutPrefix(key, o.Prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return false
	}
	return o.Match == nil || o.Match(key)
}

// Service ships database snapshots to remote object storage.
type Service interface {
	UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error)
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
}
