// Package storage provides the output sink thumbnails are written to.
//
// Two sinks exist: LocalStorage writes into a directory on the local
// filesystem (the default), R2Storage writes objects into a Cloudflare R2
// bucket. A batch opens one Storage for its output directory before any
// title is processed and stores every thumbnail of the batch under it.
package storage

import (
	"context"
	"io"
)

// Storage is an output sink for thumbnail files.
//
// Put always replaces whatever is stored at key: re-running a title in
// sanitized naming mode rewrites the same file.
type Storage interface {
	// Put writes data at key, replacing any existing object.
	Put(ctx context.Context, key string, data io.Reader, contentType string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Location returns where the object for key lives: a filesystem path
	// inside the output directory for local storage, an object URL for R2.
	// It never touches the backend.
	Location(key string) (string, error)
}

// Opener opens the storage rooted at an output directory. For local storage
// the directory is created if it is missing.
type Opener func(outputDir string) (Storage, error)

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the directory thumbnails are written to.
	// Example: "thumbnails" or "/var/lib/thumbsv2/out"
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Prefix is prepended to every key. R2Opener sets it to the batch output
	// directory so objects mirror the local layout.
	Prefix string

	// PublicURL is the bucket's public base URL (e.g. a custom domain).
	// Locations are reported as r2://bucket/key when it is empty.
	PublicURL string

	// Region defaults to "auto".
	Region string

	// Endpoint overrides the endpoint derived from AccountID.
	Endpoint string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)
