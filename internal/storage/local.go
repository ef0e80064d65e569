package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes thumbnails into a directory. Keys are confined to that
// directory by resolvePath.
type LocalStorage struct {
	dir      string // as configured, used for reported locations
	basePath string // absolute form of dir
	logger   *slog.Logger
}

// NewLocalStorage creates the output directory if needed and returns a sink
// rooted at it.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	dir := cfg.BasePath
	if dir == "" {
		dir = "."
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	logger.Debug("opened output directory", "path", absPath)

	return &LocalStorage{dir: dir, basePath: absPath, logger: logger}, nil
}

// LocalOpener returns an Opener creating LocalStorage rooted at the output
// directory.
func LocalOpener(logger *slog.Logger) Opener {
	return func(outputDir string) (Storage, error) {
		return NewLocalStorage(LocalConfig{BasePath: outputDir}, logger)
	}
}

// Put writes data to a temporary file next to the target and renames it into
// place, so an interrupted write never leaves a truncated thumbnail behind.
func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".thumbsv2-*")
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: classifyFSError(err)}
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: classifyFSError(err)}
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: classifyFSError(err)}
	}

	s.logger.Debug("wrote file",
		"path", target,
		"size", written,
		"content_type", DetectContentType(contentType, key),
	)
	return nil
}

// Exists reports whether a file is stored at key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &StorageError{Op: "Exists", Key: key, Err: classifyFSError(err)}
	}
}

// Location returns the key joined onto the configured output directory.
func (s *LocalStorage) Location(key string) (string, error) {
	if _, err := s.resolvePath(key); err != nil {
		return "", &StorageError{Op: "Location", Key: key, Err: err}
	}
	return filepath.Join(s.dir, filepath.Clean(key)), nil
}

// resolvePath converts a key to an absolute path inside the base directory.
// Dots inside a file name are fine ("Wait... what.jpg"); whole ".." segments
// and absolute keys are rejected.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", ErrInvalidKey
	}

	cleanKey := filepath.Clean(key)
	if cleanKey == "." || escapes(cleanKey) {
		return "", ErrInvalidKey
	}

	absPath := filepath.Join(s.basePath, cleanKey)
	rel, err := filepath.Rel(s.basePath, absPath)
	if err != nil || escapes(rel) {
		return "", ErrInvalidKey
	}
	return absPath, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// classifyFSError marks permission failures, which affect the whole output
// directory rather than one file.
func classifyFSError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}
