package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means nothing is stored at the key.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey means the key would escape the output root or is empty.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrAccessDenied means the backend refused access to the output as a
	// whole: bad credentials, missing permissions or a missing bucket.
	ErrAccessDenied = errors.New("access denied")
)

// StorageError records the operation and key a backend error belongs to.
type StorageError struct {
	Op  string // "Put", "Exists" or "Location"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsInvalidKey reports whether err was caused by an unusable key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsAccessDenied reports whether err affects every key of the output rather
// than just the one being written.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
