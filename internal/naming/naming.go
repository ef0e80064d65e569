// Package naming derives output file names for thumbnails.
//
// Two modes exist. Random names are collision-free and never depend on the
// title, which keeps repeated or unsafe titles apart. Sanitized names are
// human-readable and deterministic, so re-running a title overwrites the same
// file.
package naming

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Mode selects how a file name is derived from a title.
type Mode string

const (
	// ModeRandom names files after a fresh random UUID.
	ModeRandom Mode = "random"

	// ModeSanitized names files after the title with unsafe characters removed.
	ModeSanitized Mode = "sanitized"
)

// MaxNameLength is the longest sanitized name, in characters.
const MaxNameLength = 200

// Extension is appended to every derived name.
const Extension = ".jpg"

// illegalChars are removed from titles in sanitized mode.
const illegalChars = `\/*?:"<>|`

// ParseMode converts a flag or env value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRandom:
		return ModeRandom, nil
	case ModeSanitized:
		return ModeSanitized, nil
	default:
		return "", fmt.Errorf("unknown naming mode %q (want %q or %q)", s, ModeRandom, ModeSanitized)
	}
}

// Sanitize removes characters that are illegal in file names, trims
// surrounding whitespace and truncates to MaxNameLength characters. Case and
// inner whitespace are kept, so distinct titles may sanitize identically.
func Sanitize(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalChars, r) {
			return -1
		}
		return r
	}, title)
	name = strings.TrimSpace(name)

	if runes := []rune(name); len(runes) > MaxNameLength {
		name = string(runes[:MaxNameLength])
	}
	return name
}

// RandomName returns 32 lowercase hex characters from a version 4 UUID.
func RandomName() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Derive returns the file name base (without extension) for title. Any mode
// other than ModeSanitized derives a random name.
func Derive(title string, mode Mode) string {
	if mode == ModeSanitized {
		return Sanitize(title)
	}
	return RandomName()
}

// OutputKey returns the storage key for title: the derived base plus
// Extension.
func OutputKey(title string, mode Mode) string {
	return Derive(title, mode) + Extension
}
