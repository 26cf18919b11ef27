package gitshim

import (
	"errors"
	"log/slog"
)

// ErrNotExist is returned when a Git object or ref does not exist.
var ErrNotExist = errors.New("does not exist")

// Hash is a Git object id, usually a 40-character SHA-1 hex string.
type Hash string

// ZeroHash is used to represent the absence of a commit.
const ZeroHash Hash = ""

// String returns the hash as a string.
func (h Hash) String() string { return string(h) }

// Short returns the abbreviated form of the hash, for display purposes.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// LogValue reports how the hash should be logged.
func (h Hash) LogValue() slog.Value {
	return slog.StringValue(h.Short())
}
