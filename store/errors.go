package store

import (
	"errors"
)

var (
	// ErrNotFound reports that no file is committed at the requested path.
	ErrNotFound = errors.New("file not found")
	// ErrConflict reports a failed version-token precondition on write.
	ErrConflict = errors.New("version conflict")
	// ErrNetwork reports a transport-level failure talking to the store.
	ErrNetwork = errors.New("store unreachable")
)

// Kind classifies store failures.
type Kind int

const (
	// KindUnknown is any failure that is none of the below.
	KindUnknown Kind = iota
	// KindNotFound is a read of an absent path; callers treat it as valid state.
	KindNotFound
	// KindConflict is a rejected write because the path changed underneath us.
	KindConflict
	// KindNetwork is a transport failure (remote unreachable, connection reset).
	KindNetwork
)

// String returns a short label suitable for logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Classify maps err onto a Kind. A nil error is KindUnknown.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// IsNotFound reports whether err is a not-found read.
func IsNotFound(err error) bool { return Classify(err) == KindNotFound }

// IsConflict reports whether err is a failed write precondition.
func IsConflict(err error) bool { return Classify(err) == KindConflict }
