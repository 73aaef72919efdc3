package arxiv

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers (and the progress protocol) can
// distinguish it without parsing messages.
type Kind string

// Failure kinds.
const (
	KindNotFound         Kind = "not_found"
	KindTransientNetwork Kind = "transient_network"
	KindCorruptCache     Kind = "corrupt_cache"
	KindValidation       Kind = "validation"
	KindModel            Kind = "model"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	// ErrNotFound indicates the upstream partition does not exist.
	ErrNotFound = errors.New("partition not found upstream")

	// ErrTransientNetwork indicates a retryable network failure.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrCorruptCache indicates an unreadable or partial local file.
	ErrCorruptCache = errors.New("corrupt cache file")

	// ErrValidation indicates a malformed request rejected before any I/O.
	ErrValidation = errors.New("validation error")

	// ErrModel indicates an embedding or projection backend failure.
	ErrModel = errors.New("model error")
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "hub.fetch"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) and friends match on kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTransientNetwork:
		return e.Kind == KindTransientNetwork
	case ErrCorruptCache:
		return e.Kind == KindCorruptCache
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrModel:
		return e.Kind == KindModel
	}
	return false
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Context cancellation maps to KindCanceled; anything unclassified is
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is a TransientNetworkError.
func IsTransient(err error) bool { return errors.Is(err, ErrTransientNetwork) }

// IsCorruptCache reports whether err is a CorruptCacheError.
func IsCorruptCache(err error) bool { return errors.Is(err, ErrCorruptCache) }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsModel reports whether err is a ModelError.
func IsModel(err error) bool { return errors.Is(err, ErrModel) }
