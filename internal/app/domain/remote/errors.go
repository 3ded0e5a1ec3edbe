package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// FailureKind classifies a remote store failure for the caller's fallback
// decision. Unavailable means the backend could not be reached in time and a
// local fallback is appropriate; Rejected means the backend answered with a
// structured error (constraint violation, policy denial) and retrying the
// same write will not help.
type FailureKind string

const (
	KindUnavailable FailureKind = "unavailable"
	KindRejected    FailureKind = "rejected"
)

// Error is the structured failure every adapter operation returns instead of
// raising raw driver errors through to the presentation layer.
type Error struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a remote failure the caller should
// treat as "backend absent" rather than "request invalid".
func IsUnavailable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindUnavailable
}

// classify wraps a driver error into the adapter taxonomy. Timeouts and
// network-level failures become Unavailable; anything Postgres itself
// reported becomes Rejected.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{Kind: KindRejected, Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnavailable, Op: op, Err: err}
	}
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}
