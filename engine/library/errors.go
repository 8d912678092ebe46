package library

import "errors"

var (
	// ErrFatal marks a condition the process cannot safely continue from:
	// corrupt persisted state, an update for an address nobody registered,
	// or a message a handler was never meant to receive.
	ErrFatal             = errors.New("fatal")
	ErrNotFound          = errors.New("not found")
	ErrUnsupported       = errors.New("unsupported")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrDisconnected      = errors.New("disconnected")
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrStale marks an update for an account state that was replaced or removed after the
	// update was issued. It is dropped, not applied.
	ErrStale = errors.New("stale update")
)

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
