package types

import "errors"

// Sentinel errors shared across services. Handlers map these to HTTP
// statuses; anything unwrapped falls through as a 500.
var (
	ErrBadRequest      = errors.New("invalid parameters provided")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrNotFound        = errors.New("requested item not found")
	ErrInternal        = errors.New("internal error")
)
