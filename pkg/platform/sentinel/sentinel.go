package sentinel

import "errors"

// Infrastructure facts returned by stores and brokers, optionally wrapped.
// Services translate them into domain errors; they are never shown to callers
// directly.
//
//   - ErrNotFound: no row/key for the requested identity
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backing index or broker cannot be reached
//   - ErrCircuitOpen: a breaker is shedding calls to a failing dependency
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrCircuitOpen = errors.New("circuit open")
)
