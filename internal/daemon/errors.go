package daemon

import (
	"errors"
	"fmt"
)

// ErrNotRunnable is returned by Run on a Runner that already ran or was closed.
var ErrNotRunnable = errors.New("runner already started")

// CallbackError wraps an error returned by the unit of work. The liveness
// flag has been released by the time Run returns it.
type CallbackError struct {
	Identity string
	Tick     int64
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s: tick %d: callback failed: %v", e.Identity, e.Tick, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
