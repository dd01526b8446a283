package bridge

import "errors"

var (
	// ErrUnknownComponent is returned at render time when plain props reach a
	// name with no exported render function.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrAlreadyRegistered is returned by Define for a name that already has
	// a wrapper.
	ErrAlreadyRegistered = errors.New("component already registered")
)
