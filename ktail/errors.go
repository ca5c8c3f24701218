package ktail

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a Config cannot be
	// turned into a Filter.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotReady is returned by a LogStreamer when a pod
	// cannot serve logs yet, or is already gone.
	ErrNotReady = errors.New("pod not ready")

	// ErrCapacityExceeded is matched by CapacityError.
	ErrCapacityExceeded = errors.New("too many pods matched")
)

// CapacityError stops the Reconciler when a new pod
// matches while MaxPods pods are already being followed.
type CapacityError struct {
	Pod     string
	MaxPods int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"%s: max pods allowed to follow is %d"+
			" (while considering %s)",
		ErrCapacityExceeded, e.MaxPods, e.Pod,
	)
}

// Unwrap makes errors.Is(err, ErrCapacityExceeded) hold.
func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
