// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event reactor interface. The reactor multiplexes
// readiness for already-established connection descriptors and drives the
// per-connection read callback; accepting connections is the caller's job.

package reactor

// FDEventType is a bit set of readiness conditions.
type FDEventType uint32

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback handles readiness for one registered descriptor.
type FDCallback func(fd uintptr, events FDEventType)

// Reactor defines basic readiness-notification operations.
type Reactor interface {
	// Register adds a descriptor to the watch list.
	Register(fd uintptr, events FDEventType, cb FDCallback) error

	// Unregister removes a descriptor from the watch list.
	Unregister(fd uintptr) error

	// Poll waits up to timeoutMs (<0 blocks) and dispatches callbacks for
	// ready descriptors.
	Poll(timeoutMs int) error

	// Close releases the reactor's resources.
	Close() error
}
