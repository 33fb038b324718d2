//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub reactor for platforms without an epoll implementation.

package reactor

import "github.com/momentics/wsproto/api"

// NewReactor reports that no reactor is available on this platform.
func NewReactor() (Reactor, error) {
	return nil, api.ErrNotSupported
}
