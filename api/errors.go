// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values and the fixed close reasons surfaced to peers.

package api

import "fmt"

// Fixed close reasons. These exact strings go out on the wire as the close
// frame reason and are surfaced to the application, so they must not change.
const (
	ReasonTooBigMessage       = "Received too big message"
	ReasonTimeout             = "WebSocket timed out from inactivity"
	ReasonInvalidText         = "Received invalid UTF-8"
	ReasonInflationError      = "Received too big message, or other inflation error"
	ReasonInvalidClosePayload = "Received invalid close payload"
	ReasonProtocolError       = "Received invalid WebSocket frame"
	ReasonTCPFin              = "Received TCP FIN before WebSocket close frame"
)

// Common errors used across the library.
var (
	ErrNotSupported  = fmt.Errorf("operation not supported")
	ErrReactorClosed = fmt.Errorf("reactor is closed")
)
