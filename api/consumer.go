// File: api/consumer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Capability interface the frame parser calls back into. Implemented by the
// session/connection layer on the production side and by small recording
// doubles in tests.

package api

// FragmentConsumer receives payload fragments and policy queries from the
// incremental frame parser. One consumer instance belongs to exactly one
// connection and is never called concurrently.
type FragmentConsumer interface {
	// HandleFragment delivers a chunk of frame payload. remaining is the
	// number of payload bytes of the current frame still outstanding after
	// this chunk (0 for a complete frame). fin reflects the FIN bit of the
	// frame the chunk belongs to. data is borrowed for the duration of the
	// call; the consumer must copy anything it wants to keep.
	// Returning true aborts processing of the rest of the read buffer.
	HandleFragment(data []byte, remaining uint32, opcode byte, fin bool) bool

	// ForceClose terminates the connection with one of the fixed Reason*
	// strings. After ForceClose the parser stops and must not be fed again.
	ForceClose(reason string)

	// RefusePayloadLength reports whether a frame with the declared payload
	// length must be rejected. Called before any payload is delivered.
	RefusePayloadLength(length uint64) bool

	// SetCompressed marks the current message as compressed and reports
	// whether this connection permits RSV1/compressed frames at all. A frame
	// carrying RSV1 on a connection that returns false is a protocol error.
	SetCompressed() bool
}
