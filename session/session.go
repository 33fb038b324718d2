// File: session/session.go
// Package session provides the production consumer for the frame parser.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Session implements api.FragmentConsumer: it reassembles fragments into
// whole messages, validates text payloads incrementally, answers pings,
// decodes close frames, and enforces the payload-size policy. Completed
// messages and ready-to-write reply frames are queued for the transport
// harness to drain.

package session

import (
	"github.com/eapache/queue"

	"github.com/momentics/wsproto/api"
	"github.com/momentics/wsproto/protocol"
)

// DefaultMaxPayloadLength bounds the declared payload length a session
// accepts before refusing the frame.
const DefaultMaxPayloadLength = 16 * 1024

// Options configures a Session.
type Options struct {
	// MaxPayloadLength is the largest declared payload length accepted.
	// Zero means DefaultMaxPayloadLength.
	MaxPayloadLength uint64

	// SkipUTF8Validation disables text and close-reason UTF-8 checks.
	SkipUTF8Validation bool

	// Compression permits RSV1-flagged frames. The session only tags such
	// messages as compressed; inflating them is the application's concern.
	Compression bool
}

// Message is one fully reassembled data message.
type Message struct {
	OpCode     protocol.OpCode
	Data       []byte
	Compressed bool
}

// Session is the per-connection consumer state. Like the parser state it is
// driven by one goroutine at a time and needs no locking.
type Session struct {
	opts Options
	role protocol.Role

	messages *queue.Queue // completed *Message
	outbound *queue.Queue // formatted reply frames ([]byte)

	current    Message // data message being reassembled
	assembling bool
	validated  int  // prefix of current.Data verified as UTF-8
	rsv1Seen   bool // RSV1 on the frame being parsed, claimed at assembly start

	ctrl []byte // control payload split across reads

	closed      bool
	closeReason string
	closeFrame  protocol.CloseFrame
	gotClose    bool
}

// New creates a session for a connection acting as role.
func New(role protocol.Role, opts Options) *Session {
	if opts.MaxPayloadLength == 0 {
		opts.MaxPayloadLength = DefaultMaxPayloadLength
	}
	return &Session{
		opts:     opts,
		role:     role,
		messages: queue.New(),
		outbound: queue.New(),
	}
}

// HandleFragment implements api.FragmentConsumer.
func (s *Session) HandleFragment(data []byte, remaining uint32, opcode byte, fin bool) bool {
	if s.closed {
		return true
	}
	op := protocol.OpCode(opcode)
	if op.IsControl() {
		return s.handleControl(op, data, remaining)
	}

	if !s.assembling {
		s.assembling = true
		s.current.OpCode = op
		s.current.Compressed = s.rsv1Seen
		s.validated = 0
	}
	s.rsv1Seen = false
	s.current.Data = append(s.current.Data, data...)

	// Text is validated per delivered chunk. An unfinished multi-byte
	// sequence at the chunk end is held back and checked together with the
	// next chunk; it only fails once it can no longer complete.
	if op == protocol.OpcodeText && !s.opts.SkipUTF8Validation && !s.current.Compressed {
		pending := s.current.Data[s.validated:]
		hold := protocol.IncompleteUTF8Tail(pending)
		if !protocol.ValidUTF8(pending[:len(pending)-hold]) {
			s.abort(api.ReasonInvalidText, protocol.CloseInvalidPayloadData)
			return true
		}
		s.validated = len(s.current.Data) - hold
	}

	if remaining == 0 && fin {
		if s.validated != len(s.current.Data) && op == protocol.OpcodeText &&
			!s.opts.SkipUTF8Validation && !s.current.Compressed {
			s.abort(api.ReasonInvalidText, protocol.CloseInvalidPayloadData)
			return true
		}
		msg := s.current
		s.messages.Add(&msg)
		s.current = Message{}
		s.assembling = false
		s.validated = 0
	}
	return false
}

// handleControl accumulates and dispatches close/ping/pong payloads.
func (s *Session) handleControl(op protocol.OpCode, data []byte, remaining uint32) bool {
	// RSV1 on a control frame carries no message semantics.
	s.rsv1Seen = false
	s.ctrl = append(s.ctrl, data...)
	if remaining > 0 {
		return false
	}
	payload := s.ctrl
	s.ctrl = nil

	switch op {
	case protocol.OpcodeClose:
		cf := protocol.ParseClosePayload(payload, s.opts.SkipUTF8Validation)
		s.gotClose = true
		s.closeFrame = protocol.CloseFrame{
			Code:    cf.Code,
			Message: append([]byte(nil), cf.Message...),
		}
		s.closed = true
		s.queueClose(cf.Code, s.closeFrame.Message)
		return true
	case protocol.OpcodePing:
		s.queueFrame(protocol.OpcodePong, payload)
	case protocol.OpcodePong:
		// Liveness signal only.
	}
	return false
}

// ForceClose implements api.FragmentConsumer.
func (s *Session) ForceClose(reason string) {
	code := uint16(protocol.CloseProtocolError)
	if reason == api.ReasonTooBigMessage {
		code = protocol.CloseMessageTooBig
	}
	s.abort(reason, code)
}

// RefusePayloadLength implements api.FragmentConsumer.
func (s *Session) RefusePayloadLength(length uint64) bool {
	return length > s.opts.MaxPayloadLength
}

// SetCompressed implements api.FragmentConsumer. The flag is only claimed by
// a data message at assembly start; RSV1 seen on other frames is dropped.
func (s *Session) SetCompressed() bool {
	if !s.opts.Compression {
		return false
	}
	s.rsv1Seen = true
	return true
}

// abort marks the session dead and queues the outbound close frame.
func (s *Session) abort(reason string, code uint16) {
	if s.closed {
		return
	}
	s.closed = true
	s.closeReason = reason
	s.queueClose(code, []byte(reason))
}

// queueClose formats a close frame for code and message. Codes that must not
// reach the wire degrade to an empty close payload.
func (s *Session) queueClose(code uint16, message []byte) {
	payload := make([]byte, 2+len(message))
	n := protocol.FormatClosePayload(payload, code, message)
	s.queueFrame(protocol.OpcodeClose, payload[:n])
}

// queueFrame formats one outbound frame with the session's role.
func (s *Session) queueFrame(op protocol.OpCode, payload []byte) {
	frame := make([]byte, protocol.FrameSize(len(payload), s.role))
	n := protocol.FormatMessage(frame, payload, op, uint64(len(payload)), false, true, s.role)
	s.outbound.Add(frame[:n])
}

// NextMessage pops the next completed message, if any.
func (s *Session) NextMessage() (*Message, bool) {
	if s.messages.Length() == 0 {
		return nil, false
	}
	return s.messages.Remove().(*Message), true
}

// NextOutbound pops the next formatted reply frame to write, if any.
func (s *Session) NextOutbound() ([]byte, bool) {
	if s.outbound.Length() == 0 {
		return nil, false
	}
	return s.outbound.Remove().([]byte), true
}

// Closed reports whether the session reached its end state.
func (s *Session) Closed() bool { return s.closed }

// CloseReason returns the local failure reason, empty when the peer closed
// cleanly or the session is still open.
func (s *Session) CloseReason() string { return s.closeReason }

// ReceivedClose returns the peer's close frame, if one arrived.
func (s *Session) ReceivedClose() (protocol.CloseFrame, bool) {
	return s.closeFrame, s.gotClose
}
