// File: protocol/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental frame parser. One State per connection tracks everything
// needed to resume parsing across arbitrarily chunked transport reads:
// a spill area for a header split between reads, the remaining byte count
// of a payload in flight, the rotated masking key, and the fragmentation
// stack separating an open data message from an interleaved control frame.

package protocol

import (
	"math"

	"github.com/momentics/wsproto/api"
)

// State is the per-connection parse state. It is owned by the connection,
// mutated only while consuming that connection's reads, and needs no
// synchronization as long as reads are delivered sequentially.
type State struct {
	role Role

	// wantsHead is true when the next bytes are a frame header, false when
	// a payload continuation is expected.
	wantsHead bool

	// spillLength bytes of an incomplete header carried over from the last
	// buffer. Non-zero only while wantsHead.
	spillLength int
	spill       [ConsumePrePadding]byte

	// opStack is the fragmentation depth: -1 no message open, 0 a data
	// message open, 1 a control frame on top of an open data message.
	// opCode holds the opcode for each occupied level.
	opStack int
	opCode  [2]OpCode

	// lastFin is the FIN bit of the most recently parsed header.
	lastFin bool

	// remaining counts undelivered payload bytes of the frame in flight.
	remaining uint32

	// mask is the masking key for a payload continuing across buffers,
	// rotated to stay in phase with the unconsumed remainder. Servers only.
	mask [4]byte
}

// NewState returns the parse state for a fresh connection acting as role.
func NewState(role Role) *State {
	return &State{
		role:      role,
		wantsHead: true,
		opStack:   -1,
		lastFin:   true,
	}
}

// Role returns the role the state was created for.
func (s *State) Role() Role { return s.role }

// Consume parses as many frames as raw holds and hands their payloads to c.
// The transport data occupies raw[ConsumePrePadding : ConsumePrePadding+n];
// the padding before it must be writable (the spilled tail of the previous
// read is prefixed there) and ConsumePostPadding bytes must follow the data.
// pool.BytePool buffers satisfy this layout.
//
// Consume performs no I/O and never fails: malformed input is reported
// through c.ForceClose with a fixed reason, truncated input is deferred to
// the spill area, and every call consumes bytes or stops. Payload slices
// passed to c alias raw and are only valid during the callback.
func Consume(raw []byte, n int, s *State, c api.FragmentConsumer) {
	pos := ConsumePrePadding
	end := ConsumePrePadding + n
	if s.spillLength > 0 {
		pos -= s.spillLength
		copy(raw[pos:ConsumePrePadding], s.spill[:s.spillLength])
	}

	if !s.wantsHead {
		var resume bool
		pos, resume = consumeContinuation(raw, pos, end, s, c)
		if !resume {
			return
		}
	}

	short, medium, long := s.role.headerSizes()
head:
	for end-pos >= short {
		b0 := raw[pos]
		op := OpCode(b0 & 0x0F)

		// Reserved bits, reserved opcodes, and fragmented or oversized
		// control frames are protocol errors; RSV1 needs the consumer's
		// consent to compression.
		if (b0&rsv1Bit != 0 && !c.SetCompressed()) || b0&rsv23Bit != 0 ||
			(op > OpcodeBinary && op < OpcodeClose) || op > OpcodePong ||
			(op.IsControl() && (b0&finBit == 0 || raw[pos+1]&lenBits > MaxControlPayloadLen)) {
			c.ForceClose(api.ReasonProtocolError)
			return
		}

		switch payload := raw[pos+1] & lenBits; {
		case payload < 126:
			if consumeMessage(raw, &pos, end, uint64(payload), short, s, c) {
				return
			}
		case payload == 126:
			if end-pos < medium {
				break head
			}
			if consumeMessage(raw, &pos, end, uint64(readUint16(raw[pos+2:])), medium, s, c) {
				return
			}
		default:
			if end-pos < long {
				break head
			}
			if consumeMessage(raw, &pos, end, readUint64(raw[pos+2:]), long, s, c) {
				return
			}
		}
	}

	if rem := end - pos; rem > 0 {
		copy(s.spill[:], raw[pos:end])
		s.spillLength = rem
	}
}

// consumeMessage handles one frame whose header starts at *pos. It returns
// true when Consume must stop: protocol violation, consumer abort, or a
// payload that runs past the buffer and switches the state to continuation.
// On a fully consumed frame it advances *pos and returns false.
func consumeMessage(raw []byte, pos *int, end int, payLength uint64, header int, s *State, c api.FragmentConsumer) bool {
	p := *pos
	if op := OpCode(raw[p] & 0x0F); op != OpcodeContinuation {
		// A data frame may not start while the previous message is
		// unfinished, and the stack never holds more than two levels.
		if s.opStack == 1 || (!s.lastFin && !op.IsControl()) {
			c.ForceClose(api.ReasonProtocolError)
			return true
		}
		s.opStack++
		s.opCode[s.opStack] = op
	} else if s.opStack == -1 {
		// Continuation with no message open.
		c.ForceClose(api.ReasonProtocolError)
		return true
	}
	fin := raw[p]&finBit != 0
	s.lastFin = fin

	if c.RefusePayloadLength(payLength) {
		c.ForceClose(api.ReasonTooBigMessage)
		return true
	}

	if payLength <= uint64(end-p-header) {
		// Whole payload is present in this buffer.
		payload := raw[p+header : p+header+int(payLength)]
		if s.role == Server {
			var key [4]byte
			copy(key[:], raw[p+header-4:p+header])
			ApplyMaskStreaming(payload, key)
		}
		if c.HandleFragment(payload, 0, byte(s.opCode[s.opStack]), fin) {
			return true
		}
		if fin {
			s.opStack--
		}
		*pos = p + header + int(payLength)
		s.spillLength = 0
		return false
	}

	// Payload runs past the buffer: deliver what is here, remember the rest.
	// The remainder counter is 32-bit; a declared length whose remainder
	// cannot fit is refused rather than truncated.
	avail := end - p - header
	if payLength-uint64(avail) > math.MaxUint32 {
		c.ForceClose(api.ReasonTooBigMessage)
		return true
	}
	s.spillLength = 0
	s.wantsHead = false
	s.remaining = uint32(payLength - uint64(avail))
	payload := raw[p+header : end]
	if s.role == Server {
		copy(s.mask[:], raw[p+header-4:p+header])
		ApplyMaskStreaming(payload, s.mask)
		RotateMask(4-avail%4, &s.mask)
	}
	c.HandleFragment(payload, s.remaining, byte(s.opCode[s.opStack]), fin)
	return true
}

// consumeContinuation resumes a payload split across buffers. It returns the
// new position and whether Consume should fall through into header parsing
// (the frame finished with bytes left over in this buffer).
func consumeContinuation(raw []byte, pos, end int, s *State, c api.FragmentConsumer) (int, bool) {
	avail := end - pos
	if s.remaining <= uint32(avail) {
		// The frame ends inside this buffer.
		rem := int(s.remaining)
		if s.role == Server {
			ApplyMaskStreaming(raw[pos:pos+rem], s.mask)
		}
		if c.HandleFragment(raw[pos:pos+rem], 0, byte(s.opCode[s.opStack]), s.lastFin) {
			return pos, false
		}
		if s.lastFin {
			s.opStack--
		}
		s.remaining = 0
		s.wantsHead = true
		return pos + rem, true
	}

	// The entire buffer belongs to the frame in flight.
	if s.role == Server {
		ApplyMaskStreaming(raw[pos:end], s.mask)
	}
	s.remaining -= uint32(avail)
	if c.HandleFragment(raw[pos:end], s.remaining, byte(s.opCode[s.opStack]), s.lastFin) {
		return pos, false
	}
	if s.role == Server && avail%4 != 0 {
		RotateMask(4-avail%4, &s.mask)
	}
	return end, false
}
