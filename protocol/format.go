// File: protocol/format.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outbound frame formatter: variable-length size encoding, FIN/RSV1/opcode
// byte, and client-side masking while copying the payload out.

package protocol

import "math/rand"

// compressedBit is RSV1, meaningful only on non-continuation opcodes.
const compressedBit = rsv1Bit

// FrameSize returns the wire size of a frame carrying messageSize payload
// bytes when sent by role. Clients spend 4 extra bytes on the masking key.
func FrameSize(messageSize int, role Role) int {
	extra := 0
	if role == Client {
		extra = 4
	}
	switch {
	case messageSize < 126:
		return 2 + extra + messageSize
	case messageSize <= 0xFFFF:
		return 4 + extra + messageSize
	default:
		return 10 + extra + messageSize
	}
}

// FormatMessage writes a frame into dst and returns its total size. The wire
// length field carries reportedLength, while only len(src) payload bytes are
// copied; declaring a larger logical length while sending a prefix supports
// streaming a message across several writes. Clients generate a random
// masking key and mask the payload while copying; servers copy it verbatim.
// dst must hold FrameSize-many bytes for the reported header plus len(src).
func FormatMessage(dst, src []byte, opcode OpCode, reportedLength uint64, compressed, fin bool, role Role) int {
	var headerLength int
	switch {
	case reportedLength < 126:
		headerLength = 2
		dst[1] = byte(reportedLength)
	case reportedLength <= 0xFFFF:
		headerLength = 4
		dst[1] = 126
		putUint16(dst[2:], uint16(reportedLength))
	default:
		headerLength = 10
		dst[1] = 127
		putUint64(dst[2:], reportedLength)
	}

	b0 := byte(opcode)
	if fin {
		b0 |= finBit
	}
	if compressed && opcode != OpcodeContinuation {
		b0 |= compressedBit
	}
	dst[0] = b0

	if role == Client {
		dst[1] |= maskBit
		r := rand.Uint32()
		key := [4]byte{byte(r), byte(r >> 8), byte(r >> 16), byte(r >> 24)}
		copy(dst[headerLength:], key[:])
		headerLength += 4
		for i, b := range src {
			dst[headerLength+i] = b ^ key[i%4]
		}
	} else {
		copy(dst[headerLength:], src)
	}
	return headerLength + len(src)
}
