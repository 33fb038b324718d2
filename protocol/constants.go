// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants (RFC 6455).

package protocol

// OpCode identifies the frame type carried in the low nibble of byte 0.
type OpCode byte

const (
	OpcodeContinuation OpCode = 0x0
	OpcodeText         OpCode = 0x1
	OpcodeBinary       OpCode = 0x2
	// 0x3-0x7 are reserved for further non-control frames.
	OpcodeClose OpCode = 0x8
	OpcodePing  OpCode = 0x9
	OpcodePong  OpCode = 0xA
	// 0xB-0xF are reserved for further control frames.
)

// IsControl reports whether the opcode designates a control frame.
func (op OpCode) IsControl() bool { return op >= OpcodeClose }

// Role selects the header geometry: servers receive masked frames, so their
// inbound headers carry a 4-byte masking key that client headers lack.
type Role byte

const (
	Server Role = iota
	Client
)

// Header sizes per role. Short covers 7-bit lengths, medium the 16-bit
// extension, long the 64-bit extension.
const (
	shortHeaderServer  = 6
	mediumHeaderServer = 8
	longHeaderServer   = 14

	shortHeaderClient  = 2
	mediumHeaderClient = 4
	longHeaderClient   = 10
)

// headerSizes returns the short/medium/long inbound header sizes for r.
func (r Role) headerSizes() (short, medium, long int) {
	if r == Server {
		return shortHeaderServer, mediumHeaderServer, longHeaderServer
	}
	return shortHeaderClient, mediumHeaderClient, longHeaderClient
}

// Bit masks within the first two header bytes.
const (
	finBit   = 0x80
	rsv1Bit  = 0x40
	rsv23Bit = 0x30
	maskBit  = 0x80
	lenBits  = 0x7F
)

// Frame limit settings.
const (
	MaxControlPayloadLen = 125
	MaxFrameHeaderLen    = longHeaderServer
)

// Consume requires addressable slack around the data region of the buffers
// it scans: ConsumePrePadding writable bytes immediately before the data
// (the spilled remainder of a previous read is prefixed there) and
// ConsumePostPadding bytes after it. pool.BytePool hands out buffers laid
// out this way.
const (
	ConsumePrePadding  = longHeaderServer - 1
	ConsumePostPadding = 4
)

// Close status codes.
const (
	CloseNormalClosure      = 1000
	CloseGoingAway          = 1001
	CloseProtocolError      = 1002
	CloseUnsupportedData    = 1003
	CloseNoStatusRcvd       = 1005
	CloseAbnormalClosure    = 1006
	CloseInvalidPayloadData = 1007
	ClosePolicyViolation    = 1008
	CloseMessageTooBig      = 1009
	CloseMissingExtension   = 1010
	CloseInternalServerErr  = 1011
)
