// File: protocol/endian.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Big-endian scalar codec for the 16/64-bit extended length fields. The wire
// format is big-endian regardless of host order; encoding/binary performs the
// conditional byte swap portably.

package protocol

import "encoding/binary"

// readUint16 decodes a big-endian 16-bit length field.
func readUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

// readUint64 decodes a big-endian 64-bit length field.
func readUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// putUint16 encodes a big-endian 16-bit length field.
func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

// putUint64 encodes a big-endian 64-bit length field.
func putUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
