// File: protocol/mask.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// XOR masking engine. The block path works 8 bytes at a time and is the fast
// path for whole receive buffers; the scalar path is the bounds-trivial
// fallback for arbitrary destinations. Masking is its own inverse, so the
// same routines serve both mask and unmask.

package protocol

import "encoding/binary"

// zeroKey is the all-zero masking key, a legal value the peer may send.
// XOR with zero is the identity, so unmasking can be skipped outright.
var zeroKey [4]byte

// keyWord packs key twice into one 64-bit word, little-endian, so that an
// LE load/xor/store round trip applies key[i%4] to byte i.
func keyWord(key [4]byte) uint64 {
	var pattern [8]byte
	copy(pattern[:], key[:])
	copy(pattern[4:], key[:])
	return binary.LittleEndian.Uint64(pattern[:])
}

// ApplyMaskStreaming XORs data in place with key[i%4], processing full
// 8-byte blocks and a scalar tail. Byte positions are counted from the start
// of data; callers resuming mid-payload must rotate the key first.
func ApplyMaskStreaming(data []byte, key [4]byte) {
	if key == zeroKey {
		return
	}
	kw := keyWord(key)
	n := len(data) &^ 7
	for i := 0; i < n; i += 8 {
		binary.LittleEndian.PutUint64(data[i:], binary.LittleEndian.Uint64(data[i:])^kw)
	}
	for i := n; i < len(data); i++ {
		data[i] ^= key[i%4]
	}
}

// MaskInPlace XORs data in place with key[i%4], one byte at a time.
func MaskInPlace(data []byte, key [4]byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}

// RotateMask cyclically rotates key forward by offset positions, aligning the
// mask phase with a payload that resumes after a partial read. The caller
// passes offset = 4 - (bytesConsumed % 4); offset 4 is the identity.
func RotateMask(offset int, key *[4]byte) {
	orig := *key
	key[(0+offset)%4] = orig[0]
	key[(1+offset)%4] = orig[1]
	key[(2+offset)%4] = orig[2]
	key[(3+offset)%4] = orig[3]
}
