// File: protocol/utf8.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RFC 3629 UTF-8 validation for text payloads and close reasons. Based on
// utf8_check.c by Markus Kuhn, with a 16-byte all-ASCII fast path for
// predominantly 7-bit content.

package protocol

import "encoding/binary"

const highBits = 0x8080808080808080

// ValidUTF8 reports whether b is well-formed UTF-8. Overlong encodings,
// surrogate code points (U+D800-U+DFFF) and code points beyond U+10FFFF are
// rejected. It never panics on truncated input.
func ValidUTF8(b []byte) bool {
	i, n := 0, len(b)
	for i < n {
		// 16 clear high bits at once.
		if i+16 <= n {
			if (binary.LittleEndian.Uint64(b[i:])|binary.LittleEndian.Uint64(b[i+8:]))&highBits == 0 {
				i += 16
				continue
			}
		}
		c := b[i]
		if c < 0x80 {
			i++
			continue
		}
		switch {
		case c&0xE0 == 0xC0:
			// 2-byte sequence; 0xC0/0xC1 are overlong.
			if i+1 >= n || b[i+1]&0xC0 != 0x80 || c&0xFE == 0xC0 {
				return false
			}
			i += 2
		case c&0xF0 == 0xE0:
			// 3-byte sequence; reject overlong E0 80-9F and surrogates ED A0-BF.
			if i+2 >= n || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 ||
				(c == 0xE0 && b[i+1]&0xE0 == 0x80) || (c == 0xED && b[i+1]&0xE0 == 0xA0) {
				return false
			}
			i += 3
		case c&0xF8 == 0xF0:
			// 4-byte sequence; reject overlong F0 80-8F and anything past U+10FFFF.
			if i+3 >= n || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 || b[i+3]&0xC0 != 0x80 ||
				(c == 0xF0 && b[i+1]&0xF0 == 0x80) || (c == 0xF4 && b[i+1] > 0x8F) || c > 0xF4 {
				return false
			}
			i += 4
		default:
			// Bare continuation byte or invalid lead.
			return false
		}
	}
	return true
}

// IncompleteUTF8Tail returns the length of a trailing incomplete multi-byte
// sequence of b, or 0 if b ends on a sequence boundary. Callers that receive
// text in chunks use it to hold back the unfinished tail and validate it
// together with the next chunk.
func IncompleteUTF8Tail(b []byte) int {
	n := len(b)
	// A lead byte sits at most 3 positions before the end.
	for back := 1; back <= 3 && back <= n; back++ {
		c := b[n-back]
		if c&0xC0 == 0x80 {
			continue // continuation byte, keep looking for the lead
		}
		var want int
		switch {
		case c < 0x80:
			want = 1
		case c&0xE0 == 0xC0:
			want = 2
		case c&0xF0 == 0xE0:
			want = 3
		case c&0xF8 == 0xF0:
			want = 4
		default:
			return 0 // invalid lead, nothing to wait for
		}
		if want > back {
			return back
		}
		return 0
	}
	return 0
}
