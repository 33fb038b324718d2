// File: protocol/close.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Close-frame payload codec: optional big-endian status code followed by a
// UTF-8 reason.

package protocol

import "github.com/momentics/wsproto/api"

// CloseFrame is a view of a parsed close payload. Message aliases the
// caller's buffer and is only valid until that buffer is reused.
type CloseFrame struct {
	Code    uint16
	Message []byte
}

// invalidCode reports whether a received close status code is forbidden on
// the wire: outside 1000-4999, in the unassigned 1012-2999 range, or one of
// the reserved codes 1004/1005/1006. 3000-3999 is the registered-use range
// and passes through.
func invalidCode(code uint16) bool {
	return code < 1000 || code > 4999 || (code > 1011 && code < 3000) ||
		(code >= 1004 && code <= 1006)
}

// ParseClosePayload decodes src as a close payload. An empty or 1-byte
// payload yields {1005, nil} ("no status code present"). A forbidden status
// code, or a reason that is not valid UTF-8 (unless skipUTF8Validation),
// yields {1006, "invalid close payload"} instead of the parsed values.
func ParseClosePayload(src []byte, skipUTF8Validation bool) CloseFrame {
	cf := CloseFrame{Code: CloseNoStatusRcvd}
	if len(src) >= 2 {
		cf = CloseFrame{Code: readUint16(src), Message: src[2:]}
		if invalidCode(cf.Code) || (!skipUTF8Validation && !ValidUTF8(cf.Message)) {
			return CloseFrame{Code: CloseAbnormalClosure, Message: []byte(api.ReasonInvalidClosePayload)}
		}
	}
	return cf
}

// FormatClosePayload writes code and message into dst and returns the number
// of bytes written. Codes 0, 1005 and 1006 must never appear on the wire;
// for those nothing is written and 0 is returned.
func FormatClosePayload(dst []byte, code uint16, message []byte) int {
	if code == 0 || code == CloseNoStatusRcvd || code == CloseAbnormalClosure {
		return 0
	}
	putUint16(dst, code)
	copy(dst[2:], message)
	return len(message) + 2
}
