// File: protocol/parser_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"testing"

	"github.com/momentics/wsproto/api"
)

// fragment is one recorded HandleFragment delivery.
type fragment struct {
	data      []byte
	remaining uint32
	opcode    OpCode
	fin       bool
}

// recorder is a FragmentConsumer double that records everything.
type recorder struct {
	frags       []fragment
	closeReason string
	refuseAbove uint64 // 0 means accept everything
	compression bool
	stopAfter   int // abort after this many fragments; 0 means never
}

func (r *recorder) HandleFragment(data []byte, remaining uint32, opcode byte, fin bool) bool {
	r.frags = append(r.frags, fragment{
		data:      append([]byte(nil), data...),
		remaining: remaining,
		opcode:    OpCode(opcode),
		fin:       fin,
	})
	return r.stopAfter > 0 && len(r.frags) >= r.stopAfter
}

func (r *recorder) ForceClose(reason string) { r.closeReason = reason }

func (r *recorder) RefusePayloadLength(length uint64) bool {
	return r.refuseAbove > 0 && length > r.refuseAbove
}

func (r *recorder) SetCompressed() bool { return r.compression }

// messagePayload concatenates the recorded chunks of message index i, where
// messages are separated by fin chunks with remaining 0.
func (r *recorder) messages() [][]byte {
	var msgs [][]byte
	var cur []byte
	for _, f := range r.frags {
		cur = append(cur, f.data...)
		if f.fin && f.remaining == 0 {
			msgs = append(msgs, cur)
			cur = nil
		}
	}
	return msgs
}

// feed runs Consume over chunks, giving each chunk the padded layout.
func feed(st *State, c api.FragmentConsumer, chunks ...[]byte) {
	for _, ch := range chunks {
		raw := make([]byte, ConsumePrePadding+len(ch)+ConsumePostPadding)
		copy(raw[ConsumePrePadding:], ch)
		Consume(raw, len(ch), st, c)
	}
}

// clientFrame builds a masked frame as a client would send it.
func clientFrame(t *testing.T, op OpCode, payload []byte, fin bool) []byte {
	t.Helper()
	dst := make([]byte, FrameSize(len(payload), Client))
	n := FormatMessage(dst, payload, op, uint64(len(payload)), false, fin, Client)
	if n != len(dst) {
		t.Fatalf("FormatMessage wrote %d bytes, want %d", n, len(dst))
	}
	return dst
}

func TestConsumeSingleMaskedTextFrame(t *testing.T) {
	payload := []byte("Hello, WebSocket")
	rec := &recorder{}
	feed(NewState(Server), rec, clientFrame(t, OpcodeText, payload, true))

	if rec.closeReason != "" {
		t.Fatalf("unexpected close: %q", rec.closeReason)
	}
	if len(rec.frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(rec.frags))
	}
	f := rec.frags[0]
	if !bytes.Equal(f.data, payload) || f.opcode != OpcodeText || !f.fin || f.remaining != 0 {
		t.Errorf("fragment mismatch: %+v", f)
	}
}

func TestConsumeBackToBackFrames(t *testing.T) {
	wire := append(clientFrame(t, OpcodeText, []byte("first"), true),
		clientFrame(t, OpcodeBinary, []byte("second"), true)...)
	rec := &recorder{}
	feed(NewState(Server), rec, wire)

	if len(rec.frags) != 2 {
		t.Fatalf("got %d fragments, want 2", len(rec.frags))
	}
	if rec.frags[0].opcode != OpcodeText || !bytes.Equal(rec.frags[0].data, []byte("first")) {
		t.Errorf("first delivery wrong: %+v", rec.frags[0])
	}
	if rec.frags[1].opcode != OpcodeBinary || !bytes.Equal(rec.frags[1].data, []byte("second")) {
		t.Errorf("second delivery wrong: %+v", rec.frags[1])
	}
}

// Chunking a valid stream at any boundary must reconstruct the same payload
// bytes and opcodes as one whole-buffer call.
func TestConsumeChunkingInvariance(t *testing.T) {
	long := bytes.Repeat([]byte("0123456789"), 40) // 400 bytes, 16-bit length
	wire := append(clientFrame(t, OpcodeText, []byte("short one"), true),
		clientFrame(t, OpcodeBinary, long, true)...)

	whole := &recorder{}
	feed(NewState(Server), whole, wire)
	if whole.closeReason != "" {
		t.Fatalf("whole-buffer parse closed: %q", whole.closeReason)
	}
	want := whole.messages()
	if len(want) != 2 {
		t.Fatalf("whole-buffer parse found %d messages, want 2", len(want))
	}

	for size := 1; size <= len(wire); size++ {
		rec := &recorder{}
		st := NewState(Server)
		for off := 0; off < len(wire); off += size {
			stop := off + size
			if stop > len(wire) {
				stop = len(wire)
			}
			feed(st, rec, wire[off:stop])
		}
		if rec.closeReason != "" {
			t.Fatalf("chunk size %d: closed: %q", size, rec.closeReason)
		}
		got := rec.messages()
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: %d messages, want %d", size, len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Fatalf("chunk size %d: message %d mismatch", size, i)
			}
		}
	}
}

func TestConsumeServerToClientRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 300)
	dst := make([]byte, FrameSize(len(payload), Server))
	n := FormatMessage(dst, payload, OpcodeBinary, uint64(len(payload)), false, true, Server)

	rec := &recorder{}
	feed(NewState(Client), rec, dst[:n])
	if len(rec.frags) != 1 || !bytes.Equal(rec.frags[0].data, payload) {
		t.Fatalf("client-side parse failed: %d fragments", len(rec.frags))
	}
	if rec.frags[0].opcode != OpcodeBinary || !rec.frags[0].fin {
		t.Errorf("fragment metadata mismatch: %+v", rec.frags[0])
	}
}

func TestConsumeFragmentedMessageWithInterleavedPing(t *testing.T) {
	wire := clientFrame(t, OpcodeText, []byte("hel"), false)
	wire = append(wire, clientFrame(t, OpcodePing, []byte("ping!"), true)...)
	wire = append(wire, clientFrame(t, OpcodeContinuation, []byte("lo"), true)...)

	rec := &recorder{}
	feed(NewState(Server), rec, wire)
	if rec.closeReason != "" {
		t.Fatalf("unexpected close: %q", rec.closeReason)
	}
	if len(rec.frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(rec.frags))
	}
	if rec.frags[0].opcode != OpcodeText || rec.frags[0].fin {
		t.Errorf("first fragment: %+v", rec.frags[0])
	}
	if rec.frags[1].opcode != OpcodePing || !bytes.Equal(rec.frags[1].data, []byte("ping!")) {
		t.Errorf("ping fragment: %+v", rec.frags[1])
	}
	if rec.frags[2].opcode != OpcodeText || !bytes.Equal(rec.frags[2].data, []byte("lo")) || !rec.frags[2].fin {
		t.Errorf("continuation fragment: %+v", rec.frags[2])
	}
}

func TestConsumeRejectsFragmentedControlFrame(t *testing.T) {
	frame := clientFrame(t, OpcodePing, []byte("p"), true)
	frame[0] &^= 0x80 // clear FIN on a control frame

	rec := &recorder{}
	feed(NewState(Server), rec, frame)
	if rec.closeReason != api.ReasonProtocolError {
		t.Fatalf("close reason = %q, want protocol error", rec.closeReason)
	}
	if len(rec.frags) != 0 {
		t.Errorf("payload was delivered before rejection")
	}
}

func TestConsumeRejectsOversizedControlFrame(t *testing.T) {
	// Ping declaring a 16-bit extended length.
	wire := []byte{0x89, 0x80 | 126, 0x00, 0xFA, 0, 0, 0, 0}
	rec := &recorder{}
	feed(NewState(Server), rec, wire)
	if rec.closeReason != api.ReasonProtocolError {
		t.Fatalf("close reason = %q, want protocol error", rec.closeReason)
	}
}

func TestConsumeRejectsReservedBitsAndOpcodes(t *testing.T) {
	cases := map[string][]byte{
		"rsv2":             {0x81 | 0x20, 0x80, 0, 0, 0, 0},
		"rsv3":             {0x81 | 0x10, 0x80, 0, 0, 0, 0},
		"rsv1 disallowed":  {0x81 | 0x40, 0x80, 0, 0, 0, 0},
		"reserved data 3":  {0x83, 0x80, 0, 0, 0, 0},
		"reserved data 7":  {0x87, 0x80, 0, 0, 0, 0},
		"reserved ctrl 11": {0x8B, 0x80, 0, 0, 0, 0},
		"reserved ctrl 15": {0x8F, 0x80, 0, 0, 0, 0},
	}
	for name, wire := range cases {
		rec := &recorder{}
		feed(NewState(Server), rec, wire)
		if rec.closeReason != api.ReasonProtocolError {
			t.Errorf("%s: close reason = %q, want protocol error", name, rec.closeReason)
		}
	}
}

func TestConsumeAllowsRSV1WhenCompressionAccepted(t *testing.T) {
	frame := clientFrame(t, OpcodeText, []byte{0xAB, 0xCD}, true)
	frame[0] |= 0x40
	rec := &recorder{compression: true}
	feed(NewState(Server), rec, frame)
	if rec.closeReason != "" {
		t.Fatalf("unexpected close: %q", rec.closeReason)
	}
	if len(rec.frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(rec.frags))
	}
}

func TestConsumeRejectsUnexpectedContinuation(t *testing.T) {
	rec := &recorder{}
	feed(NewState(Server), rec, clientFrame(t, OpcodeContinuation, []byte("stray"), true))
	if rec.closeReason != api.ReasonProtocolError {
		t.Fatalf("close reason = %q, want protocol error", rec.closeReason)
	}
}

func TestConsumeRejectsDataFrameMidMessage(t *testing.T) {
	wire := clientFrame(t, OpcodeText, []byte("unfinished"), false)
	wire = append(wire, clientFrame(t, OpcodeBinary, []byte("intruder"), true)...)
	rec := &recorder{}
	feed(NewState(Server), rec, wire)
	if rec.closeReason != api.ReasonProtocolError {
		t.Fatalf("close reason = %q, want protocol error", rec.closeReason)
	}
	if len(rec.frags) != 1 {
		t.Errorf("got %d fragments, want only the first", len(rec.frags))
	}
}

func TestConsumeRefusedPayloadLength(t *testing.T) {
	rec := &recorder{refuseAbove: 10}
	feed(NewState(Server), rec, clientFrame(t, OpcodeBinary, bytes.Repeat([]byte("a"), 11), true))
	if rec.closeReason != api.ReasonTooBigMessage {
		t.Fatalf("close reason = %q, want too big message", rec.closeReason)
	}
	if len(rec.frags) != 0 {
		t.Errorf("payload was delivered despite refusal")
	}
}

func TestConsumeZeroMaskKey(t *testing.T) {
	payload := []byte("plain")
	wire := []byte{0x82, 0x80 | byte(len(payload)), 0, 0, 0, 0}
	wire = append(wire, payload...)

	rec := &recorder{}
	feed(NewState(Server), rec, wire)
	if len(rec.frags) != 1 || !bytes.Equal(rec.frags[0].data, payload) {
		t.Fatalf("zero-mask frame not delivered verbatim: %+v", rec.frags)
	}
}

func TestConsumePartialFrameDeliversProgressively(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 16) // 128 bytes
	frame := clientFrame(t, OpcodeBinary, payload, true)

	// Split inside the payload.
	cut := 20
	rec := &recorder{}
	st := NewState(Server)
	feed(st, rec, frame[:cut], frame[cut:])

	if rec.closeReason != "" {
		t.Fatalf("unexpected close: %q", rec.closeReason)
	}
	if len(rec.frags) != 2 {
		t.Fatalf("got %d fragments, want 2", len(rec.frags))
	}
	if rec.frags[0].remaining == 0 {
		t.Errorf("first chunk should report outstanding bytes")
	}
	if rec.frags[1].remaining != 0 {
		t.Errorf("second chunk should complete the frame")
	}
	got := append(append([]byte(nil), rec.frags[0].data...), rec.frags[1].data...)
	if !bytes.Equal(got, payload) {
		t.Errorf("reassembled payload mismatch")
	}
}

func TestConsumeConsumerAbortStopsBuffer(t *testing.T) {
	wire := append(clientFrame(t, OpcodeText, []byte("one"), true),
		clientFrame(t, OpcodeText, []byte("two"), true)...)
	rec := &recorder{stopAfter: 1}
	feed(NewState(Server), rec, wire)
	if len(rec.frags) != 1 {
		t.Fatalf("got %d fragments after abort, want 1", len(rec.frags))
	}
}

func TestConsume64BitLengthFrame(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 70000)
	frame := clientFrame(t, OpcodeBinary, payload, true)
	if frame[1]&lenBits != 127 {
		t.Fatalf("expected 64-bit length encoding")
	}
	rec := &recorder{}
	feed(NewState(Server), rec, frame)
	if len(rec.frags) != 1 || !bytes.Equal(rec.frags[0].data, payload) {
		t.Fatalf("64-bit length frame not delivered intact")
	}
}

// A declared 64-bit length near the maximum must be refused cleanly even
// when the consumer's size policy accepts everything; the header arithmetic
// must not wrap into a bogus in-buffer payload.
func TestConsumeRefusesUnrepresentableLength(t *testing.T) {
	wire := []byte{0x82, 0xFF}
	var length [8]byte
	putUint64(length[:], 0xFFFFFFFFFFFFFFF6)
	wire = append(wire, length[:]...)
	wire = append(wire, 0, 0, 0, 0) // zero masking key

	rec := &recorder{}
	feed(NewState(Server), rec, wire)

	if rec.closeReason != api.ReasonTooBigMessage {
		t.Fatalf("close reason %q, want %q", rec.closeReason, api.ReasonTooBigMessage)
	}
	if len(rec.frags) != 0 {
		t.Errorf("payload delivered from refused frame: %d fragments", len(rec.frags))
	}
}

// A 4 GiB declared length whose remainder still fits the 32-bit counter is
// consumed progressively.
func TestConsumeFourGigabyteFrameStartsProgressively(t *testing.T) {
	wire := []byte{0x82, 0xFF}
	var length [8]byte
	putUint64(length[:], 1<<32)
	wire = append(wire, length[:]...)
	wire = append(wire, 0, 0, 0, 0) // zero masking key
	wire = append(wire, "begin"...)

	rec := &recorder{}
	feed(NewState(Server), rec, wire)

	if rec.closeReason != "" {
		t.Fatalf("unexpected close: %q", rec.closeReason)
	}
	if len(rec.frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(rec.frags))
	}
	f := rec.frags[0]
	if !bytes.Equal(f.data, []byte("begin")) || f.remaining != uint32(1<<32-5) {
		t.Errorf("first chunk mismatch: %+v", f)
	}
}
