// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
//
// Pooled receive buffers laid out for protocol.Consume: a writable
// pre-padding region for the spilled header tail, the data region the
// transport reads into, and post-padding slack for the unmask fast path.

package pool

import (
	"sync"

	"github.com/momentics/wsproto/protocol"
)

// BytePool hands out equally sized padded receive buffers.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a pool of buffers with a data region of size bytes.
func NewBytePool(size int) *BytePool {
	p := &BytePool{size: size}
	p.pool.New = func() any {
		return make([]byte, protocol.ConsumePrePadding+size+protocol.ConsumePostPadding)
	}
	return p
}

// Get returns a raw padded buffer. Read transport data into Data(raw) and
// pass raw itself to protocol.Consume.
func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a buffer obtained from Get to the pool.
func (p *BytePool) Put(buf []byte) {
	if cap(buf) < protocol.ConsumePrePadding+p.size+protocol.ConsumePostPadding {
		return
	}
	p.pool.Put(buf[:cap(buf)])
}

// DataCapacity returns the size of the data region of pooled buffers.
func (p *BytePool) DataCapacity() int { return p.size }

// Data returns the transport-facing data region of a raw padded buffer.
func Data(raw []byte) []byte {
	return raw[protocol.ConsumePrePadding : len(raw)-protocol.ConsumePostPadding]
}
