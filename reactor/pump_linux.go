//go:build linux

// File: reactor/pump_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pump drives one established connection: on readiness it reads into a
// pooled padded buffer, feeds the incremental parser, flushes the session's
// reply frames, and tears the connection down on close or TCP FIN.

package reactor

import (
	"log"

	"golang.org/x/sys/unix"

	"github.com/momentics/wsproto/api"
	"github.com/momentics/wsproto/pool"
	"github.com/momentics/wsproto/protocol"
	"github.com/momentics/wsproto/session"
)

// Pump couples a descriptor with its parser state and session.
type Pump struct {
	fd      uintptr
	role    protocol.Role
	state   *protocol.State
	sess    *session.Session
	pool    *pool.BytePool
	reactor Reactor
	handler func(*Pump, *session.Message)
}

// NewPump registers fd with r and returns the running pump. The connection
// must already be upgraded; role selects the parser's header geometry.
// handler, if non-nil, is called for each completed message; otherwise
// messages accumulate on Session for manual draining.
func NewPump(r Reactor, fd uintptr, role protocol.Role, opts session.Options,
	p *pool.BytePool, handler func(*Pump, *session.Message)) (*Pump, error) {
	pump := &Pump{
		fd:      fd,
		role:    role,
		state:   protocol.NewState(role),
		sess:    session.New(role, opts),
		pool:    p,
		reactor: r,
		handler: handler,
	}
	if err := r.Register(fd, EventRead, pump.handle); err != nil {
		return nil, err
	}
	return pump, nil
}

// Session exposes the pump's session for draining received messages.
func (p *Pump) Session() *session.Session { return p.sess }

// Send writes one complete frame carrying payload to the peer.
func (p *Pump) Send(op protocol.OpCode, payload []byte) error {
	frame := make([]byte, protocol.FrameSize(len(payload), p.role))
	n := protocol.FormatMessage(frame, payload, op, uint64(len(payload)), false, true, p.role)
	return p.write(frame[:n])
}

// handle is the FDCallback for the pump's descriptor.
func (p *Pump) handle(fd uintptr, events FDEventType) {
	if events&EventRead == 0 {
		// EPOLLHUP/EPOLLERR without readable data: the peer is gone
		// without a close frame.
		if events&EventError != 0 {
			if !p.sess.Closed() {
				p.sess.ForceClose(api.ReasonTCPFin)
			}
			p.teardown()
		}
		return
	}

	raw := p.pool.Get()
	defer p.pool.Put(raw)

	n, err := unix.Read(int(fd), pool.Data(raw))
	if err == unix.EAGAIN {
		return
	}
	if err != nil || n == 0 {
		// Peer went away without a close frame.
		if !p.sess.Closed() {
			p.sess.ForceClose(api.ReasonTCPFin)
		}
		p.teardown()
		return
	}

	protocol.Consume(raw, n, p.state, p.sess)
	if p.handler != nil {
		for {
			msg, ok := p.sess.NextMessage()
			if !ok {
				break
			}
			p.handler(p, msg)
		}
	}
	p.flush()
	if p.sess.Closed() {
		p.teardown()
	}
}

// flush writes the session's queued reply frames.
func (p *Pump) flush() {
	for {
		frame, ok := p.sess.NextOutbound()
		if !ok {
			return
		}
		if err := p.write(frame); err != nil {
			return
		}
	}
}

// write pushes buf to the socket. When the send buffer is full it parks on
// poll(2) for writability instead of spinning.
func (p *Pump) write(buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(int(p.fd), buf)
		if err != nil {
			if err == unix.EAGAIN {
				pfd := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLOUT}}
				if _, perr := unix.Poll(pfd, -1); perr != nil && perr != unix.EINTR {
					return perr
				}
				continue
			}
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// teardown unregisters and closes the descriptor.
func (p *Pump) teardown() {
	if err := p.reactor.Unregister(p.fd); err != nil {
		log.Printf("pump: unregister fd %d: %v", p.fd, err)
	}
	_ = unix.Close(int(p.fd))
	if reason := p.sess.CloseReason(); reason != "" {
		log.Printf("pump: fd %d closed: %s", p.fd, reason)
	}
}
