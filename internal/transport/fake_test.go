// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"sync/atomic"
)

// fakeConn is an in-memory Conn driven by the test.
type fakeConn struct {
	connBase
	sendErr error

	mu     sync.Mutex
	sent   [][]byte
	closes int
}

func newFakeConn(addr string, notify StateFunc) *fakeConn {
	c := &fakeConn{}
	c.init(c, addr, notify)
	return c
}

func (c *fakeConn) open() { c.transition(StateOpen, nil) }

func (c *fakeConn) Send(p []byte) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), p...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.transition(StateClosed, nil)
	return nil
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// fakeDialer records every connection it hands out. Connections open
// immediately unless openOnDial is false.
type fakeDialer struct {
	mu         sync.Mutex
	conns      []*fakeConn
	openOnDial bool
	dials      atomic.Int32
}

func (d *fakeDialer) Dial(addr string, notify StateFunc) Conn {
	c := newFakeConn(addr, notify)
	d.dials.Add(1)
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	if d.openOnDial {
		c.open()
	}
	return c
}

func (d *fakeDialer) all() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}
