// SPDX-License-Identifier: MIT
package transport

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lightsync/internal/log"
	"lightsync/internal/transport/udp"
)

// Address schemes understood by Dialer besides ws:// and wss://.
const (
	SchemeUDP = "udp://"
	SchemeLog = "log://"
)

// Dialer opens connections by address scheme: udp:// sends raw datagrams,
// log:// logs frames locally, anything else is a WebSocket target.
type Dialer struct {
	Path         string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	WSDialer     *websocket.Dialer
}

// NewDialer returns a Dialer with a gorilla client dialer sized for tiny
// binary frames.
func NewDialer(path string, dialTimeout, writeTimeout time.Duration) *Dialer {
	return &Dialer{
		Path:         path,
		DialTimeout:  dialTimeout,
		WriteTimeout: writeTimeout,
		WSDialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Dial implements DialFunc.
func (d *Dialer) Dial(addr string, notify StateFunc) Conn {
	switch {
	case strings.HasPrefix(addr, SchemeUDP):
		return newUDPConn(addr, notify)
	case strings.HasPrefix(addr, SchemeLog):
		return newLogConn(addr, notify)
	default:
		return newWSConn(addr, d, notify)
	}
}

// udpConn wraps a udp.Sender. UDP has no handshake, so the connection is open
// as soon as the target resolves.
type udpConn struct {
	connBase
	sender atomic.Pointer[udp.Sender]
}

func newUDPConn(addr string, notify StateFunc) *udpConn {
	c := &udpConn{}
	c.init(c, addr, notify)
	go func() {
		s, err := udp.NewSender(strings.TrimPrefix(addr, SchemeUDP))
		if err != nil {
			log.Warnf("Transport: %v", err)
			c.transition(StateClosed, err)
			return
		}
		c.sender.Store(s)
		if !c.transition(StateOpen, nil) {
			s.Close()
		}
	}()
	return c
}

func (c *udpConn) Send(payload []byte) error {
	s := c.sender.Load()
	if s == nil || c.State() != StateOpen {
		return ErrNotOpen
	}
	return s.Send(payload)
}

func (c *udpConn) Close() error {
	c.transition(StateClosed, nil)
	if s := c.sender.Load(); s != nil {
		return s.Close()
	}
	return nil
}

// logConn writes frames to the debug log. Useful without hardware.
type logConn struct {
	connBase
	frames atomic.Uint64
}

func newLogConn(addr string, notify StateFunc) *logConn {
	c := &logConn{}
	c.init(c, addr, notify)
	log.Infof("Transport: Using logging connection %s", addr)
	go c.transition(StateOpen, nil)
	return c
}

func (c *logConn) Send(payload []byte) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}
	n := c.frames.Add(1)
	log.Debugf("Transport: %s frame %d: %v", c.addr, n, payload)
	return nil
}

func (c *logConn) Close() error {
	if c.transition(StateClosed, nil) {
		log.Debugf("Transport: %s closed after %d frames", c.addr, c.frames.Load())
	}
	return nil
}
