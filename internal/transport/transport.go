// SPDX-License-Identifier: MIT

// Package transport delivers encoded energy frames to remote light devices.
//
// A Registry owns the current set of connections and replaces it wholesale on
// Reconfigure. Each Conn moves asynchronously from connecting to open or
// closed and reports transitions to StateFunc observers. A Broadcaster sends
// one frame to every open Conn, isolating failures per connection.
package transport

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	// ErrNotOpen is returned when sending on a connection that is not open.
	ErrNotOpen = errors.New("connection not open")
	// ErrBackpressure is returned when a connection still has a frame queued.
	ErrBackpressure = errors.New("connection busy, frame dropped")
)

// State is the lifecycle position of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is a handle to one remote endpoint. Send never blocks.
type Conn interface {
	ID() string
	Addr() string
	State() State
	Send(payload []byte) error
	Close() error
}

// StateFunc observes connection transitions. err is set when a connection
// closes because of a failure. It may be called from any goroutine.
type StateFunc func(c Conn, state State, err error)

// DialFunc starts connecting to addr and returns immediately. The returned
// Conn reports its transitions to notify.
type DialFunc func(addr string, notify StateFunc) Conn

// ParseAddressList splits a comma separated address list, trimming whitespace
// and dropping empty entries. Order and duplicates are preserved.
func ParseAddressList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// connBase carries the identity and state machine shared by all connection
// kinds. Closed is terminal.
type connBase struct {
	id     string
	addr   string
	state  atomic.Int32
	notify StateFunc
	self   Conn
}

func (b *connBase) init(self Conn, addr string, notify StateFunc) {
	b.id = uuid.NewString()
	b.addr = addr
	b.notify = notify
	b.self = self
}

func (b *connBase) ID() string   { return b.id }
func (b *connBase) Addr() string { return b.addr }
func (b *connBase) State() State { return State(b.state.Load()) }

// transition moves to s unless the connection is already closed or in s.
func (b *connBase) transition(s State, err error) bool {
	for {
		cur := b.state.Load()
		if State(cur) == StateClosed || State(cur) == s {
			return false
		}
		if b.state.CompareAndSwap(cur, int32(s)) {
			break
		}
	}
	if b.notify != nil {
		b.notify(b.self, s, err)
	}
	return true
}
