// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"sync/atomic"

	"lightsync/internal/log"
)

// Registry holds the live set of connections. Readers take a snapshot with
// Current and never observe a half-replaced set.
type Registry struct {
	dial DialFunc

	mu    sync.Mutex // Serializes Reconfigure and Close
	conns atomic.Pointer[[]Conn]

	obsMu     sync.RWMutex
	observers []StateFunc
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithObserver registers fn for every connection transition.
func WithObserver(fn StateFunc) RegistryOption {
	return func(r *Registry) { r.observers = append(r.observers, fn) }
}

// NewRegistry returns an empty registry that opens connections with dial.
func NewRegistry(dial DialFunc, opts ...RegistryOption) *Registry {
	r := &Registry{dial: dial}
	for _, opt := range opts {
		opt(r)
	}
	empty := []Conn{}
	r.conns.Store(&empty)
	return r
}

// Subscribe adds an observer after construction.
func (r *Registry) Subscribe(fn StateFunc) {
	r.obsMu.Lock()
	r.observers = append(r.observers, fn)
	r.obsMu.Unlock()
}

func (r *Registry) dispatch(c Conn, s State, err error) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, fn := range r.observers {
		fn(c, s, err)
	}
}

// Reconfigure closes every current connection, then starts one connection per
// address in order. Duplicate addresses each get their own connection. It
// returns without waiting for any handshake.
func (r *Registry) Reconfigure(addresses []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.conns.Load()
	for _, c := range old {
		if err := c.Close(); err != nil {
			log.Debugf("Transport: Closing %s: %v", c.Addr(), err)
		}
	}

	next := make([]Conn, 0, len(addresses))
	for _, addr := range addresses {
		next = append(next, r.dial(addr, r.dispatch))
	}
	r.conns.Store(&next)
	log.Infof("Transport: Reconfigured endpoints %v (closed %d)", addresses, len(old))
}

// Current returns the connections of the latest Reconfigure. The slice must
// not be modified.
func (r *Registry) Current() []Conn {
	return *r.conns.Load()
}

// Addresses returns the configured addresses in order.
func (r *Registry) Addresses() []string {
	conns := r.Current()
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.Addr()
	}
	return out
}

// OpenCount reports how many connections are currently open.
func (r *Registry) OpenCount() int {
	n := 0
	for _, c := range r.Current() {
		if c.State() == StateOpen {
			n++
		}
	}
	return n
}

// Close closes every connection and leaves the registry empty.
func (r *Registry) Close() {
	r.Reconfigure(nil)
}
