// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReconfigureReplacesSet(t *testing.T) {
	d := &fakeDialer{openOnDial: true}
	r := NewRegistry(d.Dial)
	assert.Empty(t, r.Current())

	r.Reconfigure([]string{"a", "b"})
	first := r.Current()
	require.Len(t, first, 2)
	assert.Equal(t, []string{"a", "b"}, r.Addresses())
	assert.Equal(t, 2, r.OpenCount())

	r.Reconfigure([]string{"c"})
	assert.Equal(t, []string{"c"}, r.Addresses())
	for _, c := range first {
		assert.Equal(t, StateClosed, c.State(), "%s should be closed", c.Addr())
	}
	for _, fc := range d.all()[:2] {
		assert.Equal(t, 1, fc.closes)
	}
}

func TestRegistryEmptyAndClose(t *testing.T) {
	d := &fakeDialer{openOnDial: true}
	r := NewRegistry(d.Dial)

	r.Reconfigure([]string{"a"})
	r.Reconfigure(nil)
	assert.Empty(t, r.Current())
	assert.Equal(t, StateClosed, d.all()[0].State())

	r.Reconfigure([]string{"b"})
	r.Close()
	assert.Empty(t, r.Current())
	assert.Equal(t, StateClosed, d.all()[1].State())
}

func TestRegistryKeepsDuplicates(t *testing.T) {
	d := &fakeDialer{}
	r := NewRegistry(d.Dial)
	r.Reconfigure([]string{"a", "a", "b"})

	assert.Equal(t, []string{"a", "a", "b"}, r.Addresses())
	assert.Equal(t, int32(3), d.dials.Load())
	assert.Equal(t, 0, r.OpenCount(), "fake connections stay connecting until opened")
}

func TestRegistryObservers(t *testing.T) {
	var mu sync.Mutex
	var got []State
	obs := func(_ Conn, s State, _ error) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	d := &fakeDialer{openOnDial: true}
	r := NewRegistry(d.Dial, WithObserver(obs))
	var late int
	r.Subscribe(func(Conn, State, error) { late++ })

	r.Reconfigure([]string{"a"})
	r.Reconfigure(nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateOpen, StateClosed}, got)
	assert.Equal(t, 2, late)
}

func TestRegistryConcurrentReaders(t *testing.T) {
	d := &fakeDialer{openOnDial: true}
	r := NewRegistry(d.Dial)
	r.Reconfigure([]string{"a", "b"})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// A snapshot is always one full configuration.
				if n := len(r.Current()); n != 1 && n != 2 {
					t.Errorf("observed partial set of %d", n)
					return
				}
			}
		}()
	}
	for i := range 50 {
		if i%2 == 0 {
			r.Reconfigure([]string{"c"})
		} else {
			r.Reconfigure([]string{"a", "b"})
		}
	}
	close(stop)
	wg.Wait()
}
