// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lightsync/internal/analysis"
	"lightsync/internal/transport"
)

type stubConn struct {
	addr  string
	state transport.State
}

func (c stubConn) ID() string { return c.addr }
func (c stubConn) Addr() string { return c.addr }
func (c stubConn) State() transport.State { return c.state }
func (c stubConn) Send([]byte) error { return nil }
func (c stubConn) Close() error { return nil }

type stubEndpoints struct {
	mu       sync.Mutex
	conns    []transport.Conn
	reconfig [][]string
}

func (s *stubEndpoints) Reconfigure(addresses []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconfig = append(s.reconfig, addresses)
	s.conns = nil
	for _, a := range addresses {
		s.conns = append(s.conns, stubConn{addr: a})
	}
}

func (s *stubEndpoints) Current() []transport.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func TestBar(t *testing.T) {
	tests := []struct {
		percent float64
		width   int
		filled  int
	}{
		{0, 10, 0},
		{0.1, 10, 1},
		{50, 10, 5},
		{100, 10, 10},
		{250, 10, 10},
	}
	for _, tt := range tests {
		got := bar(tt.percent, tt.width)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("bar(%v, %d) filled %d cells, want %d", tt.percent, tt.width, n, tt.filled)
		}
		if len([]rune(got)) != tt.width {
			t.Errorf("bar(%v, %d) is %d cells wide", tt.percent, tt.width, len([]rune(got)))
		}
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine(nil); !strings.Contains(got, "no endpoints") {
		t.Errorf("empty status = %q", got)
	}
	got := statusLine([]connView{
		{addr: "10.0.0.5", state: transport.StateOpen},
		{addr: "10.0.0.6", state: transport.StateConnecting},
	})
	for _, want := range []string{"10.0.0.5 [open]", "10.0.0.6 [connecting]"} {
		if !strings.Contains(got, want) {
			t.Errorf("status %q missing %q", got, want)
		}
	}
}

func TestMeterRefreshShowsLatestFrame(t *testing.T) {
	eps := &stubEndpoints{conns: []transport.Conn{stubConn{addr: "dev", state: transport.StateOpen}}}
	meter := NewMeter(eps)
	model := newMeterModel(meter)

	energy := analysis.EnergyTriple{Bass: 0.5, Mid: 0.25, Treble: 1}
	meter.Render(energy, analysis.Widths(energy))

	next, cmd := model.Update(refreshMsg(time.Now()))
	if cmd == nil {
		t.Error("refresh should schedule the next refresh")
	}
	m := next.(meterModel)
	if m.frame.energy != energy {
		t.Errorf("frame = %+v, want %+v", m.frame.energy, energy)
	}

	view := m.View()
	for _, want := range []string{"bass", "mid", "treble", " 50%", "100%", "dev [open]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMeterEnterReconfigures(t *testing.T) {
	eps := &stubEndpoints{}
	model := newMeterModel(NewMeter(eps))
	model.input.SetValue(" 10.0.0.5, 10.0.0.6 ,")

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should return a reconfigure command")
	}
	if v := next.(meterModel).input.Value(); v != "" {
		t.Errorf("input not cleared: %q", v)
	}

	msg := cmd()
	done, ok := msg.(reconfiguredMsg)
	if !ok {
		t.Fatalf("command returned %T", msg)
	}
	if len(eps.reconfig) != 1 || strings.Join(eps.reconfig[0], ",") != "10.0.0.5,10.0.0.6" {
		t.Errorf("Reconfigure calls = %v", eps.reconfig)
	}

	next, _ = next.(meterModel).Update(done)
	if !strings.Contains(next.(meterModel).notice, "2 endpoint") {
		t.Errorf("notice = %q", next.(meterModel).notice)
	}
}

func TestMeterQuit(t *testing.T) {
	model := newMeterModel(NewMeter(&stubEndpoints{}))
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc should produce tea.QuitMsg")
	}
}

func TestHeadlessCountsFrames(t *testing.T) {
	h := &Headless{Every: 30}
	for range 90 {
		h.Render(analysis.EnergyTriple{}, [3]float64{0.1, 0.1, 0.1})
	}
	if h.Frames() != 90 {
		t.Errorf("Frames = %d", h.Frames())
	}
}
