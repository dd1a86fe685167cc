// SPDX-License-Identifier: MIT

// Package tui renders the live meter and the device picker in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lightsync/internal/analysis"
	"lightsync/internal/log"
	"lightsync/internal/transport"
)

const (
	refreshInterval = time.Second / 30
	labelWidth      = 8
	minBarWidth     = 10
)

var (
	bassStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	midStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	trebleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0000FF"))

	statusStyles = map[transport.State]lipgloss.Style{
		transport.StateConnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000")),
		transport.StateOpen:       lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true),
		transport.StateClosed:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}

	quitKeys  = key.NewBinding(key.WithKeys("ctrl+c", "esc"))
	applyKeys = key.NewBinding(key.WithKeys("enter"))
)

// Endpoints is the registry surface the meter drives.
type Endpoints interface {
	Reconfigure(addresses []string)
	Current() []transport.Conn
}

type frame struct {
	energy analysis.EnergyTriple
	widths [3]float64
}

// Meter shows the three band bars, the endpoint status line and an address
// input. Render is safe to call from the frame loop while the program runs.
type Meter struct {
	endpoints Endpoints
	latest    atomic.Pointer[frame]
}

// NewMeter creates a meter bound to endpoints.
func NewMeter(endpoints Endpoints) *Meter {
	m := &Meter{endpoints: endpoints}
	m.latest.Store(&frame{widths: analysis.Widths(analysis.EnergyTriple{})})
	return m
}

// Render records the latest frame; the program picks it up on its next
// refresh.
func (m *Meter) Render(t analysis.EnergyTriple, widths [3]float64) {
	m.latest.Store(&frame{energy: t, widths: widths})
}

// Run blocks until the user quits or ctx is cancelled.
func (m *Meter) Run(ctx context.Context) error {
	p := tea.NewProgram(newMeterModel(m), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type refreshMsg time.Time

type reconfiguredMsg struct {
	addresses []string
}

type meterModel struct {
	meter  *Meter
	input  textinput.Model
	width  int
	frame  frame
	conns  []connView
	notice string
}

type connView struct {
	addr  string
	state transport.State
}

func newMeterModel(m *Meter) meterModel {
	ti := textinput.New()
	ti.Placeholder = "10.0.0.5, 10.0.0.6"
	ti.Prompt = "endpoints> "
	ti.CharLimit = 512
	ti.Focus()
	return meterModel{meter: m, input: ti, width: 80, frame: *m.latest.Load()}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m meterModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, refresh())
}

func (m meterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, minBarWidth)

	case refreshMsg:
		m.frame = *m.meter.latest.Load()
		m.conns = snapshotConns(m.meter.endpoints.Current())
		return m, refresh()

	case reconfiguredMsg:
		m.notice = fmt.Sprintf("reconfigured %d endpoint(s)", len(msg.addresses))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKeys):
			return m, tea.Quit
		case key.Matches(msg, applyKeys):
			addresses := transport.ParseAddressList(m.input.Value())
			m.input.Reset()
			return m, m.reconfigure(addresses)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// reconfigure runs off the event loop since closing sockets may wait on a
// write deadline.
func (m meterModel) reconfigure(addresses []string) tea.Cmd {
	endpoints := m.meter.endpoints
	return func() tea.Msg {
		log.Infof("TUI: Reconfiguring endpoints to %v", addresses)
		endpoints.Reconfigure(addresses)
		return reconfiguredMsg{addresses: addresses}
	}
}

func snapshotConns(conns []transport.Conn) []connView {
	out := make([]connView, len(conns))
	for i, c := range conns {
		out[i] = connView{addr: c.Addr(), state: c.State()}
	}
	return out
}

func (m meterModel) View() string {
	var sb strings.Builder
	barWidth := max(m.width-labelWidth-8, minBarWidth)

	styles := [3]lipgloss.Style{bassStyle, midStyle, trebleStyle}
	labels := [3]string{"bass", "mid", "treble"}
	energies := m.frame.energy.Values()
	for i := range styles {
		sb.WriteString(fmt.Sprintf("%-*s", labelWidth, labels[i]))
		sb.WriteString(styles[i].Render(bar(m.frame.widths[i], barWidth)))
		sb.WriteString(fmt.Sprintf(" %3.0f%%\n", energies[i]*100))
	}

	sb.WriteString("\n")
	sb.WriteString(statusLine(m.conns))
	sb.WriteString("\n\n")
	sb.WriteString(m.input.View())
	if m.notice != "" {
		sb.WriteString("\n")
		sb.WriteString(m.notice)
	}
	sb.WriteString("\n\nenter: apply endpoints • esc: quit\n")
	return sb.String()
}

// bar renders percent (0..100) of width cells. Any non-zero percent shows at
// least one cell.
func bar(percent float64, width int) string {
	cells := int(percent / 100 * float64(width))
	if percent > 0 && cells == 0 {
		cells = 1
	}
	cells = min(max(cells, 0), width)
	return strings.Repeat("█", cells) + strings.Repeat(" ", width-cells)
}

func statusLine(conns []connView) string {
	if len(conns) == 0 {
		return statusStyles[transport.StateClosed].Render("no endpoints")
	}
	parts := make([]string, len(conns))
	for i, c := range conns {
		parts[i] = statusStyles[c.state].Render(fmt.Sprintf("%s [%s]", c.addr, c.state))
	}
	return strings.Join(parts, "  ")
}
