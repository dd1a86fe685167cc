// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// stubDevices replaces the PortAudio device list for one test.
func stubDevices(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paLibDevicesFunc
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
	t.Cleanup(func() { paLibDevicesFunc = orig })
}

var fakeDevices = []*portaudio.DeviceInfo{
	{Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000,
		DefaultLowInputLatency: 5 * time.Millisecond, DefaultHighInputLatency: 20 * time.Millisecond},
	{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	{Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
}

func TestHostDevices(t *testing.T) {
	stubDevices(t, fakeDevices, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	if devices[0].LowInputLatencyMs != 5 || devices[0].HighInputLatencyMs != 20 {
		t.Errorf("latency = %v/%v ms", devices[0].LowInputLatencyMs, devices[0].HighInputLatencyMs)
	}
	kinds := []string{devices[0].Kind(), devices[1].Kind(), devices[2].Kind()}
	if strings.Join(kinds, ",") != "Input,Output,Input/Output" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestHostDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	stubDevices(t, fakeDevices, nil)

	dev, err := InputDevice(2)
	if err != nil {
		t.Fatalf("InputDevice(2) error: %v", err)
	}
	if dev.Name != "Interface" {
		t.Errorf("InputDevice(2) = %q", dev.Name)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeDevices) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDeviceDefault(t *testing.T) {
	stubDevices(t, fakeDevices, nil)
	orig := paLibDefaultInputDeviceFunc
	defer func() { paLibDefaultInputDeviceFunc = orig }()

	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return fakeDevices[0], nil }
	if dev, err := InputDevice(-1); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("default device = %v, %v", dev, err)
	}

	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}
	if _, err := InputDevice(-1); err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	stubDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty slice, got %v", devices)
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	stubDevices(t, nil, fmt.Errorf("PortAudio not initialized"))

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	stubDevices(t, fakeDevices, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[0] Built-in Microphone (Input)", "[1] Speakers (Output)", "Default sample rate: 96000 Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNewEngineChannelCheck(t *testing.T) {
	stubDevices(t, fakeDevices, nil)
	cfg := newTestEngine(4, nil).cfg
	cfg.InputDevice = 0

	if _, err := NewEngine(cfg, newTestEngine(1, nil).recCfg, nil); err == nil {
		t.Error("expected error requesting 4 channels from a stereo device")
	}

	cfg.InputChannels = 2
	cfg.LowLatency = true
	e, err := NewEngine(cfg, newTestEngine(1, nil).recCfg, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if e.inputLatency != 5*time.Millisecond {
		t.Errorf("low latency = %s", e.inputLatency)
	}
}
