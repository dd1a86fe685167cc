// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"lightsync/internal/config"
)

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	engine := newTestEngine(2, nil)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !engine.IsRecording() {
		t.Error("Engine should be in recording state")
	}
	if engine.sampleBuf.Format.NumChannels != 2 {
		t.Errorf("Buffer channels = %d, want 2", engine.sampleBuf.Format.NumChannels)
	}
	if len(engine.sampleBuf.Data) != testFrameSize*2 {
		t.Errorf("Buffer size = %d, want %d", len(engine.sampleBuf.Data), testFrameSize*2)
	}

	outputFile := engine.outputFile
	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if engine.IsRecording() || engine.outputFile != nil || engine.wavEncoder != nil {
		t.Error("Recording state should be cleared after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}
	if _, err := os.Stat(filename); err != nil {
		t.Errorf("Recording file missing: %v", err)
	}
}

func TestRecordingWritesPCM(t *testing.T) {
	tests := []struct {
		bitDepth int
		shift    uint
	}{
		{16, 16},
		{24, 8},
		{32, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-bit", tt.bitDepth), func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), "pcm.wav")
			engine := newEngine(config.AudioConfig{
				InputChannels:   1,
				SampleRate:      testSampleRate,
				FramesPerBuffer: testFrameSize,
			}, config.RecordingConfig{BitDepth: tt.bitDepth}, nil)

			if err := engine.StartRecording(filename); err != nil {
				t.Fatalf("StartRecording: %v", err)
			}
			engine.processInputStream(testBuffer)
			engine.processInputStream(testBuffer)
			if err := engine.StopRecording(); err != nil {
				t.Fatalf("StopRecording: %v", err)
			}

			f, err := os.Open(filename)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer f.Close()

			d := wav.NewDecoder(f)
			buf, err := d.FullPCMBuffer()
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if int(d.BitDepth) != tt.bitDepth || d.NumChans != 1 || d.SampleRate != testSampleRate {
				t.Errorf("header = %d-bit %d ch %d Hz", d.BitDepth, d.NumChans, d.SampleRate)
			}
			if len(buf.Data) != 2*testFrameSize {
				t.Fatalf("decoded %d samples, want %d", len(buf.Data), 2*testFrameSize)
			}
			for i := range testFrameSize {
				if want := int(testBuffer[i] >> tt.shift); buf.Data[i] != want {
					t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want)
				}
			}
		})
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()

	t.Run("Already recording", func(t *testing.T) {
		engine := newTestEngine(1, nil)
		if err := engine.StartRecording(filepath.Join(dir, "a.wav")); err != nil {
			t.Fatalf("StartRecording: %v", err)
		}
		defer engine.StopRecording()
		if err := engine.StartRecording(filepath.Join(dir, "b.wav")); !errors.Is(err, ErrAlreadyRecording) {
			t.Errorf("second StartRecording = %v, want ErrAlreadyRecording", err)
		}
	})

	t.Run("Invalid path", func(t *testing.T) {
		engine := newTestEngine(1, nil)
		if err := engine.StartRecording("/nonexistent/path/file.wav"); err == nil {
			t.Error("expected error for invalid path")
		}
		if engine.IsRecording() {
			t.Error("failed start must not enter recording state")
		}
	})

	t.Run("Bad bit depth", func(t *testing.T) {
		engine := newEngine(config.AudioConfig{InputChannels: 1, SampleRate: testSampleRate, FramesPerBuffer: 8},
			config.RecordingConfig{BitDepth: 12}, nil)
		if err := engine.StartRecording(filepath.Join(dir, "c.wav")); err == nil {
			t.Error("expected error for 12-bit recording")
		}
	})

	t.Run("Stop when not recording", func(t *testing.T) {
		if err := newTestEngine(1, nil).StopRecording(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCloseEngineWithRecording(t *testing.T) {
	engine := newTestEngine(2, nil)
	if err := engine.StartRecording(filepath.Join(t.TempDir(), "close.wav")); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}
	if engine.IsRecording() || engine.outputFile != nil {
		t.Error("Close should stop the recording")
	}
}

func TestRecordingFilename(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := RecordingFilename("", now); got != "recording-20250304-050607.wav" {
		t.Errorf("default filename = %q", got)
	}
	if got := RecordingFilename("take.wav", now); got != "take.wav" {
		t.Errorf("explicit filename = %q", got)
	}
}

func BenchmarkRecordingProcess(b *testing.B) {
	engine := newTestEngine(1, nopSink{})
	if err := engine.StartRecording(filepath.Join(b.TempDir(), "bench.wav")); err != nil {
		b.Fatalf("StartRecording: %v", err)
	}
	defer engine.StopRecording()

	b.ReportAllocs()
	for b.Loop() {
		engine.processInputStream(testBuffer)
	}
}
