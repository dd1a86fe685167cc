// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"lightsync/internal/log"
)

// ErrAlreadyRecording is returned by StartRecording while a recording is open.
var ErrAlreadyRecording = errors.New("already recording")

// RecordingFilename returns name, or a timestamped default when name is empty.
func RecordingFilename(name string, now time.Time) string {
	if name != "" {
		return name
	}
	return now.Format("recording-20060102-150405.wav")
}

// StartRecording opens filename and taps the raw interleaved input into a
// PCM WAV file at the configured bit depth.
func (e *Engine) StartRecording(filename string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.isRecording.Load() {
		return ErrAlreadyRecording
	}

	bitDepth := e.recCfg.BitDepth
	if bitDepth == 0 {
		bitDepth = 32
	}
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	e.outputFile = file

	channels := max(e.cfg.InputChannels, 1)
	e.wavEncoder = wav.NewEncoder(file, int(e.cfg.SampleRate), bitDepth, channels, 1)
	e.sampleShift = uint(32 - bitDepth)
	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(e.cfg.SampleRate),
		},
		Data:           make([]int, e.cfg.FramesPerBuffer*channels),
		SourceBitDepth: bitDepth,
	}

	e.isRecording.Store(true)
	log.Infof("Audio: Recording to %s (%d-bit, %d ch)", filename, bitDepth, channels)
	return nil
}

// writeRecording appends one callback buffer to the WAV file.
func (e *Engine) writeRecording(samples []int32) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.wavEncoder == nil {
		return
	}

	data := e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
	n := min(len(samples), len(data))
	for i := range n {
		data[i] = int(samples[i] >> e.sampleShift)
	}
	e.sampleBuf.Data = data[:n]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		log.Errorf("Audio: Error writing to WAV file: %v", err)
	}
}

// IsRecording reports whether the WAV tap is active.
func (e *Engine) IsRecording() bool {
	return e.isRecording.Load()
}

func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if !e.isRecording.Load() {
		return nil
	}
	e.isRecording.Store(false)

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		name := e.outputFile.Name()
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
		log.Infof("Audio: Recording saved to %s", name)
	}

	return nil
}

func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}
