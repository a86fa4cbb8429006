package asr

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// MicAudioSource captures live audio from the default input device and
// exposes it through the AudioSource contract: int16 little-endian mono
// at the requested sample rate.
//
// Capture runs on the portaudio callback; frames pile into an internal
// BufferAudioSource until the recognizer drains them. Finish stops the
// capture and lets the recognition complete with what was recorded.
type MicAudioSource struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	pipe    *BufferAudioSource
	started bool
	closed  bool
}

const micFramesPerBuffer = 512

// NewMicAudioSource opens the default input device at the given sample
// rate and starts capturing immediately.
func NewMicAudioSource(sampleRate int) (*MicAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize audio: %w", err)
	}

	m := &MicAudioSource{pipe: NewBufferAudioSource()}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), micFramesPerBuffer, func(in []int16) {
		frame := make([]byte, len(in)*2)
		for i, sample := range in {
			binary.LittleEndian.PutUint16(frame[i*2:], uint16(sample))
		}
		m.pipe.Write(frame)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	m.stream = stream
	m.started = true
	return m, nil
}

func (m *MicAudioSource) Read(buf []byte) (int, error) {
	return m.pipe.Read(buf)
}

// Finish stops the capture. Audio already buffered remains readable.
func (m *MicAudioSource) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	err := m.stream.Stop()
	m.pipe.Finish()
	return err
}

// Close stops capture and releases the device.
func (m *MicAudioSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.started {
		m.started = false
		m.stream.Stop()
	}
	err := m.stream.Close()
	portaudio.Terminate()
	m.pipe.Close()
	return err
}
