package asr

import (
	"io"
	"os"
	"sync"
)

// AudioSource is a pull-based byte source consumed by the recognizer.
//
// Read fills buf and returns the number of bytes read; it returns io.EOF
// once the source is exhausted. Close releases the underlying resource
// and may be called more than once. Finish tells the source no further
// audio will be produced, so that a blocked Read can return.
type AudioSource interface {
	Read(buf []byte) (int, error)
	Close() error
	Finish() error
}

// FileAudioSource reads raw audio from a file on disk.
type FileAudioSource struct {
	f      *os.File
	closed bool
	mu     sync.Mutex
}

// NewFileAudioSource opens path for reading.
func NewFileAudioSource(path string) (*FileAudioSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileAudioSource{f: f}, nil
}

func (s *FileAudioSource) Read(buf []byte) (int, error) {
	return s.f.Read(buf)
}

func (s *FileAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// Finish is a no-op: a file's end is its natural finish.
func (s *FileAudioSource) Finish() error {
	return nil
}

// BufferAudioSource is an in-memory pipe between an audio producer and
// the recognizer. The producer calls Write until done, then Finish; the
// recognizer drains it through Read.
type BufferAudioSource struct {
	mu       sync.Mutex
	dataCond *sync.Cond
	buf      []byte
	finished bool
}

// NewBufferAudioSource creates an empty, open buffer source.
func NewBufferAudioSource() *BufferAudioSource {
	s := &BufferAudioSource{}
	s.dataCond = sync.NewCond(&s.mu)
	return s
}

// Write appends audio to the buffer. It reports false once the source is
// finished, in which case the data is discarded.
func (s *BufferAudioSource) Write(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	s.buf = append(s.buf, data...)
	s.dataCond.Broadcast()
	return true
}

// Read blocks until buffered audio is available or the source is
// finished. Once finished and drained it returns io.EOF.
func (s *BufferAudioSource) Read(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.finished {
		s.dataCond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(buf, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Finish marks the end of the audio. Blocked Reads wake up and drain
// whatever remains.
func (s *BufferAudioSource) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.dataCond.Broadcast()
	return nil
}

// Close discards buffered audio and finishes the source.
func (s *BufferAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.buf = nil
	s.dataCond.Broadcast()
	return nil
}
