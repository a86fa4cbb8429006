package asr

import (
	"io"
	"sync"
	"time"
)

// ReaderStatus is the lifecycle state of an audio reader.
type ReaderStatus int

const (
	ReaderIdle ReaderStatus = iota
	ReaderRunning
	ReaderFinished
	ReaderCanceled
)

func (s ReaderStatus) String() string {
	switch s {
	case ReaderIdle:
		return "idle"
	case ReaderRunning:
		return "running"
	case ReaderFinished:
		return "finished"
	case ReaderCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// audioChunk is one unit of audio handed to the transport. A zero-length
// chunk with last set marks the end of the stream.
type audioChunk struct {
	data []byte
	last bool
}

// audioReader paces fixed-size chunks from an AudioSource into a sink.
// It is started once the server reports it is listening and runs
// detached until the source ends or the reader is canceled.
//
// Finished and Canceled are terminal and mutually exclusive: the first
// transition wins and later ones are ignored.
type audioReader struct {
	source    AudioSource
	chunkSize int
	sleep     time.Duration
	sink      func(chunk audioChunk)
	log       *Logger

	mu     sync.Mutex
	status ReaderStatus
}

func newAudioReader(source AudioSource, cfg *Config, sink func(chunk audioChunk)) *audioReader {
	return &audioReader{
		source:    source,
		chunkSize: cfg.chunkSize(),
		sleep:     time.Duration(float64(cfg.ChunkLengthMs)*cfg.ServerRTF) * time.Millisecond,
		sink:      sink,
		log:       DefaultLogger().WithComponent("reader"),
	}
}

// Start launches the read loop. It is a no-op after the first call.
func (r *audioReader) Start() {
	r.mu.Lock()
	if r.status != ReaderIdle {
		r.mu.Unlock()
		return
	}
	r.status = ReaderRunning
	r.mu.Unlock()

	go r.run()
}

// Cancel stops the loop without sending a last marker. A reader that
// already finished stays finished.
func (r *audioReader) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == ReaderIdle || r.status == ReaderRunning {
		r.status = ReaderCanceled
	}
}

// Status returns the reader's current lifecycle state.
func (r *audioReader) Status() ReaderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *audioReader) canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == ReaderCanceled
}

// finish marks the reader finished unless it was canceled first.
func (r *audioReader) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == ReaderRunning {
		r.status = ReaderFinished
	}
}

func (r *audioReader) run() {
	defer func() {
		if err := r.source.Close(); err != nil {
			r.log.WithError(err).Warn("closing audio source")
		}
	}()

	buf := make([]byte, r.chunkSize)
	for {
		if r.canceled() {
			r.log.Debug("reader canceled")
			return
		}

		n, err := r.source.Read(buf)
		if n > 0 {
			if r.canceled() {
				return
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.sink(audioChunk{data: chunk})
		}
		if err != nil {
			if err != io.EOF {
				r.log.WithError(err).Warn("audio source read failed")
			}
			break
		}

		time.Sleep(r.sleep)
	}

	if r.canceled() {
		return
	}
	r.finish()
	r.sink(audioChunk{last: true})
	r.log.Debug("reader finished")
}
