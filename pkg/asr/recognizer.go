package asr

import (
	"time"
)

// facadeState is the client-visible lifecycle of a recognizer.
type facadeState int

const (
	recIdle facadeState = iota
	recStarting
	recRecording
	recWaitingRecognition
	recWaitingCancel
	recWaitingRelease
	recClosed
)

func (s facadeState) String() string {
	switch s {
	case recIdle:
		return "idle"
	case recStarting:
		return "starting"
	case recRecording:
		return "recording"
	case recWaitingRecognition:
		return "waiting_recognition"
	case recWaitingCancel:
		return "waiting_cancel"
	case recWaitingRelease:
		return "waiting_release"
	case recClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// responseTimeout bounds every wait for a transport round trip, so a
// caller is never blocked forever by a stalled server.
const responseTimeout = 5 * time.Second

// ErrRecognitionInProgress is returned by Recognize while another
// recognition is in flight on the same recognizer.
var ErrRecognitionInProgress = NewFailureError("Another recognition is running")

// ErrRecognizerClosed is returned by operations on a closed recognizer.
var ErrRecognizerClosed = NewFailureError("Recognizer is closed")

type waitReply struct {
	results []RecognitionResult
	err     *RecognitionError
}

// SpeechRecognizer converts an audio stream plus a language model
// reference into recognition results. One recognition may be in flight
// at a time; results are collected with WaitRecognitionResult or through
// registered listeners.
//
// All internal state is owned by a single event-loop goroutine fed by
// the transport's events and by public calls. Listener callbacks run on
// that goroutine, in registration order.
type SpeechRecognizer struct {
	cfg         *Config
	recogConfig *RecognitionConfig
	listeners   []RecognitionListener
	log         *Logger

	transport *transport
	events    chan transportEvent
	acts      chan func()
	done      chan struct{}

	// Loop-owned state.
	state         facadeState
	reader        *audioReader
	resultQueue   []RecognitionResult
	pendingErr    *RecognitionError
	resultPending bool
	metrics       *recognitionMetrics

	recognizeReply chan *RecognitionError
	recognizeTimer *time.Timer
	cancelReply    chan *RecognitionError
	cancelTimer    *time.Timer
	releaseReply   chan *RecognitionError
	releaseTimer   *time.Timer
	waitReplyCh    chan waitReply
	waitTimer      *time.Timer
	pendingConfig  *RecognitionConfig
}

func newSpeechRecognizer(cfg *Config, recogConfig *RecognitionConfig, listeners []RecognitionListener) (*SpeechRecognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	events := make(chan transportEvent, 64)
	r := &SpeechRecognizer{
		cfg:         cfg,
		recogConfig: recogConfig,
		listeners:   listeners,
		log:         DefaultLogger().WithComponent("recognizer"),
		events:      events,
		acts:        make(chan func(), 64),
		done:        make(chan struct{}),
	}
	r.transport = newTransport(cfg, events)

	go r.loop()

	if !cfg.ConnectOnRecognize {
		r.transport.Connect()
	}

	return r, nil
}

// do runs f on the event-loop goroutine.
func (r *SpeechRecognizer) do(f func()) {
	select {
	case r.acts <- f:
	case <-r.done:
	}
}

func (r *SpeechRecognizer) loop() {
	for {
		select {
		case ev := <-r.events:
			r.handleEvent(ev)
		case f := <-r.acts:
			f()
		case <-r.done:
			return
		}
	}
}

// Recognize starts a recognition of the given audio source against the
// given language model URIs. config overrides the recognizer's default
// recognition parameters when non-nil. The call returns once the server
// is listening; audio delivery then proceeds in the background until the
// source ends or the recognition is canceled.
//
// Only one recognition may be in flight: calling Recognize again before
// the previous attempt completed returns ErrRecognitionInProgress and
// leaves the in-flight attempt untouched.
func (r *SpeechRecognizer) Recognize(source AudioSource, lmURIs []string, config ...*RecognitionConfig) error {
	if source == nil || len(lmURIs) == 0 {
		return NewFailureError("Audio source and language model are required")
	}

	recogConfig := r.recogConfig
	if len(config) > 0 && config[0] != nil {
		recogConfig = config[0]
	}

	reply := make(chan *RecognitionError, 1)
	r.do(func() {
		switch r.state {
		case recClosed:
			reply <- ErrRecognizerClosed
			return
		case recIdle:
		default:
			reply <- ErrRecognitionInProgress
			return
		}

		id := attemptID()
		r.log = DefaultLogger().WithComponent("recognizer").WithField("attempt", id)
		r.log.Debugf("starting recognition of %d language model(s)", len(lmURIs))

		r.resultQueue = nil
		r.pendingErr = nil
		r.resultPending = true
		r.metrics = startRecognitionMetrics()
		r.reader = newAudioReader(source, r.cfg, func(chunk audioChunk) {
			r.transport.SendAudio(chunk)
		})
		r.pendingConfig = recogConfig
		r.recognizeReply = reply
		r.recognizeTimer = time.AfterFunc(responseTimeout, func() {
			r.do(r.recognizeTimedOut)
		})
		r.state = recStarting

		r.transport.SetLanguageModel(lmURIs)
		r.transport.Connect()
	})

	select {
	case err := <-reply:
		if err != nil {
			return err
		}
		return nil
	case <-r.done:
		return ErrRecognizerClosed
	}
}

func (r *SpeechRecognizer) recognizeTimedOut() {
	if r.recognizeReply == nil {
		return
	}
	r.replyRecognize(NewFailureError("Recognition operation timeout"))
	r.finishAttempt(nil)
}

// WaitRecognitionResult blocks until the current recognition completes
// and returns its accumulated results, one per recognized segment. An
// optional timeout overrides the configured MaxWaitSeconds. A pending
// recognition error fails the call instead and is cleared.
//
// When no recognition was started since the previous call the result is
// immediately empty: responsibility for the outcome of an attempt ends
// the moment this method returns.
func (r *SpeechRecognizer) WaitRecognitionResult(timeout ...time.Duration) ([]RecognitionResult, error) {
	d := time.Duration(r.cfg.MaxWaitSeconds) * time.Second
	if len(timeout) > 0 && timeout[0] > 0 {
		d = timeout[0]
	}

	reply := make(chan waitReply, 1)
	r.do(func() {
		if r.waitReplyCh != nil {
			// A second waiter is not supported; resolve it empty.
			reply <- waitReply{}
			return
		}
		if r.pendingErr != nil || !r.resultPending || r.state == recIdle || r.state == recClosed {
			reply <- r.takeWaitOutcome()
			return
		}
		r.waitReplyCh = reply
		r.waitTimer = time.AfterFunc(d, func() {
			r.do(func() {
				if r.waitReplyCh != reply {
					return
				}
				r.resolveWait()
			})
		})
	})

	select {
	case out := <-reply:
		if out.err != nil {
			return nil, out.err
		}
		return out.results, nil
	case <-r.done:
		return nil, nil
	}
}

// takeWaitOutcome drains the queue and the pending error and marks the
// attempt consumed.
func (r *SpeechRecognizer) takeWaitOutcome() waitReply {
	out := waitReply{results: r.resultQueue, err: r.pendingErr}
	r.resultQueue = nil
	r.pendingErr = nil
	r.resultPending = false
	return out
}

func (r *SpeechRecognizer) resolveWait() {
	if r.waitReplyCh == nil {
		return
	}
	if r.waitTimer != nil {
		r.waitTimer.Stop()
		r.waitTimer = nil
	}
	r.waitReplyCh <- r.takeWaitOutcome()
	r.waitReplyCh = nil
}

// CancelRecognition aborts the recognition in flight. The audio reader
// stops without a last-packet marker and the eventual result set is
// empty. Canceling an idle recognizer is a no-op.
func (r *SpeechRecognizer) CancelRecognition() error {
	reply := make(chan *RecognitionError, 1)
	r.do(func() {
		switch r.state {
		case recClosed:
			reply <- ErrRecognizerClosed
			return
		case recStarting:
			// Not streaming yet; abandon the attempt locally.
			r.replyRecognize(NewFailureError("Recognition canceled"))
			r.finishAttempt(nil)
			reply <- nil
			return
		case recRecording, recWaitingRecognition:
		default:
			reply <- nil
			return
		}

		if r.reader != nil {
			r.reader.Cancel()
		}
		r.resultQueue = nil
		r.state = recWaitingCancel
		r.cancelReply = reply
		r.cancelTimer = time.AfterFunc(responseTimeout, func() {
			r.do(func() {
				if r.cancelReply == nil {
					return
				}
				r.replyCancel(NewFailureError("Cancel recognition operation timeout"))
				r.finishAttempt(nil)
			})
		})
		r.transport.CancelRecognition()
	})

	select {
	case err := <-reply:
		if err != nil {
			return err
		}
		return nil
	case <-r.done:
		return nil
	}
}

// Close cancels any recognition in flight, releases the server session
// and shuts the recognizer down. It is idempotent and safe to call with
// no prior Recognize.
func (r *SpeechRecognizer) Close() error {
	reply := make(chan *RecognitionError, 1)
	r.do(func() {
		if r.state == recClosed || r.state == recWaitingRelease {
			reply <- nil
			return
		}
		if r.reader != nil {
			r.reader.Cancel()
		}
		r.state = recWaitingRelease
		r.releaseReply = reply
		r.releaseTimer = time.AfterFunc(responseTimeout, func() {
			r.do(func() {
				if r.releaseReply == nil {
					return
				}
				r.replyRelease(NewFailureError("Close operation timeout"))
				r.shutdown()
			})
		})
		r.transport.ReleaseSession()
	})

	select {
	case err := <-reply:
		if err != nil {
			return err
		}
		return nil
	case <-r.done:
		return nil
	}
}

// GetSessionStatus queries the server for the session status of an idle
// connected session.
func (r *SpeechRecognizer) GetSessionStatus() {
	r.transport.GetSessionStatus()
}

// StartInputTimers restarts the server's no-input timer, for flows that
// begin streaming before the prompt finished playing.
func (r *SpeechRecognizer) StartInputTimers() {
	r.transport.StartInputTimers()
}

func (r *SpeechRecognizer) handleEvent(ev transportEvent) {
	switch ev.kind {
	case evSessionCreated:
		if r.state == recStarting {
			r.transport.StartRecognition(r.pendingConfig)
		}

	case evListening:
		if r.state != recStarting {
			return
		}
		r.state = recRecording
		r.reader.Start()
		r.replyRecognize(nil)
		for _, l := range r.listeners {
			l.OnListening()
		}

	case evSpeechStart:
		for _, l := range r.listeners {
			l.OnSpeechStart(ev.timeMs)
		}

	case evSpeechStop:
		for _, l := range r.listeners {
			l.OnSpeechStop(ev.timeMs)
		}

	case evStopStreaming:
		// Server stopped listening; no further audio is wanted.
		if r.reader != nil {
			r.reader.Cancel()
		}
		if r.state == recRecording {
			r.state = recWaitingRecognition
		}

	case evPartialResult:
		for _, l := range r.listeners {
			l.OnPartialRecognitionResult(ev.partial)
		}

	case evFinalResult:
		r.handleFinalResult(ev.result)

	case evCancelDone:
		if r.state == recWaitingCancel {
			r.replyCancel(nil)
			r.finishAttempt(nil)
		}

	case evReleaseDone:
		if r.state == recWaitingRelease {
			r.replyRelease(nil)
		}
		r.shutdown()

	case evInputTimersStarted:
		r.log.Debug("input timers started")

	case evSessionStatus:
		r.log.Debugf("session status: %s", ev.status)

	case evError:
		r.handleError(ev.err)
	}
}

func (r *SpeechRecognizer) handleFinalResult(result *RecognitionResult) {
	// Results arriving after the attempt's outcome was already consumed
	// (a timed-out WaitRecognitionResult) are not queued for the next
	// call; listeners still observe them.
	if r.resultPending {
		r.resultQueue = append(r.resultQueue, *result)
	}
	for _, l := range r.listeners {
		l.OnRecognitionResult(result)
	}
	if r.metrics != nil {
		r.metrics.recordResult(result.ResultStatus)
	}
	if !result.LastSegment {
		return
	}

	r.finishAttempt(nil)

	if r.cfg.AutoClose && r.state == recIdle {
		r.state = recWaitingRelease
		r.transport.ReleaseSession()
	}
}

func (r *SpeechRecognizer) handleError(err *RecognitionError) {
	if r.metrics != nil {
		r.metrics.recordError(err.Code)
	}
	for _, l := range r.listeners {
		l.OnError(err)
	}

	// A blocked Recognize takes the error directly; otherwise it is
	// held until the next WaitRecognitionResult surfaces it.
	if r.recognizeReply != nil {
		r.replyRecognize(err)
		r.finishAttempt(nil)
	} else {
		r.finishAttempt(err)
	}
	if r.cancelReply != nil {
		r.replyCancel(nil)
	}
	r.transport.AckError()
}

// finishAttempt settles the façade after an attempt ends, keeping err
// (when non-nil) for the next WaitRecognitionResult. The reader is
// always canceled: when the server ends the recognition early the
// source may still hold audio, and none of it belongs to a later
// attempt. Cancel is a no-op on a reader that already finished.
func (r *SpeechRecognizer) finishAttempt(err *RecognitionError) {
	if r.reader != nil {
		r.reader.Cancel()
		r.reader = nil
	}
	if err != nil {
		r.pendingErr = err
	}
	if r.metrics != nil {
		r.metrics.end()
		r.metrics = nil
	}
	if r.state != recClosed && r.state != recWaitingRelease {
		r.state = recIdle
	}
	r.resolveWait()
}

func (r *SpeechRecognizer) replyRecognize(err *RecognitionError) {
	if r.recognizeTimer != nil {
		r.recognizeTimer.Stop()
		r.recognizeTimer = nil
	}
	if r.recognizeReply != nil {
		r.recognizeReply <- err
		r.recognizeReply = nil
	}
}

func (r *SpeechRecognizer) replyCancel(err *RecognitionError) {
	if r.cancelTimer != nil {
		r.cancelTimer.Stop()
		r.cancelTimer = nil
	}
	if r.cancelReply != nil {
		r.cancelReply <- err
		r.cancelReply = nil
	}
}

func (r *SpeechRecognizer) replyRelease(err *RecognitionError) {
	if r.releaseTimer != nil {
		r.releaseTimer.Stop()
		r.releaseTimer = nil
	}
	if r.releaseReply != nil {
		r.releaseReply <- err
		r.releaseReply = nil
	}
}

// shutdown finalizes the recognizer after the session was released.
func (r *SpeechRecognizer) shutdown() {
	if r.state == recClosed {
		return
	}
	r.state = recClosed
	r.resolveWait()
	r.transport.Shutdown()
	close(r.done)
}
