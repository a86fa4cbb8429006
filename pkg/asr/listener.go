package asr

import "sync"

// RecognitionListener receives recognition lifecycle events. Callbacks
// run synchronously on the recognizer's event loop, in listener
// registration order; a slow callback delays event delivery.
type RecognitionListener interface {
	// OnListening fires when the server is ready to receive audio.
	OnListening()

	// OnSpeechStart fires when the server detects the start of speech.
	OnSpeechStart(timeMs int)

	// OnSpeechStop fires when the server detects the end of speech.
	OnSpeechStop(timeMs int)

	// OnPartialRecognitionResult delivers an intermediate hypothesis.
	OnPartialRecognitionResult(result *PartialRecognitionResult)

	// OnRecognitionResult delivers the final result of a segment.
	OnRecognitionResult(result *RecognitionResult)

	// OnError reports a failure of the recognition attempt.
	OnError(err *RecognitionError)
}

// ListenerFuncs adapts plain functions to the RecognitionListener
// interface. Nil fields are skipped.
type ListenerFuncs struct {
	Listening     func()
	SpeechStart   func(timeMs int)
	SpeechStop    func(timeMs int)
	PartialResult func(result *PartialRecognitionResult)
	Result        func(result *RecognitionResult)
	Err           func(err *RecognitionError)
}

func (l *ListenerFuncs) OnListening() {
	if l.Listening != nil {
		l.Listening()
	}
}

func (l *ListenerFuncs) OnSpeechStart(timeMs int) {
	if l.SpeechStart != nil {
		l.SpeechStart(timeMs)
	}
}

func (l *ListenerFuncs) OnSpeechStop(timeMs int) {
	if l.SpeechStop != nil {
		l.SpeechStop(timeMs)
	}
}

func (l *ListenerFuncs) OnPartialRecognitionResult(result *PartialRecognitionResult) {
	if l.PartialResult != nil {
		l.PartialResult(result)
	}
}

func (l *ListenerFuncs) OnRecognitionResult(result *RecognitionResult) {
	if l.Result != nil {
		l.Result(result)
	}
}

func (l *ListenerFuncs) OnError(err *RecognitionError) {
	if l.Err != nil {
		l.Err(err)
	}
}

// NewLoggingListener returns a listener that records every event on the
// given logger at debug level. Useful while integrating against a server.
func NewLoggingListener(log *Logger) RecognitionListener {
	log = log.WithComponent("listener")
	return &ListenerFuncs{
		Listening: func() {
			log.Debug("server listening")
		},
		SpeechStart: func(timeMs int) {
			log.Debugf("speech started at %dms", timeMs)
		},
		SpeechStop: func(timeMs int) {
			log.Debugf("speech stopped at %dms", timeMs)
		},
		PartialResult: func(result *PartialRecognitionResult) {
			log.Debugf("partial result [%d]: %s", result.SpeechSegmentIndex, result.Text)
		},
		Result: func(result *RecognitionResult) {
			log.Debugf("final result [%d] %s: %s", result.SegmentIndex, result.ResultStatus, result.Text())
		},
		Err: func(err *RecognitionError) {
			log.LogRecognitionError(err)
		},
	}
}

// ResultCollector is a listener that accumulates final results, as an
// alternative to blocking on WaitRecognitionResult.
type ResultCollector struct {
	mu      sync.Mutex
	results []RecognitionResult
}

func (c *ResultCollector) OnListening()                                         {}
func (c *ResultCollector) OnSpeechStart(int)                                    {}
func (c *ResultCollector) OnSpeechStop(int)                                     {}
func (c *ResultCollector) OnPartialRecognitionResult(*PartialRecognitionResult) {}
func (c *ResultCollector) OnError(*RecognitionError)                            {}

func (c *ResultCollector) OnRecognitionResult(result *RecognitionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, *result)
}

// Results returns a copy of the final results collected so far.
func (c *ResultCollector) Results() []RecognitionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RecognitionResult, len(c.results))
	copy(out, c.results)
	return out
}
