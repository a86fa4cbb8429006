package asr

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionState is the connection-level state of a transport session.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateWaitingHandshake
	StateWaitingCreateSession
	StateIdle
	StateWaitingStartRecognition
	StateStreamingAudio
	StateWaitingRecognitionResult
	StateWaitingCancelRecognition
	StateWaitingReleaseSession
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateWaitingHandshake:
		return "waiting_handshake"
	case StateWaitingCreateSession:
		return "waiting_create_session"
	case StateIdle:
		return "idle"
	case StateWaitingStartRecognition:
		return "waiting_start_recognition"
	case StateStreamingAudio:
		return "streaming_audio"
	case StateWaitingRecognitionResult:
		return "waiting_recognition_result"
	case StateWaitingCancelRecognition:
		return "waiting_cancel_recognition"
	case StateWaitingReleaseSession:
		return "waiting_release_session"
	default:
		return "unknown"
	}
}

// Private websocket close codes so a close we initiated is never taken
// for a server-side close.
const (
	closeCodeNetworkTimeout = 4001
	closeCodeUserRelease    = 4002

	closeReasonNetworkTimeout = "network timeout"
	closeReasonUserRelease    = "User release session"
)

const handshakeTimeout = 10 * time.Second

// transportEventKind tags events delivered to the recognizer.
type transportEventKind int

const (
	evSessionCreated transportEventKind = iota
	evListening
	evStopStreaming
	evSpeechStart
	evSpeechStop
	evPartialResult
	evFinalResult
	evCancelDone
	evReleaseDone
	evInputTimersStarted
	evSessionStatus
	evError
)

// transportEvent is one asynchronous notification from the transport
// actor. The payload fields used depend on the kind.
type transportEvent struct {
	kind    transportEventKind
	result  *RecognitionResult
	partial *PartialRecognitionResult
	err     *RecognitionError
	timeMs  int
	status  string
}

// tmsgKind tags commands and internal events processed by the actor loop.
type tmsgKind int

const (
	cmdConnect tmsgKind = iota
	cmdSetLanguageModel
	cmdStartRecognition
	cmdAudio
	cmdCancel
	cmdRelease
	cmdStartInputTimers
	cmdGetSessionStatus
	cmdAckError

	inFrame
	inClosed
	inNetTimeout
	inIdleTimeout
)

type tmsg struct {
	kind   tmsgKind
	uris   []string
	config *RecognitionConfig
	chunk  audioChunk
	data   []byte
	err    error
}

// transport owns the websocket connection and the connection-level state
// machine. All state lives on a single goroutine; callers interact only
// through posted commands and the outbound event channel. The actor
// never panics or blocks across the boundary: every local failure turns
// into an error event.
type transport struct {
	cfg    *Config
	events chan<- transportEvent
	cmds   chan tmsg
	done   chan struct{}
	log    *Logger

	state SessionState
	conn  *websocket.Conn

	lmURIs []string

	// Audio handed over before StreamingAudio accumulates here and is
	// flushed as the first SEND_AUDIO once streaming begins. The last
	// flag is sticky.
	audioBuf     bytes.Buffer
	audioBufLast bool

	// Set when we close the socket ourselves, so the read pump's exit
	// is not reported as a server-side close.
	expectClose bool

	netTimer  *time.Timer
	idleTimer *time.Timer
}

func newTransport(cfg *Config, events chan<- transportEvent) *transport {
	t := &transport{
		cfg:    cfg,
		events: events,
		cmds:   make(chan tmsg, 64),
		done:   make(chan struct{}),
		log:    DefaultLogger().WithComponent("transport"),
	}
	go t.run()
	return t
}

// post hands a command to the actor loop. Posting after shutdown is a
// no-op.
func (t *transport) post(m tmsg) {
	select {
	case t.cmds <- m:
	case <-t.done:
	}
}

func (t *transport) Connect() { t.post(tmsg{kind: cmdConnect}) }

func (t *transport) SetLanguageModel(uris []string) {
	t.post(tmsg{kind: cmdSetLanguageModel, uris: uris})
}

func (t *transport) StartRecognition(config *RecognitionConfig) {
	t.post(tmsg{kind: cmdStartRecognition, config: config})
}

func (t *transport) SendAudio(chunk audioChunk) {
	t.post(tmsg{kind: cmdAudio, chunk: chunk})
}

func (t *transport) CancelRecognition() { t.post(tmsg{kind: cmdCancel}) }

func (t *transport) ReleaseSession() { t.post(tmsg{kind: cmdRelease}) }

func (t *transport) StartInputTimers() { t.post(tmsg{kind: cmdStartInputTimers}) }

func (t *transport) GetSessionStatus() { t.post(tmsg{kind: cmdGetSessionStatus}) }

// AckError tells the transport the recognizer consumed a failure, so the
// state machine can settle back to Idle.
func (t *transport) AckError() { t.post(tmsg{kind: cmdAckError}) }

// Shutdown stops the actor and drops the connection without ceremony.
func (t *transport) Shutdown() {
	close(t.done)
}

func (t *transport) emit(ev transportEvent) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

func (t *transport) emitError(err *RecognitionError) {
	t.log.LogRecognitionError(err)
	t.emit(transportEvent{kind: evError, err: err})
}

func (t *transport) run() {
	defer t.teardown()

	for {
		select {
		case m := <-t.cmds:
			t.handle(m)
		case <-t.done:
			return
		}
	}
}

func (t *transport) teardown() {
	t.stopNetTimeout()
	t.stopIdleTimeout()
	if t.conn != nil {
		t.expectClose = true
		t.conn.Close()
		t.conn = nil
	}
}

func (t *transport) setState(state SessionState) {
	if state == t.state {
		return
	}
	t.log.LogSessionEvent("state_change", state, map[string]interface{}{"from": t.state.String()})
	t.state = state

	if state == StateIdle {
		t.armIdleTimeout()
	} else {
		t.stopIdleTimeout()
	}
}

func (t *transport) handle(m tmsg) {
	switch m.kind {
	case cmdConnect:
		t.handleConnect()
	case cmdSetLanguageModel:
		t.lmURIs = m.uris
		// A new attempt starts with an empty accumulator: anything still
		// buffered belongs to a previous recognition.
		t.audioBuf.Reset()
		t.audioBufLast = false
	case cmdStartRecognition:
		t.handleStartRecognition(m.config)
	case cmdAudio:
		t.handleAudio(m.chunk)
	case cmdCancel:
		t.handleCancel()
	case cmdRelease:
		t.handleRelease()
	case cmdStartInputTimers:
		t.handleStartInputTimers()
	case cmdGetSessionStatus:
		t.handleGetSessionStatus()
	case cmdAckError:
		t.stopNetTimeout()
		switch t.state {
		case StateDisconnected:
		case StateWaitingHandshake, StateWaitingCreateSession, StateWaitingReleaseSession:
			// No usable server session to settle back to; drop the
			// connection so the next attempt redials.
			t.closeConn(websocket.CloseNormalClosure, "session aborted")
			t.setState(StateDisconnected)
		default:
			t.setState(StateIdle)
		}
	case inFrame:
		t.handleFrame(m.data)
	case inClosed:
		t.handleClosed(m.err)
	case inNetTimeout:
		t.handleNetTimeout()
	case inIdleTimeout:
		t.handleIdleTimeout()
	}
}

func (t *transport) handleConnect() {
	switch t.state {
	case StateDisconnected:
		t.dial()
	case StateIdle:
		// Already connected, nothing to create.
		t.emit(transportEvent{kind: evSessionCreated})
	default:
		t.log.Debugf("ignoring connect in state %s", t.state)
	}
}

func (t *transport) dial() {
	header := make(http.Header)
	if t.cfg.APISecret != "" {
		token, err := mintAccessToken(t.cfg.APISecret, t.cfg.Username)
		if err != nil {
			t.emitError(NewConnectionError("Invalid username or password"))
			return
		}
		header.Set("Authorization", "Bearer "+token.Token)
	} else if t.cfg.Username != "" {
		header.Set("Authorization", "Basic "+basicAuth(t.cfg.Username, t.cfg.Password))
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	t.setState(StateWaitingHandshake)

	conn, resp, err := dialer.Dial(t.cfg.ServerURL, header)
	if err != nil {
		t.setState(StateDisconnected)
		t.emitError(classifyDialError(err, resp))
		return
	}

	t.conn = conn
	t.expectClose = false
	recordSessionOpened()

	go t.readPump(conn)

	t.createSession()
}

func (t *transport) createSession() {
	headers := map[string]string{}
	if t.cfg.UserAgent != "" {
		headers[HeaderUserAgent] = t.cfg.UserAgent
	}
	if !t.send(NewMessage(MethodCreateSession, headers, nil)) {
		return
	}
	t.armNetTimeout()
	t.setState(StateWaitingCreateSession)
}

// readPump runs per connection on its own goroutine and only posts into
// the actor loop.
func (t *transport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.post(tmsg{kind: inClosed, err: err})
			return
		}
		t.post(tmsg{kind: inFrame, data: data})
	}
}

func (t *transport) handleStartRecognition(config *RecognitionConfig) {
	if t.state != StateIdle {
		t.log.Debugf("ignoring start recognition in state %s", t.state)
		return
	}

	body := []byte(strings.Join(t.lmURIs, "\r\n"))
	headers := map[string]string{
		HeaderContentType:   ContentTypeURIList,
		HeaderContentLength: strconv.Itoa(len(body)),
	}
	if config != nil {
		for key, value := range config.headerMap() {
			headers[key] = value
		}
	}

	if !t.send(NewMessage(MethodStartRecognition, headers, body)) {
		return
	}
	t.armNetTimeout()
	t.setState(StateWaitingStartRecognition)
}

func (t *transport) handleAudio(chunk audioChunk) {
	switch t.state {
	case StateDisconnected, StateWaitingHandshake, StateWaitingCreateSession,
		StateIdle, StateWaitingStartRecognition:
		// Still connecting: accumulate until streaming begins.
		t.audioBuf.Write(chunk.data)
		t.audioBufLast = t.audioBufLast || chunk.last

	case StateStreamingAudio:
		t.sendAudioPacket(chunk.data, chunk.last)

	default:
		t.log.Debugf("ignoring audio packet in state %s", t.state)
	}
}

func (t *transport) sendAudioPacket(data []byte, last bool) {
	headers := map[string]string{
		HeaderLastPacket:    strconv.FormatBool(last),
		HeaderContentLength: strconv.Itoa(len(data)),
		HeaderContentType:   ContentTypeOctetStream,
	}
	if !t.send(NewMessage(MethodSendAudio, headers, data)) {
		return
	}
	recordAudioChunk(len(data))
	t.armNetTimeout()
	if last {
		t.setState(StateWaitingRecognitionResult)
	}
}

func (t *transport) handleCancel() {
	switch t.state {
	case StateStreamingAudio, StateWaitingRecognitionResult:
		if !t.send(NewMessage(MethodCancelRecognition, nil, nil)) {
			return
		}
		t.armNetTimeout()
		t.setState(StateWaitingCancelRecognition)
	default:
		t.log.Debugf("ignoring cancel recognition in state %s", t.state)
	}
}

func (t *transport) handleRelease() {
	if t.state == StateDisconnected {
		t.emit(transportEvent{kind: evReleaseDone})
		return
	}
	if !t.send(NewMessage(MethodReleaseSession, nil, nil)) {
		return
	}
	t.armNetTimeout()
	t.setState(StateWaitingReleaseSession)
}

func (t *transport) handleStartInputTimers() {
	if t.state != StateStreamingAudio && t.state != StateWaitingRecognitionResult {
		t.log.Debugf("ignoring start input timers in state %s", t.state)
		return
	}
	t.send(NewMessage(MethodStartInputTimers, nil, nil))
}

func (t *transport) handleGetSessionStatus() {
	if t.state != StateIdle {
		t.log.Debugf("ignoring get session status in state %s", t.state)
		return
	}
	if !t.send(NewMessage(MethodGetSessionStatus, nil, nil)) {
		return
	}
	t.armNetTimeout()
}

func (t *transport) handleFrame(data []byte) {
	// Inbound traffic proves the server is alive.
	t.armNetTimeout()

	msg, err := DecodeMessage(data)
	if err != nil {
		t.log.WithError(err).Warn("failed to decode inbound frame")
		t.emitError(NewFailureError("ASR message header error"))
		return
	}

	switch msg.Method {
	case MethodResponse:
		t.handleResponse(msg)
	case MethodStartOfSpeech:
		if t.state == StateStreamingAudio {
			t.emit(transportEvent{kind: evSpeechStart, timeMs: headerTimeMs(msg)})
		}
	case MethodEndOfSpeech:
		if t.state == StateStreamingAudio {
			t.setState(StateWaitingRecognitionResult)
			t.emit(transportEvent{kind: evSpeechStop, timeMs: headerTimeMs(msg)})
			t.emit(transportEvent{kind: evStopStreaming})
		}
	case MethodRecognitionResult:
		t.handleRecognitionResult(msg)
	default:
		t.log.Debugf("ignoring inbound message with method %s", msg.Method)
	}
}

func (t *transport) handleResponse(msg *Message) {
	method := msg.Header(HeaderMethod)
	if method == "" {
		t.log.Warn("ignoring response without method header")
		return
	}

	switch method {
	case MethodCreateSession:
		if t.state != StateWaitingCreateSession {
			t.log.Debug("ignoring response to create session")
			return
		}
		t.stopNetTimeout()
		if msg.Header(HeaderResult) == "SUCCESS" {
			t.setState(StateIdle)
			t.emit(transportEvent{kind: evSessionCreated})
		} else {
			// The server refused the session; there is nothing to stay
			// connected to.
			t.closeConn(websocket.CloseNormalClosure, "session refused")
			t.setState(StateDisconnected)
			t.emitError(NewFailureError("Internal library error"))
		}

	case MethodStartRecognition:
		if t.state != StateWaitingStartRecognition {
			t.log.Debug("ignoring response to start recognition")
			return
		}
		if msg.Header(HeaderResult) == "SUCCESS" {
			t.setState(StateStreamingAudio)
			t.emit(transportEvent{kind: evListening})
			// Flush audio accumulated while connecting.
			if t.audioBuf.Len() > 0 || t.audioBufLast {
				data := make([]byte, t.audioBuf.Len())
				copy(data, t.audioBuf.Bytes())
				last := t.audioBufLast
				t.audioBuf.Reset()
				t.audioBufLast = false
				t.sendAudioPacket(data, last)
			}
		} else {
			t.setState(StateIdle)
			t.emitError(startRecognitionError(msg.Header(HeaderErrorCode), msg.Header(HeaderResult)))
		}

	case MethodSendAudio:
		status := msg.Header(HeaderSessionStatus)
		if t.state == StateStreamingAudio && status != "" && status != "ASR_LISTENING" {
			// Server stopped listening on its own.
			t.setState(StateWaitingRecognitionResult)
			t.emit(transportEvent{kind: evStopStreaming})
		}

	case MethodReleaseSession:
		if t.state != StateWaitingReleaseSession {
			t.log.Debug("ignoring response to release session")
			return
		}
		t.stopNetTimeout()
		t.closeConn(closeCodeUserRelease, closeReasonUserRelease)
		t.setState(StateDisconnected)
		t.emit(transportEvent{kind: evReleaseDone})

	case MethodCancelRecognition:
		if t.state != StateWaitingCancelRecognition {
			t.log.Debug("ignoring response to cancel recognition")
			return
		}
		t.stopNetTimeout()
		t.setState(StateIdle)
		t.emit(transportEvent{kind: evCancelDone})

	case MethodStartInputTimers:
		if t.state == StateStreamingAudio || t.state == StateWaitingRecognitionResult {
			t.emit(transportEvent{kind: evInputTimersStarted})
		}

	case MethodGetSessionStatus:
		t.stopNetTimeout()
		t.emit(transportEvent{kind: evSessionStatus, status: msg.Header(HeaderSessionStatus)})

	default:
		t.log.Debugf("ignoring response to method %s", method)
	}
}

func (t *transport) handleRecognitionResult(msg *Message) {
	if t.state != StateStreamingAudio && t.state != StateWaitingRecognitionResult {
		t.log.Debug("ignoring recognition result")
		return
	}

	if msg.Header(HeaderResultStatus) == "" {
		t.log.Warn("ignoring recognition result without result status header")
		return
	}

	result, err := DecodeRecognitionResult(msg.Body)
	if err == nil && result.IsFinal() {
		if result.LastSegment {
			t.stopNetTimeout()
			t.setState(StateIdle)
		}
		t.emit(transportEvent{kind: evFinalResult, result: result})
		return
	}

	partial, perr := DecodePartialRecognitionResult(msg.Body)
	if perr != nil {
		t.log.WithError(perr).Warn("discarding undecodable recognition result")
		return
	}
	t.emit(transportEvent{kind: evPartialResult, partial: partial})
}

func (t *transport) handleClosed(err error) {
	if t.expectClose || t.state == StateDisconnected {
		return
	}
	if t.state != StateIdle {
		t.log.WithError(err).Warn("unexpected websocket close")
	}
	t.stopNetTimeout()
	t.conn = nil
	t.audioBuf.Reset()
	t.audioBufLast = false
	t.setState(StateDisconnected)
	t.emitError(NewConnectionError("Network error"))
}

func (t *transport) handleNetTimeout() {
	if t.state == StateDisconnected {
		return
	}
	t.closeConn(closeCodeNetworkTimeout, closeReasonNetworkTimeout)
	t.audioBuf.Reset()
	t.audioBufLast = false
	t.setState(StateDisconnected)
	t.emitError(NewTimeoutError("Session timeout"))
}

func (t *transport) handleIdleTimeout() {
	if t.state != StateIdle {
		return
	}
	// Silent disconnect. The next connect dials again.
	t.log.Debug("session idle timeout, disconnecting")
	t.closeConn(websocket.CloseNormalClosure, "session idle timeout")
	t.setState(StateDisconnected)
}

func (t *transport) closeConn(code int, reason string) {
	if t.conn == nil {
		return
	}
	t.expectClose = true
	deadline := time.Now().Add(time.Second)
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	t.conn.Close()
	t.conn = nil
}

func (t *transport) send(msg *Message) bool {
	if t.conn == nil {
		t.log.Warn("no connection while sending message")
		t.emitError(NewFailureError("Internal library error"))
		return false
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(msg)); err != nil {
		t.log.WithError(err).Warn("failed to send message")
		// The connection is dead; silence the read pump's exit so the
		// incident is reported exactly once.
		t.expectClose = true
		t.conn.Close()
		t.conn = nil
		t.stopNetTimeout()
		t.audioBuf.Reset()
		t.audioBufLast = false
		t.setState(StateDisconnected)
		t.emitError(NewConnectionError("Network error"))
		return false
	}
	return true
}

func (t *transport) armNetTimeout() {
	t.stopNetTimeout()
	t.netTimer = time.AfterFunc(time.Duration(t.cfg.MaxWaitSeconds)*time.Second, func() {
		t.post(tmsg{kind: inNetTimeout})
	})
}

func (t *transport) stopNetTimeout() {
	if t.netTimer != nil {
		t.netTimer.Stop()
		t.netTimer = nil
	}
}

func (t *transport) armIdleTimeout() {
	t.stopIdleTimeout()
	if t.cfg.MaxSessionIdleSeconds <= 0 {
		return
	}
	t.idleTimer = time.AfterFunc(time.Duration(t.cfg.MaxSessionIdleSeconds)*time.Second, func() {
		t.post(tmsg{kind: inIdleTimeout})
	})
}

func (t *transport) stopIdleTimeout() {
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
}

func headerTimeMs(msg *Message) int {
	n, err := strconv.Atoi(msg.Header(HeaderTime))
	if err != nil {
		return 0
	}
	return n
}

func classifyDialError(err error, resp *http.Response) *RecognitionError {
	var unknownAuth x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	var verify *tls.CertificateVerificationError
	if errors.As(err, &unknownAuth) || errors.As(err, &hostname) ||
		errors.As(err, &invalid) || errors.As(err, &verify) {
		return NewConnectionError("Invalid TLS certificate")
	}
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return NewConnectionError("Invalid username or password")
	}
	return NewConnectionError("Network error")
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// attemptID tags one recognition attempt across log lines.
func attemptID() string {
	return uuid.NewString()
}
