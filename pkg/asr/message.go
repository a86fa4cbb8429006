package asr

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Methods of the ASR wire protocol. The method set is closed: a decoded
// message always carries one of these values.
const (
	MethodCancelRecognition = "CANCEL_RECOGNITION"
	MethodCreateSession     = "CREATE_SESSION"
	MethodStartRecognition  = "START_RECOGNITION"
	MethodStopRecognition   = "STOP_RECOGNITION"
	MethodSendAudio         = "SEND_AUDIO"
	MethodGetSessionStatus  = "GET_SESSION_STATUS"
	MethodReleaseSession    = "RELEASE_SESSION"
	MethodRecognitionResult = "RECOGNITION_RESULT"
	MethodResponse          = "RESPONSE"
	MethodStartOfSpeech     = "START_OF_SPEECH"
	MethodEndOfSpeech       = "END_OF_SPEECH"
	MethodStartInputTimers  = "START_INPUT_TIMERS"
)

// Header field names used by the protocol.
const (
	HeaderContentLength = "Content-Length"
	HeaderContentType   = "Content-Type"
	HeaderLastPacket    = "LastPacket"
	HeaderMethod        = "Method"
	HeaderResult        = "Result"
	HeaderErrorCode     = "Error-Code"
	HeaderSessionStatus = "Session-Status"
	HeaderResultStatus  = "Result-Status"
	HeaderUserAgent     = "User-Agent"
	HeaderTime          = "Time"
)

// Body content types.
const (
	ContentTypeURIList     = "text/uri-list"
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeJSON        = "application/json"
)

const (
	protocolName    = "ASR"
	protocolVersion = "2.1"
)

// ErrMalformedMessage is wrapped by every decode failure.
var ErrMalformedMessage = errors.New("malformed asr message")

var validMethods = map[string]bool{
	MethodCancelRecognition: true,
	MethodCreateSession:     true,
	MethodStartRecognition:  true,
	MethodStopRecognition:   true,
	MethodSendAudio:         true,
	MethodGetSessionStatus:  true,
	MethodReleaseSession:    true,
	MethodRecognitionResult: true,
	MethodResponse:          true,
	MethodStartOfSpeech:     true,
	MethodEndOfSpeech:       true,
	MethodStartInputTimers:  true,
}

// Token grammar of RFC 7230, section 3.2.6. Header field names and the
// method token must match it.
var (
	tokenRE     = regexp.MustCompile("^[!#$%&'*+\\-.^_`|~0-9A-Za-z]+$")
	startLineRE = regexp.MustCompile("^ASR 2\\.[0-9]+ ([!#$%&'*+\\-.^_`|~0-9A-Za-z]+)$")
)

// Message is a single frame of the ASR protocol:
//
//	ASR 2.1 METHOD(CRLF)
//	field-name: field-value(CRLF)
//	(CRLF)
//	(body, if any)
//
// Headers may be nil and Body may be nil; the body length on the wire is
// declared by the Content-Length header.
type Message struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// NewMessage builds a message for a known method. It panics on an unknown
// method, which always indicates a programming error inside the SDK.
func NewMessage(method string, headers map[string]string, body []byte) *Message {
	if !validMethods[method] {
		panic("asr: invalid protocol method: " + method)
	}
	return &Message{Method: method, Headers: headers, Body: body}
}

// Header returns the value of the named header field, or "" if absent.
func (m *Message) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[name]
}

// IsLastPacket reports whether a SEND_AUDIO message is flagged as the
// final audio packet of the recognition.
func (m *Message) IsLastPacket() bool {
	return m.Header(HeaderLastPacket) == "true"
}

// EncodeMessage serializes a message into its wire form. Encoding never
// fails for a message built with NewMessage.
func EncodeMessage(m *Message) []byte {
	var buf bytes.Buffer

	buf.WriteString(protocolName)
	buf.WriteByte(' ')
	buf.WriteString(protocolVersion)
	buf.WriteByte(' ')
	buf.WriteString(m.Method)
	buf.WriteString("\r\n")

	for name, value := range m.Headers {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	buf.WriteString("\r\n")

	if len(m.Body) > 0 {
		buf.Write(m.Body)
	}

	return buf.Bytes()
}

// DecodeMessage parses a wire frame into a Message.
//
// A missing or malformed start line, an unknown method, or a frame
// truncated before the blank line that ends the header section are fatal
// and reported as errors wrapping ErrMalformedMessage. Header lines whose
// field name does not match the token grammar are skipped with a warning.
// A declared Content-Length larger than the remaining bytes is tolerated:
// the body is truncated to what is available.
func DecodeMessage(data []byte) (*Message, error) {
	rest := data

	line, rest, ok := nextLine(rest)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end of message", ErrMalformedMessage)
	}

	sub := startLineRE.FindStringSubmatch(string(line))
	if sub == nil {
		return nil, fmt.Errorf("%w: invalid start line %q", ErrMalformedMessage, string(line))
	}
	method := sub[1]
	if !validMethods[method] {
		return nil, fmt.Errorf("%w: unknown method %q", ErrMalformedMessage, method)
	}

	msg := &Message{Method: method}

	for {
		line, rest, ok = nextLine(rest)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected end of message", ErrMalformedMessage)
		}
		if len(line) == 0 {
			break
		}

		name, value, found := strings.Cut(string(line), ":")
		if !found || !tokenRE.MatchString(name) {
			codecLog().Warnf("ignoring invalid header field: %s", string(line))
			continue
		}
		if msg.Headers == nil {
			msg.Headers = make(map[string]string)
		}
		msg.Headers[name] = strings.TrimSpace(value)
	}

	contentLength := -1
	if raw := msg.Header(HeaderContentLength); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			codecLog().Warnf("ignoring invalid content length: %s", raw)
		} else {
			contentLength = n
		}
	}

	if contentLength > 0 {
		if contentLength > len(rest) {
			codecLog().Warn("provided body is smaller than content length")
			contentLength = len(rest)
		}
		if contentLength > 0 {
			msg.Body = make([]byte, contentLength)
			copy(msg.Body, rest[:contentLength])
		}
	}

	return msg, nil
}

// nextLine splits off the bytes up to the next CRLF. ok is false when no
// CRLF remains in the input.
func nextLine(data []byte) (line, rest []byte, ok bool) {
	i := bytes.Index(data, []byte("\r\n"))
	if i < 0 {
		return nil, data, false
	}
	return data[:i], data[i+2:], true
}

func codecLog() *Logger {
	return DefaultLogger().WithComponent("codec")
}
