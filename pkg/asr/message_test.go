package asr

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "no headers no body",
			msg:  &Message{Method: MethodReleaseSession},
		},
		{
			name: "headers only",
			msg: &Message{
				Method: MethodCreateSession,
				Headers: map[string]string{
					HeaderUserAgent: "asr-sdk-go",
				},
			},
		},
		{
			name: "headers and body",
			msg: &Message{
				Method: MethodSendAudio,
				Headers: map[string]string{
					HeaderLastPacket:    "false",
					HeaderContentLength: "4",
					HeaderContentType:   ContentTypeOctetStream,
				},
				Body: []byte{0x01, 0x02, 0x03, 0x04},
			},
		},
		{
			name: "uri list body",
			msg: &Message{
				Method: MethodStartRecognition,
				Headers: map[string]string{
					HeaderContentType:      ContentTypeURIList,
					HeaderContentLength:    "19",
					"decoder.maxSentences": "3",
				},
				Body: []byte("builtin:slm/general"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeMessage(EncodeMessage(tt.msg))
			if err != nil {
				t.Fatalf("DecodeMessage() error = %v", err)
			}
			if decoded.Method != tt.msg.Method {
				t.Errorf("method = %q, want %q", decoded.Method, tt.msg.Method)
			}
			if len(tt.msg.Headers) > 0 && !reflect.DeepEqual(decoded.Headers, tt.msg.Headers) {
				t.Errorf("headers = %v, want %v", decoded.Headers, tt.msg.Headers)
			}
			if !bytes.Equal(decoded.Body, tt.msg.Body) {
				t.Errorf("body = %v, want %v", decoded.Body, tt.msg.Body)
			}
		})
	}
}

func TestDecodeTruncatedBodyIsTolerated(t *testing.T) {
	frame := "ASR 2.1 SEND_AUDIO\r\nContent-Length: 100\r\n\r\nabc"
	msg, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	if string(msg.Body) != "abc" {
		t.Errorf("body = %q, want %q", msg.Body, "abc")
	}
}

func TestDecodeWithoutContentLengthHasNoBody(t *testing.T) {
	frame := "ASR 2.1 RESPONSE\r\nMethod: CREATE_SESSION\r\n\r\ntrailing bytes"
	msg, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	if msg.Body != nil {
		t.Errorf("body = %v, want nil", msg.Body)
	}
	if got := msg.Header(HeaderMethod); got != MethodCreateSession {
		t.Errorf("Method header = %q, want %q", got, MethodCreateSession)
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"empty", ""},
		{"no crlf", "ASR 2.1 RESPONSE"},
		{"wrong protocol", "SIP 2.1 RESPONSE\r\n\r\n"},
		{"wrong version", "ASR 1.0 RESPONSE\r\n\r\n"},
		{"unknown method", "ASR 2.1 DESTROY_EVERYTHING\r\n\r\n"},
		{"missing method", "ASR 2.1\r\n\r\n"},
		{"truncated before blank line", "ASR 2.1 RESPONSE\r\nMethod: SEND_AUDIO\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.frame))
			if err == nil {
				t.Fatal("DecodeMessage() error = nil, want error")
			}
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("error = %v, want wrapped ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecodeSkipsInvalidHeaderLines(t *testing.T) {
	frame := strings.Join([]string{
		"ASR 2.1 RESPONSE",
		"Method: SEND_AUDIO",
		"this line has no colon",
		"bad header name: value",
		"Session-Status: ASR_LISTENING",
		"",
		"",
	}, "\r\n")

	msg, err := DecodeMessage([]byte(frame))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	want := map[string]string{
		HeaderMethod:        MethodSendAudio,
		HeaderSessionStatus: "ASR_LISTENING",
	}
	if !reflect.DeepEqual(msg.Headers, want) {
		t.Errorf("headers = %v, want %v", msg.Headers, want)
	}
}

func TestDecodeMinorVersionsAccepted(t *testing.T) {
	msg, err := DecodeMessage([]byte("ASR 2.3 START_OF_SPEECH\r\n\r\n"))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	if msg.Method != MethodStartOfSpeech {
		t.Errorf("method = %q, want %q", msg.Method, MethodStartOfSpeech)
	}
}

func TestNewMessagePanicsOnUnknownMethod(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewMessage() did not panic on unknown method")
		}
	}()
	NewMessage("BOGUS", nil, nil)
}

func TestIsLastPacket(t *testing.T) {
	msg := &Message{Method: MethodSendAudio, Headers: map[string]string{HeaderLastPacket: "true"}}
	if !msg.IsLastPacket() {
		t.Error("IsLastPacket() = false, want true")
	}
	msg.Headers[HeaderLastPacket] = "false"
	if msg.IsLastPacket() {
		t.Error("IsLastPacket() = true, want false")
	}
}
