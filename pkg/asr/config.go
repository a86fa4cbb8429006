package asr

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// RecognitionConfig carries per-recognition tuning parameters. Fields are
// pointer-typed: a nil field is omitted from the START_RECOGNITION request
// entirely, leaving the server default in effect.
type RecognitionConfig struct {
	NoInputTimeoutEnabled     *bool
	NoInputTimeoutMs          *int
	RecognitionTimeoutEnabled *bool
	RecognitionTimeoutMs      *int
	StartInputTimers          *bool
	MaxSentences              *int
	ContinuousMode            *bool
	ConfidenceThreshold       *int
	HeadMarginMs              *int
	TailMarginMs              *int
	WaitEndMs                 *int
	EndpointerLevelThreshold  *int
	EndpointerLevelMode       *int
	EndpointerAutoLevelLen    *int
}

// headerMap serializes the present parameters under their wire keys.
func (c *RecognitionConfig) headerMap() map[string]string {
	m := make(map[string]string)
	putBool := func(key string, v *bool) {
		if v != nil {
			m[key] = strconv.FormatBool(*v)
		}
	}
	putInt := func(key string, v *int) {
		if v != nil {
			m[key] = strconv.Itoa(*v)
		}
	}
	putBool("noInputTimeout.enabled", c.NoInputTimeoutEnabled)
	putInt("noInputTimeout.value", c.NoInputTimeoutMs)
	putBool("recognitionTimeout.enabled", c.RecognitionTimeoutEnabled)
	putInt("recognitionTimeout.value", c.RecognitionTimeoutMs)
	putBool("decoder.startInputTimers", c.StartInputTimers)
	putInt("decoder.maxSentences", c.MaxSentences)
	putBool("decoder.continuousMode", c.ContinuousMode)
	putInt("decoder.confidenceThreshold", c.ConfidenceThreshold)
	putInt("endpointer.headMargin", c.HeadMarginMs)
	putInt("endpointer.tailMargin", c.TailMarginMs)
	putInt("endpointer.waitEnd", c.WaitEndMs)
	putInt("endpointer.levelThreshold", c.EndpointerLevelThreshold)
	putInt("endpointer.levelMode", c.EndpointerLevelMode)
	putInt("endpointer.autoLevelLen", c.EndpointerAutoLevelLen)
	return m
}

// Bool returns a pointer to b, for filling optional fields.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for filling optional fields.
func Int(i int) *int { return &i }

// Config is the client-level configuration of a recognizer.
type Config struct {
	// ServerURL is the websocket endpoint, scheme ws or wss.
	ServerURL string `envconfig:"SERVER_URL"`

	// Username and Password are sent as HTTP Basic credentials on the
	// opening handshake when both are set.
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`

	// APISecret, when set, mints a short-lived bearer token for the
	// handshake in addition to (or instead of) Basic credentials.
	APISecret string `envconfig:"API_SECRET"`

	UserAgent string `envconfig:"USER_AGENT" default:"asr-sdk-go"`

	// Audio format of the sources fed to Recognize.
	SampleRate     int `envconfig:"SAMPLE_RATE" default:"8000"`
	SampleSizeBits int `envconfig:"SAMPLE_SIZE_BITS" default:"16"`

	// ChunkLengthMs is the duration of each SEND_AUDIO packet.
	ChunkLengthMs int `envconfig:"CHUNK_LENGTH_MS" default:"250"`

	// ServerRTF paces audio delivery: the reader sleeps
	// ChunkLengthMs * ServerRTF between chunks.
	ServerRTF float64 `envconfig:"SERVER_RTF" default:"0.1"`

	// MaxWaitSeconds bounds WaitRecognitionResult when the caller gives
	// no explicit timeout.
	MaxWaitSeconds int `envconfig:"MAX_WAIT_SECONDS" default:"30"`

	// ConnectOnRecognize defers the connection to the first Recognize
	// call instead of dialing at construction.
	ConnectOnRecognize bool `envconfig:"CONNECT_ON_RECOGNIZE" default:"false"`

	// AutoClose releases the session after each completed recognition.
	AutoClose bool `envconfig:"AUTO_CLOSE" default:"false"`

	// MaxSessionIdleSeconds disconnects a session left Idle for too
	// long. The next Recognize reconnects transparently.
	MaxSessionIdleSeconds int `envconfig:"MAX_SESSION_IDLE_SECONDS" default:"30"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"warn"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// LoadConfig reads the configuration from the environment, applying a
// .env file when present. Variables use the ASR_ prefix
// (ASR_SERVER_URL, ASR_USERNAME, ...).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("asr", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration defaults without touching the
// environment. ServerURL is left empty.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:             "asr-sdk-go",
		SampleRate:            8000,
		SampleSizeBits:        16,
		ChunkLengthMs:         250,
		ServerRTF:             0.1,
		MaxWaitSeconds:        30,
		MaxSessionIdleSeconds: 30,
		LogLevel:              "warn",
	}
}

// Validate checks the configuration for values the SDK cannot work with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server URL scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	if c.SampleSizeBits != 8 && c.SampleSizeBits != 16 {
		return fmt.Errorf("sample size must be 8 or 16 bits")
	}
	if c.ChunkLengthMs <= 0 {
		return fmt.Errorf("chunk length must be positive")
	}
	if c.ServerRTF < 0 {
		return fmt.Errorf("server RTF must not be negative")
	}
	if c.MaxWaitSeconds <= 0 {
		return fmt.Errorf("max wait seconds must be positive")
	}
	return nil
}

// chunkSize is the byte size of one audio packet.
func (c *Config) chunkSize() int {
	return c.ChunkLengthMs * c.SampleRate * c.SampleSizeBits / 1000 / 8
}

// parseLogLevel maps the textual LogLevel to the logger's level.
func (c *Config) parseLogLevel() LogLevel {
	switch c.LogLevel {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "error":
		return ErrorLevel
	default:
		return WarnLevel
	}
}
