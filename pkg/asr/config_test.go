package asr

import (
	"reflect"
	"testing"
)

func TestRecognitionConfigHeaderMapOmitsAbsentFields(t *testing.T) {
	config := &RecognitionConfig{
		ContinuousMode:   Bool(true),
		NoInputTimeoutMs: Int(2000),
		MaxSentences:     Int(3),
	}

	want := map[string]string{
		"decoder.continuousMode": "true",
		"noInputTimeout.value":   "2000",
		"decoder.maxSentences":   "3",
	}
	if got := config.headerMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("headerMap() = %v, want %v", got, want)
	}
}

func TestRecognitionConfigEmptyHeaderMap(t *testing.T) {
	config := &RecognitionConfig{}
	if got := config.headerMap(); len(got) != 0 {
		t.Errorf("headerMap() = %v, want empty", got)
	}
}

func TestRecognitionConfigFullHeaderMap(t *testing.T) {
	config := &RecognitionConfig{
		NoInputTimeoutEnabled:     Bool(true),
		NoInputTimeoutMs:          Int(2000),
		RecognitionTimeoutEnabled: Bool(false),
		RecognitionTimeoutMs:      Int(30000),
		StartInputTimers:          Bool(true),
		MaxSentences:              Int(2),
		ContinuousMode:            Bool(false),
		ConfidenceThreshold:       Int(50),
		HeadMarginMs:              Int(200),
		TailMarginMs:              Int(400),
		WaitEndMs:                 Int(800),
		EndpointerLevelThreshold:  Int(4),
		EndpointerLevelMode:       Int(1),
		EndpointerAutoLevelLen:    Int(350),
	}

	got := config.headerMap()
	if len(got) != 14 {
		t.Fatalf("headerMap() has %d entries, want 14", len(got))
	}
	checks := map[string]string{
		"noInputTimeout.enabled":      "true",
		"recognitionTimeout.value":    "30000",
		"decoder.startInputTimers":    "true",
		"decoder.confidenceThreshold": "50",
		"endpointer.headMargin":       "200",
		"endpointer.autoLevelLen":     "350",
	}
	for key, want := range checks {
		if got[key] != want {
			t.Errorf("headerMap()[%q] = %q, want %q", key, got[key], want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid ws", func(c *Config) { c.ServerURL = "ws://localhost:8025/asr-server/asr" }, false},
		{"valid wss", func(c *Config) { c.ServerURL = "wss://speech.example.com/asr" }, false},
		{"missing url", func(c *Config) { c.ServerURL = "" }, true},
		{"http scheme", func(c *Config) { c.ServerURL = "http://localhost/asr" }, true},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"odd sample size", func(c *Config) { c.SampleSizeBits = 24 }, true},
		{"zero chunk length", func(c *Config) { c.ChunkLengthMs = 0 }, true},
		{"negative rtf", func(c *Config) { c.ServerRTF = -1 }, true},
		{"zero max wait", func(c *Config) { c.MaxWaitSeconds = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ServerURL = "ws://localhost:8025/asr-server/asr"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigChunkSize(t *testing.T) {
	cfg := DefaultConfig()
	// 250ms of 8kHz 16-bit mono.
	if got := cfg.chunkSize(); got != 4000 {
		t.Errorf("chunkSize() = %d, want 4000", got)
	}

	cfg.SampleRate = 16000
	cfg.ChunkLengthMs = 100
	if got := cfg.chunkSize(); got != 3200 {
		t.Errorf("chunkSize() = %d, want 3200", got)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ASR_SERVER_URL", "ws://localhost:8025/asr-server/asr")
	t.Setenv("ASR_USERNAME", "alice")
	t.Setenv("ASR_CHUNK_LENGTH_MS", "125")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ServerURL != "ws://localhost:8025/asr-server/asr" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.Username != "alice" {
		t.Errorf("Username = %q", cfg.Username)
	}
	if cfg.ChunkLengthMs != 125 {
		t.Errorf("ChunkLengthMs = %d, want 125", cfg.ChunkLengthMs)
	}
	if cfg.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want default 8000", cfg.SampleRate)
	}
}
