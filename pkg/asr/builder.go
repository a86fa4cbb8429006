package asr

// RecognizerBuilder assembles a SpeechRecognizer. Zero values fall back
// to the configuration defaults; Build validates the result.
type RecognizerBuilder struct {
	cfg         *Config
	recogConfig *RecognitionConfig
	listeners   []RecognitionListener
}

// NewRecognizerBuilder starts a builder from the configuration defaults.
func NewRecognizerBuilder() *RecognizerBuilder {
	return &RecognizerBuilder{cfg: DefaultConfig()}
}

// NewRecognizerBuilderFromConfig starts a builder from an existing
// configuration, typically loaded from the environment.
func NewRecognizerBuilderFromConfig(cfg *Config) *RecognizerBuilder {
	c := *cfg
	return &RecognizerBuilder{cfg: &c}
}

// ServerURL sets the websocket endpoint of the recognition server.
func (b *RecognizerBuilder) ServerURL(url string) *RecognizerBuilder {
	b.cfg.ServerURL = url
	return b
}

// Credentials sets the HTTP Basic credentials for the handshake.
func (b *RecognizerBuilder) Credentials(username, password string) *RecognizerBuilder {
	b.cfg.Username = username
	b.cfg.Password = password
	return b
}

// APISecret enables bearer-token handshake auth with the given shared
// secret.
func (b *RecognizerBuilder) APISecret(secret string) *RecognizerBuilder {
	b.cfg.APISecret = secret
	return b
}

// UserAgent sets the User-Agent header of CREATE_SESSION.
func (b *RecognizerBuilder) UserAgent(ua string) *RecognizerBuilder {
	b.cfg.UserAgent = ua
	return b
}

// RecogConfig sets the default recognition parameters, used when
// Recognize is called without an explicit config.
func (b *RecognizerBuilder) RecogConfig(config *RecognitionConfig) *RecognizerBuilder {
	b.recogConfig = config
	return b
}

// AddListener registers a listener. Listeners are invoked in
// registration order.
func (b *RecognizerBuilder) AddListener(l RecognitionListener) *RecognizerBuilder {
	b.listeners = append(b.listeners, l)
	return b
}

// AudioFormat sets the sample rate and sample size of the audio sources
// that will be recognized.
func (b *RecognizerBuilder) AudioFormat(sampleRate, sampleSizeBits int) *RecognizerBuilder {
	b.cfg.SampleRate = sampleRate
	b.cfg.SampleSizeBits = sampleSizeBits
	return b
}

// ChunkLengthMs sets the duration of each audio packet.
func (b *RecognizerBuilder) ChunkLengthMs(ms int) *RecognizerBuilder {
	b.cfg.ChunkLengthMs = ms
	return b
}

// ServerRTF sets the pacing factor between audio packets.
func (b *RecognizerBuilder) ServerRTF(rtf float64) *RecognizerBuilder {
	b.cfg.ServerRTF = rtf
	return b
}

// MaxWaitSeconds bounds WaitRecognitionResult and the network timeout.
func (b *RecognizerBuilder) MaxWaitSeconds(s int) *RecognizerBuilder {
	b.cfg.MaxWaitSeconds = s
	return b
}

// ConnectOnRecognize defers dialing to the first Recognize call.
func (b *RecognizerBuilder) ConnectOnRecognize(v bool) *RecognizerBuilder {
	b.cfg.ConnectOnRecognize = v
	return b
}

// AutoClose releases the session after each completed recognition.
func (b *RecognizerBuilder) AutoClose(v bool) *RecognizerBuilder {
	b.cfg.AutoClose = v
	return b
}

// MaxSessionIdleSeconds sets the idle disconnect timeout. Zero disables
// idle expiry.
func (b *RecognizerBuilder) MaxSessionIdleSeconds(s int) *RecognizerBuilder {
	b.cfg.MaxSessionIdleSeconds = s
	return b
}

// Build validates the configuration and creates the recognizer. Unless
// ConnectOnRecognize is set, the connection is dialed eagerly.
func (b *RecognizerBuilder) Build() (*SpeechRecognizer, error) {
	return newSpeechRecognizer(b.cfg, b.recogConfig, b.listeners)
}
