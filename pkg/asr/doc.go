// Package asr is a Go client SDK for CPqD streaming speech recognition
// servers reachable over websocket.
//
// # Overview
//
// The SDK turns an audio stream plus a language model reference into a
// sequence of recognition results. It provides:
//   - The ASR wire protocol codec and transport session management
//   - A recognizer façade with a synchronous-looking API over
//     asynchronous network events
//   - Paced audio delivery honoring the server's real-time budget
//   - File, in-memory buffer and live microphone audio sources
//   - Structured logging with Zerolog and Prometheus metrics
//
// # Quick Start
//
// Recognize an audio file against a grammar:
//
//	recognizer, err := asr.NewRecognizerBuilder().
//		ServerURL("wss://speech.example.com/asr-server/asr").
//		Credentials("user", "password").
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer recognizer.Close()
//
//	source, err := asr.NewFileAudioSource("audio.raw")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := recognizer.Recognize(source, []string{"builtin:slm/general"}); err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := recognizer.WaitRecognitionResult()
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, result := range results {
//		fmt.Println(result.Text())
//	}
//
// # Configuration
//
// Client settings come from the environment (ASR_ prefixed variables,
// optionally a .env file) through LoadConfig, or from the builder:
//
//	cfg, err := asr.LoadConfig()
//	recognizer, err := asr.NewRecognizerBuilderFromConfig(cfg).Build()
//
// Per-recognition parameters such as timeouts, endpointer tuning and
// continuous mode are set with RecognitionConfig:
//
//	config := &asr.RecognitionConfig{
//		ContinuousMode:   asr.Bool(true),
//		NoInputTimeoutMs: asr.Int(2000),
//	}
//	recognizer.Recognize(source, lmURIs, config)
//
// # Listeners
//
// Registered listeners receive recognition lifecycle events, including
// partial results while a segment is still being recognized:
//
//	builder.AddListener(&asr.ListenerFuncs{
//		PartialResult: func(r *asr.PartialRecognitionResult) {
//			fmt.Println("partial:", r.Text)
//		},
//	})
package asr
