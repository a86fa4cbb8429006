package asr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeRecognitions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asr_sdk_active_recognitions",
		Help: "Number of recognitions currently in flight",
	})

	recognitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_sdk_recognitions_total",
		Help: "Total number of completed recognitions",
	}, []string{"result_status"})

	recognitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asr_sdk_recognition_duration_seconds",
		Help:    "Wall-clock duration of recognitions in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	recognitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asr_sdk_errors_total",
		Help: "Total number of recognition errors",
	}, []string{"code"})

	audioChunksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_sdk_audio_chunks_total",
		Help: "Total number of audio packets sent",
	})

	audioBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_sdk_audio_bytes_total",
		Help: "Total audio bytes sent",
	})

	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asr_sdk_sessions_total",
		Help: "Total number of server sessions created",
	})
)

// recognitionMetrics tracks one recognition attempt.
type recognitionMetrics struct {
	startTime time.Time
}

func startRecognitionMetrics() *recognitionMetrics {
	activeRecognitions.Inc()
	return &recognitionMetrics{startTime: time.Now()}
}

func (m *recognitionMetrics) recordResult(status ResultStatus) {
	recognitionsTotal.WithLabelValues(string(status)).Inc()
}

func (m *recognitionMetrics) recordError(code ErrorCode) {
	recognitionErrors.WithLabelValues(string(code)).Inc()
}

func (m *recognitionMetrics) end() {
	activeRecognitions.Dec()
	recognitionDuration.Observe(time.Since(m.startTime).Seconds())
}

func recordAudioChunk(bytes int) {
	audioChunksSent.Inc()
	audioBytesSent.Add(float64(bytes))
}

func recordSessionOpened() {
	sessionsOpened.Inc()
}
