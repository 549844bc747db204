// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_intake"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Turn metrics
	TurnsTotal    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	Rejections    *prometheus.CounterVec
	Confirmations *prometheus.CounterVec

	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsReset     prometheus.Counter
	SessionsActive    prometheus.Gauge

	// Persistence metrics
	PersistTotal   *prometheus.CounterVec
	PersistErrors  *prometheus.CounterVec
	PersistLatency *prometheus.HistogramVec

	// Utterance metrics
	UtterancesCompleted prometheus.Counter
	UtterancesDropped   *prometheus.CounterVec
	TranscriptsPartial  prometheus.Counter
	TranscriptsFinal    prometheus.Counter

	// Audio metrics
	AudioBytesReceived   prometheus.Counter
	AudioUploadsReceived *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Speech metrics
	STTLatency *prometheus.HistogramVec
	STTErrors  *prometheus.CounterVec
	TTSLatency *prometheus.HistogramVec
	TTSErrors  *prometheus.CounterVec

	// API metrics
	GRPCRequests *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec

	// Backpressure metrics
	LimitExceeded *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of turns processed by outcome",
		}, []string{"outcome"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time to process a turn including synthesis and persistence",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Total number of answers rejected by field validation",
		}, []string{"field"}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Total number of confirmation answers by result",
		}, []string{"field", "result"}),

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of intake sessions created",
		}),
		SessionsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of intake sessions with every field confirmed",
		}),
		SessionsReset: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reset_total",
			Help:      "Total number of sessions removed by reset",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently held in memory",
		}),

		PersistTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Total number of completed-record persistence attempts",
		}, []string{"backend"}),
		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Total number of failed persistence attempts",
		}, []string{"backend", "policy"}),
		PersistLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_latency_seconds",
			Help:      "Completed-record persistence latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend"}),

		UtterancesCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_completed_total",
			Help:      "Total number of uploaded answers transcribed",
		}),
		UtterancesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_total",
			Help:      "Total number of uploaded answers dropped",
		}, []string{"reason"}),
		TranscriptsPartial: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial transcripts received",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),

		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioUploadsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_uploads_total",
			Help:      "Total audio uploads received by detected encoding",
		}, []string{"encoding"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		STTLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text latency per uploaded answer in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		TTSLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_latency_seconds",
			Help:      "Text-to-speech synthesis latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"provider"}),
		TTSErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_errors_total",
			Help:      "Total number of TTS errors",
		}, []string{"provider"}),

		GRPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC unary calls",
		}, []string{"method", "code"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),

		LimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_exceeded_total",
			Help:      "Total number of times upload limits were exceeded",
		}, []string{"limit_type"}),
	}
}

// RecordTurn records a processed turn.
func (m *Metrics) RecordTurn(outcome string, durationSeconds float64) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordRejection records a validation rejection for field.
func (m *Metrics) RecordRejection(field string) {
	m.Rejections.WithLabelValues(field).Inc()
}

// RecordConfirmation records a yes/no answer to a confirmation prompt.
func (m *Metrics) RecordConfirmation(field string, affirmed bool) {
	result := "no"
	if affirmed {
		result = "yes"
	}
	m.Confirmations.WithLabelValues(field, result).Inc()
}

// RecordSessionStarted records a new session.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionCompleted records a finished session.
func (m *Metrics) RecordSessionCompleted() {
	m.SessionsCompleted.Inc()
	m.SessionsActive.Dec()
}

// RecordSessionReset records a session removed by reset.
func (m *Metrics) RecordSessionReset() {
	m.SessionsReset.Inc()
	m.SessionsActive.Dec()
}

// RecordPersist records a persistence attempt.
func (m *Metrics) RecordPersist(backend, policy string, err error, latencySeconds float64) {
	m.PersistTotal.WithLabelValues(backend).Inc()
	m.PersistLatency.WithLabelValues(backend).Observe(latencySeconds)
	if err != nil {
		m.PersistErrors.WithLabelValues(backend, policy).Inc()
	}
}

// RecordUtteranceCompleted records an uploaded answer that produced a transcript.
func (m *Metrics) RecordUtteranceCompleted() {
	m.UtterancesCompleted.Inc()
}

// RecordUtteranceDropped records an uploaded answer being dropped.
func (m *Metrics) RecordUtteranceDropped(reason string) {
	m.UtterancesDropped.WithLabelValues(reason).Inc()
}

// RecordPartialTranscript records a partial transcript received.
func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

// RecordFinalTranscript records a final transcript received.
func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordAudioReceived records an upload and its size.
func (m *Metrics) RecordAudioReceived(encoding string, bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioUploadsReceived.WithLabelValues(encoding).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTT records the latency of one transcription.
func (m *Metrics) RecordSTT(provider string, latencySeconds float64) {
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordTTS records a synthesis attempt.
func (m *Metrics) RecordTTS(provider string, err error, latencySeconds float64) {
	m.TTSLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.TTSErrors.WithLabelValues(provider).Inc()
	}
}

// RecordGRPC records a gRPC unary call.
func (m *Metrics) RecordGRPC(method, code string) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}

// RecordHTTP records an HTTP request.
func (m *Metrics) RecordHTTP(route, method string, status int) {
	m.HTTPRequests.WithLabelValues(route, method, statusClass(status)).Inc()
}

// RecordLimitExceeded records when an upload limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.LimitExceeded.WithLabelValues(limitType).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
