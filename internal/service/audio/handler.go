// Package audio turns one uploaded answer into a transcript. It decodes the
// upload, streams it to an STT adapter and enforces upload limits.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-intake-service/internal/observability/logging"
	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/service/stt"
	"voice-intake-service/internal/service/utterance"
)

var (
	ErrLimitExceeded = errors.New("upload limit exceeded")
	ErrNoTranscript  = errors.New("no transcript produced")
)

// Limits bounds the resources one upload may use.
type Limits struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
	ChunkBytes    int
	// RawSampleRate applies to uploads without a recognizable container.
	RawSampleRate int
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 10 * 1024 * 1024,
		MaxDuration:   2 * time.Minute,
		MaxPartials:   500,
		ChunkBytes:    8 * 1024,
		RawSampleRate: 16000,
	}
}

// Result is the outcome of one transcription.
type Result struct {
	UtteranceID string
	Text        string
	Confidence  float64
	Encoding    string
	Duration    time.Duration
	Partials    int
}

// Transcriber creates one Handler per upload.
type Transcriber struct {
	factory  stt.Factory
	provider string
	limits   Limits
	metrics  *metrics.Metrics
}

// NewTranscriber creates a transcriber. A nil m uses the default metrics.
func NewTranscriber(factory stt.Factory, provider string, limits Limits, m *metrics.Metrics) *Transcriber {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Transcriber{factory: factory, provider: provider, limits: limits, metrics: m}
}

// Provider returns the STT provider name.
func (t *Transcriber) Provider() string {
	return t.provider
}

// Transcribe decodes data and returns its final transcript. An empty final
// transcript is returned as "" without error.
func (t *Transcriber) Transcribe(ctx context.Context, sessionID string, data []byte, contentType string) (*Result, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := logging.WithUpload(sessionID, id, t.provider)

	if t.limits.MaxAudioBytes > 0 && int64(len(data)) > t.limits.MaxAudioBytes {
		t.metrics.RecordLimitExceeded("bytes")
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrLimitExceeded, len(data), t.limits.MaxAudioBytes)
	}

	clip, err := Decode(data, contentType, t.limits.RawSampleRate)
	if err != nil {
		return nil, err
	}
	t.metrics.RecordAudioReceived(clip.Format.Encoding, len(data))

	if t.limits.MaxDuration > 0 && clip.Duration > t.limits.MaxDuration {
		t.metrics.RecordLimitExceeded("duration")
		return nil, fmt.Errorf("%w: %v > %v", ErrLimitExceeded, clip.Duration.Round(time.Millisecond), t.limits.MaxDuration)
	}

	adapter, err := t.factory(ctx, clip.Format)
	if err != nil {
		t.metrics.RecordSTTError(t.provider, "create")
		return nil, fmt.Errorf("create stt adapter: %w", err)
	}

	h := NewHandler(adapter, id, t.limits, t.metrics, logger)
	if err := h.Start(ctx); err != nil {
		adapter.Close()
		t.metrics.RecordSTTError(t.provider, "start")
		return nil, fmt.Errorf("start stt: %w", err)
	}

	if err := h.Stream(ctx, clip.Data); err != nil {
		h.Close()
		t.metrics.RecordSTTError(t.provider, "send")
		return nil, err
	}
	if err := h.Close(); err != nil {
		logger.Warn().Err(err).Msg("STT close returned error")
	}
	t.metrics.RecordSTT(t.provider, time.Since(start).Seconds())

	res, err := h.Result()
	if err != nil {
		if !errors.Is(err, ErrLimitExceeded) && !errors.Is(err, ErrNoTranscript) {
			t.metrics.RecordSTTError(t.provider, "recognize")
		}
		return nil, err
	}
	res.Encoding = clip.Format.Encoding
	res.Duration = clip.Duration

	logger.Info().
		Str("encoding", res.Encoding).
		Dur("audio", res.Duration).
		Int("partials", res.Partials).
		Str("transcript", res.Text).
		Dur("elapsed", time.Since(start)).
		Msg("Answer transcribed")

	return res, nil
}

// Handler manages the transcription of a single upload.
// It implements stt.Callback and tracks the utterance lifecycle.
type Handler struct {
	adapter   stt.Adapter
	lifecycle *utterance.Lifecycle
	limits    Limits
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu         sync.Mutex
	confidence float64
	sttErr     error
	started    time.Time
}

// NewHandler creates a handler for one upload.
func NewHandler(adapter stt.Adapter, utteranceID string, limits Limits, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Handler{
		adapter:   adapter,
		lifecycle: utterance.NewLifecycle(utteranceID),
		limits:    limits,
		metrics:   m,
		logger:    logger,
		started:   time.Now(),
	}
}

// Start begins the STT session with this handler as the callback receiver.
func (h *Handler) Start(ctx context.Context) error {
	return h.adapter.Start(ctx, h)
}

// Stream sends data to the adapter in ChunkBytes pieces. ChunkBytes <= 0
// sends everything at once.
func (h *Handler) Stream(ctx context.Context, data []byte) error {
	chunk := h.limits.ChunkBytes
	if chunk <= 0 {
		chunk = len(data)
	}
	for off := 0; off < len(data); off += chunk {
		if err := ctx.Err(); err != nil {
			h.Drop("cancelled")
			return err
		}
		if h.lifecycle.State().IsTerminal() {
			break
		}
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := h.adapter.SendAudio(ctx, data[off:end]); err != nil {
			h.Drop("send_error")
			return fmt.Errorf("send audio: %w", err)
		}
	}
	return nil
}

// Close flushes the adapter and closes the utterance.
func (h *Handler) Close() error {
	err := h.adapter.Close()
	h.lifecycle.Close()
	return err
}

// Drop abandons the utterance.
func (h *Handler) Drop(reason string) bool {
	prev := h.lifecycle.State()
	dropped := h.lifecycle.Drop(reason)
	if dropped {
		h.metrics.RecordUtteranceDropped(reason)
		h.logger.Warn().
			Str("utteranceId", h.lifecycle.ID()).
			Str("previousState", prev.String()).
			Str("reason", reason).
			Msg("Utterance dropped")
	}
	return dropped
}

// State returns the utterance lifecycle state.
func (h *Handler) State() utterance.State {
	return h.lifecycle.State()
}

// Result reports the transcript once the handler is closed.
func (h *Handler) Result() (*Result, error) {
	h.mu.Lock()
	sttErr := h.sttErr
	confidence := h.confidence
	h.mu.Unlock()

	if h.lifecycle.State() == utterance.StateDropped {
		reason := h.lifecycle.DropReason()
		switch {
		case sttErr != nil:
			return nil, fmt.Errorf("transcribe: %w", sttErr)
		case reason == "partials":
			return nil, fmt.Errorf("%w: too many partial results", ErrLimitExceeded)
		default:
			return nil, fmt.Errorf("%w: utterance dropped (%s)", ErrNoTranscript, reason)
		}
	}

	text, ok := h.lifecycle.Transcript()
	if !ok {
		h.metrics.RecordUtteranceDropped("no_final")
		return nil, ErrNoTranscript
	}
	h.metrics.RecordUtteranceCompleted()
	return &Result{
		UtteranceID: h.lifecycle.ID(),
		Text:        text,
		Confidence:  confidence,
		Partials:    h.lifecycle.Partials(),
	}, nil
}

// --- stt.Callback implementation ---

// OnPartial counts interim results against MaxPartials.
func (h *Handler) OnPartial(text string) {
	if err := h.lifecycle.Partial(); err != nil {
		h.logger.Debug().Err(err).Str("state", h.lifecycle.State().String()).Msg("OnPartial ignored")
		return
	}
	h.metrics.RecordPartialTranscript()

	if h.limits.MaxPartials > 0 && h.lifecycle.Partials() > h.limits.MaxPartials {
		h.metrics.RecordLimitExceeded("partials")
		h.Drop("partials")
		return
	}
	h.logger.Debug().Str("partial", text).Msg("Partial transcript")
}

// OnFinal records the first final transcript.
func (h *Handler) OnFinal(text string, confidence float64) {
	if err := h.lifecycle.Final(text); err != nil {
		h.logger.Debug().Err(err).Str("state", h.lifecycle.State().String()).Msg("OnFinal ignored")
		return
	}
	h.mu.Lock()
	h.confidence = confidence
	h.mu.Unlock()
	h.metrics.RecordFinalTranscript()
}

// OnError drops the utterance; a transcript from a failed stream is not used.
func (h *Handler) OnError(err error) {
	h.mu.Lock()
	if h.sttErr == nil {
		h.sttErr = err
	}
	h.mu.Unlock()
	h.Drop("stt_error")
	h.logger.Error().Err(err).Msg("STT error")
}
