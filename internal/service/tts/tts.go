// Package tts turns prompt text into a retrievable audio handle.
package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voice-intake-service/internal/observability/metrics"
	"voice-intake-service/internal/service/clips"
)

// Synthesis is the audio produced for one prompt.
type Synthesis struct {
	Audio       []byte
	ContentType string
}

// Synthesizer defines the interface for TTS providers.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string) (*Synthesis, error)
}

// AudioHandle identifies a stored prompt clip.
type AudioHandle struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Speaker synthesizes prompts and stores the audio.
type Speaker struct {
	synth   Synthesizer
	store   clips.Store
	baseURL string
	metrics *metrics.Metrics
}

// NewSpeaker creates a speaker. Handle URLs are baseURL + "/v1/audio/{id}".
func NewSpeaker(synth Synthesizer, store clips.Store, baseURL string, m *metrics.Metrics) *Speaker {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Speaker{
		synth:   synth,
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: m,
	}
}

// Speak synthesizes text and returns a handle to the stored audio.
func (s *Speaker) Speak(ctx context.Context, text string) (*AudioHandle, error) {
	start := time.Now()
	syn, err := s.synth.Synthesize(ctx, text)
	s.metrics.RecordTTS(s.synth.Name(), err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	id, err := s.store.Put(ctx, clips.Clip{ContentType: syn.ContentType, Data: syn.Audio})
	if err != nil {
		return nil, fmt.Errorf("store clip: %w", err)
	}

	return &AudioHandle{
		ID:          id,
		URL:         s.baseURL + "/v1/audio/" + id,
		ContentType: syn.ContentType,
		Size:        len(syn.Audio),
	}, nil
}
