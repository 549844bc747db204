// Package mock provides a TTS synthesizer that needs no cloud credentials.
// It returns silent WAV audio sized to the prompt.
package mock

import (
	"context"
	"unicode/utf8"

	"voice-intake-service/internal/service/audio"
	"voice-intake-service/internal/service/tts"
)

const (
	sampleRate = 8000
	// Roughly the pace of a slow IVR voice.
	millisPerRune = 60
)

// Synthesizer implements tts.Synthesizer.
type Synthesizer struct{}

func New() *Synthesizer {
	return &Synthesizer{}
}

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) Synthesize(_ context.Context, text string) (*tts.Synthesis, error) {
	ms := utf8.RuneCountInString(text) * millisPerRune
	samples := sampleRate * ms / 1000
	return &tts.Synthesis{
		Audio:       audio.EncodeWAV(make([]byte, samples*2), sampleRate, 1),
		ContentType: "audio/wav",
	}, nil
}
