// Package mock provides a mock STT adapter for running without cloud credentials.
// TEXT clips are echoed back as the transcript; other audio is answered from a
// scripted intake conversation.
package mock

import (
	"context"
	"strings"
	"sync"

	"voice-intake-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances answers every question of the default intake once.
var DefaultUtterances = []SimulatedUtterance{
	{Partials: []string{"My name", "My name is"}, Final: "My name is Ravi Kumar", Confidence: 0.94},
	{Partials: []string{"Yes"}, Final: "yes", Confidence: 0.98},
	{Partials: []string{"I live", "I live in"}, Final: "I live in Chennai", Confidence: 0.92},
	{Partials: []string{"Yes"}, Final: "yes", Confidence: 0.98},
	{Partials: []string{"five hundred"}, Final: "five hundred rupees", Confidence: 0.9},
	{Partials: []string{"Yes"}, Final: "yes", Confidence: 0.98},
	{Partials: []string{"nine eight seven", "nine eight seven six five"}, Final: "nine eight seven six five four three two one zero", Confidence: 0.88},
	{Partials: []string{"Yes"}, Final: "yes", Confidence: 0.98},
	{Partials: []string{"thirty"}, Final: "thirty two", Confidence: 0.93},
	{Partials: []string{"Yes"}, Final: "yes", Confidence: 0.98},
}

// Adapter implements stt.Adapter with mock responses.
type Adapter struct {
	format    stt.Format
	cb        stt.Callback
	mu        sync.Mutex
	text      strings.Builder
	frames    int
	utterance SimulatedUtterance
	partial   int
	closed    bool
}

// utteranceCounter tracks which scripted utterance to use next.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter for the given format.
func New(format stt.Format) *Adapter {
	a := &Adapter{format: format}
	if format.Encoding != stt.EncodingText {
		counterMu.Lock()
		a.utterance = DefaultUtterances[utteranceCounter%len(DefaultUtterances)]
		utteranceCounter++
		counterMu.Unlock()
	}
	return a
}

// NewScripted creates a mock adapter that answers with utt regardless of input.
func NewScripted(utt SimulatedUtterance) *Adapter {
	return &Adapter{utterance: utt}
}

// Factory satisfies stt.Factory.
func Factory(_ context.Context, format stt.Format) (stt.Adapter, error) {
	return New(format), nil
}

// Start begins a mock transcription session.
func (a *Adapter) Start(_ context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio accumulates TEXT payloads or advances the scripted partials.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil {
		return nil
	}
	a.frames++

	if a.echoes() {
		a.text.Write(audio)
		a.cb.OnPartial(strings.TrimSpace(a.text.String()))
		return nil
	}

	if a.partial < len(a.utterance.Partials) {
		a.cb.OnPartial(a.utterance.Partials[a.partial])
		a.partial++
	}
	return nil
}

// Close delivers the final transcript.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.cb == nil {
		return nil
	}

	if a.echoes() {
		a.cb.OnFinal(strings.TrimSpace(a.text.String()), 1.0)
		return nil
	}
	a.cb.OnFinal(a.utterance.Final, a.utterance.Confidence)
	return nil
}

// Frames returns how many SendAudio calls were accepted.
func (a *Adapter) Frames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}

func (a *Adapter) echoes() bool {
	return a.format.Encoding == stt.EncodingText && a.utterance.Final == ""
}
