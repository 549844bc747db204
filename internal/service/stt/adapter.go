// Package stt defines the interface for Speech-to-Text adapters.
package stt

import "context"

// Encodings understood by the adapters.
const (
	EncodingLinear16 = "LINEAR16"
	EncodingWebMOpus = "WEBM_OPUS"
	// EncodingText carries the answer as UTF-8 text. Only the mock
	// recognizer accepts it.
	EncodingText = "TEXT"
)

// Format describes the audio handed to an adapter.
type Format struct {
	Encoding     string
	SampleRateHz int
	Channels     int
}

// Callback receives transcript results from the STT provider.
type Callback interface {
	// OnPartial is called when an interim/partial transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnError is called when an error occurs during transcription.
	OnError(err error)
}

// Adapter defines the interface for STT providers.
type Adapter interface {
	// Start begins a transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the audio stream and returns once every pending result
	// has been delivered to the callback.
	Close() error
}

// Factory creates one adapter per uploaded answer.
type Factory func(ctx context.Context, format Format) (Adapter, error)
