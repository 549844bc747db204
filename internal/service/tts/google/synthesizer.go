// Package google provides a Google Cloud Text-to-Speech synthesizer.
package google

import (
	"context"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"

	"voice-intake-service/internal/service/tts"
)

// Config holds voice settings.
type Config struct {
	LanguageCode  string
	VoiceName     string
	AudioEncoding string
	SpeakingRate  float64
	SampleRateHz  int
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		AudioEncoding: "MP3",
		SpeakingRate:  0.95,
	}
}

// parseAudioEncoding maps an encoding name to the proto enum, defaulting to MP3.
func parseAudioEncoding(s string) (texttospeechpb.AudioEncoding, string) {
	switch s {
	case "LINEAR16":
		return texttospeechpb.AudioEncoding_LINEAR16, "audio/wav"
	case "OGG_OPUS":
		return texttospeechpb.AudioEncoding_OGG_OPUS, "audio/ogg"
	case "MULAW":
		return texttospeechpb.AudioEncoding_MULAW, "audio/basic"
	default:
		return texttospeechpb.AudioEncoding_MP3, "audio/mpeg"
	}
}

// speechClient is the part of *texttospeech.Client the synthesizer uses.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// Synthesizer implements tts.Synthesizer.
type Synthesizer struct {
	client speechClient
	cfg    Config
}

// New creates the Text-to-Speech client.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Synthesizer, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{client: c, cfg: cfg}, nil
}

func (s *Synthesizer) Name() string { return "google" }

func (s *Synthesizer) request(text string) (*texttospeechpb.SynthesizeSpeechRequest, string) {
	encoding, contentType := parseAudioEncoding(s.cfg.AudioEncoding)
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.cfg.LanguageCode,
			Name:         s.cfg.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   encoding,
			SpeakingRate:    s.cfg.SpeakingRate,
			SampleRateHertz: int32(s.cfg.SampleRateHz),
		},
	}, contentType
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*tts.Synthesis, error) {
	req, contentType := s.request(text)
	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	return &tts.Synthesis{Audio: resp.AudioContent, ContentType: contentType}, nil
}

// Close releases the client.
func (s *Synthesizer) Close() error {
	return s.client.Close()
}
