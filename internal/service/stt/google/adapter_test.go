package google

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc"

	"voice-intake-service/internal/service/stt"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16},
		{"linear16", speechpb.RecognitionConfig_LINEAR16},
		{"", speechpb.RecognitionConfig_LINEAR16},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRecognitionConfig_FormatOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()

	got := recognitionConfig(cfg, stt.Format{Encoding: stt.EncodingWebMOpus, SampleRateHz: 48000, Channels: 2})
	if got.Config.Encoding != speechpb.RecognitionConfig_WEBM_OPUS {
		t.Errorf("expected WEBM_OPUS, got %v", got.Config.Encoding)
	}
	if got.Config.SampleRateHertz != 48000 {
		t.Errorf("expected 48000 Hz, got %d", got.Config.SampleRateHertz)
	}
	if got.Config.AudioChannelCount != 2 {
		t.Errorf("expected 2 channels, got %d", got.Config.AudioChannelCount)
	}
	if !got.InterimResults {
		t.Error("expected interim results to follow config")
	}

	got = recognitionConfig(cfg, stt.Format{})
	if got.Config.SampleRateHertz != 8000 {
		t.Errorf("expected configured 8000 Hz, got %d", got.Config.SampleRateHertz)
	}
	if got.Config.LanguageCode != "en-US" {
		t.Errorf("expected en-US, got %s", got.Config.LanguageCode)
	}
}

// fakeStream replays canned responses, then the terminal error.
type fakeStream struct {
	grpc.ClientStream
	responses []*speechpb.StreamingRecognizeResponse
	final     error
}

func (f *fakeStream) Send(*speechpb.StreamingRecognizeRequest) error { return nil }
func (f *fakeStream) CloseSend() error                               { return nil }
func (f *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	if len(f.responses) == 0 {
		return nil, f.final
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

type testCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []string
	errors   []error
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, text)
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func result(text string, final bool) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			IsFinal:      final,
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: 0.9}},
		}},
	}
}

func TestAdapter_ListenDeliversResults(t *testing.T) {
	cb := &testCallback{}
	a := &Adapter{
		cb:   cb,
		ctx:  context.Background(),
		done: make(chan struct{}),
		stream: &fakeStream{
			responses: []*speechpb.StreamingRecognizeResponse{
				result("my name", false),
				{Results: []*speechpb.StreamingRecognitionResult{{IsFinal: true}}},
				result("my name is john", true),
			},
			final: io.EOF,
		},
	}

	go a.listen()
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cb.partials) != 1 || cb.partials[0] != "my name" {
		t.Errorf("expected partial 'my name', got %v", cb.partials)
	}
	if len(cb.finals) != 1 || cb.finals[0] != "my name is john" {
		t.Errorf("expected final 'my name is john', got %v", cb.finals)
	}
	if len(cb.errors) != 0 {
		t.Errorf("expected EOF not to be reported, got %v", cb.errors)
	}
}

func TestAdapter_ListenReportsErrors(t *testing.T) {
	cb := &testCallback{}
	boom := errors.New("quota exceeded")
	a := &Adapter{
		cb:     cb,
		ctx:    context.Background(),
		done:   make(chan struct{}),
		stream: &fakeStream{final: boom},
	}

	go a.listen()
	a.Close()

	if len(cb.errors) != 1 || !errors.Is(cb.errors[0], boom) {
		t.Errorf("expected quota error, got %v", cb.errors)
	}
}

func TestAdapter_CloseWithoutStart(t *testing.T) {
	a := &Adapter{}
	if err := a.Close(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
