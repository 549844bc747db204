// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-intake-service/internal/service/stt"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	Model          string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to the proto enum, defaulting to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// recognitionConfig merges the upload's format over the configured defaults.
func recognitionConfig(cfg Config, format stt.Format) *speechpb.StreamingRecognitionConfig {
	encoding := cfg.AudioEncoding
	if format.Encoding != "" {
		encoding = format.Encoding
	}
	rate := cfg.SampleRateHz
	if format.SampleRateHz > 0 {
		rate = format.SampleRateHz
	}

	rc := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(encoding),
		SampleRateHertz:            int32(rate),
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: false,
	}
	if format.Channels > 1 {
		rc.AudioChannelCount = int32(format.Channels)
	}

	return &speechpb.StreamingRecognitionConfig{
		Config:         rc,
		InterimResults: cfg.InterimResults,
	}
}

// Recognizer owns the Speech client shared by every per-upload adapter.
type Recognizer struct {
	client *speech.Client
	cfg    Config
}

// NewRecognizer creates the Speech client.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func NewRecognizer(ctx context.Context, cfg Config) (*Recognizer, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Recognizer{client: c, cfg: cfg}, nil
}

// Factory satisfies stt.Factory.
func (r *Recognizer) Factory(_ context.Context, format stt.Format) (stt.Adapter, error) {
	return &Adapter{client: r.client, cfg: r.cfg, format: format}, nil
}

// Close releases the Speech client.
func (r *Recognizer) Close() error {
	return r.client.Close()
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	format stt.Format
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	ctx    context.Context
	done   chan struct{}
	once   sync.Once
}

// Start begins a streaming recognition session, sends the initial config and
// starts receiving results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	a.stream = stream
	a.cb = cb
	a.ctx = ctx

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: recognitionConfig(a.cfg, a.format),
		},
	})
	if err != nil {
		return err
	}

	a.done = make(chan struct{})
	go a.listen()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream and waits for the remaining results.
func (a *Adapter) Close() error {
	if a.stream == nil {
		return nil
	}
	var err error
	a.once.Do(func() {
		err = a.stream.CloseSend()
		if a.done != nil {
			<-a.done
		}
	})
	return err
}

// listen receives transcript responses from Google and invokes callbacks.
func (a *Adapter) listen() {
	defer close(a.done)
	for {
		resp, err := a.stream.Recv()
		if err != nil {
			if !isEndOfStream(a.ctx, err) {
				a.cb.OnError(err)
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				a.cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				a.cb.OnPartial(alt.Transcript)
			}
		}
	}
}

func isEndOfStream(ctx context.Context, err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return status.Code(err) == codes.Canceled
}
