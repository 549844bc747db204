// Package whisper provides an STT adapter for a Whisper-compatible HTTP
// transcription endpoint. Audio is buffered and posted once on Close.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"voice-intake-service/internal/service/audio"
	"voice-intake-service/internal/service/stt"
)

var ErrUnsupportedEncoding = errors.New("whisper: unsupported encoding")

// Config holds endpoint settings.
type Config struct {
	URL      string
	Model    string
	Language string
	Timeout  time.Duration
}

// DefaultConfig returns the settings of a local whisper server.
func DefaultConfig() Config {
	return Config{
		URL:     "http://localhost:9000/transcribe",
		Timeout: 60 * time.Second,
	}
}

type response struct {
	Text string `json:"text"`
}

// Client posts audio files to the endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a client. A nil hc gets a client with cfg.Timeout.
func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

// Factory satisfies stt.Factory.
func (c *Client) Factory(_ context.Context, format stt.Format) (stt.Adapter, error) {
	switch format.Encoding {
	case stt.EncodingLinear16, stt.EncodingWebMOpus:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, format.Encoding)
	}
	return &Adapter{client: c, format: format}, nil
}

// Transcribe posts one file and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if c.cfg.Model != "" {
		mw.WriteField("model", c.cfg.Model)
	}
	if c.cfg.Language != "" {
		mw.WriteField("language", c.cfg.Language)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// Adapter implements stt.Adapter. It has no interim results.
type Adapter struct {
	client *Client
	format stt.Format
	ctx    context.Context
	cb     stt.Callback
	buf    bytes.Buffer
	closed bool
}

// Start records the callback; the request is made on Close.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.ctx = ctx
	a.cb = cb
	return nil
}

// SendAudio buffers audio.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	if a.closed {
		return nil
	}
	a.buf.Write(audio)
	return nil
}

// Close uploads the buffered audio and delivers the result.
func (a *Adapter) Close() error {
	if a.closed || a.cb == nil {
		return nil
	}
	a.closed = true

	filename, data := a.file()
	text, err := a.client.Transcribe(a.ctx, filename, data)
	if err != nil {
		a.cb.OnError(err)
		return nil
	}
	a.cb.OnFinal(text, 1.0)
	return nil
}

func (a *Adapter) file() (string, []byte) {
	if a.format.Encoding == stt.EncodingWebMOpus {
		return "answer.webm", a.buf.Bytes()
	}
	channels := a.format.Channels
	if channels <= 0 {
		channels = 1
	}
	return "answer.wav", audio.EncodeWAV(a.buf.Bytes(), a.format.SampleRateHz, channels)
}
