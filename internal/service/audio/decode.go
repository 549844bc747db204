package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hajimehoshi/go-mp3"

	"voice-intake-service/internal/service/stt"
)

var (
	ErrEmptyAudio       = errors.New("audio upload is empty")
	ErrUnsupportedAudio = errors.New("unsupported audio format")
)

const webmSampleRate = 48000

// Clip is an upload normalized into something an STT adapter accepts.
type Clip struct {
	Format   stt.Format
	Data     []byte
	Duration time.Duration
}

// Decode detects the upload format. WAV must be 16-bit PCM; MP3 is decoded
// and downmixed to mono; WebM is passed through as Opus. Uploads declared or
// detected as plain text become TEXT clips. Anything else is taken as raw
// LINEAR16 mono at rawRate.
func Decode(data []byte, contentType string, rawRate int) (*Clip, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	mediaType := parseMediaType(contentType)

	switch {
	case looksLikeWAV(data):
		return decodeWAV(data)
	case looksLikeMP3(data) || mediaType == "audio/mpeg" || mediaType == "audio/mp3":
		return decodeMP3(data)
	case looksLikeWebM(data) || mediaType == "audio/webm" || mediaType == "video/webm":
		return &Clip{
			Format: stt.Format{Encoding: stt.EncodingWebMOpus, SampleRateHz: webmSampleRate, Channels: 1},
			Data:   data,
		}, nil
	case strings.HasPrefix(mediaType, "text/") || looksLikeText(data):
		return &Clip{
			Format: stt.Format{Encoding: stt.EncodingText},
			Data:   data,
		}, nil
	}

	if rawRate <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAudio, mediaType)
	}
	return linear16Clip(data, rawRate, 1), nil
}

func decodeWAV(data []byte) (*Clip, error) {
	info, pcm, err := ParseWAV(data)
	if err != nil {
		return nil, err
	}
	if info.AudioFormat != 1 || info.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: WAV format %d with %d bits", ErrUnsupportedAudio, info.AudioFormat, info.BitsPerSample)
	}
	return linear16Clip(pcm, info.SampleRate, info.Channels), nil
}

func decodeMP3(data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return linear16Clip(downmixStereo(raw), dec.SampleRate(), 1), nil
}

// downmixStereo averages interleaved 16-bit little-endian stereo frames.
func downmixStereo(raw []byte) []byte {
	frames := len(raw) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int(int16(binary.LittleEndian.Uint16(raw[i*4:])))
		r := int(int16(binary.LittleEndian.Uint16(raw[i*4+2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16((l+r)/2)))
	}
	return out
}

func linear16Clip(pcm []byte, rate, channels int) *Clip {
	if channels <= 0 {
		channels = 1
	}
	bytesPerSecond := rate * channels * 2
	var d time.Duration
	if bytesPerSecond > 0 {
		d = time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSecond)
	}
	return &Clip{
		Format:   stt.Format{Encoding: stt.EncodingLinear16, SampleRateHz: rate, Channels: channels},
		Data:     pcm,
		Duration: d,
	}
}

func looksLikeMP3(b []byte) bool {
	return (len(b) >= 3 && string(b[:3]) == "ID3") ||
		(len(b) >= 2 && b[0] == 0xFF && (b[1]&0xE0) == 0xE0)
}

func looksLikeWebM(b []byte) bool {
	return len(b) >= 4 && b[0] == 0x1A && b[1] == 0x45 && b[2] == 0xDF && b[3] == 0xA3
}

// looksLikeText accepts printable UTF-8 with at least one letter. PCM silence
// is valid UTF-8 but made of control bytes, so it is rejected.
func looksLikeText(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	letters := 0
	for _, r := range string(b) {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == '\n' || r == '\r' || r == '\t':
		case unicode.IsControl(r):
			return false
		}
	}
	return letters > 0
}

func parseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}
