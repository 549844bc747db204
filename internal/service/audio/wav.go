package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrInvalidWAV = errors.New("invalid WAV data")

// WAVInfo is the subset of the fmt chunk the service needs.
type WAVInfo struct {
	AudioFormat   int
	Channels      int
	SampleRate    int
	BitsPerSample int
}

func looksLikeWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// ParseWAV walks the RIFF chunks and returns the fmt header and the data chunk.
func ParseWAV(b []byte) (WAVInfo, []byte, error) {
	var info WAVInfo
	if !looksLikeWAV(b) {
		return info, nil, ErrInvalidWAV
	}

	var (
		haveFmt bool
		data    []byte
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		pos += 8
		end := pos + size
		if end > len(b) || size < 0 {
			// Streaming writers leave the size unset; take what is there.
			end = len(b)
		}

		switch id {
		case "fmt ":
			if end-pos < 16 {
				return info, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			info.AudioFormat = int(binary.LittleEndian.Uint16(b[pos : pos+2]))
			info.Channels = int(binary.LittleEndian.Uint16(b[pos+2 : pos+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(b[pos+14 : pos+16]))
			haveFmt = true
		case "data":
			data = b[pos:end]
		}

		pos = end
		if pos%2 == 1 {
			pos++
		}
		if haveFmt && data != nil {
			break
		}
	}

	if !haveFmt {
		return info, nil, fmt.Errorf("%w: no fmt chunk", ErrInvalidWAV)
	}
	if data == nil {
		return info, nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
	}
	if info.Channels <= 0 || info.SampleRate <= 0 || info.BitsPerSample <= 0 {
		return info, nil, fmt.Errorf("%w: bad header", ErrInvalidWAV)
	}
	return info, data, nil
}

// EncodeWAV wraps 16-bit PCM with a canonical 44-byte header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44, 44+len(pcm))
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}
