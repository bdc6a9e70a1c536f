// Package audio provides byte-level helpers for the audio payloads carried
// inside relay messages: base64 framing of linear 16-bit little-endian PCM,
// format validation, chunking, and G.711 mu-law conversion.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrOddPCMLength is returned when a PCM16 buffer has an odd byte count.
var ErrOddPCMLength = errors.New("pcm16 data has odd byte count")

// ErrEmptyAudio is returned when a buffer holds less than one sample.
var ErrEmptyAudio = errors.New("audio data too short")

// EncodePCM16 wraps a raw PCM16 buffer in base64 for transport.
func EncodePCM16(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodePCM16 unwraps a base64 audio payload back to raw bytes.
func DecodePCM16(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	return data, nil
}

// ValidatePCM16 checks that data is a plausible linear PCM16 buffer:
// an even byte count and at least one sample per channel.
func ValidatePCM16(data []byte, channels int) error {
	if channels < 1 {
		channels = 1
	}
	if len(data)%2 != 0 {
		return ErrOddPCMLength
	}
	if len(data)/2/channels < 1 {
		return ErrEmptyAudio
	}
	return nil
}

// Chunk splits data into size-byte pieces, preserving order. The final
// chunk may be shorter. A non-positive size returns the buffer whole.
func Chunk(data []byte, size int) [][]byte {
	if size <= 0 || len(data) <= size {
		if len(data) == 0 {
			return nil
		}
		return [][]byte{data}
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}
