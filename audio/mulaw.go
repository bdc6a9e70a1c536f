package audio

import "encoding/binary"

var muLawToPcmTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		muLawToPcmTable[i] = decodeMuLawSample(byte(i))
	}
}

// DecodeMuLaw expands G.711 mu-law bytes into linear PCM16 little-endian.
// Each input byte becomes one 16-bit sample.
func DecodeMuLaw(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(muLawToPcmTable[b]))
	}
	return out
}

// EncodeMuLaw compresses linear PCM16 little-endian into G.711 mu-law.
// Returns ErrOddPCMLength if the input is not sample-aligned.
func EncodeMuLaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCMLength
	}
	out := make([]byte, len(pcm)/2)
	for i := 0; i < len(pcm); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		out[i/2] = PCM16SampleToMuLaw(sample)
	}
	return out, nil
}

// MuLawToPCM16Sample expands a single mu-law byte.
func MuLawToPCM16Sample(b byte) int16 {
	return muLawToPcmTable[b]
}

// The core algorithm follows the Sun Microsystems G.711 reference
// implementation.
func decodeMuLawSample(uVal byte) int16 {
	// Mu-law stores the byte inverted.
	uVal = ^uVal

	sign := uVal & 0x80
	exponent := (uVal >> 4) & 0x07
	mantissa := uVal & 0x0F

	// Shift the mantissa into place, add the alignment bias (0x84),
	// then scale by the exponent and subtract the bias back out.
	sample := int16((int32(mantissa)<<3 + 0x84) << exponent)
	sample -= 0x84

	if sign != 0 {
		return -sample
	}
	return sample
}

// PCM16SampleToMuLaw compresses a single linear sample.
func PCM16SampleToMuLaw(pcm int16) byte {
	const (
		bias = 0x84
		clip = 32635
	)

	// Widened so negating math.MinInt16 cannot overflow.
	v := int(pcm)
	sign := 0
	if v < 0 {
		sign = 0x80
		v = -v
	}
	if v > clip {
		v = clip
	}
	v += bias

	exponent := 7
	for mask := 0x4000; v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (v >> (exponent + 3)) & 0x0F

	ulawByte := byte(sign | exponent<<4 | mantissa)

	// Compressed format stores the byte inverted.
	return ^ulawByte
}
