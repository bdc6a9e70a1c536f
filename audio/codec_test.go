package audio

import (
	"bytes"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	bufs := [][]byte{
		{},
		{0x00, 0x01},
		{0xFF, 0x7F, 0x00, 0x80, 0x34, 0x12},
		bytes.Repeat([]byte{0xAB, 0xCD}, 4096),
	}
	for _, buf := range bufs {
		decoded, err := DecodePCM16(EncodePCM16(buf))
		if err != nil {
			t.Fatalf("DecodePCM16() error = %v", err)
		}
		if !bytes.Equal(decoded, buf) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d", len(decoded), len(buf))
		}
	}
}

func TestDecodePCM16RejectsBadBase64(t *testing.T) {
	if _, err := DecodePCM16("not-base64!!!"); err == nil {
		t.Fatal("DecodePCM16() should fail on invalid base64")
	}
}

func TestValidatePCM16(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		channels int
		wantErr  error
	}{
		{"valid mono", []byte{0x01, 0x02}, 1, nil},
		{"valid stereo", []byte{1, 2, 3, 4}, 2, nil},
		{"odd length", []byte{0x01}, 1, ErrOddPCMLength},
		{"empty", nil, 1, ErrEmptyAudio},
		{"one sample two channels", []byte{1, 2}, 2, ErrEmptyAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePCM16(tt.data, tt.channels)
			if err != tt.wantErr {
				t.Fatalf("ValidatePCM16() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChunkPreservesOrderAndBytes(t *testing.T) {
	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte(i)
	}

	chunks := Chunk(data, 1024)
	if len(chunks) != 3 {
		t.Fatalf("Chunk() produced %d chunks, want 3", len(chunks))
	}
	if len(chunks[2]) != 452 {
		t.Fatalf("final chunk = %d bytes, want 452", len(chunks[2]))
	}

	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	if !bytes.Equal(joined, data) {
		t.Fatal("rejoined chunks differ from input")
	}
}

func TestChunkEdgeCases(t *testing.T) {
	if got := Chunk(nil, 1024); got != nil {
		t.Fatalf("Chunk(nil) = %v, want nil", got)
	}
	data := []byte{1, 2, 3}
	if got := Chunk(data, 0); len(got) != 1 || !bytes.Equal(got[0], data) {
		t.Fatalf("Chunk with size 0 should return data whole, got %v", got)
	}
}

func TestMuLawRoundTrip(t *testing.T) {
	// Every mu-law byte except 0x7F (negative zero collapses onto 0xFF)
	// survives expand-then-compress unchanged.
	for i := 0; i < 256; i++ {
		b := byte(i)
		if b == 0x7F {
			continue
		}
		pcm := MuLawToPCM16Sample(b)
		if got := PCM16SampleToMuLaw(pcm); got != b {
			t.Fatalf("mu-law round trip for 0x%02X: got 0x%02X (pcm %d)", b, got, pcm)
		}
	}
}

func TestMuLawKnownValues(t *testing.T) {
	if got := MuLawToPCM16Sample(0xFF); got != 0 {
		t.Fatalf("MuLawToPCM16Sample(0xFF) = %d, want 0", got)
	}
	if got := MuLawToPCM16Sample(0x80); got != 32124 {
		t.Fatalf("MuLawToPCM16Sample(0x80) = %d, want 32124", got)
	}
	if got := MuLawToPCM16Sample(0x00); got != -32124 {
		t.Fatalf("MuLawToPCM16Sample(0x00) = %d, want -32124", got)
	}
}

func TestDecodeEncodeMuLawBuffers(t *testing.T) {
	in := []byte{0x00, 0x80, 0xFF, 0x42}
	pcm := DecodeMuLaw(in)
	if len(pcm) != len(in)*2 {
		t.Fatalf("DecodeMuLaw length = %d, want %d", len(pcm), len(in)*2)
	}

	out, err := EncodeMuLaw(pcm)
	if err != nil {
		t.Fatalf("EncodeMuLaw() error = %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("EncodeMuLaw(DecodeMuLaw(x)) = %v, want %v", out, in)
	}

	if _, err := EncodeMuLaw([]byte{0x01}); err != ErrOddPCMLength {
		t.Fatalf("EncodeMuLaw(odd) error = %v, want ErrOddPCMLength", err)
	}
}
