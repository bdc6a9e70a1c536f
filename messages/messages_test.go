package messages

import (
	"errors"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestParseClient(t *testing.T) {
	msg, err := ParseClient([]byte(`{"type":"audio.append","audio":"QUJD"}`))
	if err != nil {
		t.Fatalf("ParseClient() error = %v", err)
	}
	if msg.Type != TypeAudioAppend || msg.Audio != "QUJD" {
		t.Fatalf("ParseClient() = %+v", msg)
	}
}

func TestParseClientMissingType(t *testing.T) {
	if _, err := ParseClient([]byte(`{"audio":"QUJD"}`)); !errors.Is(err, ErrMissingType) {
		t.Fatalf("error = %v, want ErrMissingType", err)
	}
}

func TestParseClientMalformed(t *testing.T) {
	if _, err := ParseClient([]byte(`{broken`)); err == nil {
		t.Fatal("ParseClient() should reject malformed JSON")
	}
}

func TestServerMessageOmitsUnsetFields(t *testing.T) {
	payload, err := sonic.Marshal(NewConnectionEstablished("s1"))
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	got := string(payload)
	if !strings.Contains(got, `"sessionId":"s1"`) {
		t.Fatalf("payload = %s", got)
	}
	for _, field := range []string{"audio", "itemId", "text", "isFinal", "message", "code"} {
		if strings.Contains(got, field) {
			t.Fatalf("payload leaks unset field %q: %s", field, got)
		}
	}
}

func TestAssistantTranscriptCarriesFinality(t *testing.T) {
	partial := NewAssistantTranscript("s1", "it1", "hel", false)
	if partial.IsFinal == nil || *partial.IsFinal {
		t.Fatalf("partial transcript IsFinal = %v", partial.IsFinal)
	}
	payload, _ := sonic.Marshal(partial)
	if !strings.Contains(string(payload), `"isFinal":false`) {
		t.Fatalf("false finality must survive serialization: %s", payload)
	}
}
