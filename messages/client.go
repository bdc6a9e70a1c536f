package messages

import (
	"encoding/json"
	"errors"

	"github.com/bytedance/sonic"
)

// Client -> server message types
const (
	TypeAudioAppend           = "audio.append"
	TypeAudioCommit           = "audio.commit"
	TypeConversationInterrupt = "conversation.interrupt"
	TypeSessionUpdate         = "session.update"
	TypeSessionCreate         = "session.create" // alias of session.update for the initial handshake
)

// ErrMissingType is returned for envelopes without a type field.
var ErrMissingType = errors.New("message missing type field")

// ClientMessage is the wire envelope received from a frontend client.
// Fields other than Type are populated depending on the message type.
type ClientMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Audio     string          `json:"audio,omitempty"`   // base64 PCM16, audio.append
	Config    json.RawMessage `json:"config,omitempty"`  // session.update
	Session   json.RawMessage `json:"session,omitempty"` // session.create
}

// ParseClient decodes a raw client frame into a ClientMessage.
func ParseClient(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}
