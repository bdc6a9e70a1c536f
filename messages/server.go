package messages

// Error codes
const (
	ErrCodeInvalidMessage  = "INVALID_MESSAGE"
	ErrCodeInvalidAudio    = "INVALID_AUDIO"
	ErrCodeUpstreamError   = "UPSTREAM_ERROR"
	ErrCodeUpstreamConnect = "UPSTREAM_CONNECT_FAILED"
	ErrCodeSessionFailed   = "SESSION_FAILED"
	ErrCodeServerError     = "SERVER_ERROR"
)

// Server -> client message types
const (
	TypeConnectionEstablished = "connection.established"
	TypeAudioDelta            = "audio.delta"
	TypeAudioDone             = "audio.done"
	TypeTranscriptUser        = "transcript.user"
	TypeTranscriptAssistant   = "transcript.assistant"
	TypeError                 = "error"
)

// ServerMessage is the wire envelope sent to a frontend client. Only the
// fields relevant to the message type are populated.
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Audio     string `json:"audio,omitempty"`
	ItemID    string `json:"itemId,omitempty"`
	Text      string `json:"text,omitempty"`
	IsFinal   *bool  `json:"isFinal,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
}

// NewConnectionEstablished announces a freshly created session.
func NewConnectionEstablished(sessionID string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeConnectionEstablished,
		SessionID: sessionID,
	}
}

// NewAudioDelta creates an assistant audio chunk message.
func NewAudioDelta(sessionID, itemID, audio string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAudioDelta,
		SessionID: sessionID,
		ItemID:    itemID,
		Audio:     audio,
	}
}

// NewAudioDone signals the end of an assistant audio response.
func NewAudioDone(sessionID, itemID string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAudioDone,
		SessionID: sessionID,
		ItemID:    itemID,
	}
}

// NewUserTranscript creates a final user transcript message.
func NewUserTranscript(sessionID, text string) *ServerMessage {
	final := true
	return &ServerMessage{
		Type:      TypeTranscriptUser,
		SessionID: sessionID,
		Text:      text,
		IsFinal:   &final,
	}
}

// NewAssistantTranscript creates an assistant transcript message,
// partial or final.
func NewAssistantTranscript(sessionID, itemID, text string, isFinal bool) *ServerMessage {
	return &ServerMessage{
		Type:      TypeTranscriptAssistant,
		SessionID: sessionID,
		ItemID:    itemID,
		Text:      text,
		IsFinal:   &isFinal,
	}
}

// NewError creates an error message with a stable code.
func NewError(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Code:      code,
		Message:   message,
	}
}
