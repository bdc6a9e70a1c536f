package session

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
)

// TurnDetection configures upstream voice-activity detection.
type TurnDetection struct {
	Type              string  `json:"type,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

// Transcription configures upstream input-audio transcription.
type Transcription struct {
	Model string `json:"model,omitempty"`
}

// Config holds the negotiable upstream session parameters. Field names
// match the upstream session object exactly so the struct doubles as the
// session.update payload.
type Config struct {
	Modalities              []string          `json:"modalities,omitempty"`
	Instructions            string            `json:"instructions,omitempty"`
	Voice                   string            `json:"voice,omitempty"`
	InputAudioFormat        string            `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string            `json:"output_audio_format,omitempty"`
	InputAudioTranscription *Transcription    `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetection    `json:"turn_detection,omitempty"`
	Tools                   []json.RawMessage `json:"tools,omitempty"`
	ToolChoice              string            `json:"tool_choice,omitempty"`
	Temperature             float64           `json:"temperature,omitempty"`
	MaxResponseOutputTokens int               `json:"max_response_output_tokens,omitempty"`
}

// DefaultConfig returns the session defaults applied to every new session.
func DefaultConfig() Config {
	return Config{
		Modalities:              []string{"text", "audio"},
		Instructions:            "You are a helpful AI voice assistant. Please respond naturally and conversationally.",
		Voice:                   "alloy",
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: &Transcription{Model: "whisper-1"},
		TurnDetection: &TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 200,
		},
		ToolChoice:              "auto",
		Temperature:             0.8,
		MaxResponseOutputTokens: 4096,
	}
}

// Clone returns a deep copy so merged configs never alias shared pointers.
func (c Config) Clone() Config {
	out := c
	if c.InputAudioTranscription != nil {
		t := *c.InputAudioTranscription
		out.InputAudioTranscription = &t
	}
	if c.TurnDetection != nil {
		td := *c.TurnDetection
		out.TurnDetection = &td
	}
	if c.Tools != nil {
		out.Tools = make([]json.RawMessage, len(c.Tools))
		copy(out.Tools, c.Tools)
	}
	if c.Modalities != nil {
		out.Modalities = append([]string(nil), c.Modalities...)
	}
	return out
}

// Merge applies a partial JSON config on top of c and returns the result.
// Only keys present in the patch are overwritten; everything else is
// preserved, so a partial update cannot erase unrelated fields.
func (c Config) Merge(patch json.RawMessage) (Config, error) {
	merged := c.Clone()
	if len(patch) == 0 {
		return merged, nil
	}
	if err := sonic.Unmarshal(patch, &merged); err != nil {
		return Config{}, err
	}
	return merged, nil
}

// Session represents one client's logical conversation lifetime.
// Records are exclusively owned by the Registry; connection handles are
// managed by the relay, not stored here.
type Session struct {
	ID                string    `json:"session_id"`
	ClientID          string    `json:"client_id"`
	UpstreamSessionID string    `json:"upstream_session_id,omitempty"`
	ConversationID    string    `json:"conversation_id,omitempty"`
	IsActive          bool      `json:"is_active"`
	Config            Config    `json:"config"`
	ConnectedAt       time.Time `json:"connected_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}

// Patch is the closed set of session fields callers may update. Nil
// fields are left untouched.
type Patch struct {
	UpstreamSessionID *string
	ConversationID    *string
	IsActive          *bool
	Config            *Config
	LastActivityAt    *time.Time
}

// Stats is a read-only snapshot of registry state.
type Stats struct {
	TotalSessions          int `json:"total_sessions"`
	ActiveSessions         int `json:"active_sessions"`
	InactiveSessions       int `json:"inactive_sessions"`
	CleanupIntervalSeconds int `json:"cleanup_interval_seconds"`
	SessionTimeoutSeconds  int `json:"session_timeout_seconds"`
}
