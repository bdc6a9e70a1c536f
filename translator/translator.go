// Package translator maps between the client-facing message vocabulary
// and the upstream Realtime API vocabulary. All functions are pure:
// outputs depend only on inputs, and no state is shared between calls.
package translator

import (
	"errors"
	"fmt"

	"voicerelay/audio"
	"voicerelay/messages"
	"voicerelay/openai"
	"voicerelay/session"
)

// ErrInvalidAudio marks an audio payload that failed decode or
// validation. Non-fatal: the relay reports it and keeps the session.
var ErrInvalidAudio = errors.New("invalid audio payload")

// ErrInvalidConfig marks a config patch that failed to parse.
var ErrInvalidConfig = errors.New("invalid config payload")

// Translator converts client messages to upstream commands and upstream
// events to client messages.
type Translator struct {
	maxAudioBytes int // decoded size cap per append, 0 disables
}

// New creates a translator enforcing maxAudioBytes per audio append.
func New(maxAudioBytes int) *Translator {
	return &Translator{maxAudioBytes: maxAudioBytes}
}

// ToUpstream converts one client message into the upstream commands it
// implies. For session updates the shallow-merged config is returned so
// the caller can persist it. An unknown message type yields no commands
// and no error; the caller logs and drops it.
func (t *Translator) ToUpstream(msg *messages.ClientMessage, cfg session.Config) ([]openai.Command, *session.Config, error) {
	switch msg.Type {
	case messages.TypeAudioAppend:
		data, err := audio.DecodePCM16(msg.Audio)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
		}
		if t.maxAudioBytes > 0 && len(data) > t.maxAudioBytes {
			return nil, nil, fmt.Errorf("%w: chunk of %d bytes exceeds limit of %d", ErrInvalidAudio, len(data), t.maxAudioBytes)
		}
		if err := audio.ValidatePCM16(data, 1); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
		}
		// Forward the original base64 text; no re-encode needed.
		return []openai.Command{
			{Type: openai.CmdInputAudioAppend, Audio: msg.Audio},
		}, nil, nil

	case messages.TypeAudioCommit:
		// Commit is immediately followed by a response request.
		return []openai.Command{
			{Type: openai.CmdInputAudioCommit},
			{Type: openai.CmdResponseCreate},
		}, nil, nil

	case messages.TypeConversationInterrupt:
		return []openai.Command{
			{Type: openai.CmdResponseCancel},
		}, nil, nil

	case messages.TypeSessionUpdate, messages.TypeSessionCreate:
		patch := msg.Config
		if msg.Type == messages.TypeSessionCreate {
			patch = msg.Session
		}
		merged, err := cfg.Merge(patch)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return []openai.Command{
			{Type: openai.CmdSessionUpdate, Session: &merged},
		}, &merged, nil

	default:
		// Forward-compatibility: unknown types are dropped, not errors.
		return nil, nil, nil
	}
}

// FromUpstream projects one upstream event onto the client vocabulary.
// Returns nil for events without a client-facing projection; the
// boundary surface is deliberately narrower than the upstream event set.
func FromUpstream(ev *openai.Event, sessionID string) *messages.ServerMessage {
	switch ev.Type {
	case openai.EvtResponseAudioDelta:
		return messages.NewAudioDelta(sessionID, ev.ItemID, ev.Delta)

	case openai.EvtResponseAudioDone:
		return messages.NewAudioDone(sessionID, ev.ItemID)

	case openai.EvtInputTranscriptionCompleted:
		return messages.NewUserTranscript(sessionID, ev.Transcript)

	case openai.EvtResponseTextDelta:
		return messages.NewAssistantTranscript(sessionID, ev.ItemID, ev.Delta, false)

	case openai.EvtResponseTextDone:
		return messages.NewAssistantTranscript(sessionID, ev.ItemID, ev.Text, true)

	case openai.EvtError:
		code := messages.ErrCodeUpstreamError
		text := "Unknown upstream error"
		if ev.Error != nil {
			if ev.Error.Code != "" {
				code = ev.Error.Code
			}
			if ev.Error.Message != "" {
				text = ev.Error.Message
			}
		}
		return messages.NewError(sessionID, code, text)

	default:
		return nil
	}
}
