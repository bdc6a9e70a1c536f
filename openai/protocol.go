// Package openai owns the outbound connection to the OpenAI Realtime API
// and the command/event vocabulary spoken on it.
package openai

import "voicerelay/session"

// Command types sent upstream.
const (
	CmdSessionUpdate    = "session.update"
	CmdInputAudioAppend = "input_audio_buffer.append"
	CmdInputAudioCommit = "input_audio_buffer.commit"
	CmdResponseCreate   = "response.create"
	CmdResponseCancel   = "response.cancel"
)

// Event types received from upstream. Only the ones the relay reacts to
// are named; everything else passes through Recv untyped and is dropped
// by the translator.
const (
	EvtSessionCreated                = "session.created"
	EvtSessionUpdated                = "session.updated"
	EvtResponseAudioDelta            = "response.audio.delta"
	EvtResponseAudioDone             = "response.audio.done"
	EvtResponseTextDelta             = "response.text.delta"
	EvtResponseTextDone              = "response.text.done"
	EvtInputTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	EvtError                         = "error"
)

// Command is a client->upstream frame. Field names follow the upstream
// contract exactly.
type Command struct {
	Type    string          `json:"type"`
	Audio   string          `json:"audio,omitempty"`   // input_audio_buffer.append
	Session *session.Config `json:"session,omitempty"` // session.update
}

// EventError is the error payload carried by an upstream error event.
type EventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventSession is the session object carried by session lifecycle events.
type EventSession struct {
	ID string `json:"id,omitempty"`
}

// Event is an upstream->client frame, decoded loosely: only the fields
// the relay projects are typed.
type Event struct {
	Type       string        `json:"type"`
	Delta      string        `json:"delta,omitempty"`
	ItemID     string        `json:"item_id,omitempty"`
	Text       string        `json:"text,omitempty"`
	Transcript string        `json:"transcript,omitempty"`
	Session    *EventSession `json:"session,omitempty"`
	Error      *EventError   `json:"error,omitempty"`
}
