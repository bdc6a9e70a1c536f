package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"voicerelay/session"
)

// State tracks the upstream connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSessionInit
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSessionInit:
		return "session_init"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Send before the handshake completes or
// after the connection terminates.
var ErrNotConnected = errors.New("upstream connection not ready")

// ConnectError wraps a transport or auth failure during Connect. The
// relay treats it as non-retryable; a fresh client reconnect is the
// recovery path.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("upstream connect failed: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Conn is one outbound connection to the Realtime API. A Conn is not
// restartable: after Recv returns a terminal error or Disconnect is
// called, a new Conn must be created.
type Conn struct {
	url              string
	apiKey           string
	handshakeTimeout time.Duration
	log              *slog.Logger

	mu    sync.Mutex
	ws    *websocket.Conn
	state State
}

// NewConn prepares a connection to url. No I/O happens until Connect.
func NewConn(url, apiKey string, handshakeTimeout time.Duration, log *slog.Logger) *Conn {
	return &Conn{
		url:              url,
		apiKey:           apiKey,
		handshakeTimeout: handshakeTimeout,
		log:              log,
		state:            StateDisconnected,
	}
}

// Connect dials the upstream API and performs the session-configuration
// handshake. On success the connection is Ready for Send and Recv.
func (c *Conn) Connect(ctx context.Context, cfg session.Config) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("connect from state %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	ws, resp, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		c.setState(StateFailed)
		return &ConnectError{Err: err}
	}

	c.mu.Lock()
	c.ws = ws
	c.state = StateSessionInit
	c.mu.Unlock()

	// Initial session configuration; upstream answers with session.updated.
	if err := c.write(Command{Type: CmdSessionUpdate, Session: &cfg}); err != nil {
		ws.Close()
		c.setState(StateFailed)
		return &ConnectError{Err: err}
	}

	c.setState(StateReady)
	c.log.Info("upstream connected", slog.String("url", c.url))
	return nil
}

// Send forwards a command upstream. Fails with ErrNotConnected unless
// the connection is Ready.
func (c *Conn) Send(cmd Command) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()
	return c.write(cmd)
}

// write serializes a frame onto the socket. Writes are serialized by
// c.mu; gorilla connections allow at most one concurrent writer.
func (c *Conn) write(cmd Command) error {
	payload, err := sonic.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	return nil
}

// Recv blocks for the next decoded upstream event. Malformed frames are
// skipped with a warning; a transport failure moves the connection to
// Failed and surfaces as the returned error. Recv is unblocked by
// Disconnect, which closes the socket under the reader.
func (c *Conn) Recv() (*Event, error) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil, ErrNotConnected
	}

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.state != StateDisconnected {
				c.state = StateFailed
			}
			c.mu.Unlock()
			return nil, err
		}

		var ev Event
		if err := sonic.Unmarshal(frame, &ev); err != nil {
			c.log.Warn("skipping malformed upstream frame", slog.String("error", err.Error()))
			continue
		}
		return &ev, nil
	}
}

// Disconnect closes the transport if open. Idempotent.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisconnected {
		return nil
	}
	c.state = StateDisconnected

	if c.ws != nil {
		ws := c.ws
		c.ws = nil
		return ws.Close()
	}
	return nil
}

// State reports the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
