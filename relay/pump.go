// Package relay wires one client connection to one upstream connection
// through the message translator, running the two directional loops
// concurrently and tearing both down on any terminal condition.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicerelay/messages"
	"voicerelay/metrics"
	"voicerelay/openai"
	"voicerelay/session"
	"voicerelay/translator"
)

// ClientConn is the slice of a client WebSocket connection the pump
// needs. Satisfied by *websocket.Conn.
type ClientConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Upstream is the slice of the provider connection the pump needs.
// Satisfied by *openai.Conn.
type Upstream interface {
	Connect(ctx context.Context, cfg session.Config) error
	Send(cmd openai.Command) error
	Recv() (*openai.Event, error)
	Disconnect() error
}

// Pump orchestrates one session end-to-end: upstream handshake, the two
// concurrent forwarding loops, and exactly-once teardown.
type Pump struct {
	registry   *session.Registry
	translator *translator.Translator
	upstream   Upstream
	client     ClientConn
	sess       *session.Session
	keepAlive  time.Duration
	log        *slog.Logger
	m          *metrics.Metrics
}

// New builds a pump over an already-registered session. The pump borrows
// both connection handles; the upstream connection is owned for the
// duration of Run.
func New(registry *session.Registry, tr *translator.Translator, upstream Upstream, client ClientConn, sess *session.Session, keepAlive time.Duration, log *slog.Logger, m *metrics.Metrics) *Pump {
	return &Pump{
		registry:   registry,
		translator: tr,
		upstream:   upstream,
		client:     client,
		sess:       sess,
		keepAlive:  keepAlive,
		log:        log.With(slog.String("session_id", sess.ID)),
		m:          m,
	}
}

// Run drives the session until either side closes or a fatal error
// occurs, then removes the session from the registry. It returns the
// first fatal error, or nil on a clean client disconnect.
func (p *Pump) Run(ctx context.Context) error {
	writer := newClientWriter(p.client, p.keepAlive, p.log, p.m)
	go writer.run()

	writer.enqueue(messages.NewConnectionEstablished(p.sess.ID))

	if err := p.upstream.Connect(ctx, p.sess.Config); err != nil {
		p.log.Error("upstream connect failed", slog.String("error", err.Error()))
		p.m.UpstreamErrors.WithLabelValues(messages.ErrCodeUpstreamConnect).Inc()
		writer.enqueue(messages.NewError(p.sess.ID, messages.ErrCodeUpstreamConnect, "could not reach speech provider"))
		writer.stop()
		writer.wait()
		p.registry.Remove(p.sess.ID)
		return err
	}

	active := true
	p.registry.Update(p.sess.ID, session.Patch{IsActive: &active})
	p.m.ActiveSessions.Inc()
	p.m.SessionEvents.WithLabelValues("started").Inc()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First-to-finish cancels the other: both loops block on socket
	// reads, so cancellation closes the upstream transport and expires
	// the client read deadline to unblock them.
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		<-runCtx.Done()
		p.upstream.Disconnect()
		p.client.SetReadDeadline(time.Now())
	}()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		errs <- p.clientLoop(runCtx, writer)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		errs <- p.upstreamLoop(runCtx, writer)
	}()

	wg.Wait()
	cancel()
	<-watcherDone

	writer.stop()
	writer.wait()
	p.client.Close()

	p.registry.Deactivate(p.sess.ID)
	p.registry.Remove(p.sess.ID)
	p.m.ActiveSessions.Dec()
	p.m.SessionEvents.WithLabelValues("closed").Inc()
	p.log.Info("session torn down")

	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// clientLoop reads client frames, translates them and forwards the
// resulting commands upstream. Malformed input is reported to the client
// and skipped; a send failure or disconnect terminates the relay.
func (p *Pump) clientLoop(ctx context.Context, writer *clientWriter) error {
	cfg := p.sess.Config

	for {
		_, frame, err := p.client.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || isExpectedClose(err) {
				p.log.Debug("client disconnected")
				return nil
			}
			p.log.Warn("client read failed", slog.String("error", err.Error()))
			return nil
		}
		p.registry.Touch(p.sess.ID)

		msg, err := messages.ParseClient(frame)
		if err != nil {
			writer.enqueue(messages.NewError(p.sess.ID, messages.ErrCodeInvalidMessage, "invalid message format"))
			continue
		}
		p.m.WSMessages.WithLabelValues("in", msg.Type).Inc()

		cmds, newCfg, err := p.translator.ToUpstream(msg, cfg)
		if err != nil {
			code := messages.ErrCodeInvalidMessage
			if errors.Is(err, translator.ErrInvalidAudio) {
				code = messages.ErrCodeInvalidAudio
			}
			writer.enqueue(messages.NewError(p.sess.ID, code, err.Error()))
			continue
		}
		if len(cmds) == 0 {
			p.log.Warn("ignoring unknown client message type", slog.String("type", msg.Type))
			continue
		}

		if newCfg != nil {
			cfg = *newCfg
			p.registry.Update(p.sess.ID, session.Patch{Config: newCfg})
		}

		for _, cmd := range cmds {
			if err := p.upstream.Send(cmd); err != nil {
				p.log.Error("upstream send failed",
					slog.String("command", cmd.Type),
					slog.String("error", err.Error()))
				writer.enqueue(messages.NewError(p.sess.ID, messages.ErrCodeUpstreamError, "speech provider unavailable"))
				return err
			}
		}
	}
}

// upstreamLoop consumes upstream events and forwards their client
// projections. A terminal upstream error is reported to the client if
// the connection is still writable, then ends the relay.
func (p *Pump) upstreamLoop(ctx context.Context, writer *clientWriter) error {
	for {
		ev, err := p.upstream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.log.Error("upstream stream ended", slog.String("error", err.Error()))
			p.m.UpstreamErrors.WithLabelValues(messages.ErrCodeUpstreamError).Inc()
			writer.enqueue(messages.NewError(p.sess.ID, messages.ErrCodeUpstreamError, "upstream connection lost"))
			return err
		}
		p.registry.Touch(p.sess.ID)

		if ev.Type == openai.EvtSessionCreated && ev.Session != nil && ev.Session.ID != "" {
			usid := ev.Session.ID
			p.registry.Update(p.sess.ID, session.Patch{UpstreamSessionID: &usid})
		}

		msg := translator.FromUpstream(ev, p.sess.ID)
		if msg == nil {
			continue
		}
		if msg.Type == messages.TypeError {
			p.m.UpstreamErrors.WithLabelValues(msg.Code).Inc()
		}
		writer.enqueue(msg)
	}
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
