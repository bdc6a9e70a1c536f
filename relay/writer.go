package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"voicerelay/messages"
	"voicerelay/metrics"
)

const (
	writeQueueSize = 256
	writeTimeout   = 10 * time.Second
)

// clientWriter serializes all outbound client traffic through a single
// goroutine; gorilla connections allow at most one concurrent writer.
type clientWriter struct {
	conn      ClientConn
	queue     chan *messages.ServerMessage
	keepAlive time.Duration
	log       *slog.Logger
	m         *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newClientWriter(conn ClientConn, keepAlive time.Duration, log *slog.Logger, m *metrics.Metrics) *clientWriter {
	return &clientWriter{
		conn:      conn,
		queue:     make(chan *messages.ServerMessage, writeQueueSize),
		keepAlive: keepAlive,
		log:       log,
		m:         m,
		done:      make(chan struct{}),
	}
}

// run drains the queue until stop is called, then sends a close frame.
// Buffered messages are flushed before exit: a closed channel delivers
// its backlog first.
func (w *clientWriter) run() {
	defer close(w.done)
	defer func() {
		w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	ticker := time.NewTicker(w.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.write(msg); err != nil {
				w.log.Debug("client write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *clientWriter) write(msg *messages.ServerMessage) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	w.m.WSMessages.WithLabelValues("out", msg.Type).Inc()
	return nil
}

// enqueue queues a message without blocking. A full queue drops the
// message and counts it.
func (w *clientWriter) enqueue(msg *messages.ServerMessage) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- msg:
	default:
		w.m.DroppedMessages.Inc()
		w.log.Warn("write queue full, dropping message", slog.String("type", msg.Type))
	}
}

// stop closes the queue; run flushes the backlog and exits. Idempotent.
func (w *clientWriter) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.queue)
}

// wait blocks until run has flushed and returned.
func (w *clientWriter) wait() {
	<-w.done
}
