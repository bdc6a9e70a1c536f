// Package server exposes the client-facing WebSocket endpoint and the
// operational HTTP surface (health, stats, metrics).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"voicerelay/config"
	"voicerelay/messages"
	"voicerelay/metrics"
	"voicerelay/openai"
	"voicerelay/relay"
	"voicerelay/session"
	"voicerelay/translator"
)

// UpstreamFactory builds a fresh upstream connection per session.
type UpstreamFactory func() relay.Upstream

// Server hosts the relay endpoint over one http.Server.
type Server struct {
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	registry    *session.Registry
	translator  *translator.Translator
	cfg         *config.Config
	log         *slog.Logger
	m           *metrics.Metrics
	newUpstream UpstreamFactory

	baseCtx context.Context
}

// New builds the server. gatherer feeds the /metrics endpoint.
func New(cfg *config.Config, registry *session.Registry, log *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		registry:   registry,
		translator: translator.New(cfg.MaxAudioBytes),
		cfg:        cfg,
		log:        log,
		m:          m,
		baseCtx:    context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024, // audio chunks
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
	s.newUpstream = func() relay.Upstream {
		return openai.NewConn(cfg.OpenAIRealtimeURL, cfg.OpenAIAPIKey, cfg.HandshakeTimeout, log)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Router(gatherer),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// SetUpstreamFactory overrides how upstream connections are built.
func (s *Server) SetUpstreamFactory(f UpstreamFactory) {
	s.newUpstream = f
}

// Router assembles the HTTP routes.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/ws/realtime", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	return r
}

// Start begins listening. ctx is the lifetime of every relayed session:
// cancelling it tears active pumps down.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.log.Info("server starting", slog.Int("port", s.cfg.Port))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	sess, err := s.registry.Create(clientID, nil)
	if err != nil {
		s.log.Warn("session rejected",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()))
		s.m.SessionEvents.WithLabelValues("rejected").Inc()
		s.writeRejection(conn, err)
		return
	}

	pump := relay.New(s.registry, s.translator, s.newUpstream(), conn, sess, s.cfg.KeepAlivePeriod, s.log, s.m)
	if err := pump.Run(s.baseCtx); err != nil {
		s.log.Warn("relay ended with error",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()))
	}
}

// writeRejection reports a refused connection before closing it. The
// pump never starts, so writing directly here is safe.
func (s *Server) writeRejection(conn *websocket.Conn, err error) {
	payload, merr := sonic.Marshal(messages.NewError("", messages.ErrCodeSessionFailed, err.Error()))
	if merr != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.WriteMessage(websocket.TextMessage, payload)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session rejected"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.registry.Stats().TotalSessions)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	payload, err := sonic.Marshal(s.registry.Stats())
	if err != nil {
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
