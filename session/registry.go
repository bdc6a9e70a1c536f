package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"voicerelay/config"
)

// ErrDuplicateSession is returned when an active session already exists
// for a client.
var ErrDuplicateSession = errors.New("active session already exists for client")

// ErrMaxSessions is returned when the registry is at capacity.
var ErrMaxSessions = errors.New("maximum sessions reached")

// Registry owns the mapping of session identity to session state for every
// connected client. It is the only structure shared across concurrent
// session handlers; all mutations are short and run under one mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byClient map[string]string // clientID -> sessionID

	cleanupInterval time.Duration
	sessionTimeout  time.Duration
	maxSessions     int

	redis *redis.Client
	log   *slog.Logger

	baseCtx  context.Context
	cancel   context.CancelFunc
	sweeping bool
	wg       sync.WaitGroup
}

// NewRegistry creates a registry with an optional Redis mirror. Redis is
// probed once at construction; if unreachable the registry runs purely
// in-memory.
func NewRegistry(cfg *config.Config, log *slog.Logger) *Registry {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, session mirror disabled", slog.String("addr", cfg.RedisURL))
		rdb = nil
	}

	return &Registry{
		sessions:        make(map[string]*Session),
		byClient:        make(map[string]string),
		cleanupInterval: cfg.CleanupInterval,
		sessionTimeout:  cfg.SessionTimeout,
		maxSessions:     cfg.MaxSessions,
		redis:           rdb,
		log:             log,
	}
}

// Start arms the registry's background lifecycle. The sweeper itself is
// launched lazily by Create and suspends whenever the registry empties.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseCtx, r.cancel = context.WithCancel(ctx)
}

// Create registers a new session for clientID. The session starts
// inactive; the relay flips it active once the upstream handshake
// completes. Fails if the client already has an active session.
func (r *Registry) Create(clientID string, cfg *Config) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sid, ok := r.byClient[clientID]; ok {
		if existing, ok := r.sessions[sid]; ok && existing.IsActive {
			return nil, ErrDuplicateSession
		}
	}
	if len(r.sessions) >= r.maxSessions {
		return nil, ErrMaxSessions
	}

	now := time.Now()
	s := &Session{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		Config:         DefaultConfig(),
		ConnectedAt:    now,
		LastActivityAt: now,
	}
	if cfg != nil {
		s.Config = cfg.Clone()
	}

	r.sessions[s.ID] = s
	r.byClient[clientID] = s.ID
	r.mirrorStore(s)
	r.ensureSweeperLocked()

	r.log.Info("session created",
		slog.String("session_id", s.ID),
		slog.String("client_id", clientID))
	return clone(s), nil
}

// Get returns a copy of the session, or nil if absent.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.sessions[sessionID])
}

// GetByClient returns a copy of the client's session, or nil if absent.
func (r *Registry) GetByClient(clientID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sid, ok := r.byClient[clientID]; ok {
		return clone(r.sessions[sid])
	}
	return nil
}

// Touch refreshes the session's last-activity timestamp.
func (r *Registry) Touch(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.LastActivityAt = time.Now()
	return true
}

// Update applies a patch to the allow-listed session fields. The
// last-activity timestamp is refreshed unless the patch sets it
// explicitly.
func (r *Registry) Update(sessionID string, patch Patch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}

	if patch.UpstreamSessionID != nil {
		s.UpstreamSessionID = *patch.UpstreamSessionID
	}
	if patch.ConversationID != nil {
		s.ConversationID = *patch.ConversationID
	}
	if patch.IsActive != nil {
		s.IsActive = *patch.IsActive
	}
	if patch.Config != nil {
		s.Config = patch.Config.Clone()
	}
	if patch.LastActivityAt != nil {
		s.LastActivityAt = *patch.LastActivityAt
	} else {
		s.LastActivityAt = time.Now()
	}
	return true
}

// Deactivate marks the session inactive but retains the record so the
// sweeper can reap it after the grace period.
func (r *Registry) Deactivate(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.IsActive = false
	return true
}

// Remove hard-deletes the session and its client mapping. Idempotent.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(sessionID)
}

func (r *Registry) removeLocked(sessionID string) bool {
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if sid, ok := r.byClient[s.ClientID]; ok && sid == sessionID {
		delete(r.byClient, s.ClientID)
	}
	delete(r.sessions, sessionID)
	r.mirrorDelete(sessionID)

	r.log.Info("session removed",
		slog.String("session_id", sessionID),
		slog.String("client_id", s.ClientID))
	return true
}

// Sweep removes expired sessions: inactive ones past the cleanup grace
// period and active ones past the session timeout. Returns the number
// removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var expired []string
	for id, s := range r.sessions {
		age := now.Sub(s.LastActivityAt)
		switch {
		case !s.IsActive && age > r.cleanupInterval:
			expired = append(expired, id)
		case s.IsActive && age > r.sessionTimeout:
			r.log.Warn("session timed out",
				slog.String("session_id", id),
				slog.Duration("idle", age))
			expired = append(expired, id)
		}
	}

	removed := 0
	for _, id := range expired {
		if r.removeLocked(id) {
			removed++
		}
	}
	return removed
}

// ensureSweeperLocked launches the background sweeper if it is not
// already running. Callers must hold r.mu.
func (r *Registry) ensureSweeperLocked() {
	if r.sweeping || r.baseCtx == nil {
		return
	}
	r.sweeping = true
	r.wg.Add(1)
	go r.sweepLoop()
}

// sweepLoop runs Sweep on a fixed interval and exits when the registry
// empties; the next Create restarts it.
func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.baseCtx.Done():
			r.mu.Lock()
			r.sweeping = false
			r.mu.Unlock()
			return
		case <-ticker.C:
			r.Sweep()

			r.mu.Lock()
			if len(r.sessions) == 0 {
				r.sweeping = false
				r.mu.Unlock()
				r.log.Debug("registry empty, sweeper suspended")
				return
			}
			r.mu.Unlock()
		}
	}
}

// Shutdown stops the sweeper and removes every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	r.mu.Lock()
	for id := range r.sessions {
		r.removeLocked(id)
	}
	rdb := r.redis
	r.redis = nil
	r.mu.Unlock()

	if rdb != nil {
		rdb.Close()
	}
	r.log.Info("session registry shut down")
}

// Stats returns a snapshot of registry counts and configured intervals.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, s := range r.sessions {
		if s.IsActive {
			active++
		}
	}
	return Stats{
		TotalSessions:          len(r.sessions),
		ActiveSessions:         active,
		InactiveSessions:       len(r.sessions) - active,
		CleanupIntervalSeconds: int(r.cleanupInterval.Seconds()),
		SessionTimeoutSeconds:  int(r.sessionTimeout.Seconds()),
	}
}

// mirrorStore writes the session record to Redis when available.
// Callers must hold r.mu.
func (r *Registry) mirrorStore(s *Session) {
	if r.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r.redis.HSet(ctx, "session:"+s.ID, map[string]interface{}{
		"client_id":     s.ClientID,
		"created_at":    s.ConnectedAt.Format(time.RFC3339),
		"last_activity": s.LastActivityAt.Format(time.RFC3339),
	})
	r.redis.SAdd(ctx, "active_sessions", s.ID)
	r.redis.Expire(ctx, "session:"+s.ID, r.sessionTimeout)
}

// mirrorDelete removes the session record from Redis when available.
// Callers must hold r.mu.
func (r *Registry) mirrorDelete(sessionID string) {
	if r.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r.redis.Del(ctx, "session:"+sessionID)
	r.redis.SRem(ctx, "active_sessions", sessionID)
}

func clone(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Config = s.Config.Clone()
	return &out
}
