package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const refreshCallTimeout = 30 * time.Second

// SessionStatus is the caller-facing view of one session's refresher handle.
type SessionStatus struct {
	SessionID      string
	Active         bool
	HasAccessToken bool
	AccessToken    string
	ExpiresAt      time.Time
}

// sessionHandle is one live session's token state plus its timer's stop
// signal. Handles are process-memory only: a restart drops them all and
// interactive sessions fall back to on-demand refresh.
type sessionHandle struct {
	sessionID string

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func (h *sessionHandle) cancel() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *sessionHandle) canceled() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// SessionRefresher keeps interactive sessions' access tokens warm with one
// periodic timer per registered session. It is an explicit registry keyed by
// session id, independent of the aggregation cache.
type SessionRefresher struct {
	refresher TokenRefresher
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	handles map[string]*sessionHandle
}

// NewSessionRefresher creates an empty registry.
func NewSessionRefresher(refresher TokenRefresher, interval time.Duration, logger *zap.Logger) *SessionRefresher {
	return &SessionRefresher{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		handles:   make(map[string]*sessionHandle),
	}
}

// Start registers a session for background refresh. Restarting an existing
// session replaces its handle and adopts the supplied refresh token.
func (r *SessionRefresher) Start(sessionID, refreshToken string) {
	handle := &sessionHandle{
		sessionID:    sessionID,
		refreshToken: refreshToken,
		stop:         make(chan struct{}),
	}

	r.mu.Lock()
	if old, ok := r.handles[sessionID]; ok {
		old.cancel()
	}
	r.handles[sessionID] = handle
	r.mu.Unlock()

	go r.run(handle)

	r.logger.Info("background session refresh started",
		zap.String("session_id", sessionID),
		zap.Duration("interval", r.interval),
	)
}

// Stop cancels a session's timer and drops its handle. Idempotent: stopping
// an unknown session is a no-op. Cancellation takes effect before the next
// tick; no refresh call starts afterwards.
func (r *SessionRefresher) Stop(sessionID string) {
	r.mu.Lock()
	handle, ok := r.handles[sessionID]
	if ok {
		delete(r.handles, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	handle.cancel()
	r.logger.Info("background session refresh stopped", zap.String("session_id", sessionID))
}

// StopAll cancels every registered session. Used on shutdown.
func (r *SessionRefresher) StopAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*sessionHandle)
	r.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
	}
}

// Status reports whether the session's timer is still registered and the
// token state an interactive caller would see.
func (r *SessionRefresher) Status(sessionID string) (SessionStatus, bool) {
	r.mu.Lock()
	handle, ok := r.handles[sessionID]
	r.mu.Unlock()

	if !ok {
		return SessionStatus{SessionID: sessionID}, false
	}

	handle.mu.Lock()
	defer handle.mu.Unlock()
	return SessionStatus{
		SessionID:      sessionID,
		Active:         true,
		HasAccessToken: handle.accessToken != "",
		AccessToken:    handle.accessToken,
		ExpiresAt:      handle.expiresAt,
	}, true
}

func (r *SessionRefresher) run(handle *sessionHandle) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-handle.stop:
			return
		case <-ticker.C:
			r.refresh(handle)
		}
	}
}

func (r *SessionRefresher) refresh(handle *sessionHandle) {
	// The stop signal may have raced the tick; never start a call after
	// cancellation was requested.
	if handle.canceled() {
		return
	}

	handle.mu.Lock()
	refreshToken := handle.refreshToken
	handle.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshCallTimeout)
	defer cancel()

	tokens, err := r.refresher.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		// Keep the existing tokens; the session stays up and the next tick retries.
		r.logger.Warn("background token refresh failed",
			zap.String("session_id", handle.sessionID),
			zap.Error(err),
		)
		return
	}

	handle.mu.Lock()
	handle.accessToken = tokens.AccessToken
	handle.expiresAt = tokens.ExpiresAt(time.Now())
	if tokens.RefreshToken != "" {
		// Rotation: the new refresh token is used on the next tick.
		handle.refreshToken = tokens.RefreshToken
	}
	handle.mu.Unlock()
}
