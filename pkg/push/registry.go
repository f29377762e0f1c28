// Package push tracks the live WebSocket channel for each session and
// delivers slow-path results over it. One channel per session: a client
// reconnecting replaces its previous channel (last writer wins).
package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ultra-dojo/coach/pkg/models"
)

// StatusSessionRejected is the close code sent when a channel is refused
// for an unusable session id.
const StatusSessionRejected websocket.StatusCode = 4004

// Attach rejection reasons. The API layer maps both to a 4004 close.
var (
	ErrProvisionalSession = errors.New("provisional session id cannot attach a channel")
	ErrUnknownSession     = errors.New("unknown session id")
)

// DeliveryStatus is the outcome of a push attempt.
type DeliveryStatus string

const (
	Delivered  DeliveryStatus = "delivered"
	NoChannel  DeliveryStatus = "no_channel"
	SendFailed DeliveryStatus = "send_failed"
)

// SessionChecker verifies that a session exists. Implemented by
// services.SessionService.
type SessionChecker interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Channel is one attached WebSocket client.
type Channel struct {
	ID        string
	SessionID string
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
}

// Context is canceled when the channel is replaced or detached.
func (c *Channel) Context() context.Context {
	return c.ctx
}

// Registry maps committed session ids to their live push channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	checker      SessionChecker
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewRegistry creates a channel registry. checker may be nil to skip
// session existence checks.
func NewRegistry(checker SessionChecker, writeTimeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		channels:     make(map[string]*Channel),
		checker:      checker,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Attach binds a WebSocket connection as the session's push channel. A
// provisional or malformed id is rejected; an id the store definitively
// does not know is rejected; a store error accepts the channel anyway, so
// a flaky database cannot take down push delivery. Any previous channel
// for the session is closed and replaced.
func (r *Registry) Attach(ctx context.Context, sessionID string, conn *websocket.Conn) (*Channel, error) {
	if models.IsProvisional(sessionID) {
		return nil, ErrProvisionalSession
	}
	if !models.IsCommitted(sessionID) {
		return nil, ErrUnknownSession
	}

	if r.checker != nil {
		exists, err := r.checker.Exists(ctx, sessionID)
		if err != nil {
			r.logger.Warn("Session check failed, accepting channel anyway",
				"session_id", sessionID, "error", err)
		} else if !exists {
			return nil, ErrUnknownSession
		}
	}

	chCtx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		conn:      conn,
		ctx:       chCtx,
		cancel:    cancel,
	}

	r.mu.Lock()
	previous := r.channels[sessionID]
	r.channels[sessionID] = ch
	r.mu.Unlock()

	if previous != nil {
		previous.cancel()
		_ = previous.conn.Close(websocket.StatusPolicyViolation, "replaced by newer connection")
		r.logger.Info("Push channel replaced",
			"session_id", sessionID, "old_channel", previous.ID, "new_channel", ch.ID)
	} else {
		r.logger.Info("Push channel attached", "session_id", sessionID, "channel_id", ch.ID)
	}
	return ch, nil
}

// Detach removes the channel if it is still the session's current one. A
// channel that was already replaced leaves the newer one untouched.
func (r *Registry) Detach(ch *Channel) {
	r.mu.Lock()
	current, ok := r.channels[ch.SessionID]
	if ok && current.ID == ch.ID {
		delete(r.channels, ch.SessionID)
	}
	r.mu.Unlock()

	ch.cancel()
	r.logger.Info("Push channel detached", "session_id", ch.SessionID, "channel_id", ch.ID)
}

// HasChannel reports whether the session has a live push channel.
func (r *Registry) HasChannel(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[sessionID]
	return ok
}

// ActiveChannels returns the number of attached channels.
func (r *Registry) ActiveChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Send delivers a payload to the session's channel. The returned status
// distinguishes a missing channel from a failed write; callers log but
// never error on either.
func (r *Registry) Send(sessionID string, payload []byte) DeliveryStatus {
	r.mu.RLock()
	ch, ok := r.channels[sessionID]
	r.mu.RUnlock()
	if !ok {
		return NoChannel
	}

	writeCtx, cancel := context.WithTimeout(ch.ctx, r.writeTimeout)
	defer cancel()
	if err := ch.conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		r.logger.Warn("Push delivery failed",
			"session_id", sessionID, "channel_id", ch.ID, "error", err)
		return SendFailed
	}
	return Delivered
}
