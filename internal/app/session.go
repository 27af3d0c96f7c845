// Package app holds the state owners: session controller, participant
// registry, media controller, event bridge and quality monitor. Each
// map is owned by exactly one component and mutated only through it.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// StatusFunc observes session status transitions.
type StatusFunc func(domain.SessionStatus)

// SessionController owns the connection lifecycle state machine.
//
//	idle → connecting → {connected, error}
//	connected → {reconnecting, disconnected, error}
//	reconnecting → connected
//	any → idle via Disconnect
type SessionController struct {
	engine core.Engine

	mu       sync.Mutex
	status   domain.SessionStatus
	info     domain.SessionInfo
	username string
	session  core.Session
	joinSeq  uint64
	lastErr  error

	onStatus  StatusFunc
	teardowns []func()
}

func NewSessionController(engine core.Engine) *SessionController {
	return &SessionController{
		engine: engine,
		status: domain.StatusIdle,
	}
}

// OnStatus sets the transition observer. Must be called before Connect.
func (c *SessionController) OnStatus(fn StatusFunc) { c.onStatus = fn }

// RegisterTeardown adds a hook run on every Disconnect, after the engine
// session is torn down. Used to stop the chat manager and the quality
// monitor so no timer survives the session.
func (c *SessionController) RegisterTeardown(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardowns = append(c.teardowns, fn)
}

func (c *SessionController) Status() domain.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *SessionController) Info() domain.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

func (c *SessionController) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Session returns the live engine session, or nil outside connected states.
func (c *SessionController) Session() core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *SessionController) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *SessionController) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
	if c.status == domain.StatusError {
		c.setStatusLocked(domain.StatusIdle)
	}
}

// Connect opens a session. A no-op while one attempt is connecting or
// connected; a superseded attempt's late result never mutates state
// because every continuation re-checks its captured join sequence.
func (c *SessionController) Connect(ctx context.Context, info domain.SessionInfo, username string) error {
	c.mu.Lock()
	if c.status == domain.StatusConnecting || c.status == domain.StatusConnected {
		log.Info().Str("module", "app.session").Str("status", string(c.status)).Msg("connect ignored")
		c.mu.Unlock()
		return nil
	}
	c.joinSeq++
	seq := c.joinSeq
	c.info = info
	c.username = username
	c.lastErr = nil
	c.setStatusLocked(domain.StatusConnecting)
	c.mu.Unlock()

	sess, err := c.engine.CreateSession(ctx, info, username)
	if err == nil {
		err = sess.Connect(ctx, info.Token)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.joinSeq {
		log.Warn().Str("module", "app.session").Uint64("seq", seq).Uint64("current", c.joinSeq).
			Msg("stale connect result discarded")
		if sess != nil {
			go func() { _ = sess.Disconnect(context.Background()) }()
		}
		return nil
	}
	if err != nil {
		c.lastErr = &core.ConnectionError{Op: "connect", Err: err}
		c.info = domain.SessionInfo{}
		c.session = nil
		c.setStatusLocked(domain.StatusError)
		return c.lastErr
	}
	c.session = sess
	c.setStatusLocked(domain.StatusConnected)
	log.Info().Str("module", "app.session").Str("session", string(info.ID)).
		Str("username", username).Msg("connected")
	return nil
}

// Disconnect is idempotent. The status flips to disconnected before
// teardown so consumers see intent immediately; teardown failure never
// leaves the session stuck outside a terminal state.
func (c *SessionController) Disconnect(ctx context.Context) {
	c.mu.Lock()
	if c.status == domain.StatusIdle || c.status == domain.StatusDisconnected {
		log.Info().Str("module", "app.session").Str("status", string(c.status)).Msg("disconnect ignored")
		c.mu.Unlock()
		return
	}
	c.joinSeq++ // invalidate any in-flight connect continuation
	sess := c.session
	c.session = nil
	hooks := c.teardowns
	c.setStatusLocked(domain.StatusDisconnected)
	c.mu.Unlock()

	if sess != nil {
		if err := sess.Disconnect(ctx); err != nil {
			log.Error().Err(err).Str("module", "app.session").Msg("teardown failed")
		}
	}
	for _, fn := range hooks {
		fn()
	}

	c.mu.Lock()
	c.info = domain.SessionInfo{}
	c.username = ""
	c.setStatusLocked(domain.StatusIdle)
	c.mu.Unlock()
}

// UpdateStatus applies an engine-driven transition (reconnecting,
// reconnected, remote disconnect). Invoked by the event bridge only.
func (c *SessionController) UpdateStatus(status domain.SessionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == status {
		return
	}
	// An engine-driven reconnect never spawns a second attempt; the
	// engine resumes the existing one.
	c.setStatusLocked(status)
}

// Fail records an engine exception and moves to the error status.
func (c *SessionController) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.setStatusLocked(domain.StatusError)
}

func (c *SessionController) setStatusLocked(status domain.SessionStatus) {
	if c.status == status {
		return
	}
	log.Info().Str("module", "app.session").Str("from", string(c.status)).
		Str("to", string(status)).Msg("status change")
	c.status = status
	if c.onStatus != nil {
		c.onStatus(status)
	}
}
