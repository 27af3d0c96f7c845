package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/config"
	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// DeliverFunc receives every accepted inbound message, in arrival order
// after dedup and reassembly.
type DeliverFunc func(domain.ChatMessage)

// Manager owns the outgoing FIFO queue, the dedup window, the ordering
// history and the chunk-buffer table. All of them are mutated only
// through Manager methods.
//
// The manager outlives any single session: Reset ends one session's
// chat scope, Close ends the manager itself.
type Manager struct {
	cfg     config.ChatConfig
	sender  core.SignalSender
	deliver DeliverFunc
	limiter *SendRateLimiter
	now     func() time.Time

	queue  chan *pendingMessage
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	sessCtx    context.Context
	sessCancel context.CancelFunc
	sweepCtx   context.Context
	localID    string
	localName  string
	seen       map[string]time.Time
	history    []domain.ChatMessage
	buffers    map[string]*messageBuffer
}

func NewManager(cfg config.ChatConfig, sender core.SignalSender, deliver DeliverFunc) *Manager {
	if deliver == nil {
		deliver = func(domain.ChatMessage) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		sender:  sender,
		deliver: deliver,
		limiter: NewSendRateLimiter(cfg.RateLimit, cfg.RateWindow),
		now:     time.Now,
		queue:   make(chan *pendingMessage, cfg.QueueSize),
		runCtx:  ctx,
		cancel:  cancel,
		seen:    make(map[string]time.Time),
		buffers: make(map[string]*messageBuffer),
	}
	m.sessCtx, m.sessCancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.drain(ctx)
	return m
}

// SetLocalIdentity stamps outgoing messages. Called once the session's
// own connection identity is known.
func (m *Manager) SetLocalIdentity(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localID = id
	m.localName = name
}

// Messages returns a copy of the bounded delivery history.
func (m *Manager) Messages() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChatMessage, len(m.history))
	copy(out, m.history)
	return out
}

// Reset ends the current session's chat scope: every queued or
// in-flight send settles false immediately, partial chunk buffers and
// the dedup table are dropped, and the sweep loop stops. Registered as
// a disconnect teardown so nothing chat-related survives a session.
// The manager stays usable for the next session.
func (m *Manager) Reset() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	cancel := m.sessCancel
	m.sessCtx, m.sessCancel = context.WithCancel(m.runCtx)
	m.buffers = make(map[string]*messageBuffer)
	m.seen = make(map[string]time.Time)
	m.mu.Unlock()

	cancel()
	log.Info().Str("module", "chat").Msg("session chat state reset")
}

// Close stops the drain and sweep loops and settles every queued
// completion to false. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	close(m.queue)
	for pm := range m.queue {
		pm.settle(false)
	}
	log.Info().Str("module", "chat").Msg("manager closed")
}
