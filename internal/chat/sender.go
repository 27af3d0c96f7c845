package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/core"
)

// pendingMessage is one outgoing single-path queue entry, scoped to the
// session it was enqueued in via ctx. Its done channel is settled
// exactly once: true on transport accept, false on attempt exhaustion
// or session teardown.
type pendingMessage struct {
	id        string
	content   string
	attempts  int
	timestamp time.Time
	ctx       context.Context
	done      chan bool
	once      sync.Once
}

func (p *pendingMessage) settle(ok bool) {
	p.once.Do(func() {
		p.done <- ok
		close(p.done)
	})
}

// Send validates, rate-limits and dispatches content. The returned
// channel settles with the delivery outcome; validation and rate-limit
// failures are returned synchronously and enqueue nothing.
func (m *Manager) Send(ctx context.Context, content string) (<-chan bool, error) {
	if strings.TrimSpace(content) == "" {
		return nil, core.ErrEmptyMessage
	}
	if !m.limiter.Allow() {
		return nil, &core.RateLimitError{Limit: m.cfg.RateLimit, Window: m.cfg.RateWindow}
	}

	if len(content) <= m.cfg.SizeLimit {
		return m.enqueue(content), nil
	}
	if !m.cfg.ChunkingEnabled {
		return nil, &core.SizeExceededError{Size: len(content), Limit: m.cfg.SizeLimit}
	}
	return m.sendChunked(ctx, content), nil
}

func (m *Manager) enqueue(content string) <-chan bool {
	pm := &pendingMessage{
		id:        uuid.NewString(),
		content:   content,
		timestamp: m.now(),
		done:      make(chan bool, 1),
	}

	// The closed-check and the channel send stay under one lock so a
	// concurrent Close can never close the queue between them.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		pm.settle(false)
		return pm.done
	}
	pm.ctx = m.sessCtx
	select {
	case m.queue <- pm:
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		log.Warn().Str("module", "chat").Str("msg_id", pm.id).Msg("send queue full, dropping")
		pm.settle(false)
	}
	return pm.done
}

// drain consumes the queue strictly FIFO with one message in flight,
// which is what preserves send order across retries.
func (m *Manager) drain(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pm := <-m.queue:
			if pm == nil {
				return
			}
			m.attempt(pm)
		}
	}
}

// attempt runs the retry loop for one message. The message's session
// context aborts it, so a disconnect settles the whole queue without
// waiting out backoff delays.
func (m *Manager) attempt(pm *pendingMessage) {
	payload := m.encodeMessage(pm)
	for pm.attempts < m.cfg.MaxAttempts {
		if pm.ctx.Err() != nil {
			pm.settle(false)
			return
		}
		pm.attempts++
		err := m.sender.Signal(pm.ctx, SignalChat, payload)
		if err == nil {
			pm.settle(true)
			return
		}
		log.Warn().Err(err).Str("module", "chat").Str("msg_id", pm.id).
			Int("attempt", pm.attempts).Msg("send attempt failed")
		if pm.attempts >= m.cfg.MaxAttempts {
			break
		}
		// Linear backoff: delay grows with the attempt count.
		select {
		case <-pm.ctx.Done():
			pm.settle(false)
			return
		case <-time.After(m.cfg.RetryDelay * time.Duration(pm.attempts)):
		}
	}
	log.Error().Str("module", "chat").Str("msg_id", pm.id).Msg("attempts exhausted")
	pm.settle(false)
}

func (m *Manager) encodeMessage(pm *pendingMessage) string {
	m.mu.Lock()
	senderID, senderName := m.localID, m.localName
	m.mu.Unlock()
	b, _ := json.Marshal(messageWire{
		ID:         pm.id,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    pm.content,
		Timestamp:  pm.timestamp.UnixMilli(),
		Type:       "user",
	})
	return string(b)
}

// sendChunked transmits every chunk concurrently as a best-effort
// batch. No per-chunk retry; success requires all chunks accepted.
// Chunks of two oversized sends may interleave on the wire.
func (m *Manager) sendChunked(ctx context.Context, content string) <-chan bool {
	msgID := uuid.NewString()
	parts := splitContent(content, m.cfg.ChunkSize)
	ts := m.now().UnixMilli()

	done := make(chan bool, 1)
	var failed atomic.Bool
	var wg sync.WaitGroup

	for i, part := range parts {
		wire := chunkWire{
			ID:          uuid.NewString(),
			MessageID:   msgID,
			ChunkIndex:  i,
			TotalChunks: len(parts),
			Data:        part,
			Timestamp:   ts,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(wire)
			if err := m.sender.Signal(ctx, SignalChatChunk, string(b)); err != nil {
				log.Warn().Err(err).Str("module", "chat").Str("msg_id", msgID).
					Int("chunk", wire.ChunkIndex).Msg("chunk send failed")
				failed.Store(true)
			}
		}()
	}

	go func() {
		wg.Wait()
		done <- !failed.Load()
		close(done)
	}()
	log.Debug().Str("module", "chat").Str("msg_id", msgID).Int("chunks", len(parts)).Msg("chunked send")
	return done
}
