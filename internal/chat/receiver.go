package chat

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/keiv/huddle/internal/domain"
)

// messageBuffer accumulates the chunks of one in-flight oversized
// message. Destroyed the instant it completes, times out, or is evicted
// for capacity.
type messageBuffer struct {
	messageID   string
	chunks      map[int]string
	totalChunks int
	senderID    domain.ConnectionID
	firstTS     int64
	createdAt   time.Time
}

// HandleSignal is the receive path: the bridge forwards chat signal
// payloads here verbatim. Malformed payloads are logged and dropped.
func (m *Manager) HandleSignal(signalType, payload string, from domain.ConnectionID) {
	switch signalType {
	case SignalChat:
		m.handleMessage(payload)
	case SignalChatChunk:
		m.handleChunk(payload, from)
	default:
		log.Debug().Str("module", "chat").Str("type", signalType).Msg("ignoring signal")
	}
}

func (m *Manager) handleMessage(payload string) {
	w, err := parseMessage(payload)
	if err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("dropping malformed message")
		return
	}
	m.finish(w.toDomain())
}

// finish applies dedup, records into the bounded history and delivers.
func (m *Manager) finish(msg domain.ChatMessage) {
	m.mu.Lock()
	now := m.now()
	if last, ok := m.seen[msg.ID]; ok && now.Sub(last) < m.cfg.DedupWindow {
		m.mu.Unlock()
		log.Debug().Str("module", "chat").Str("msg_id", msg.ID).Msg("duplicate suppressed")
		return
	}
	m.seen[msg.ID] = now
	m.pruneSeenLocked(now)

	m.history = append(m.history, msg)
	if over := len(m.history) - m.cfg.HistoryLimit; over > 0 {
		m.history = m.history[over:]
	}
	deliver := m.deliver
	m.mu.Unlock()

	deliver(msg)
}

func (m *Manager) pruneSeenLocked(now time.Time) {
	for id, t := range m.seen {
		if now.Sub(t) >= m.cfg.DedupWindow {
			delete(m.seen, id)
		}
	}
}

func (m *Manager) handleChunk(payload string, from domain.ConnectionID) {
	w, err := parseChunk(payload)
	if err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("dropping malformed chunk")
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	buf, ok := m.buffers[w.MessageID]
	if !ok {
		if len(m.buffers) >= m.cfg.BufferLimit {
			m.evictOldestLocked()
		}
		buf = &messageBuffer{
			messageID:   w.MessageID,
			chunks:      make(map[int]string),
			totalChunks: w.TotalChunks,
			senderID:    from,
			firstTS:     w.Timestamp,
			createdAt:   m.now(),
		}
		m.buffers[w.MessageID] = buf
		m.ensureSweepLocked()
	}
	if _, dup := buf.chunks[w.ChunkIndex]; dup {
		m.mu.Unlock()
		return
	}
	buf.chunks[w.ChunkIndex] = w.Data
	complete := len(buf.chunks) == buf.totalChunks
	if complete {
		delete(m.buffers, w.MessageID)
	}
	m.mu.Unlock()

	if complete {
		m.reassemble(buf)
	}
}

func (m *Manager) reassemble(buf *messageBuffer) {
	indices := lo.Keys(buf.chunks)
	sort.Ints(indices)

	var sb strings.Builder
	for _, i := range indices {
		sb.WriteString(buf.chunks[i])
	}

	log.Debug().Str("module", "chat").Str("msg_id", buf.messageID).
		Int("chunks", buf.totalChunks).Msg("message reassembled")
	m.finish(domain.ChatMessage{
		ID:        buf.messageID,
		SenderID:  string(buf.senderID),
		Content:   sb.String(),
		Timestamp: time.UnixMilli(buf.firstTS),
		Type:      domain.MessageUser,
	})
}

// evictOldestLocked drops the least-recently-created buffer. Data loss
// for that in-flight message is accepted to bound memory.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, buf := range m.buffers {
		if oldestID == "" || buf.createdAt.Before(oldest) {
			oldestID = id
			oldest = buf.createdAt
		}
	}
	if oldestID != "" {
		delete(m.buffers, oldestID)
		log.Warn().Str("module", "chat").Str("msg_id", oldestID).Msg("buffer evicted at capacity")
	}
}

// ensureSweepLocked starts the sweep loop for the current session
// scope on first buffer creation. The loop exits on Reset or Close, so
// the ticker never outlives the session whose buffers it watches.
func (m *Manager) ensureSweepLocked() {
	if m.sweepCtx == m.sessCtx {
		return
	}
	m.sweepCtx = m.sessCtx
	m.wg.Add(1)
	go m.sweep(m.sessCtx)
}

// sweep periodically evicts buffers older than the timeout regardless
// of completeness, so a sender crash mid-transmission cannot leave
// partial state behind forever.
func (m *Manager) sweep(ctx context.Context) {
	defer m.wg.Done()
	interval := m.cfg.BufferTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, buf := range m.buffers {
		if now.Sub(buf.createdAt) >= m.cfg.BufferTimeout {
			delete(m.buffers, id)
			log.Warn().Str("module", "chat").Str("msg_id", id).
				Int("received", len(buf.chunks)).Int("total", buf.totalChunks).
				Msg("incomplete buffer timed out")
		}
	}
}
