// Package chat turns the engine's small, unordered, best-effort signal
// primitive into a usable chat channel: size-splitting, retry,
// de-duplication and reassembly.
package chat

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

const (
	SignalChat      = "chat"
	SignalChatChunk = "chat-chunk"
)

var (
	errMissingID      = errors.New("missing message id")
	errMissingContent = errors.New("missing content")
	errBadChunkIndex  = errors.New("chunk index out of range")
	errBadChunkTotal  = errors.New("total chunks must be positive")
)

// messageWire is the payload of a "chat" signal.
type messageWire struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"`
}

// chunkWire is the payload of a "chat-chunk" signal: one ordered slice
// of an oversized message's content.
type chunkWire struct {
	ID          string `json:"id"`
	MessageID   string `json:"messageId"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	Data        string `json:"data"`
	Timestamp   int64  `json:"timestamp"`
}

func parseMessage(payload string) (messageWire, error) {
	var w messageWire
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return w, &core.ParseError{Signal: SignalChat, Err: err}
	}
	if w.ID == "" {
		return w, &core.ParseError{Signal: SignalChat, Err: errMissingID}
	}
	if w.Content == "" {
		return w, &core.ParseError{Signal: SignalChat, Err: errMissingContent}
	}
	return w, nil
}

func parseChunk(payload string) (chunkWire, error) {
	var w chunkWire
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return w, &core.ParseError{Signal: SignalChatChunk, Err: err}
	}
	if w.MessageID == "" {
		return w, &core.ParseError{Signal: SignalChatChunk, Err: errMissingID}
	}
	if w.TotalChunks <= 0 {
		return w, &core.ParseError{Signal: SignalChatChunk, Err: errBadChunkTotal}
	}
	if w.ChunkIndex < 0 || w.ChunkIndex >= w.TotalChunks {
		return w, &core.ParseError{Signal: SignalChatChunk, Err: errBadChunkIndex}
	}
	return w, nil
}

func (w messageWire) toDomain() domain.ChatMessage {
	t := domain.MessageType(w.Type)
	switch t {
	case domain.MessageUser, domain.MessageSystem, domain.MessageNotification:
	default:
		t = domain.MessageUser
	}
	return domain.ChatMessage{
		ID:         w.ID,
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		Content:    w.Content,
		Timestamp:  time.UnixMilli(w.Timestamp),
		Type:       t,
	}
}
