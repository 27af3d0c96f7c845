package domain

import "time"

type MessageType string

const (
	MessageUser         MessageType = "user"
	MessageSystem       MessageType = "system"
	MessageNotification MessageType = "notification"
)

// ChatMessage is one delivered chat entry. Chunking and retry are a
// transport concern; by the time a ChatMessage exists the content is whole.
type ChatMessage struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       MessageType `json:"type"`
}
