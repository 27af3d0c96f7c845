package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxNicknameLen = 36

var (
	ErrNicknameEmpty   = errors.New("nickname empty")
	ErrNicknameTooLong = errors.New("nickname too long")
)

type (
	ParticipantID string
	ConnectionID  string
)

type StreamKind string

const (
	StreamCamera StreamKind = "camera"
	StreamScreen StreamKind = "screen"
)

// MediaStream is a borrowed handle into an engine-managed media object.
// The adapter owns the underlying resources; holders must release by
// unbinding, never by closing.
type MediaStream interface {
	ID() string
	Kind() StreamKind
}

// Participant is the registry's view of one call member.
type Participant struct {
	ID              ParticipantID
	ConnectionID    ConnectionID
	Nickname        string
	IsLocal         bool
	AudioEnabled    bool
	VideoEnabled    bool
	IsScreenSharing bool
	Speaking        bool
	AudioLevel      float64
	Streams         map[StreamKind]MediaStream
	JoinedAt        time.Time
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(connID ConnectionID, nickname string) (*Participant, error) {
	if nickname == "" {
		return nil, ErrNicknameEmpty
	}
	if len(nickname) > MaxNicknameLen {
		return nil, ErrNicknameTooLong
	}
	return &Participant{
		ID:           ParticipantID(uuid.NewString()),
		ConnectionID: connID,
		Nickname:     nickname,
		Streams:      make(map[StreamKind]MediaStream),
		JoinedAt:     time.Now(),
	}, nil
}
