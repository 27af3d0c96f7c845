package core

import "github.com/keiv/huddle/internal/domain"

// Event is the closed set of engine-native events after boundary
// validation. The bridge is the only consumer; payload shapes are typed
// here so nothing downstream handles loose JSON.
type Event interface{ isEvent() }

type EventHandler func(Event)

type ConnectionCreated struct {
	ConnectionID domain.ConnectionID
	Nickname     string
}

type ConnectionDestroyed struct {
	ConnectionID domain.ConnectionID
	Reason       string
}

type StreamCreated struct {
	Stream       domain.MediaStream
	ConnectionID domain.ConnectionID
	Nickname     string
	HasAudio     bool
	HasVideo     bool
}

type StreamDestroyed struct {
	StreamID     string
	Kind         domain.StreamKind
	ConnectionID domain.ConnectionID
}

type StreamProperty string

const (
	PropAudioActive StreamProperty = "audioActive"
	PropVideoActive StreamProperty = "videoActive"
)

type PropertyChanged struct {
	ConnectionID domain.ConnectionID
	Property     StreamProperty
	Value        bool
}

type SpeakingChanged struct {
	ConnectionID domain.ConnectionID
	Speaking     bool
	AudioLevel   float64
}

// SignalReceived carries an application signal verbatim. Chat payloads
// are forwarded untouched to the chat manager's receive path.
type SignalReceived struct {
	SignalType string
	Payload    string
	From       domain.ConnectionID
}

type SessionDisconnected struct{ Reason string }

type SessionReconnecting struct{}

type SessionReconnected struct{}

type EngineException struct {
	Code    int
	Message string
}

func (ConnectionCreated) isEvent() {}
func (ConnectionDestroyed) isEvent() {}
func (StreamCreated) isEvent() {}
func (StreamDestroyed) isEvent() {}
func (PropertyChanged) isEvent() {}
func (SpeakingChanged) isEvent() {}
func (SignalReceived) isEvent() {}
func (SessionDisconnected) isEvent() {}
func (SessionReconnecting) isEvent() {}
func (SessionReconnected) isEvent() {}
func (EngineException) isEvent() {}
