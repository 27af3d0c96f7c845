// Package engine adapts the external media/signaling engine to the core
// contracts. It is the compatibility boundary: everything here may churn
// with the engine's major version, nothing outside it should.
package engine

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// Wire envelope types of the engine's current major version.
const (
	typeJoin         = "join"
	typeJoined       = "joined"
	typeLeave        = "leave"
	typeMemberLeft   = "member-left"
	typeStreamNew    = "stream-created"
	typeStreamGone   = "stream-destroyed"
	typePropChanged  = "property-changed"
	typeSpeaking     = "speaking"
	typeSignal       = "signal"
	typeSubscribe    = "subscribe"
	typeOffer        = "offer"
	typeAnswer       = "answer"
	typeCandidate    = "candidate"
	typeReconnecting = "reconnecting"
	typeReconnected  = "reconnected"
	typeDisconnect   = "disconnect"
	typeException    = "exception"
)

type envelope struct {
	Type string `json:"type"`
}

// joinPayload carries the nickname as its own field so the server
// never has to split it out of a composite connection-data string.
type joinPayload struct {
	Type     string `json:"type"`
	Session  string `json:"session"`
	Token    string `json:"token"`
	Nickname string `json:"nickname"`
}

type joinedPayload struct {
	ConnectionID string `json:"connectionId"`
}

type memberLeftPayload struct {
	ConnectionID string `json:"connectionId"`
	Reason       string `json:"reason"`
}

type streamPayload struct {
	StreamID     string `json:"streamId"`
	ConnectionID string `json:"connectionId"`
	Nickname     string `json:"nickname"`
	Kind         string `json:"kind"`
	HasAudio     bool   `json:"hasAudio"`
	HasVideo     bool   `json:"hasVideo"`
}

type propertyPayload struct {
	ConnectionID string `json:"connectionId"`
	Property     string `json:"property"`
	Value        bool   `json:"value"`
}

type speakingPayload struct {
	ConnectionID string  `json:"connectionId"`
	Speaking     bool    `json:"speaking"`
	AudioLevel   float64 `json:"audioLevel"`
}

type signalPayload struct {
	Type       string `json:"type"`
	SignalType string `json:"signalType"`
	Payload    string `json:"payload"`
	From       string `json:"from"`
}

type disconnectPayload struct {
	Reason string `json:"reason"`
}

type exceptionPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sdpPayload struct {
	Type string                    `json:"type"`
	SDP  webrtc.SessionDescription `json:"sdp"`
}

type candidatePayload struct {
	Type      string                  `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type subscribePayload struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
}

// remoteStream is the borrowed handle the registry stores. The adapter
// owns the media it points to.
type remoteStream struct {
	id   string
	kind domain.StreamKind
}

func (s remoteStream) ID() string              { return s.id }
func (s remoteStream) Kind() domain.StreamKind { return s.kind }

// decodeEvent maps one wire envelope onto a typed core event. A nil
// event with nil error means the envelope is adapter-internal.
func decodeEvent(data []byte) (core.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &core.ParseError{Signal: "envelope", Err: err}
	}

	switch env.Type {
	case typeMemberLeft:
		var p memberLeftPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.ConnectionDestroyed{
			ConnectionID: domain.ConnectionID(p.ConnectionID),
			Reason:       p.Reason,
		}, nil

	case typeStreamNew:
		var p streamPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.StreamCreated{
			Stream:       remoteStream{id: p.StreamID, kind: streamKind(p.Kind)},
			ConnectionID: domain.ConnectionID(p.ConnectionID),
			Nickname:     p.Nickname,
			HasAudio:     p.HasAudio,
			HasVideo:     p.HasVideo,
		}, nil

	case typeStreamGone:
		var p streamPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.StreamDestroyed{
			StreamID:     p.StreamID,
			Kind:         streamKind(p.Kind),
			ConnectionID: domain.ConnectionID(p.ConnectionID),
		}, nil

	case typePropChanged:
		var p propertyPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.PropertyChanged{
			ConnectionID: domain.ConnectionID(p.ConnectionID),
			Property:     core.StreamProperty(p.Property),
			Value:        p.Value,
		}, nil

	case typeSpeaking:
		var p speakingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.SpeakingChanged{
			ConnectionID: domain.ConnectionID(p.ConnectionID),
			Speaking:     p.Speaking,
			AudioLevel:   p.AudioLevel,
		}, nil

	case typeSignal:
		var p signalPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.SignalReceived{
			SignalType: p.SignalType,
			Payload:    p.Payload,
			From:       domain.ConnectionID(p.From),
		}, nil

	case typeReconnecting:
		return core.SessionReconnecting{}, nil

	case typeReconnected:
		return core.SessionReconnected{}, nil

	case typeDisconnect:
		var p disconnectPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.SessionDisconnected{Reason: p.Reason}, nil

	case typeException:
		var p exceptionPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, &core.ParseError{Signal: env.Type, Err: err}
		}
		return core.EngineException{Code: p.Code, Message: p.Message}, nil
	}

	return nil, nil
}

func streamKind(s string) domain.StreamKind {
	if s == string(domain.StreamScreen) {
		return domain.StreamScreen
	}
	return domain.StreamCamera
}
