package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/chat"
	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

const subscribeTimeout = 10 * time.Second

// EventBridge is the sole consumer of engine events. It translates each
// into a mutation on exactly one state owner and holds no state of its
// own beyond the active binding.
type EventBridge struct {
	sessions     *SessionController
	participants *ParticipantRegistry
	chat         *chat.Manager

	mu      sync.Mutex
	session core.Session
	unbind  func()
}

func NewEventBridge(sessions *SessionController, participants *ParticipantRegistry, chatMgr *chat.Manager) *EventBridge {
	return &EventBridge{
		sessions:     sessions,
		participants: participants,
		chat:         chatMgr,
	}
}

// Activate binds the bridge to a live session. Re-activation with the
// same session is a no-op; a different session replaces the binding.
func (b *EventBridge) Activate(session core.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == session {
		return
	}
	if b.unbind != nil {
		b.unbind()
	}
	b.session = session
	b.unbind = session.Handle(b.onEvent)
	b.participants.SetOwnConnection(session.ConnectionID())
	log.Info().Str("module", "app.bridge").Msg("bridge activated")
}

// Deactivate unregisters every listener the bridge registered. Skipping
// this leaks handlers across reconnects.
func (b *EventBridge) Deactivate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unbind != nil {
		b.unbind()
		b.unbind = nil
	}
	b.session = nil
	log.Info().Str("module", "app.bridge").Msg("bridge deactivated")
}

func (b *EventBridge) current() core.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *EventBridge) onEvent(ev core.Event) {
	switch e := ev.(type) {
	case core.ConnectionCreated:
		// Membership follows streams; connection creation alone only
		// corrects the local identity mapping.
		if s := b.current(); s != nil && e.ConnectionID == s.ConnectionID() {
			b.participants.SetOwnConnection(e.ConnectionID)
		}

	case core.ConnectionDestroyed:
		b.participants.RemoveByConnection(e.ConnectionID)

	case core.StreamCreated:
		b.onStreamCreated(e)

	case core.StreamDestroyed:
		if id, ok := b.participants.ByConnection(e.ConnectionID); ok {
			b.participants.Remove(id)
		}

	case core.PropertyChanged:
		b.onPropertyChanged(e)

	case core.SpeakingChanged:
		if id, ok := b.participants.ByConnection(e.ConnectionID); ok {
			b.participants.SetSpeaking(id, e.Speaking)
			if e.Speaking {
				b.participants.Update(id, Partial{AudioLevel: &e.AudioLevel})
			}
		}

	case core.SignalReceived:
		b.chat.HandleSignal(e.SignalType, e.Payload, e.From)

	case core.SessionDisconnected:
		log.Info().Str("module", "app.bridge").Str("reason", e.Reason).Msg("session disconnected by engine")
		b.sessions.UpdateStatus(domain.StatusDisconnected)
		b.participants.Clear()

	case core.SessionReconnecting:
		b.sessions.UpdateStatus(domain.StatusReconnecting)

	case core.SessionReconnected:
		b.sessions.UpdateStatus(domain.StatusConnected)

	case core.EngineException:
		log.Error().Str("module", "app.bridge").Int("code", e.Code).Str("message", e.Message).
			Msg("engine exception")
		b.sessions.Fail(&core.ConnectionError{Op: "engine", Err: &engineError{e}})
	}
}

func (b *EventBridge) onStreamCreated(e core.StreamCreated) {
	session := b.current()
	var local bool
	if session != nil {
		local = e.ConnectionID == session.ConnectionID()
	}

	if id, ok := b.participants.ByConnection(e.ConnectionID); ok {
		b.participants.Update(id, Partial{
			Stream:       e.Stream,
			AudioEnabled: &e.HasAudio,
			VideoEnabled: &e.HasVideo,
		})
		if e.Stream.Kind() == domain.StreamScreen {
			share := true
			b.participants.Update(id, Partial{IsScreenSharing: &share})
		}
	} else {
		p, err := domain.NewParticipant(e.ConnectionID, e.Nickname)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.bridge").
				Str("conn", string(e.ConnectionID)).Msg("stream with invalid participant meta")
			return
		}
		p.IsLocal = local
		p.AudioEnabled = e.HasAudio
		p.VideoEnabled = e.HasVideo
		p.Streams[e.Stream.Kind()] = e.Stream
		p.IsScreenSharing = e.Stream.Kind() == domain.StreamScreen
		b.participants.Add(p)
	}

	// Remote streams are consumed automatically; our own echo is not.
	if !local && session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
		defer cancel()
		if err := session.Subscribe(ctx, e.Stream); err != nil {
			log.Error().Err(err).Str("module", "app.bridge").
				Str("stream", e.Stream.ID()).Msg("auto-subscribe failed")
		}
	}
}

func (b *EventBridge) onPropertyChanged(e core.PropertyChanged) {
	id, ok := b.participants.ByConnection(e.ConnectionID)
	if !ok {
		return
	}
	switch e.Property {
	case core.PropAudioActive:
		b.participants.Update(id, Partial{AudioEnabled: &e.Value})
	case core.PropVideoActive:
		b.participants.Update(id, Partial{VideoEnabled: &e.Value})
	}
}

type engineError struct {
	e core.EngineException
}

func (e *engineError) Error() string { return e.e.Message }
