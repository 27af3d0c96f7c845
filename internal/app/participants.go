package app

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/keiv/huddle/internal/domain"
)

// Partial is a sparse participant update; nil fields are left untouched.
type Partial struct {
	Nickname        *string
	AudioEnabled    *bool
	VideoEnabled    *bool
	IsScreenSharing *bool
	AudioLevel      *float64
	Stream          domain.MediaStream
	DropStream      domain.StreamKind
}

// ChangeFunc observes registry mutations with a fresh snapshot.
type ChangeFunc func([]domain.Participant)

// ParticipantRegistry is the authoritative participant map. It dedups
// by connection identity and keeps at most one local entry.
type ParticipantRegistry struct {
	mu       sync.RWMutex
	byID     map[domain.ParticipantID]*domain.Participant
	localID  domain.ParticipantID
	pinnedID domain.ParticipantID

	// ownConnection is the session's own connection identity; incoming
	// entries matching it are forced local.
	ownConnection domain.ConnectionID

	onChange ChangeFunc
}

func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{
		byID: make(map[domain.ParticipantID]*domain.Participant),
	}
}

func (r *ParticipantRegistry) OnChange(fn ChangeFunc) { r.onChange = fn }

// SetOwnConnection records the engine-assigned local identity, used to
// correct late or duplicate local-echo events.
func (r *ParticipantRegistry) SetOwnConnection(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownConnection = id
}

func (r *ParticipantRegistry) Add(p *domain.Participant) {
	r.mu.Lock()
	if _, exists := r.byID[p.ID]; exists {
		r.mu.Unlock()
		log.Warn().Str("module", "app.participants").Str("id", string(p.ID)).Msg("duplicate add ignored")
		return
	}

	if r.ownConnection != "" && p.ConnectionID == r.ownConnection {
		p.IsLocal = true
	}

	// A stream replacement arrives as a new id on the same connection;
	// the stale entry is evicted, not kept beside it.
	for id, old := range r.byID {
		if old.ConnectionID == p.ConnectionID && id != p.ID {
			r.evictLocked(id)
		}
	}

	if p.IsLocal {
		if r.localID != "" && r.localID != p.ID {
			r.evictLocked(r.localID)
		}
		r.localID = p.ID
	}
	if p.Streams == nil {
		p.Streams = make(map[domain.StreamKind]domain.MediaStream)
	}
	r.byID[p.ID] = p
	log.Info().Str("module", "app.participants").Str("id", string(p.ID)).
		Str("conn", string(p.ConnectionID)).Bool("local", p.IsLocal).Msg("participant added")
	r.notifyLocked()
	r.mu.Unlock()
}

func (r *ParticipantRegistry) Update(id domain.ParticipantID, u Partial) {
	r.mu.Lock()
	p, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		log.Warn().Str("module", "app.participants").Str("id", string(id)).Msg("update for unknown participant")
		return
	}
	if u.Nickname != nil {
		p.Nickname = *u.Nickname
	}
	if u.AudioEnabled != nil {
		p.AudioEnabled = *u.AudioEnabled
	}
	if u.VideoEnabled != nil {
		p.VideoEnabled = *u.VideoEnabled
	}
	if u.IsScreenSharing != nil {
		p.IsScreenSharing = *u.IsScreenSharing
	}
	if u.AudioLevel != nil {
		p.AudioLevel = *u.AudioLevel
	}
	if u.Stream != nil {
		p.Streams[u.Stream.Kind()] = u.Stream
	}
	if u.DropStream != "" {
		delete(p.Streams, u.DropStream)
	}
	r.notifyLocked()
	r.mu.Unlock()
}

func (r *ParticipantRegistry) Remove(id domain.ParticipantID) {
	r.mu.Lock()
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		log.Warn().Str("module", "app.participants").Str("id", string(id)).Msg("remove for unknown participant")
		return
	}
	r.evictLocked(id)
	r.notifyLocked()
	r.mu.Unlock()
}

// RemoveByConnection drops whichever participant owns the connection.
func (r *ParticipantRegistry) RemoveByConnection(conn domain.ConnectionID) {
	r.mu.Lock()
	for id, p := range r.byID {
		if p.ConnectionID == conn {
			r.evictLocked(id)
			r.notifyLocked()
			r.mu.Unlock()
			return
		}
	}
	r.mu.Unlock()
	log.Warn().Str("module", "app.participants").Str("conn", string(conn)).Msg("remove for unknown connection")
}

func (r *ParticipantRegistry) evictLocked(id domain.ParticipantID) {
	delete(r.byID, id)
	if r.pinnedID == id {
		r.pinnedID = ""
	}
	if r.localID == id {
		r.localID = ""
	}
	log.Info().Str("module", "app.participants").Str("id", string(id)).Msg("participant removed")
}

// Pin selects the focused participant; empty id clears focus. Unknown
// or already-pinned ids are no-ops.
func (r *ParticipantRegistry) Pin(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		if r.pinnedID != "" {
			r.pinnedID = ""
			r.notifyLocked()
		}
		return
	}
	if _, ok := r.byID[id]; !ok || r.pinnedID == id {
		return
	}
	r.pinnedID = id
	r.notifyLocked()
}

func (r *ParticipantRegistry) SetSpeaking(id domain.ParticipantID, speaking bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Speaking == speaking {
		return
	}
	p.Speaking = speaking
	r.notifyLocked()
}

// ByConnection resolves a participant id from its connection identity.
func (r *ParticipantRegistry) ByConnection(conn domain.ConnectionID) (domain.ParticipantID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, p := range r.byID {
		if p.ConnectionID == conn {
			return id, true
		}
	}
	return "", false
}

func (r *ParticipantRegistry) Local() (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byID[r.localID]; ok {
		return *p, true
	}
	return domain.Participant{}, false
}

func (r *ParticipantRegistry) Pinned() (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byID[r.pinnedID]; ok {
		return *p, true
	}
	return domain.Participant{}, false
}

func (r *ParticipantRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns value copies; stream handles stay borrowed.
func (r *ParticipantRegistry) Snapshot() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *ParticipantRegistry) snapshotLocked() []domain.Participant {
	return lo.Map(lo.Values(r.byID), func(p *domain.Participant, _ int) domain.Participant {
		return *p
	})
}

// Clear drops every entry, focus and local pointer. Used on disconnect.
func (r *ParticipantRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[domain.ParticipantID]*domain.Participant)
	r.localID = ""
	r.pinnedID = ""
	r.ownConnection = ""
	r.notifyLocked()
}

func (r *ParticipantRegistry) notifyLocked() {
	if r.onChange != nil {
		r.onChange(r.snapshotLocked())
	}
}
