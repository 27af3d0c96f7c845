package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keiv/huddle/internal/domain"
)

func mustParticipant(t *testing.T, conn domain.ConnectionID, nickname string) *domain.Participant {
	t.Helper()
	p, err := domain.NewParticipant(conn, nickname)
	require.NoError(t, err)
	return p
}

func TestRegistry_AtMostOneLocal(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()

	first := mustParticipant(t, "conn-a", "alice")
	first.IsLocal = true
	reg.Add(first)

	// A republish shows up as a new local entry on a new connection; the
	// stale local entry must go, never coexist.
	second := mustParticipant(t, "conn-b", "alice")
	second.IsLocal = true
	reg.Add(second)

	req.Equal(1, reg.Count())
	local, ok := reg.Local()
	req.True(ok)
	req.Equal(second.ID, local.ID)

	remote := mustParticipant(t, "conn-c", "bob")
	reg.Add(remote)
	req.Equal(2, reg.Count())
	local, ok = reg.Local()
	req.True(ok)
	req.Equal(second.ID, local.ID)
}

func TestRegistry_SameConnectionReplaces(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()

	old := mustParticipant(t, "conn-a", "bob")
	reg.Add(old)
	replacement := mustParticipant(t, "conn-a", "bob")
	reg.Add(replacement)

	req.Equal(1, reg.Count())
	id, ok := reg.ByConnection("conn-a")
	req.True(ok)
	req.Equal(replacement.ID, id)
}

func TestRegistry_DuplicateAddIgnored(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()

	p := mustParticipant(t, "conn-a", "bob")
	reg.Add(p)
	reg.Add(p)

	req.Equal(1, reg.Count())
}

func TestRegistry_OwnConnectionForcedLocal(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()
	reg.SetOwnConnection("conn-self")

	// A local echo arrives without the local flag set.
	p := mustParticipant(t, "conn-self", "alice")
	reg.Add(p)

	local, ok := reg.Local()
	req.True(ok)
	req.Equal(p.ID, local.ID)
	req.True(local.IsLocal)
}

func TestRegistry_PinSemantics(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()

	reg.Pin("ghost")
	_, ok := reg.Pinned()
	req.False(ok)

	p := mustParticipant(t, "conn-a", "bob")
	reg.Add(p)
	reg.Pin(p.ID)
	pinned, ok := reg.Pinned()
	req.True(ok)
	req.Equal(p.ID, pinned.ID)

	// Removing the pinned participant clears focus.
	reg.Remove(p.ID)
	_, ok = reg.Pinned()
	req.False(ok)
}

func TestRegistry_PinClearedExplicitly(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()
	p := mustParticipant(t, "conn-a", "bob")

	notifications := 0
	reg.OnChange(func([]domain.Participant) { notifications++ })
	reg.Add(p)
	reg.Pin(p.ID)
	base := notifications

	// Unpinning is a visible mutation like any other.
	reg.Pin("")
	_, ok := reg.Pinned()
	req.False(ok)
	req.Equal(base+1, notifications)

	// Clearing an already-empty focus is not a change.
	reg.Pin("")
	req.Equal(base+1, notifications)
}

func TestRegistry_SpeakingChangesNotifyOnce(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()
	p := mustParticipant(t, "conn-a", "bob")

	notifications := 0
	reg.OnChange(func([]domain.Participant) { notifications++ })
	reg.Add(p)
	base := notifications

	reg.SetSpeaking(p.ID, true)
	req.Equal(base+1, notifications)

	// Restating the same value is not a change.
	reg.SetSpeaking(p.ID, true)
	req.Equal(base+1, notifications)

	reg.SetSpeaking(p.ID, false)
	req.Equal(base+2, notifications)
}

func TestRegistry_UpdatePartial(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()
	p := mustParticipant(t, "conn-a", "bob")
	p.AudioEnabled = true
	reg.Add(p)

	off := false
	stream := fakeStream{id: "s1", kind: domain.StreamScreen}
	share := true
	reg.Update(p.ID, Partial{AudioEnabled: &off, Stream: stream, IsScreenSharing: &share})

	snap := reg.Snapshot()
	req.Len(snap, 1)
	req.False(snap[0].AudioEnabled)
	req.True(snap[0].IsScreenSharing)
	req.Equal(stream, snap[0].Streams[domain.StreamScreen].(fakeStream))

	reg.Update(p.ID, Partial{DropStream: domain.StreamScreen})
	snap = reg.Snapshot()
	req.NotContains(snap[0].Streams, domain.StreamScreen)
}

func TestRegistry_RemoveByConnection(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()
	p := mustParticipant(t, "conn-a", "bob")
	reg.Add(p)

	reg.RemoveByConnection("conn-a")
	req.Zero(reg.Count())

	// Unknown connections are logged, not fatal.
	reg.RemoveByConnection("conn-zzz")
}

func TestRegistry_ClearResetsEverything(t *testing.T) {
	req := require.New(t)
	reg := NewParticipantRegistry()
	reg.SetOwnConnection("conn-self")
	p := mustParticipant(t, "conn-self", "alice")
	reg.Add(p)
	reg.Pin(p.ID)

	reg.Clear()

	req.Zero(reg.Count())
	_, ok := reg.Local()
	req.False(ok)
	_, ok = reg.Pinned()
	req.False(ok)
}
