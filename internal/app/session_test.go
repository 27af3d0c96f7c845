package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

func testSessionInfo(id string) domain.SessionInfo {
	return domain.SessionInfo{
		ID:        domain.SessionID(id),
		Name:      "standup",
		Token:     "tok-" + id,
		ServerURL: "wss://media.example.com",
	}
}

func TestConnect_Success(t *testing.T) {
	req := require.New(t)
	fs := newFakeSession("c1")
	engine := &fakeEngine{sessions: []*fakeSession{fs}}
	ctl := NewSessionController(engine)

	var seen []domain.SessionStatus
	ctl.OnStatus(func(s domain.SessionStatus) { seen = append(seen, s) })

	req.NoError(ctl.Connect(context.Background(), testSessionInfo("room-1"), "alice"))

	req.Equal(domain.StatusConnected, ctl.Status())
	req.Equal(core.Session(fs), ctl.Session())
	req.Equal("alice", ctl.Username())
	req.Equal(testSessionInfo("room-1"), ctl.Info())
	req.Equal([]domain.SessionStatus{domain.StatusConnecting, domain.StatusConnected}, seen)
}

func TestConnect_NoopWhileConnected(t *testing.T) {
	req := require.New(t)
	fs := newFakeSession("c1")
	engine := &fakeEngine{sessions: []*fakeSession{fs}}
	ctl := NewSessionController(engine)

	req.NoError(ctl.Connect(context.Background(), testSessionInfo("room-1"), "alice"))
	req.NoError(ctl.Connect(context.Background(), testSessionInfo("room-2"), "bob"))

	// The second attempt must not have reached the engine at all.
	req.Equal(1, engine.creates)
	req.Equal(testSessionInfo("room-1"), ctl.Info())
	req.Equal("alice", ctl.Username())
}

func TestConnect_FailureSetsError(t *testing.T) {
	req := require.New(t)
	engine := &fakeEngine{createErr: fmt.Errorf("media node unreachable")}
	ctl := NewSessionController(engine)

	err := ctl.Connect(context.Background(), testSessionInfo("room-1"), "alice")

	var connErr *core.ConnectionError
	req.ErrorAs(err, &connErr)
	req.Equal(domain.StatusError, ctl.Status())
	req.True(ctl.Info().Empty())
	req.Error(ctl.LastError())

	ctl.ClearError()
	req.Equal(domain.StatusIdle, ctl.Status())
	req.NoError(ctl.LastError())
}

func TestDisconnect_Idempotent(t *testing.T) {
	req := require.New(t)
	fs := newFakeSession("c1")
	engine := &fakeEngine{sessions: []*fakeSession{fs}}
	ctl := NewSessionController(engine)

	teardowns := 0
	ctl.RegisterTeardown(func() { teardowns++ })

	req.NoError(ctl.Connect(context.Background(), testSessionInfo("room-1"), "alice"))
	ctl.Disconnect(context.Background())
	ctl.Disconnect(context.Background())

	req.Equal(1, fs.disconnectCount())
	req.Equal(1, teardowns)
	req.Equal(domain.StatusIdle, ctl.Status())
	req.True(ctl.Info().Empty())
	req.Empty(ctl.Username())
	req.Nil(ctl.Session())
}

func TestDisconnect_WhileIdleIsNoop(t *testing.T) {
	req := require.New(t)
	ctl := NewSessionController(&fakeEngine{})

	var seen []domain.SessionStatus
	ctl.OnStatus(func(s domain.SessionStatus) { seen = append(seen, s) })
	ctl.Disconnect(context.Background())

	req.Empty(seen)
	req.Equal(domain.StatusIdle, ctl.Status())
}

func TestConnect_SupersededResultDiscarded(t *testing.T) {
	req := require.New(t)
	stalled := newFakeSession("c1")
	stalled.connectGate = make(chan struct{})
	fresh := newFakeSession("c2")
	engine := &fakeEngine{sessions: []*fakeSession{stalled, fresh}}
	ctl := NewSessionController(engine)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- ctl.Connect(context.Background(), testSessionInfo("room-1"), "alice")
	}()
	req.Eventually(func() bool { return stalled.connectCount() == 1 },
		time.Second, time.Millisecond)

	// The user gives up on the stalled attempt and dials a new room.
	ctl.Disconnect(context.Background())
	req.NoError(ctl.Connect(context.Background(), testSessionInfo("room-2"), "alice"))
	req.Equal(core.Session(fresh), ctl.Session())

	// The stalled attempt now finishes; its result must be discarded and
	// its half-open session torn down.
	close(stalled.connectGate)
	req.NoError(<-firstDone)
	req.Eventually(func() bool { return stalled.disconnectCount() == 1 },
		time.Second, time.Millisecond)

	req.Equal(domain.StatusConnected, ctl.Status())
	req.Equal(core.Session(fresh), ctl.Session())
	req.Equal(testSessionInfo("room-2"), ctl.Info())
}

func TestUpdateStatus_EngineDrivenTransitions(t *testing.T) {
	req := require.New(t)
	fs := newFakeSession("c1")
	engine := &fakeEngine{sessions: []*fakeSession{fs}}
	ctl := NewSessionController(engine)
	req.NoError(ctl.Connect(context.Background(), testSessionInfo("room-1"), "alice"))

	ctl.UpdateStatus(domain.StatusReconnecting)
	req.Equal(domain.StatusReconnecting, ctl.Status())

	ctl.UpdateStatus(domain.StatusConnected)
	req.Equal(domain.StatusConnected, ctl.Status())
}

func TestFail_RecordsErrorState(t *testing.T) {
	req := require.New(t)
	ctl := NewSessionController(&fakeEngine{})

	ctl.Fail(fmt.Errorf("ice failure"))
	req.Equal(domain.StatusError, ctl.Status())
	req.EqualError(ctl.LastError(), "ice failure")
}
