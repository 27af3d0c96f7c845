// Package core defines the contracts between the state owners and the
// engine adapter. Implementations live under internal/adapters; nothing
// here touches a concrete SDK.
package core

import (
	"context"

	"github.com/keiv/huddle/internal/domain"
)

// SignalSender is the narrow send surface the chat layer needs.
// Payloads are small opaque strings; no ordering or delivery guarantee.
type SignalSender interface {
	Signal(ctx context.Context, signalType, payload string) error
}

// Session is one live engine session. Owned by the adapter; the session
// controller must Disconnect() it.
type Session interface {
	SignalSender

	Connect(ctx context.Context, token string) error
	Disconnect(ctx context.Context) error

	Publish(ctx context.Context, p Publisher) error
	Unpublish(ctx context.Context, p Publisher) error
	Subscribe(ctx context.Context, stream domain.MediaStream) error

	// ConnectionID is the engine-assigned identity of this client,
	// empty until Connect succeeds.
	ConnectionID() domain.ConnectionID

	// Handle registers an event handler and returns its unbind func.
	// Every bound handler must be unbound to avoid leaks across reconnects.
	Handle(fn EventHandler) (unbind func())
}

// Publisher is the local object representing outgoing media tracks.
type Publisher interface {
	SetAudioEnabled(ctx context.Context, enabled bool) error
	SetVideoEnabled(ctx context.Context, enabled bool) error
	HasAudio() bool
	HasVideo() bool
	IsScreen() bool
	Close() error
}

// PublisherOptions selects which tracks a publisher should carry.
type PublisherOptions struct {
	Audio    bool
	Video    bool
	Screen   bool
	AudioDev domain.DeviceID
	VideoDev domain.DeviceID
}

// Engine is the compatibility boundary to the media/signaling SDK.
type Engine interface {
	CreateSession(ctx context.Context, info domain.SessionInfo, nickname string) (Session, error)
	CreatePublisher(ctx context.Context, opts PublisherOptions) (Publisher, error)

	// Devices enumerates capture/playback devices. Callers must not
	// invoke it while PermissionPending reports true.
	Devices(ctx context.Context) ([]domain.Device, error)
	PermissionPending() bool
}

// StatsProvider yields link-quality snapshots for the monitor.
type StatsProvider interface {
	QualitySnapshot(ctx context.Context) (domain.NetworkQuality, error)
}
