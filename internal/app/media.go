package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// MediaController owns the local audio/video/screen flags and proxies
// toggles to the publisher handle. A flag and its live track change
// together or not at all.
type MediaController struct {
	engine core.Engine

	mu          sync.Mutex
	audio       bool
	video       bool
	screen      bool
	publisher   core.Publisher
	screenPub   core.Publisher
	devices     []domain.Device
	selectedDev map[domain.DeviceKind]domain.DeviceID
}

func NewMediaController(engine core.Engine) *MediaController {
	return &MediaController{
		engine:      engine,
		audio:       true,
		video:       true,
		selectedDev: make(map[domain.DeviceKind]domain.DeviceID),
	}
}

// Publish creates the publisher handle and attaches it to the session.
// A missing device degrades to the complementary media type instead of
// failing the whole publish.
func (m *MediaController) Publish(ctx context.Context, session core.Session) error {
	m.mu.Lock()
	opts := core.PublisherOptions{
		Audio:    m.audio,
		Video:    m.video,
		AudioDev: m.selectedDev[domain.DeviceAudioInput],
		VideoDev: m.selectedDev[domain.DeviceVideoInput],
	}
	m.mu.Unlock()

	pub, err := m.engine.CreatePublisher(ctx, opts)
	var devErr *core.DeviceError
	if errors.As(err, &devErr) {
		log.Warn().Err(err).Str("module", "app.media").Msg("device missing, falling back")
		fallback := opts
		switch devErr.Kind {
		case "video":
			fallback.Video = false
		case "audio":
			fallback.Audio = false
		}
		if !fallback.Audio && !fallback.Video {
			return err
		}
		pub, err = m.engine.CreatePublisher(ctx, fallback)
		if err == nil {
			m.mu.Lock()
			m.audio = fallback.Audio
			m.video = fallback.Video
			m.mu.Unlock()
		}
	}
	if err != nil {
		return err
	}
	if err := session.Publish(ctx, pub); err != nil {
		_ = pub.Close()
		return err
	}

	m.mu.Lock()
	m.publisher = pub
	m.mu.Unlock()
	log.Info().Str("module", "app.media").Bool("audio", pub.HasAudio()).
		Bool("video", pub.HasVideo()).Msg("published")
	return nil
}

// Unpublish drops the publisher handles. Flags keep their values so a
// later Publish restores the same intent.
func (m *MediaController) Unpublish(ctx context.Context, session core.Session) {
	m.mu.Lock()
	pub, screenPub := m.publisher, m.screenPub
	m.publisher, m.screenPub = nil, nil
	m.screen = false
	m.mu.Unlock()

	for _, p := range []core.Publisher{pub, screenPub} {
		if p == nil {
			continue
		}
		if session != nil {
			if err := session.Unpublish(ctx, p); err != nil {
				log.Error().Err(err).Str("module", "app.media").Msg("unpublish failed")
			}
		}
		_ = p.Close()
	}
}

func (m *MediaController) ToggleAudio(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := !m.audio
	if m.publisher != nil {
		if err := m.publisher.SetAudioEnabled(ctx, next); err != nil {
			return m.audio, err
		}
	}
	m.audio = next
	log.Info().Str("module", "app.media").Bool("enabled", next).Msg("audio toggled")
	return next, nil
}

func (m *MediaController) ToggleVideo(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := !m.video
	if m.publisher != nil {
		if err := m.publisher.SetVideoEnabled(ctx, next); err != nil {
			return m.video, err
		}
	}
	m.video = next
	log.Info().Str("module", "app.media").Bool("enabled", next).Msg("video toggled")
	return next, nil
}

// ToggleScreenShare creates or closes a dedicated screen publisher.
func (m *MediaController) ToggleScreenShare(ctx context.Context, session core.Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.screen {
		if m.screenPub != nil {
			if session != nil {
				if err := session.Unpublish(ctx, m.screenPub); err != nil {
					return true, err
				}
			}
			_ = m.screenPub.Close()
			m.screenPub = nil
		}
		m.screen = false
		log.Info().Str("module", "app.media").Msg("screen share stopped")
		return false, nil
	}

	pub, err := m.engine.CreatePublisher(ctx, core.PublisherOptions{Video: true, Screen: true})
	if err != nil {
		return false, err
	}
	if session != nil {
		if err := session.Publish(ctx, pub); err != nil {
			_ = pub.Close()
			return false, err
		}
	}
	m.screenPub = pub
	m.screen = true
	log.Info().Str("module", "app.media").Msg("screen share started")
	return true, nil
}

func (m *MediaController) SelectDevice(kind domain.DeviceKind, id domain.DeviceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectedDev[kind] = id
	log.Info().Str("module", "app.media").Str("kind", string(kind)).Str("device", string(id)).Msg("device selected")
}

// UpdateDevices replaces the device list wholesale. Skipped while the
// permission prompt is pending so an empty enumeration cannot clobber a
// previously populated list.
func (m *MediaController) UpdateDevices(ctx context.Context) error {
	if m.engine.PermissionPending() {
		log.Warn().Str("module", "app.media").Msg("device update skipped, permission pending")
		return nil
	}
	devices, err := m.engine.Devices(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.devices = devices
	m.mu.Unlock()
	log.Info().Str("module", "app.media").Int("count", len(devices)).Msg("devices updated")
	return nil
}

func (m *MediaController) Devices() []domain.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Device, len(m.devices))
	copy(out, m.devices)
	return out
}

// State reports the current flag values.
func (m *MediaController) State() (audio, video, screen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio, m.video, m.screen
}
