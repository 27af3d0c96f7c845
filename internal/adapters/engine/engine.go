package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/config"
	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// Engine is the compatibility adapter entry point. Capability flags the
// current target cannot perform (simulcast, dynamic bitrate) degrade to
// logged no-ops rather than errors.
type Engine struct {
	cfg     config.EngineConfig
	devices DeviceSource

	mu     sync.Mutex
	active *session
}

func New(cfg config.EngineConfig, devices DeviceSource) *Engine {
	if devices == nil {
		devices = SilenceSource{}
	}
	if cfg.Simulcast {
		log.Warn().Str("module", "engine").Msg("simulcast unsupported by compat target, ignoring")
	}
	if cfg.DynamicBitrate {
		log.Warn().Str("module", "engine").Msg("dynamic bitrate unsupported by compat target, ignoring")
	}
	return &Engine{cfg: cfg, devices: devices}
}

func (e *Engine) CreateSession(ctx context.Context, info domain.SessionInfo, nickname string) (core.Session, error) {
	s := newSession(e.cfg, info, nickname)
	e.mu.Lock()
	e.active = s
	e.mu.Unlock()
	return s, nil
}

func (e *Engine) CreatePublisher(ctx context.Context, opts core.PublisherOptions) (core.Publisher, error) {
	return newPublisher(opts, e.devices)
}

func (e *Engine) Devices(ctx context.Context) ([]domain.Device, error) {
	return e.devices.List(ctx)
}

func (e *Engine) PermissionPending() bool {
	return e.devices.PermissionPending()
}
