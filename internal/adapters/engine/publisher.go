package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

func videoTrackStream(screen bool) string {
	if screen {
		return "huddle-screen"
	}
	return "huddle-cam"
}

// Publisher is the local publisher handle: up to one audio and one
// video track plus the forward loops feeding them. Toggling mutes at
// the loop, so the track stays negotiated while disabled.
type Publisher struct {
	audioTrack *webrtc.TrackLocalStaticRTP
	videoTrack *webrtc.TrackLocalStaticRTP
	audioSrc   PacketSource
	videoSrc   PacketSource

	audioOn atomic.Bool
	videoOn atomic.Bool
	screen  bool

	senders []*webrtc.RTPSender

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newPublisher(opts core.PublisherOptions, devices DeviceSource) (*Publisher, error) {
	p := &Publisher{screen: opts.Screen}

	if opts.Audio {
		src, err := devices.Open(domain.DeviceAudioInput, opts.AudioDev)
		if err != nil {
			return nil, &core.DeviceError{Kind: "audio", Err: err}
		}
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", "huddle-mic",
		)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		p.audioSrc = src
		p.audioTrack = track
		p.audioOn.Store(true)
	}

	if opts.Video {
		src, err := devices.Open(domain.DeviceVideoInput, opts.VideoDev)
		if err != nil {
			p.closeSources()
			return nil, &core.DeviceError{Kind: "video", Err: err}
		}
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", videoTrackStream(opts.Screen),
		)
		if err != nil {
			p.closeSources()
			_ = src.Close()
			return nil, err
		}
		p.videoSrc = src
		p.videoTrack = track
		p.videoOn.Store(true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	if p.audioTrack != nil {
		p.wg.Add(1)
		go p.forward(ctx, p.audioSrc, p.audioTrack, &p.audioOn)
	}
	if p.videoTrack != nil {
		p.wg.Add(1)
		go p.forward(ctx, p.videoSrc, p.videoTrack, &p.videoOn)
	}
	return p, nil
}

// forward pumps RTP from the capture source into the local track.
// While the flag is off packets are read and dropped, which keeps the
// source clock running and makes re-enable instant.
func (p *Publisher) forward(ctx context.Context, src PacketSource, track *webrtc.TrackLocalStaticRTP, on *atomic.Bool) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, err := src.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "engine.publisher").Msg("source drained")
			return
		}
		if !on.Load() {
			continue
		}
		if err := track.WriteRTP(pkt); err != nil {
			log.Warn().Err(err).Str("module", "engine.publisher").Msg("track write failed")
		}
	}
}

func (p *Publisher) SetAudioEnabled(ctx context.Context, enabled bool) error {
	if p.audioTrack == nil {
		return &core.DeviceError{Kind: "audio", Err: ErrDeviceNotFound}
	}
	p.audioOn.Store(enabled)
	return nil
}

func (p *Publisher) SetVideoEnabled(ctx context.Context, enabled bool) error {
	if p.videoTrack == nil {
		return &core.DeviceError{Kind: "video", Err: ErrDeviceNotFound}
	}
	p.videoOn.Store(enabled)
	return nil
}

func (p *Publisher) HasAudio() bool { return p.audioTrack != nil }
func (p *Publisher) HasVideo() bool { return p.videoTrack != nil }
func (p *Publisher) IsScreen() bool { return p.screen }

func (p *Publisher) Close() error {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.closeSources()
		p.wg.Wait()
	})
	return nil
}

func (p *Publisher) closeSources() {
	if p.audioSrc != nil {
		_ = p.audioSrc.Close()
	}
	if p.videoSrc != nil {
		_ = p.videoSrc.Close()
	}
}

func (p *Publisher) tracks() []*webrtc.TrackLocalStaticRTP {
	var out []*webrtc.TrackLocalStaticRTP
	if p.audioTrack != nil {
		out = append(out, p.audioTrack)
	}
	if p.videoTrack != nil {
		out = append(out, p.videoTrack)
	}
	return out
}
