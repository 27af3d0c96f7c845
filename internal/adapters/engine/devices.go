package engine

import (
	"context"
	"errors"
	"time"

	"github.com/pion/rtp"

	"github.com/keiv/huddle/internal/domain"
)

var ErrDeviceNotFound = errors.New("device not found")

// PacketSource yields RTP packets from one capture pipeline. The
// publisher forward loop drains it until Close.
type PacketSource interface {
	ReadRTP() (*rtp.Packet, error)
	Close() error
}

// DeviceSource abstracts local capture: enumeration plus opening an RTP
// pipeline per device. Injected so platforms and tests can differ.
type DeviceSource interface {
	List(ctx context.Context) ([]domain.Device, error)
	Open(kind domain.DeviceKind, id domain.DeviceID) (PacketSource, error)
	PermissionPending() bool
}

// SilenceSource is the built-in audio DeviceSource: a single virtual
// microphone producing empty Opus frames at a 20ms cadence. It keeps
// the publish path and RTP pacing real on machines without capture
// hardware; video devices are absent, which exercises the audio-only
// fallback.
type SilenceSource struct{}

func (SilenceSource) List(ctx context.Context) ([]domain.Device, error) {
	return []domain.Device{
		{ID: "silence0", Label: "Null microphone", Kind: domain.DeviceAudioInput},
	}, nil
}

func (SilenceSource) PermissionPending() bool { return false }

func (SilenceSource) Open(kind domain.DeviceKind, id domain.DeviceID) (PacketSource, error) {
	if kind != domain.DeviceAudioInput {
		return nil, ErrDeviceNotFound
	}
	return newSilencePackets(), nil
}

const (
	silenceFrame    = 20 * time.Millisecond
	opusSampleRate  = 48000
	opusPayloadType = 111
)

type silencePackets struct {
	seq  uint16
	ts   uint32
	ssrc uint32
	done chan struct{}
}

func newSilencePackets() *silencePackets {
	return &silencePackets{ssrc: 1, done: make(chan struct{})}
}

func (s *silencePackets) ReadRTP() (*rtp.Packet, error) {
	select {
	case <-s.done:
		return nil, errConnClosed
	case <-time.After(silenceFrame):
	}
	s.seq++
	s.ts += uint32(opusSampleRate / int(time.Second/silenceFrame))
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.ts,
			SSRC:           s.ssrc,
		},
		// A single-byte DTX frame: silence in Opus terms.
		Payload: []byte{0xF8},
	}, nil
}

func (s *silencePackets) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}
