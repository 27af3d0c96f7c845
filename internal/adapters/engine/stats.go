package engine

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// QualitySnapshot derives a coarse link rating from the active peer
// connection's stats report.
func (e *Engine) QualitySnapshot(ctx context.Context) (domain.NetworkQuality, error) {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	if active == nil {
		return domain.NetworkQuality{}, core.ErrNoSession
	}

	active.mu.Lock()
	peer := active.peer
	active.mu.Unlock()
	if peer == nil || peer.pc == nil {
		return domain.NetworkQuality{}, core.ErrNoSession
	}

	snap := domain.NetworkQuality{SampledAt: time.Now()}
	var packetsLost, packetsReceived int64

	for _, raw := range peer.pc.GetStats() {
		switch st := raw.(type) {
		case webrtc.ICECandidatePairStats:
			if st.State != webrtc.StatsICECandidatePairStateSucceeded {
				continue
			}
			snap.Latency = time.Duration(st.CurrentRoundTripTime * float64(time.Second))
			snap.Bandwidth.Upload = st.AvailableOutgoingBitrate
			snap.Bandwidth.Download = st.AvailableIncomingBitrate
		case webrtc.InboundRTPStreamStats:
			snap.Jitter = time.Duration(st.Jitter * float64(time.Second))
			packetsLost += int64(st.PacketsLost)
			packetsReceived += int64(st.PacketsReceived)
		}
	}

	if total := packetsLost + packetsReceived; total > 0 {
		snap.PacketLoss = float64(packetsLost) / float64(total)
	}
	snap.Level = rateQuality(snap.Latency, snap.PacketLoss)
	return snap, nil
}

// rateQuality maps latency and loss onto a 0..4 level, taking the worse
// of the two dimensions.
func rateQuality(latency time.Duration, loss float64) domain.QualityLevel {
	byLatency := domain.QualityExcellent
	switch {
	case latency > 800*time.Millisecond:
		byLatency = domain.QualityUnusable
	case latency > 400*time.Millisecond:
		byLatency = domain.QualityBad
	case latency > 200*time.Millisecond:
		byLatency = domain.QualityPoor
	case latency > 100*time.Millisecond:
		byLatency = domain.QualityGood
	}

	byLoss := domain.QualityExcellent
	switch {
	case loss > 0.15:
		byLoss = domain.QualityUnusable
	case loss > 0.08:
		byLoss = domain.QualityBad
	case loss > 0.03:
		byLoss = domain.QualityPoor
	case loss > 0.01:
		byLoss = domain.QualityGood
	}

	if byLoss < byLatency {
		return byLoss
	}
	return byLatency
}
