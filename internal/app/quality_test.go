package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keiv/huddle/internal/domain"
)

func TestQualityMonitor_SamplesAndPublishes(t *testing.T) {
	req := require.New(t)
	stats := &fakeStats{snap: domain.NetworkQuality{
		Level:   domain.QualityGood,
		Latency: 80 * time.Millisecond,
	}}
	mon := NewQualityMonitor(stats, 5*time.Millisecond)
	t.Cleanup(mon.Stop)

	snaps := make(chan domain.NetworkQuality, 16)
	unsub := mon.Subscribe(func(q domain.NetworkQuality) {
		select {
		case snaps <- q:
		default:
		}
	})
	defer unsub()

	mon.Start(context.Background())

	select {
	case q := <-snaps:
		req.Equal(domain.QualityGood, q.Level)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}

	last, ok := mon.Last()
	req.True(ok)
	req.Equal(domain.QualityGood, last.Level)
}

func TestQualityMonitor_StopClearsLastSnapshot(t *testing.T) {
	req := require.New(t)
	stats := &fakeStats{snap: domain.NetworkQuality{Level: domain.QualityExcellent}}
	mon := NewQualityMonitor(stats, 5*time.Millisecond)

	mon.Start(context.Background())
	req.Eventually(func() bool {
		_, ok := mon.Last()
		return ok
	}, time.Second, time.Millisecond)

	mon.Stop()
	_, ok := mon.Last()
	req.False(ok)
}

func TestQualityMonitor_StartStopIdempotent(t *testing.T) {
	req := require.New(t)
	stats := &fakeStats{snap: domain.NetworkQuality{Level: domain.QualityGood}}
	mon := NewQualityMonitor(stats, 5*time.Millisecond)

	mon.Start(context.Background())
	mon.Start(context.Background())
	mon.Stop()
	mon.Stop()

	_, ok := mon.Last()
	req.False(ok)
}

func TestQualityMonitor_UnsubscribeStopsDelivery(t *testing.T) {
	req := require.New(t)
	stats := &fakeStats{snap: domain.NetworkQuality{Level: domain.QualityGood}}
	mon := NewQualityMonitor(stats, 5*time.Millisecond)
	t.Cleanup(mon.Stop)

	snaps := make(chan domain.NetworkQuality, 16)
	unsub := mon.Subscribe(func(q domain.NetworkQuality) {
		select {
		case snaps <- q:
		default:
		}
	})
	unsub()

	mon.Start(context.Background())
	req.Eventually(func() bool {
		_, ok := mon.Last()
		return ok
	}, time.Second, time.Millisecond)

	select {
	case <-snaps:
		t.Fatal("unsubscribed consumer still receiving")
	default:
	}
}
