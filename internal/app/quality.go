package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// QualityFunc receives each published snapshot.
type QualityFunc func(domain.NetworkQuality)

// QualityMonitor periodically samples the adapter for a link-quality
// snapshot and republishes it to subscribers. It overlays the state
// owners without owning any core state itself.
type QualityMonitor struct {
	stats    core.StatsProvider
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    *domain.NetworkQuality
	subs    map[int]QualityFunc
	nextSub int
}

func NewQualityMonitor(stats core.StatsProvider, interval time.Duration) *QualityMonitor {
	return &QualityMonitor{
		stats:    stats,
		interval: interval,
		subs:     make(map[int]QualityFunc),
	}
}

// Subscribe registers a snapshot consumer and returns its unsubscribe.
func (q *QualityMonitor) Subscribe(fn QualityFunc) (unsub func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

// Start begins sampling. A second Start while running is a no-op.
func (q *QualityMonitor) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		log.Info().Str("module", "app.quality").Msg("monitor already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.wg.Add(1)
	go q.run(ctx)
	log.Info().Str("module", "app.quality").Dur("interval", q.interval).Msg("monitor started")
}

// Stop halts sampling and clears the last snapshot so consumers never
// display stale quality after an explicit stop. Idempotent.
func (q *QualityMonitor) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	q.wg.Wait()

	q.mu.Lock()
	q.last = nil
	q.mu.Unlock()
	log.Info().Str("module", "app.quality").Msg("monitor stopped")
}

// Last returns the most recent snapshot, if any.
func (q *QualityMonitor) Last() (domain.NetworkQuality, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.last == nil {
		return domain.NetworkQuality{}, false
	}
	return *q.last, true
}

func (q *QualityMonitor) run(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sample(ctx)
		}
	}
}

func (q *QualityMonitor) sample(ctx context.Context) {
	snap, err := q.stats.QualitySnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.quality").Msg("sample failed")
		return
	}

	q.mu.Lock()
	if q.last != nil && int(q.last.Level)-int(snap.Level) > 1 {
		log.Warn().Str("module", "app.quality").Int("from", int(q.last.Level)).
			Int("to", int(snap.Level)).Msg("quality degraded")
	}
	q.last = &snap
	subs := make([]QualityFunc, 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
