package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

type recordedSignal struct {
	Type    string
	Payload string
}

type fakeSession struct {
	mu          sync.Mutex
	connID      domain.ConnectionID
	handlers    map[int]core.EventHandler
	nextHandler int
	connects    int
	disconnects int
	connectErr  error
	connectGate chan struct{} // non-nil blocks Connect until closed
	signals     []recordedSignal
	subscribed  []string
	published   []core.Publisher
	unpublished []core.Publisher
}

func newFakeSession(connID domain.ConnectionID) *fakeSession {
	return &fakeSession{
		connID:   connID,
		handlers: make(map[int]core.EventHandler),
	}
}

func (s *fakeSession) Connect(ctx context.Context, token string) error {
	s.mu.Lock()
	s.connects++
	gate := s.connectGate
	err := s.connectErr
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *fakeSession) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return nil
}

func (s *fakeSession) Signal(ctx context.Context, signalType, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, recordedSignal{Type: signalType, Payload: payload})
	return nil
}

func (s *fakeSession) Publish(ctx context.Context, p core.Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, p)
	return nil
}

func (s *fakeSession) Unpublish(ctx context.Context, p core.Publisher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unpublished = append(s.unpublished, p)
	return nil
}

func (s *fakeSession) Subscribe(ctx context.Context, stream domain.MediaStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, stream.ID())
	return nil
}

func (s *fakeSession) ConnectionID() domain.ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

func (s *fakeSession) Handle(fn core.EventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHandler
	s.nextHandler++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *fakeSession) emit(ev core.Event) {
	s.mu.Lock()
	fns := make([]core.EventHandler, 0, len(s.handlers))
	for _, fn := range s.handlers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *fakeSession) handlerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *fakeSession) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *fakeSession) disconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

type pubResult struct {
	pub core.Publisher
	err error
}

type fakeEngine struct {
	mu        sync.Mutex
	sessions  []*fakeSession
	creates   int
	createErr error
	pubQueue  []pubResult
	pubCalls  []core.PublisherOptions
	devices   []domain.Device
	devErr    error
	pending   bool
}

func (e *fakeEngine) CreateSession(ctx context.Context, info domain.SessionInfo, nickname string) (core.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return nil, e.createErr
	}
	if e.creates >= len(e.sessions) {
		return nil, fmt.Errorf("no scripted session %d", e.creates)
	}
	s := e.sessions[e.creates]
	e.creates++
	return s, nil
}

func (e *fakeEngine) CreatePublisher(ctx context.Context, opts core.PublisherOptions) (core.Publisher, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pubCalls = append(e.pubCalls, opts)
	if len(e.pubQueue) == 0 {
		return &fakePublisher{audio: opts.Audio, video: opts.Video, screen: opts.Screen}, nil
	}
	next := e.pubQueue[0]
	e.pubQueue = e.pubQueue[1:]
	return next.pub, next.err
}

func (e *fakeEngine) Devices(ctx context.Context) ([]domain.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devices, e.devErr
}

func (e *fakeEngine) PermissionPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

type fakePublisher struct {
	mu          sync.Mutex
	audio       bool
	video       bool
	screen      bool
	audioSetErr error
	videoSetErr error
	closes      int
}

func (p *fakePublisher) SetAudioEnabled(ctx context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audioSetErr != nil {
		return p.audioSetErr
	}
	p.audio = enabled
	return nil
}

func (p *fakePublisher) SetVideoEnabled(ctx context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.videoSetErr != nil {
		return p.videoSetErr
	}
	p.video = enabled
	return nil
}

func (p *fakePublisher) HasAudio() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio
}

func (p *fakePublisher) HasVideo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.video
}

func (p *fakePublisher) IsScreen() bool { return p.screen }

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

type fakeStream struct {
	id   string
	kind domain.StreamKind
}

func (s fakeStream) ID() string              { return s.id }
func (s fakeStream) Kind() domain.StreamKind { return s.kind }

type fakeStats struct {
	mu   sync.Mutex
	snap domain.NetworkQuality
	err  error
}

func (f *fakeStats) set(snap domain.NetworkQuality) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

func (f *fakeStats) QualitySnapshot(ctx context.Context) (domain.NetworkQuality, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

type signalFunc func(ctx context.Context, signalType, payload string) error

func (f signalFunc) Signal(ctx context.Context, signalType, payload string) error {
	return f(ctx, signalType, payload)
}
