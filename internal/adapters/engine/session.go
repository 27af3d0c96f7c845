package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/config"
	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// maxSignalBytes is the transport ceiling for one signal payload. The
// chat layer's size limit is content-level and sits well under this.
const maxSignalBytes = 2048

var errJoinTimeout = errors.New("join not acknowledged")

// session is one live engine session in the current compatibility mode:
// a signaling websocket plus a single peer connection.
type session struct {
	cfg      config.EngineConfig
	info     domain.SessionInfo
	nickname string

	conn   *wsConn
	peer   *peerConn
	cancel context.CancelFunc

	mu          sync.Mutex
	connID      domain.ConnectionID
	handlers    map[int]core.EventHandler
	nextHandler int
	published   map[core.Publisher][]*webrtc.RTPSender
	joined      chan struct{}
	closed      bool
}

func newSession(cfg config.EngineConfig, info domain.SessionInfo, nickname string) *session {
	return &session{
		cfg:       cfg,
		info:      info,
		nickname:  nickname,
		handlers:  make(map[int]core.EventHandler),
		published: make(map[core.Publisher][]*webrtc.RTPSender),
		joined:    make(chan struct{}),
	}
}

func (s *session) Connect(ctx context.Context, token string) error {
	serverURL := s.info.ServerURL
	if serverURL == "" {
		serverURL = s.cfg.ServerURL
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial signaling: %w", err)
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	peer, err := newPeerConn(defaultWebRTCConfig())
	if err != nil {
		_ = ws.Close()
		return fmt.Errorf("create peer connection: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = newWSConn(ws)
	s.peer = peer
	s.cancel = cancel
	s.mu.Unlock()

	peer.onICE = s.sendCandidate
	peer.onState = s.onPeerState
	peer.start(runCtx)

	go s.conn.writePump(runCtx)
	go s.conn.readPump(runCtx, s.handleWire)

	join, _ := json.Marshal(joinPayload{
		Type:     typeJoin,
		Session:  string(s.info.ID),
		Token:    token,
		Nickname: s.nickname,
	})
	if err := s.conn.trySend(join); err != nil {
		s.teardown()
		return fmt.Errorf("send join: %w", err)
	}

	// A server that accepts the dial but never acks the join must not
	// hold the caller in connecting forever.
	joinTimeout := s.cfg.DialTimeout
	if joinTimeout <= 0 {
		joinTimeout = 10 * time.Second
	}
	timer := time.NewTimer(joinTimeout)
	defer timer.Stop()

	select {
	case <-s.joined:
	case <-timer.C:
		s.teardown()
		return errJoinTimeout
	case <-ctx.Done():
		s.teardown()
		return ctx.Err()
	case <-runCtx.Done():
		return errJoinTimeout
	}

	log.Info().Str("module", "engine").Str("session", string(s.info.ID)).
		Str("conn", string(s.ConnectionID())).Msg("session connected")
	return nil
}

func (s *session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		leave, _ := json.Marshal(envelope{Type: typeLeave})
		_ = conn.trySend(leave)
	}
	s.teardown()
	log.Info().Str("module", "engine").Str("session", string(s.info.ID)).Msg("session disconnected")
	return nil
}

func (s *session) teardown() {
	s.mu.Lock()
	cancel, conn, peer := s.cancel, s.conn, s.peer
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.close()
	}
	if peer != nil {
		peer.close()
	}
}

func (s *session) ConnectionID() domain.ConnectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connID
}

func (s *session) Handle(fn core.EventHandler) (unbind func()) {
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

func (s *session) Signal(ctx context.Context, signalType, payload string) error {
	if len(payload) > maxSignalBytes {
		return &core.SizeExceededError{Size: len(payload), Limit: maxSignalBytes}
	}
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()
	if conn == nil || closed {
		return core.ErrNoSession
	}
	b, _ := json.Marshal(signalPayload{Type: typeSignal, SignalType: signalType, Payload: payload})
	return conn.trySend(b)
}

func (s *session) Subscribe(ctx context.Context, stream domain.MediaStream) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return core.ErrNoSession
	}
	b, _ := json.Marshal(subscribePayload{Type: typeSubscribe, StreamID: stream.ID()})
	if err := conn.trySend(b); err != nil {
		return err
	}
	log.Info().Str("module", "engine").Str("stream", stream.ID()).Msg("subscribed")
	return nil
}

func (s *session) Publish(ctx context.Context, p core.Publisher) error {
	pub, ok := p.(*Publisher)
	if !ok {
		return errors.New("publisher not created by this engine")
	}

	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return core.ErrNoSession
	}

	var senders []*webrtc.RTPSender
	for _, track := range pub.tracks() {
		sender, err := peer.addTrack(track)
		if err != nil {
			return fmt.Errorf("add track: %w", err)
		}
		senders = append(senders, sender)
	}

	s.mu.Lock()
	s.published[p] = senders
	s.mu.Unlock()

	return s.renegotiate()
}

func (s *session) Unpublish(ctx context.Context, p core.Publisher) error {
	s.mu.Lock()
	senders := s.published[p]
	delete(s.published, p)
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return nil
	}
	for _, sender := range senders {
		if err := peer.removeTrack(sender); err != nil {
			log.Warn().Err(err).Str("module", "engine").Msg("remove track failed")
		}
	}
	return s.renegotiate()
}

func (s *session) renegotiate() error {
	s.mu.Lock()
	peer, conn := s.peer, s.conn
	s.mu.Unlock()
	if peer == nil || conn == nil {
		return core.ErrNoSession
	}
	offer, err := peer.createOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	b, _ := json.Marshal(sdpPayload{Type: typeOffer, SDP: *offer})
	return conn.trySend(b)
}

func (s *session) sendCandidate(ci webrtc.ICECandidateInit) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	b, _ := json.Marshal(candidatePayload{Type: typeCandidate, Candidate: ci})
	_ = conn.trySend(b)
}

func (s *session) onPeerState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateDisconnected:
		s.emit(core.SessionReconnecting{})
	case webrtc.PeerConnectionStateFailed:
		s.emit(core.EngineException{Code: 1006, Message: "peer connection failed"})
	default:
	}
}

// handleWire dispatches one inbound envelope: negotiation envelopes are
// consumed here, everything else becomes a typed event for the bridge.
func (s *session) handleWire(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "engine").Msg("dropping malformed envelope")
		return
	}

	switch env.Type {
	case typeJoined:
		var p joinedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn().Err(err).Str("module", "engine").Msg("bad joined payload")
			return
		}
		s.mu.Lock()
		s.connID = domain.ConnectionID(p.ConnectionID)
		s.mu.Unlock()
		select {
		case <-s.joined:
		default:
			close(s.joined)
		}
		return

	case typeAnswer:
		var p sdpPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn().Err(err).Str("module", "engine").Msg("bad answer payload")
			return
		}
		if err := s.peer.applyAnswer(p.SDP); err != nil {
			log.Error().Err(err).Str("module", "engine").Msg("apply answer")
		}
		return

	case typeCandidate:
		var p candidatePayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn().Err(err).Str("module", "engine").Msg("bad candidate payload")
			return
		}
		if err := s.peer.addICECandidate(p.Candidate); err != nil {
			log.Error().Err(err).Str("module", "engine").Msg("add candidate")
		}
		return
	}

	ev, err := decodeEvent(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "engine").Msg("dropping malformed event")
		return
	}
	if ev == nil {
		log.Debug().Str("module", "engine").Str("type", env.Type).Msg("unknown envelope")
		return
	}
	s.emit(ev)
}

func (s *session) emit(ev core.Event) {
	s.mu.Lock()
	handlers := make([]core.EventHandler, 0, len(s.handlers))
	for _, fn := range s.handlers {
		handlers = append(handlers, fn)
	}
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}
