package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/keiv/huddle/internal/config"
	"github.com/keiv/huddle/internal/domain"
)

func signalingServer(t *testing.T, handle func(c *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DialTimeout: 200 * time.Millisecond,
		ReadLimit:   32768,
	}
}

func TestConnect_JoinAcknowledged(t *testing.T) {
	req := require.New(t)

	url := signalingServer(t, func(c *websocket.Conn) {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var join joinPayload
		if json.Unmarshal(data, &join) != nil || join.Type != typeJoin {
			return
		}
		ack, _ := json.Marshal(map[string]string{"type": typeJoined, "connectionId": "conn-42"})
		_ = c.WriteMessage(websocket.TextMessage, ack)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := newSession(testEngineConfig(), domain.SessionInfo{ID: "room-1", ServerURL: url}, "alice")
	req.NoError(s.Connect(context.Background(), "token"))
	req.Equal(domain.ConnectionID("conn-42"), s.ConnectionID())
	req.NoError(s.Disconnect(context.Background()))
}

func TestConnect_JoinAckTimeout(t *testing.T) {
	req := require.New(t)

	// The server accepts the dial and the join, then goes silent.
	url := signalingServer(t, func(c *websocket.Conn) {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := newSession(testEngineConfig(), domain.SessionInfo{ID: "room-1", ServerURL: url}, "alice")

	start := time.Now()
	err := s.Connect(context.Background(), "token")
	req.ErrorIs(err, errJoinTimeout)
	req.Less(time.Since(start), 5*time.Second)
}
