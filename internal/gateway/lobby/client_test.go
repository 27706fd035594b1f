package lobby

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"augur/internal/config"
)

func TestClientJoinsHeartbeatsAndDecodes(t *testing.T) {
	received := make(chan Frame, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var join Frame
		if !assert.NoError(t, conn.ReadJSON(&join)) {
			return
		}
		received <- join

		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
		assert.NoError(t, conn.WriteJSON(map[string]any{
			"topic": "game:lobby", "event": "game_update", "ref": nil,
			"payload": map[string]any{"id": "bad"},
		}))
		assert.NoError(t, conn.WriteJSON(map[string]any{
			"topic": "game:lobby", "event": "game_update", "ref": 7,
			"payload": map[string]any{
				"id": "g1", "state": "waiting_for_players",
				"participants": []any{"alice"},
			},
		}))

		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			received <- f
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(config.LobbyConfig{URL: wsURL, Topic: "game:lobby"}, "secret")
	c.heartbeat = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := c.Updates(ctx)

	select {
	case upd := <-updates:
		assert.Equal(t, "g1", upd.ID)
		assert.Equal(t, StateWaitingForPlayers, upd.State)
		assert.Equal(t, []string{"alice"}, upd.Participants)
		assert.False(t, upd.ReceivedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	join := <-received
	assert.Equal(t, "game:lobby", join.Topic)
	assert.Equal(t, eventJoin, join.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(join.Payload, &payload))
	assert.Equal(t, "secret", payload["api_key"])
	require.NotNil(t, join.Ref)

	select {
	case hb := <-received:
		assert.Equal(t, heartbeatTopic, hb.Topic)
		assert.Equal(t, eventHeartbeat, hb.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}

	cancel()
	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update channel not closed after cancel")
	}
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, time.Second, nextDelay(0, time.Minute))
	assert.Equal(t, 4*time.Second, nextDelay(2*time.Second, time.Minute))
	assert.Equal(t, time.Minute, nextDelay(40*time.Second, time.Minute))
}

func TestRunResetsBackoffAfterJoinedSession(t *testing.T) {
	var attempts atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) != 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		var join Frame
		assert.NoError(t, conn.ReadJSON(&join))
	}))
	defer srv.Close()

	c := NewClient(config.LobbyConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Topic: "game:lobby"}, "secret")
	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return len(delays) < 4
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(context.Background(), make(chan GameUpdate, 1))
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop")
	}

	// two refused dials, one joined session, one more refused dial
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second}, delays)
	assert.Equal(t, int32(4), attempts.Load())
}
