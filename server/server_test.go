package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/changeling/config"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/network"
	"github.com/wfunc/changeling/services"
	"github.com/wfunc/changeling/store"
)

type wireMessage struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(name string, payload any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"name": name, "payload": payload}))
}

// expect reads until a message called name arrives.
func (c *testClient) expect(name string) json.RawMessage {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg wireMessage
		require.NoError(c.t, c.conn.ReadJSON(&msg), "waiting for %s", name)
		if msg.Name == name {
			return msg.Payload
		}
	}
}

func newTestServer(t *testing.T) (*GameServer, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Heartbeat = 0
	s := NewGameServer(cfg, store.NewMemoryStore(), services.NewRecordService(nil))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, srv
}

func TestGameServer_EndToEnd(t *testing.T) {
	s, srv := newTestServer(t)

	host := dial(t, srv)
	host.send(network.ReqHostGame, map[string]string{"name": "alice", "portrait": "fox"})
	var ack network.AckHostPayload
	require.NoError(t, json.Unmarshal(host.expect(network.RespAckHost), &ack))
	assert.True(t, ack.Admin)

	guest := dial(t, srv)
	guest.send(network.ReqJoinGame, map[string]string{"name": "bob", "roomID": ack.RoomID})
	guest.expect(network.RespAckJoin)
	var existing network.SyncPlayersPayload
	require.NoError(t, json.Unmarshal(guest.expect(network.RespSyncPlayers), &existing))
	require.Len(t, existing.Players, 1)
	assert.Equal(t, "alice", existing.Players[0].Name)

	host.expect(network.RespSyncPlayers)
	host.send(network.ReqStartGame, nil)
	var gs models.GameState
	require.NoError(t, json.Unmarshal(guest.expect(network.RespGameState), &gs))
	assert.Equal(t, models.StateInProgress, gs.TurnState)

	// the guest dropping out is a leave; the host learns of it
	require.NoError(t, guest.conn.Close())
	var left network.PlayerLeavePayload
	require.NoError(t, json.Unmarshal(host.expect(network.RespPlayerLeave), &left))
	assert.Equal(t, ack.RoomID, gs.RoomID)
	assert.Equal(t, ack.UserID, left.Admin)

	rooms, err := s.registry.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].Members)
}

func TestGameServer_MalformedFrame(t *testing.T) {
	_, srv := newTestServer(t)
	c := dial(t, srv)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var p network.ErrorPayload
	require.NoError(t, json.Unmarshal(c.expect(network.RespError), &p))
	assert.Equal(t, models.CodeBadRequest, p.ErrType)

	// the connection survives
	c.send(network.ReqJoinGame, map[string]string{"roomID": "NOPE1"})
	require.NoError(t, json.Unmarshal(c.expect(network.RespError), &p))
	assert.Equal(t, models.CodeRoomNotFound, p.ErrType)
}

func TestGameServer_HealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestGameServer_RunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.HTTPAddress = "127.0.0.1:0"
	cfg.Server.RPCAddress = "127.0.0.1:0"
	s := NewGameServer(cfg, store.NewMemoryStore(), services.NewRecordService(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
