package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/changeling/broadcast"
	"github.com/wfunc/changeling/game"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/monitor"
	"github.com/wfunc/changeling/network"
	"github.com/wfunc/changeling/room"
	"github.com/wfunc/changeling/store"
)

type recordingDeliverer struct {
	mu  sync.Mutex
	out []broadcast.Outbound
}

func (r *recordingDeliverer) Deliver(batch []broadcast.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, batch...)
}

func (r *recordingDeliverer) to(userID string) []network.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []network.Message
	for _, o := range r.out {
		if o.To == userID {
			msgs = append(msgs, o.Msg)
		}
	}
	return msgs
}

func newTestDispatcher() (*Dispatcher, *recordingDeliverer) {
	rec := &recordingDeliverer{}
	registry := room.NewRegistry(store.NewMemoryStore(), room.Options{})
	engine := game.NewEngine(game.Options{Registry: registry, Deliverer: rec})
	return NewDispatcher(engine, rec, monitor.NewMonitor("test")), rec
}

func request(sender, name string, payload any) *network.Request {
	req := &network.Request{Name: name, Sender: sender}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		req.Payload = raw
	}
	return req
}

func errType(t *testing.T, msg network.Message) string {
	t.Helper()
	require.Equal(t, network.RespError, msg.Name)
	return msg.Payload.(network.ErrorPayload).ErrType
}

func TestDispatcher_HostAndJoin(t *testing.T) {
	d, rec := newTestDispatcher()
	ctx := context.Background()

	d.Dispatch(ctx, request("a", network.ReqHostGame, map[string]string{"name": "alice", "portrait": "fox"}))
	msgs := rec.to("a")
	require.Len(t, msgs, 1)
	ack := msgs[0].Payload.(network.AckHostPayload)
	assert.Equal(t, "alice", ack.Name)

	// room ids are matched case-insensitively
	d.Dispatch(ctx, request("b", network.ReqJoinGame, map[string]string{"name": "bob", "roomID": " " + strings.ToLower(ack.RoomID)}))
	msgs = rec.to("b")
	require.NotEmpty(t, msgs)
	assert.Equal(t, network.RespAckJoin, msgs[0].Name)
}

func TestDispatcher_ErrorsGoToSenderOnly(t *testing.T) {
	d, rec := newTestDispatcher()
	ctx := context.Background()

	d.Dispatch(ctx, request("a", network.ReqHostGame, map[string]string{"name": "alice"}))
	roomID := rec.to("a")[0].Payload.(network.AckHostPayload).RoomID
	for i := 1; i < room.DefaultCapacity; i++ {
		d.Dispatch(ctx, request(fmt.Sprintf("u%d", i), network.ReqJoinGame, map[string]string{"roomID": roomID}))
	}

	before := len(rec.out)
	d.Dispatch(ctx, request("late", network.ReqJoinGame, map[string]string{"roomID": roomID}))
	require.Len(t, rec.out, before+1)
	assert.Equal(t, "late", rec.out[before].To)
	assert.Equal(t, models.CodeUserLimit, errType(t, rec.out[before].Msg))
}

func TestDispatcher_ErrorCodes(t *testing.T) {
	d, rec := newTestDispatcher()
	ctx := context.Background()

	d.Dispatch(ctx, request("x", network.ReqJoinGame, map[string]string{"roomID": "NOPE1"}))
	d.Dispatch(ctx, request("x", "req_dance", nil))
	d.Dispatch(ctx, request("x", network.ReqBurnPlayer, "not an object"))
	d.Dispatch(ctx, request("x", network.ReqStartGame, nil))

	msgs := rec.to("x")
	require.Len(t, msgs, 4)
	assert.Equal(t, models.CodeRoomNotFound, errType(t, msgs[0]))
	assert.Equal(t, models.CodeBadRequest, errType(t, msgs[1]))
	assert.Equal(t, models.CodeBadRequest, errType(t, msgs[2]))
	assert.Equal(t, models.CodeNotAuthorized, errType(t, msgs[3]))
}

func TestDispatcher_HeartbeatIsSilent(t *testing.T) {
	d, rec := newTestDispatcher()
	d.Dispatch(context.Background(), request("a", network.ReqHeartbeat, nil))
	assert.Empty(t, rec.to("a"))
}

func TestDispatcher_GameFlow(t *testing.T) {
	d, rec := newTestDispatcher()
	ctx := context.Background()

	d.Dispatch(ctx, request("a", network.ReqHostGame, map[string]string{"name": "alice"}))
	roomID := rec.to("a")[0].Payload.(network.AckHostPayload).RoomID
	d.Dispatch(ctx, request("b", network.ReqJoinGame, map[string]string{"roomID": roomID}))
	d.Dispatch(ctx, request("c", network.ReqJoinGame, map[string]string{"roomID": roomID}))
	d.Dispatch(ctx, request("a", network.ReqStartGame, nil))

	state := func() models.GameState {
		msgs := rec.to("c")
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Name == network.RespGameState {
				return msgs[i].Payload.(models.GameState)
			}
		}
		t.Fatal("no game state")
		return models.GameState{}
	}
	require.Equal(t, models.StateInProgress, state().TurnState)
	assert.Equal(t, "a", state().TurnOwner)

	d.Dispatch(ctx, request("a", network.ReqNextTurn, nil))
	assert.Equal(t, "b", state().TurnOwner)

	d.Dispatch(ctx, request("a", network.ReqNextTurn, nil))
	last := rec.to("a")
	assert.Equal(t, models.CodeNotTurnOwner, errType(t, last[len(last)-1]))
}
