// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/network"
	"github.com/wfunc/changeling/roles"
	"github.com/wfunc/changeling/room"
)

// Outbound is one message addressed to one user.
type Outbound struct {
	To  string
	Msg network.Message
}

// Deliverer hands a batch to the transport. It must only enqueue: it is called
// while the room's critical section is held, and the order of the batch is the
// order each recipient observes.
type Deliverer interface {
	Deliver(batch []Outbound)
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(batch []Outbound)

func (f DelivererFunc) Deliver(batch []Outbound) { f(batch) }

// Batch collects the updates produced by one committed mutation. Nothing is
// cached between batches: every message is derived from the snapshot it was
// built on.
type Batch struct {
	snap *room.Snapshot
	out  []Outbound
}

func NewBatch(snap *room.Snapshot) *Batch {
	return &Batch{snap: snap}
}

// Messages returns the accumulated messages in emission order.
func (b *Batch) Messages() []Outbound {
	return b.out
}

// Send queues one message for one user.
func (b *Batch) Send(to, name string, payload any) *Batch {
	b.out = append(b.out, Outbound{To: to, Msg: network.Message{Name: name, Payload: payload}})
	return b
}

// ToAll queues the same message for every current member.
func (b *Batch) ToAll(name string, payload any) *Batch {
	for _, id := range b.snap.Room.Members {
		b.Send(id, name, payload)
	}
	return b
}

func (b *Batch) player(recipientID, subjectID string) models.PlayerData {
	return roles.PlayerData(b.snap.Room, recipientID, b.snap.Users[subjectID])
}

// HostAck confirms a freshly created room to its admin.
func (b *Batch) HostAck(adminID string) *Batch {
	return b.Send(adminID, network.RespAckHost, network.AckHostPayload{
		RoomID:     b.snap.Room.ID,
		PlayerData: b.player(adminID, adminID),
	})
}

// JoinReplay brings a new member in sync. The joiner gets its own record in
// the ack and then one list holding every existing member as visible to it;
// each existing member gets exactly one update announcing the joiner. When
// the game is already running the joiner also receives the shared game state.
func (b *Batch) JoinReplay(joinerID string) *Batch {
	room := b.snap.Room
	b.Send(joinerID, network.RespAckJoin, network.AckJoinPayload{
		RoomID:     room.ID,
		PlayerData: b.player(joinerID, joinerID),
	})

	existing := make([]models.PlayerData, 0, len(room.Members))
	for _, id := range room.Members {
		if id != joinerID {
			existing = append(existing, b.player(joinerID, id))
		}
	}
	b.Send(joinerID, network.RespSyncPlayers, network.SyncPlayersPayload{Players: existing})

	for _, id := range room.Members {
		if id == joinerID {
			continue
		}
		b.Send(id, network.RespSyncPlayers, network.SyncPlayersPayload{
			Players: []models.PlayerData{b.player(id, joinerID)},
		})
	}

	if room.TurnState != models.StateLobby {
		b.Send(joinerID, network.RespGameState, GameStateOf(room))
	}
	return b
}

// PromotionReplay backfills visibility after targetID became a changeling:
// every other changeling learns the target's true role and the target learns
// every changeling's, itself included.
func (b *Batch) PromotionReplay(targetID string) *Batch {
	room := b.snap.Room
	for _, id := range room.Changelings {
		if id == targetID {
			continue
		}
		b.Send(id, network.RespSyncPlayers, network.SyncPlayersPayload{
			Players: []models.PlayerData{b.player(id, targetID)},
		})
	}

	revealed := make([]models.PlayerData, 0, len(room.Changelings))
	for _, id := range room.Changelings {
		revealed = append(revealed, b.player(targetID, id))
	}
	return b.Send(targetID, network.RespSyncPlayers, network.SyncPlayersPayload{Players: revealed})
}

// PlayerList sends every member the full member list as visible to them.
func (b *Batch) PlayerList() *Batch {
	for _, recipient := range b.snap.Room.Members {
		players := make([]models.PlayerData, 0, len(b.snap.Room.Members))
		for _, id := range b.snap.Room.Members {
			players = append(players, b.player(recipient, id))
		}
		b.Send(recipient, network.RespSyncPlayers, network.SyncPlayersPayload{Players: players})
	}
	return b
}

// PlayerUpdate sends every member the record of subjectID as visible to them.
func (b *Batch) PlayerUpdate(subjectID string) *Batch {
	for _, recipient := range b.snap.Room.Members {
		b.Send(recipient, network.RespSyncPlayers, network.SyncPlayersPayload{
			Players: []models.PlayerData{b.player(recipient, subjectID)},
		})
	}
	return b
}

// GameState sends the shared game state to every member.
func (b *Batch) GameState() *Batch {
	return b.ToAll(network.RespGameState, GameStateOf(b.snap.Room))
}

// GameStateTo sends the shared game state to one member only.
func (b *Batch) GameStateTo(to string) *Batch {
	return b.Send(to, network.RespGameState, GameStateOf(b.snap.Room))
}

// PlayerLeft tells the remaining members who left and who the admin now is.
func (b *Batch) PlayerLeft(userID string) *Batch {
	return b.ToAll(network.RespPlayerLeave, network.PlayerLeavePayload{
		UserID: userID,
		Admin:  b.snap.Room.Admin,
	})
}

// GameStateOf is the view every member shares.
func GameStateOf(r *models.Room) models.GameState {
	return models.GameState{
		RoomID:         r.ID,
		TurnState:      r.TurnState,
		Turn:           r.Turn,
		RealTurn:       r.RealTurn,
		TurnOwnerIndex: r.TurnOwnerIndex,
		TurnOwner:      r.TurnOwner(),
		Outcome:        r.Outcome,
	}
}

// Error builds the error response for a failed request.
func Error(to string, err error) Outbound {
	return Outbound{To: to, Msg: network.Message{
		Name:    network.RespError,
		Payload: network.ErrorPayload{ErrType: models.ErrorKind(err)},
	}}
}
