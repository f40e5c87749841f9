// Package game applies requests to rooms. Every operation checks its
// preconditions, mutates and commits the room, and hands the resulting updates
// to the transport, all inside the room's critical section. A failed
// precondition leaves no trace.
package game

import (
	"context"
	"time"

	"github.com/wfunc/changeling/broadcast"
	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/roles"
	"github.com/wfunc/changeling/room"
	"github.com/wfunc/changeling/state"
	"github.com/wfunc/changeling/store"
)

// FinishFunc receives the record of every finished game. It runs after the
// room's critical section has been released.
type FinishFunc func(ctx context.Context, rec models.GameRecord)

type Engine struct {
	registry  *room.Registry
	machine   *state.Machine
	assigner  *roles.Assigner
	deliverer broadcast.Deliverer
	evaluator WinEvaluator
	onFinish  FinishFunc
}

type Options struct {
	Registry  *room.Registry
	Machine   *state.Machine
	Assigner  *roles.Assigner
	Deliverer broadcast.Deliverer
	Evaluator WinEvaluator
	OnFinish  FinishFunc
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		registry:  opts.Registry,
		machine:   opts.Machine,
		assigner:  opts.Assigner,
		deliverer: opts.Deliverer,
		evaluator: opts.Evaluator,
		onFinish:  opts.OnFinish,
	}
	if e.machine == nil {
		e.machine = state.NewMachine(nil)
	}
	if e.assigner == nil {
		e.assigner = roles.NewAssigner(1)
	}
	if e.evaluator == nil {
		e.evaluator = Campfire{}
	}
	if e.deliverer == nil {
		e.deliverer = broadcast.DelivererFunc(func([]broadcast.Outbound) {})
	}
	return e
}

// txn is the working state of one operation on one room.
type txn struct {
	snap   *room.Snapshot
	batch  *broadcast.Batch
	record *models.GameRecord
}

func (t *txn) room() *models.Room { return t.snap.Room }

// run executes fn inside roomID's critical section. The batch built by fn is
// delivered before the section is released; the finish hook runs after.
func (e *Engine) run(ctx context.Context, roomID string, fn func(t *txn) error) error {
	var record *models.GameRecord
	err := e.registry.WithRoom(ctx, roomID, func(snap *room.Snapshot) error {
		t := &txn{snap: snap, batch: broadcast.NewBatch(snap)}
		if err := fn(t); err != nil {
			return err
		}
		e.deliverer.Deliver(t.batch.Messages())
		record = t.record
		return nil
	})
	if err == nil && record != nil && e.onFinish != nil {
		e.onFinish(ctx, *record)
	}
	return err
}

// asMember resolves the sender's room and runs fn there, failing with
// models.ErrNotAuthorized unless the sender is a member.
func (e *Engine) asMember(ctx context.Context, userID string, fn func(t *txn) error) error {
	u, err := e.registry.LookupUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.InRoom() {
		return models.ErrNotAuthorized
	}
	return e.run(ctx, u.RoomID, func(t *txn) error {
		if err := room.RequireMember(t.snap, userID); err != nil {
			return err
		}
		return fn(t)
	})
}

// HostGame creates a room administered by userID.
func (e *Engine) HostGame(ctx context.Context, userID, name, portrait string) (string, error) {
	var roomID string
	admin := &models.User{ID: userID, Username: name, PortraitName: portrait, Role: models.RoleUnassigned}
	err := e.registry.CreateRoom(ctx, admin, func(snap *room.Snapshot) error {
		roomID = snap.Room.ID
		e.deliverer.Deliver(broadcast.NewBatch(snap).HostAck(userID).Messages())
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Log.Infof("User %s hosted room %s", userID, roomID)
	return roomID, nil
}

// JoinGame admits userID into roomID and replays the room to it.
func (e *Engine) JoinGame(ctx context.Context, userID, roomID, name, portrait string) error {
	existing, err := e.registry.LookupUser(ctx, userID)
	if err != nil {
		return err
	}
	if existing.InRoom() {
		return models.ErrAlreadyInRoom
	}
	user := &models.User{ID: userID, Username: name, PortraitName: portrait, Role: models.RoleUnassigned}
	err = e.run(ctx, roomID, func(t *txn) error {
		if err := e.registry.Join(ctx, t.snap, user); err != nil {
			return err
		}
		t.batch.JoinReplay(userID)
		return nil
	})
	if err == nil {
		logger.Log.Infof("User %s joined room %s", userID, roomID)
	}
	return err
}

// LeaveGame removes userID from its room. Disconnects take the same path.
// The removal and, mid-game, the win check commit together.
func (e *Engine) LeaveGame(ctx context.Context, userID string) error {
	return e.asMember(ctx, userID, func(t *txn) error {
		r := t.room()
		res, err := e.registry.Leave(t.snap, userID)
		if err != nil {
			return err
		}
		inGame := !res.Destroyed && r.TurnState == models.StateInProgress
		err = e.registry.Commit(ctx, func(w store.Writer) error {
			if err := res.Write(w); err != nil {
				return err
			}
			if !inGame {
				return nil
			}
			return e.finishIfOver(t, w)
		})
		if err != nil {
			return err
		}
		if res.Destroyed {
			logger.Log.Infof("Room %s destroyed after %s left", r.ID, userID)
			return nil
		}

		t.batch.PlayerLeft(userID)
		if res.AdminChanged {
			t.batch.PlayerUpdate(r.Admin)
		}
		if inGame {
			t.batch.GameState()
		}
		return nil
	})
}

// StartGame assigns roles and begins the first turn.
func (e *Engine) StartGame(ctx context.Context, userID string) error {
	return e.asMember(ctx, userID, func(t *txn) error {
		r := t.room()
		err := e.machine.Start(r, userID, func() {
			e.assigner.Assign(r, t.snap.Users)
		})
		if err != nil {
			return err
		}
		if err := e.commitAll(ctx, t); err != nil {
			return err
		}
		logger.Log.Infof("Room %s started with %d players", r.ID, len(r.Members))
		t.batch.GameState().PlayerList()
		return nil
	})
}

// NextTurn ends the caller's turn.
func (e *Engine) NextTurn(ctx context.Context, userID string) error {
	return e.asMember(ctx, userID, func(t *txn) error {
		if err := e.machine.NextTurn(t.room(), userID); err != nil {
			return err
		}
		if err := e.commitRoom(ctx, t); err != nil {
			return err
		}
		t.batch.GameState()
		return nil
	})
}

// BurnPlayer burns targetID on behalf of userID.
func (e *Engine) BurnPlayer(ctx context.Context, userID, targetID string) error {
	return e.asMember(ctx, userID, func(t *txn) error {
		r := t.room()
		if err := e.machine.CheckAction(r, userID, state.ActionBurn); err != nil {
			return err
		}
		if t.snap.Users[userID].Burned {
			return models.ErrNotAuthorized
		}
		target := t.snap.Member(targetID)
		if target == nil || target.Burned || targetID == userID {
			return models.ErrInvalidTarget
		}

		target.Burned = true
		e.machine.AdvanceAction(r, state.ActionBurn)
		if err := e.settle(ctx, t, target); err != nil {
			return err
		}
		t.batch.PlayerUpdate(targetID).GameState()
		return nil
	})
}

// ConvertChangeling turns targetID into a changeling on behalf of userID, who
// must be one already. Converting an existing changeling changes nothing and
// only resends the caller the current state.
func (e *Engine) ConvertChangeling(ctx context.Context, userID, targetID string) error {
	return e.asMember(ctx, userID, func(t *txn) error {
		r := t.room()
		if err := e.machine.CheckAction(r, userID, state.ActionConvert); err != nil {
			return err
		}
		if !r.IsChangeling(userID) || t.snap.Users[userID].Burned {
			return models.ErrNotAuthorized
		}
		target := t.snap.Member(targetID)
		if target == nil || target.Burned {
			return models.ErrInvalidTarget
		}
		if !roles.Convert(r, target) {
			t.batch.GameStateTo(userID)
			return nil
		}

		e.machine.AdvanceAction(r, state.ActionConvert)
		err := e.registry.Commit(ctx, func(w store.Writer) error {
			w.ListAppend(store.ChangelingsKey(r.ID), targetID)
			if err := store.PutUser(w, target); err != nil {
				return err
			}
			return e.finishIfOver(t, w)
		})
		if err != nil {
			return err
		}
		t.batch.PromotionReplay(targetID).GameState()
		return nil
	})
}

// RestartGame returns a finished room to its lobby.
func (e *Engine) RestartGame(ctx context.Context, userID string) error {
	return e.asMember(ctx, userID, func(t *txn) error {
		r := t.room()
		err := e.machine.Restart(r, userID, func() {
			roles.Reset(r, t.snap.Users)
		})
		if err != nil {
			return err
		}
		if err := e.commitAll(ctx, t); err != nil {
			return err
		}
		t.batch.GameState().PlayerList()
		return nil
	})
}

// FinishGame ends the game in roomID with outcome on behalf of an operator.
// The admin RPC's Finish call lands here.
func (e *Engine) FinishGame(ctx context.Context, roomID string, outcome models.Outcome) error {
	return e.run(ctx, roomID, func(t *txn) error {
		if err := e.machine.Finish(t.room(), outcome); err != nil {
			return err
		}
		if err := e.commitRoom(ctx, t); err != nil {
			return err
		}
		t.record = recordOf(t.snap)
		t.batch.GameState()
		return nil
	})
}

// settle evaluates the win condition and commits the room plus any changed
// users.
func (e *Engine) settle(ctx context.Context, t *txn, changed ...*models.User) error {
	return e.registry.Commit(ctx, func(w store.Writer) error {
		for _, u := range changed {
			if err := store.PutUser(w, u); err != nil {
				return err
			}
		}
		return e.finishIfOver(t, w)
	})
}

// finishIfOver queues the room record, finishing the game first when the
// evaluator returns a verdict.
func (e *Engine) finishIfOver(t *txn, w store.Writer) error {
	r := t.room()
	if outcome := e.evaluator.Evaluate(t.snap); outcome != models.OutcomeNone {
		if err := e.machine.Finish(r, outcome); err != nil {
			return err
		}
		t.record = recordOf(t.snap)
		logger.Log.Infof("Room %s finished: %s", r.ID, outcome)
	}
	return store.PutRoom(w, r)
}

func (e *Engine) commitRoom(ctx context.Context, t *txn) error {
	return e.registry.Commit(ctx, func(w store.Writer) error {
		return store.PutRoom(w, t.room())
	})
}

// commitAll rewrites the room, its changeling list and every member.
func (e *Engine) commitAll(ctx context.Context, t *txn) error {
	r := t.room()
	return e.registry.Commit(ctx, func(w store.Writer) error {
		w.Delete(store.ChangelingsKey(r.ID))
		for _, id := range r.Changelings {
			w.ListAppend(store.ChangelingsKey(r.ID), id)
		}
		for _, u := range t.snap.MemberUsers() {
			if err := store.PutUser(w, u); err != nil {
				return err
			}
		}
		return store.PutRoom(w, r)
	})
}

func recordOf(snap *room.Snapshot) *models.GameRecord {
	r := snap.Room
	rec := &models.GameRecord{
		RoomID:    r.ID,
		Outcome:   r.Outcome,
		Turns:     r.Turn,
		RealTurns: r.RealTurn,
		CreatedAt: time.Now().UTC(),
	}
	for _, u := range snap.MemberUsers() {
		rec.Players = append(rec.Players, models.PlayerInfo{
			UserID: u.ID,
			Name:   u.Username,
			Role:   u.Role,
			Burned: u.Burned,
			Admin:  r.Admin == u.ID,
		})
	}
	return rec
}
