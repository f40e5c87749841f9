// Package state is the room turn state machine. It owns turn, real_turn,
// turn_owner_index and turn_state and never touches the store itself.
package state

import (
	"fmt"

	"github.com/wfunc/changeling/models"
)

// ErrTransitionNotAllowed is returned when no edge links the two states.
var ErrTransitionNotAllowed = fmt.Errorf("%w: transition not allowed", models.ErrInvalidState)

// ActionKind names an in-game action that is not a plain turn pass.
type ActionKind string

const (
	ActionBurn    ActionKind = "burn"
	ActionConvert ActionKind = "convert"
)

// ActionPolicy 决定动作是否结束当前回合、是否必须由回合所有者发起
type ActionPolicy struct {
	EndsTurn          bool
	RequiresTurnOwner bool
}

// DefaultPolicies: burning ends the owner's turn, converting does not.
func DefaultPolicies() map[ActionKind]ActionPolicy {
	return map[ActionKind]ActionPolicy{
		ActionBurn:    {EndsTurn: true, RequiresTurnOwner: true},
		ActionConvert: {EndsTurn: false, RequiresTurnOwner: true},
	}
}

// Machine 回合状态机
type Machine struct {
	transitions map[models.TurnState]map[models.TurnState]bool
	policies    map[ActionKind]ActionPolicy
}

// NewMachine builds the lobby -> in progress -> finished -> lobby cycle.
func NewMachine(policies map[ActionKind]ActionPolicy) *Machine {
	if policies == nil {
		policies = DefaultPolicies()
	}
	m := &Machine{
		transitions: make(map[models.TurnState]map[models.TurnState]bool),
		policies:    policies,
	}
	m.AddTransition(models.StateLobby, models.StateInProgress)
	m.AddTransition(models.StateInProgress, models.StateFinished)
	m.AddTransition(models.StateFinished, models.StateLobby)
	return m
}

func (m *Machine) AddTransition(from, to models.TurnState) {
	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.TurnState]bool)
	}
	m.transitions[from][to] = true
}

func (m *Machine) CanTransition(from, to models.TurnState) bool {
	return m.transitions[from][to]
}

// Policy returns the configured policy for kind. Unknown kinds neither end the
// turn nor need the owner.
func (m *Machine) Policy(kind ActionKind) ActionPolicy {
	return m.policies[kind]
}

func (m *Machine) changeState(room *models.Room, to models.TurnState) error {
	if !m.CanTransition(room.TurnState, to) {
		return ErrTransitionNotAllowed
	}
	room.TurnState = to
	return nil
}

func resetCounters(room *models.Room) {
	room.Turn = 0
	room.RealTurn = 0
	room.TurnOwnerIndex = 0
}

// CheckStart validates start_game without mutating anything.
func (m *Machine) CheckStart(room *models.Room, callerID string) error {
	if room.Admin != callerID {
		return models.ErrNotAuthorized
	}
	if !m.CanTransition(room.TurnState, models.StateInProgress) {
		return models.ErrInvalidState
	}
	return nil
}

// Start moves a lobby into play. assign runs once, after validation and before
// the counters are reset.
func (m *Machine) Start(room *models.Room, callerID string, assign func()) error {
	if err := m.CheckStart(room, callerID); err != nil {
		return err
	}
	if assign != nil {
		assign()
	}
	if err := m.changeState(room, models.StateInProgress); err != nil {
		return err
	}
	resetCounters(room)
	room.Outcome = models.OutcomeNone
	return nil
}

func (m *Machine) requireOwner(room *models.Room, callerID string) error {
	idx := room.IndexOf(callerID)
	if idx < 0 {
		return models.ErrNotAuthorized
	}
	if idx != room.TurnOwnerIndex {
		return models.ErrNotTurnOwner
	}
	return nil
}

// CheckNextTurn validates next_turn.
func (m *Machine) CheckNextTurn(room *models.Room, callerID string) error {
	if room.TurnState != models.StateInProgress {
		return models.ErrInvalidState
	}
	return m.requireOwner(room, callerID)
}

// NextTurn ends the caller's turn and hands it to the next member in join order.
func (m *Machine) NextTurn(room *models.Room, callerID string) error {
	if err := m.CheckNextTurn(room, callerID); err != nil {
		return err
	}
	passTurn(room)
	return nil
}

func passTurn(room *models.Room) {
	room.Turn++
	room.RealTurn++
	if n := len(room.Members); n > 0 {
		room.TurnOwnerIndex = (room.TurnOwnerIndex + 1) % n
	}
}

// CheckAction validates an action of kind by callerID.
func (m *Machine) CheckAction(room *models.Room, callerID string, kind ActionKind) error {
	if room.TurnState != models.StateInProgress {
		return models.ErrInvalidState
	}
	if !room.IsMember(callerID) {
		return models.ErrNotAuthorized
	}
	if m.Policy(kind).RequiresTurnOwner {
		return m.requireOwner(room, callerID)
	}
	return nil
}

// AdvanceAction bumps the counters after a successful action. Only actions
// whose policy ends the turn rotate ownership and count as a real turn.
func (m *Machine) AdvanceAction(room *models.Room, kind ActionKind) {
	if m.Policy(kind).EndsTurn {
		passTurn(room)
		return
	}
	room.Turn++
}

// Finish records the outcome of a game in progress.
func (m *Machine) Finish(room *models.Room, outcome models.Outcome) error {
	if err := m.changeState(room, models.StateFinished); err != nil {
		return err
	}
	room.Outcome = outcome
	return nil
}

// CheckRestart validates restart_game.
func (m *Machine) CheckRestart(room *models.Room, callerID string) error {
	if room.Admin != callerID {
		return models.ErrNotAuthorized
	}
	if room.TurnState != models.StateFinished {
		return models.ErrInvalidState
	}
	return nil
}

// Restart returns a finished room to the lobby. Membership is untouched;
// reset clears the roles.
func (m *Machine) Restart(room *models.Room, callerID string, reset func()) error {
	if err := m.CheckRestart(room, callerID); err != nil {
		return err
	}
	if err := m.changeState(room, models.StateLobby); err != nil {
		return err
	}
	if reset != nil {
		reset()
	}
	resetCounters(room)
	room.Outcome = models.OutcomeNone
	return nil
}

// MemberRemoved keeps turn_owner_index on a present member after the member at
// removedIdx has been dropped from room.Members. When the owner leaves, the
// turn passes to whoever followed them.
func MemberRemoved(room *models.Room, removedIdx int) {
	n := len(room.Members)
	switch {
	case n == 0:
		room.TurnOwnerIndex = 0
	case removedIdx < room.TurnOwnerIndex:
		room.TurnOwnerIndex--
	case room.TurnOwnerIndex >= n:
		room.TurnOwnerIndex = 0
	}
}

