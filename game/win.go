package game

import (
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/room"
)

// WinEvaluator decides whether a game in progress is over. It is consulted
// after every action that can change the balance of the room.
type WinEvaluator interface {
	Evaluate(snap *room.Snapshot) models.Outcome
}

// WinEvaluatorFunc adapts a function to WinEvaluator.
type WinEvaluatorFunc func(snap *room.Snapshot) models.Outcome

func (f WinEvaluatorFunc) Evaluate(snap *room.Snapshot) models.Outcome { return f(snap) }

// Campfire is the default rule set: innocents win once every changeling is
// burned, changelings win once they match the unburned innocents. Anyone not
// on the changeling list counts as innocent, mid-game joiners included.
type Campfire struct{}

func (Campfire) Evaluate(snap *room.Snapshot) models.Outcome {
	changelings, innocents := 0, 0
	for _, u := range snap.MemberUsers() {
		if u.Burned {
			continue
		}
		if snap.Room.IsChangeling(u.ID) {
			changelings++
		} else {
			innocents++
		}
	}
	switch {
	case changelings == 0:
		return models.OutcomeInnocentVictory
	case changelings >= innocents:
		return models.OutcomeChangelingVictory
	default:
		return models.OutcomeNone
	}
}
