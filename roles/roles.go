// Package roles assigns player roles and decides what each recipient may see.
package roles

import (
	"math/rand/v2"

	"github.com/wfunc/changeling/models"
)

// Assigner picks the initial changelings at game start.
type Assigner struct {
	// Changelings is the configured size of the initial changeling set.
	Changelings int
	// Shuffle permutes n indices; defaults to math/rand/v2. Tests replace it.
	Shuffle func(n int, swap func(i, j int))
}

func NewAssigner(changelings int) *Assigner {
	return &Assigner{Changelings: changelings, Shuffle: rand.Shuffle}
}

// count clamps the configured size so that at least one member stays innocent
// whenever the room has more than one member.
func (a *Assigner) count(members int) int {
	n := a.Changelings
	if n < 1 {
		n = 1
	}
	if limit := members - 1; limit >= 1 && n > limit {
		n = limit
	}
	if n > members {
		n = members
	}
	return n
}

// Assign clears any previous roles, chooses the changelings uniformly at random
// and stamps every member's role. room.Changelings is replaced; the chosen ids
// are returned in join order.
func (a *Assigner) Assign(room *models.Room, users map[string]*models.User) []string {
	order := make([]int, len(room.Members))
	for i := range order {
		order[i] = i
	}
	shuffle := a.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	picked := make(map[int]bool)
	for _, idx := range order[:a.count(len(order))] {
		picked[idx] = true
	}

	room.Changelings = room.Changelings[:0]
	for i, id := range room.Members {
		u := users[id]
		u.Burned = false
		if picked[i] {
			u.Role = models.RoleChangeling
			room.Changelings = append(room.Changelings, id)
		} else {
			u.Role = models.RoleInnocent
		}
	}
	return room.Changelings
}

// Reset returns every member to unassigned and empties the changeling set.
func Reset(room *models.Room, users map[string]*models.User) {
	room.Changelings = nil
	for _, id := range room.Members {
		if u := users[id]; u != nil {
			u.Role = models.RoleUnassigned
			u.Burned = false
		}
	}
}

// Convert makes target a changeling. It reports false when target already was
// one, in which case nothing changes.
func Convert(room *models.Room, target *models.User) bool {
	if room.IsChangeling(target.ID) {
		target.Role = models.RoleChangeling
		return false
	}
	room.Changelings = append(room.Changelings, target.ID)
	target.Role = models.RoleChangeling
	return true
}

// Forget removes userID from the changeling set, if present.
func Forget(room *models.Room, userID string) {
	kept := room.Changelings[:0]
	for _, id := range room.Changelings {
		if id != userID {
			kept = append(kept, id)
		}
	}
	room.Changelings = kept
}
