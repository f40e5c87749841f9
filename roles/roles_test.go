package roles

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/changeling/models"
)

func newRoom(n int) (*models.Room, map[string]*models.User) {
	room := &models.Room{ID: "R0001", Admin: "u0"}
	users := make(map[string]*models.User)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("u%d", i)
		room.Members = append(room.Members, id)
		users[id] = &models.User{ID: id, Username: id, RoomID: room.ID, Role: models.RoleUnassigned}
	}
	return room, users
}

// noShuffle keeps join order so the first members become changelings.
func noShuffle(int, func(i, j int)) {}

func TestAssign_EveryMemberGetsARole(t *testing.T) {
	for n := 1; n <= 5; n++ {
		room, users := newRoom(n)
		a := NewAssigner(1)
		picked := a.Assign(room, users)

		require.NotEmpty(t, picked, "n=%d", n)
		for _, id := range room.Members {
			assert.NotEqual(t, models.RoleUnassigned, users[id].Role)
		}
		for _, id := range picked {
			assert.True(t, room.IsMember(id))
			assert.Equal(t, models.RoleChangeling, users[id].Role)
		}
	}
}

func TestAssign_ClampsToLeaveAnInnocent(t *testing.T) {
	room, users := newRoom(3)
	a := &Assigner{Changelings: 10, Shuffle: noShuffle}
	picked := a.Assign(room, users)

	assert.Equal(t, []string{"u0", "u1"}, picked)
	assert.Equal(t, models.RoleInnocent, users["u2"].Role)
}

func TestAssign_ClearsPreviousGame(t *testing.T) {
	room, users := newRoom(4)
	room.Changelings = []string{"u3", "u2"}
	users["u3"].Role = models.RoleChangeling
	users["u2"].Role = models.RoleChangeling
	users["u2"].Burned = true

	a := &Assigner{Changelings: 1, Shuffle: noShuffle}
	a.Assign(room, users)

	assert.Equal(t, []string{"u0"}, room.Changelings)
	assert.Equal(t, models.RoleInnocent, users["u3"].Role)
	assert.False(t, users["u2"].Burned)
}

func TestAssign_IsUniform(t *testing.T) {
	counts := make(map[string]int)
	a := NewAssigner(1)
	for i := 0; i < 2000; i++ {
		room, users := newRoom(4)
		for _, id := range a.Assign(room, users) {
			counts[id]++
		}
	}
	for id, c := range counts {
		assert.InDelta(t, 500, c, 150, "member %s picked %d times", id, c)
	}
	assert.Len(t, counts, 4)
}

func TestConvert_Idempotent(t *testing.T) {
	room, users := newRoom(3)
	room.Changelings = []string{"u0"}
	users["u0"].Role = models.RoleChangeling

	assert.True(t, Convert(room, users["u1"]))
	assert.False(t, Convert(room, users["u1"]))
	assert.Equal(t, []string{"u0", "u1"}, room.Changelings)
	assert.Equal(t, models.RoleChangeling, users["u1"].Role)
}

func TestReset(t *testing.T) {
	room, users := newRoom(2)
	(&Assigner{Changelings: 1, Shuffle: noShuffle}).Assign(room, users)
	users["u1"].Burned = true

	Reset(room, users)
	assert.Empty(t, room.Changelings)
	for _, u := range users {
		assert.Equal(t, models.RoleUnassigned, u.Role)
		assert.False(t, u.Burned)
	}
}

func TestForget(t *testing.T) {
	room, _ := newRoom(3)
	room.Changelings = []string{"u0", "u2"}
	Forget(room, "u0")
	assert.Equal(t, []string{"u2"}, room.Changelings)
	Forget(room, "u1")
	assert.Equal(t, []string{"u2"}, room.Changelings)
}

func TestVisibleRole(t *testing.T) {
	room, users := newRoom(3)
	room.Changelings = []string{"u0", "u1"}
	users["u0"].Role = models.RoleChangeling
	users["u1"].Role = models.RoleChangeling
	users["u2"].Role = models.RoleInnocent

	// innocent recipient never sees a changeling
	for _, id := range room.Members {
		assert.Equal(t, models.RoleInnocent, VisibleRole(room, "u2", users[id]))
	}
	// changeling recipient sees the true role of every changeling
	assert.Equal(t, models.RoleChangeling, VisibleRole(room, "u0", users["u1"]))
	assert.Equal(t, models.RoleChangeling, VisibleRole(room, "u1", users["u0"]))
	assert.Equal(t, models.RoleInnocent, VisibleRole(room, "u0", users["u2"]))
}

func TestPlayerData(t *testing.T) {
	room, users := newRoom(2)
	users["u1"].PortraitName = "fox"
	pd := PlayerData(room, "u1", users["u1"])
	assert.True(t, pd.IsYou)
	assert.False(t, pd.Admin)
	assert.Equal(t, "fox", pd.PortraitName)

	pd = PlayerData(room, "u1", users["u0"])
	assert.True(t, pd.Admin)
	assert.False(t, pd.IsYou)
	assert.Equal(t, models.RoleUnassigned, pd.PlayerRole)
}
