// room/room.go
package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
	"github.com/wfunc/changeling/roles"
	"github.com/wfunc/changeling/state"
	"github.com/wfunc/changeling/store"
)

const (
	DefaultCapacity = 5
	DefaultIDLength = 5

	idAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxIDRetries = 32
	lockStripes  = 256
)

// Options 房间注册表配置
type Options struct {
	Capacity int
	IDLength int
}

// Snapshot is a room together with the user records of its members, loaded
// inside the room's critical section.
type Snapshot struct {
	Room  *models.Room
	Users map[string]*models.User
}

// Member returns the user record of a current member, or nil.
func (s *Snapshot) Member(userID string) *models.User {
	if !s.Room.IsMember(userID) {
		return nil
	}
	return s.Users[userID]
}

// MemberUsers lists the members in join order.
func (s *Snapshot) MemberUsers() []*models.User {
	out := make([]*models.User, 0, len(s.Room.Members))
	for _, id := range s.Room.Members {
		out = append(out, s.Users[id])
	}
	return out
}

// LeaveResult describes what leave_room changed. Write queues the matching
// store updates.
type LeaveResult struct {
	User         *models.User
	Index        int
	Destroyed    bool
	AdminChanged bool

	room   *models.Room
	userID string
}

// Write queues the removal onto w. For a surviving room it writes the room
// record as it stands when Write is called, so callers may keep mutating the
// room first.
func (res *LeaveResult) Write(w store.Writer) error {
	roomID, userID := res.room.ID, res.userID
	if res.Destroyed {
		w.Delete(store.RoomKey(roomID), store.MembersKey(roomID), store.ChangelingsKey(roomID), store.UserKey(userID))
		w.ListRemove(store.RoomIndexKey, roomID)
		return nil
	}
	w.ListRemove(store.MembersKey(roomID), userID)
	w.ListRemove(store.ChangelingsKey(roomID), userID)
	w.Delete(store.UserKey(userID))
	return store.PutRoom(w, res.room)
}

// Registry owns room creation, admission, admin designation and destruction.
// All mutations for one room run inside that room's critical section.
type Registry struct {
	records *store.Records
	opts    Options
	locks   [lockStripes]sync.Mutex
	newID   func(n int) string
}

func NewRegistry(st store.Store, opts Options) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.IDLength <= 0 {
		opts.IDLength = DefaultIDLength
	}
	return &Registry{
		records: store.NewRecords(st),
		opts:    opts,
		newID:   randomID,
	}
}

func randomID(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// Capacity is the maximum number of members per room.
func (r *Registry) Capacity() int { return r.opts.Capacity }

// Records exposes the typed store used by the registry.
func (r *Registry) Records() *store.Records { return r.records }

// lock enters the critical section of roomID. Rooms are hashed onto a fixed
// set of mutexes; a goroutine never holds more than one.
func (r *Registry) lock(roomID string) func() {
	mu := &r.locks[xxhash.Sum64String(roomID)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// LookupUser returns the user record or nil when the user is unknown.
func (r *Registry) LookupUser(ctx context.Context, userID string) (*models.User, error) {
	return r.records.LoadUser(ctx, userID)
}

func (r *Registry) load(ctx context.Context, roomID string) (*Snapshot, error) {
	room, err := r.records.LoadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	users, err := r.records.LoadUsers(ctx, room.Members)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Room: room, Users: users}, nil
}

// WithRoom loads roomID and runs fn inside its critical section. It fails with
// models.ErrNotFound when the room does not exist.
func (r *Registry) WithRoom(ctx context.Context, roomID string, fn func(snap *Snapshot) error) error {
	unlock := r.lock(roomID)
	defer unlock()

	snap, err := r.load(ctx, roomID)
	if err != nil {
		return err
	}
	return fn(snap)
}

// Commit applies the writes queued by fn as one atomic unit.
func (r *Registry) Commit(ctx context.Context, fn func(w store.Writer) error) error {
	return r.records.Store.Atomic(ctx, fn)
}

// CreateRoom allocates a fresh id and creates a lobby with admin as its only
// member. fn runs inside the new room's critical section once the room is
// committed.
func (r *Registry) CreateRoom(ctx context.Context, admin *models.User, fn func(snap *Snapshot) error) error {
	existing, err := r.records.LoadUser(ctx, admin.ID)
	if err != nil {
		return err
	}
	if existing.InRoom() {
		return models.ErrAlreadyInRoom
	}

	for attempt := 0; attempt < maxIDRetries; attempt++ {
		roomID := r.newID(r.opts.IDLength)
		created, err := r.tryCreate(ctx, roomID, admin, fn)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		logger.Log.Debugf("Room id %s already taken, retrying", roomID)
	}
	return fmt.Errorf("no free room id after %d attempts", maxIDRetries)
}

func (r *Registry) tryCreate(ctx context.Context, roomID string, admin *models.User, fn func(snap *Snapshot) error) (bool, error) {
	unlock := r.lock(roomID)
	defer unlock()

	room := &models.Room{
		ID:        roomID,
		Admin:     admin.ID,
		TurnState: models.StateLobby,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := store.EncodeRoom(room)
	if err != nil {
		return false, err
	}
	ok, err := r.records.Store.SetNX(ctx, store.RoomKey(roomID), raw)
	if err != nil || !ok {
		return false, err
	}

	user := *admin
	user.RoomID = roomID
	user.Role = models.RoleUnassigned
	user.Burned = false
	err = r.Commit(ctx, func(w store.Writer) error {
		w.ListAppend(store.MembersKey(roomID), user.ID)
		w.ListAppend(store.RoomIndexKey, roomID)
		return store.PutUser(w, &user)
	})
	if err != nil {
		if delErr := r.records.Store.Delete(ctx, store.RoomKey(roomID)); delErr != nil {
			logger.Log.Errorf("Failed to release room id %s: %v", roomID, delErr)
		}
		return false, err
	}

	room.Members = []string{user.ID}
	*admin = user
	snap := &Snapshot{Room: room, Users: map[string]*models.User{user.ID: admin}}
	if fn != nil {
		return true, fn(snap)
	}
	return true, nil
}

// Join admits user into the room held by snap. Call it inside WithRoom.
func (r *Registry) Join(ctx context.Context, snap *Snapshot, user *models.User) error {
	if user.InRoom() || snap.Room.IsMember(user.ID) {
		return models.ErrAlreadyInRoom
	}
	if len(snap.Room.Members) >= r.opts.Capacity {
		return models.ErrFull
	}

	joined := *user
	joined.RoomID = snap.Room.ID
	joined.Role = models.RoleUnassigned
	joined.Burned = false
	err := r.Commit(ctx, func(w store.Writer) error {
		w.ListAppend(store.MembersKey(snap.Room.ID), joined.ID)
		return store.PutUser(w, &joined)
	})
	if err != nil {
		return err
	}

	*user = joined
	snap.Room.Members = append(snap.Room.Members, user.ID)
	snap.Users[user.ID] = user
	return nil
}

// Leave removes userID from the room held by snap, promotes a new admin when
// needed and marks the room destroyed once it is empty. Only snap changes;
// nothing reaches the store until the caller commits res.Write. Call it
// inside WithRoom.
func (r *Registry) Leave(snap *Snapshot, userID string) (*LeaveResult, error) {
	room := snap.Room
	idx := room.IndexOf(userID)
	if idx < 0 {
		return nil, models.ErrNotAuthorized
	}
	res := &LeaveResult{User: snap.Users[userID], Index: idx, room: room, userID: userID}

	next := *room
	next.Members = append(append([]string{}, room.Members[:idx]...), room.Members[idx+1:]...)
	next.Changelings = append([]string{}, room.Changelings...)
	roles.Forget(&next, userID)
	state.MemberRemoved(&next, idx)

	if len(next.Members) == 0 {
		res.Destroyed = true
	} else if room.Admin == userID {
		// the member who joined after the admin, wrapping to the front
		next.Admin = next.Members[idx%len(next.Members)]
		res.AdminChanged = true
	}
	*room = next
	delete(snap.Users, userID)
	return res, nil
}

// RequireMember fails with models.ErrNotAuthorized unless userID is a member.
func RequireMember(snap *Snapshot, userID string) error {
	if !snap.Room.IsMember(userID) {
		return models.ErrNotAuthorized
	}
	return nil
}

// RequireAdmin fails with models.ErrNotAuthorized unless userID is the admin.
func RequireAdmin(snap *Snapshot, userID string) error {
	if err := RequireMember(snap, userID); err != nil {
		return err
	}
	if snap.Room.Admin != userID {
		return models.ErrNotAuthorized
	}
	return nil
}

// List summarises every live room. It reads without entering any critical
// section, so the result may be slightly stale.
func (r *Registry) List(ctx context.Context) ([]models.RoomSummary, error) {
	ids, err := r.records.RoomIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.RoomSummary, 0, len(ids))
	for _, id := range ids {
		room, err := r.records.LoadRoom(ctx, id)
		if err != nil {
			logger.Log.Debugf("Skipping room %s while listing: %v", id, err)
			continue
		}
		out = append(out, models.RoomSummary{
			RoomID:    room.ID,
			Admin:     room.Admin,
			TurnState: room.TurnState,
			Members:   len(room.Members),
			Turn:      room.Turn,
		})
	}
	return out, nil
}

// Count returns the number of live rooms.
func (r *Registry) Count(ctx context.Context) (int, error) {
	ids, err := r.records.RoomIDs(ctx)
	return len(ids), err
}
