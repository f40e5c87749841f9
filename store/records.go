package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/changeling/models"
)

// Key layout shared by every backend.
const (
	RoomIndexKey = "rooms"
)

func RoomKey(roomID string) string        { return "room:" + roomID }
func MembersKey(roomID string) string     { return "room:" + roomID + ":members" }
func ChangelingsKey(roomID string) string { return "room:" + roomID + ":changelings" }
func UserKey(userID string) string        { return "user:" + userID }

// Records reads and writes typed room and user records on top of a Store.
type Records struct {
	Store Store
}

func NewRecords(s Store) *Records {
	return &Records{Store: s}
}

// LoadRoom reads the room record together with its members and changelings.
// It returns models.ErrNotFound when the room does not exist.
func (r *Records) LoadRoom(ctx context.Context, roomID string) (*models.Room, error) {
	raw, err := r.Store.Get(ctx, RoomKey(roomID))
	if errors.Is(err, ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	if room.Members, err = r.Store.ListRead(ctx, MembersKey(roomID)); err != nil {
		return nil, fmt.Errorf("load members of %s: %w", roomID, err)
	}
	if room.Changelings, err = r.Store.ListRead(ctx, ChangelingsKey(roomID)); err != nil {
		return nil, fmt.Errorf("load changelings of %s: %w", roomID, err)
	}
	return &room, nil
}

// LoadUser returns (nil, nil) for an unknown user.
func (r *Records) LoadUser(ctx context.Context, userID string) (*models.User, error) {
	raw, err := r.Store.Get(ctx, UserKey(userID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return &u, nil
}

// LoadUsers loads each id. A missing record is an error: every member must
// have one.
func (r *Records) LoadUsers(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		u, err := r.LoadUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, fmt.Errorf("member %s has no user record", id)
		}
		users[id] = u
	}
	return users, nil
}

// RoomIDs lists the live rooms.
func (r *Records) RoomIDs(ctx context.Context) ([]string, error) {
	return r.Store.ListRead(ctx, RoomIndexKey)
}

// PutRoom queues the room record (not its lists).
func PutRoom(w Writer, room *models.Room) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.ID, err)
	}
	w.Set(RoomKey(room.ID), raw)
	return nil
}

// PutUser queues the user record.
func PutUser(w Writer, u *models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	w.Set(UserKey(u.ID), raw)
	return nil
}

// EncodeRoom is used for the SETNX that reserves a fresh room id.
func EncodeRoom(room *models.Room) ([]byte, error) {
	return json.Marshal(room)
}
