// models/models.go
package models

import (
	"time"
)

// Role 玩家身份。服务端与所有客户端共享这一份定义。
type Role string

const (
	RoleUnassigned Role = "unassigned"
	RoleInnocent   Role = "innocent"
	RoleChangeling Role = "changeling"
)

// TurnState 房间的回合状态
type TurnState string

const (
	StateLobby      TurnState = "lobby"
	StateInProgress TurnState = "in_progress"
	StateFinished   TurnState = "finished"
)

// Outcome 对局结果，仅在 StateFinished 时有意义
type Outcome string

const (
	OutcomeNone              Outcome = ""
	OutcomeInnocentVictory   Outcome = "innocent_victory"
	OutcomeChangelingVictory Outcome = "changeling_victory"
	OutcomeAbandoned         Outcome = "abandoned"
)

// User 玩家记录。RoomID 只是反向引用，房间不在这里持有。
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PortraitName string `json:"portrait_name"`
	Role         Role   `json:"role"`
	RoomID       string `json:"room_id,omitempty"`
	Burned       bool   `json:"burned,omitempty"`
}

// InRoom reports whether the user is currently bound to a room.
func (u *User) InRoom() bool {
	return u != nil && u.RoomID != ""
}

// Room 房间记录。Members 与 Changelings 存放在独立的有序列表中，
// 不随记录一起序列化。
type Room struct {
	ID             string    `json:"id"`
	Admin          string    `json:"admin"`
	TurnState      TurnState `json:"turn_state"`
	Turn           int       `json:"turn"`
	RealTurn       int       `json:"real_turn"`
	TurnOwnerIndex int       `json:"turn_owner_index"`
	Outcome        Outcome   `json:"outcome,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	Members     []string `json:"-"`
	Changelings []string `json:"-"`
}

// IndexOf returns the join-order index of userID, or -1.
func (r *Room) IndexOf(userID string) int {
	for i, id := range r.Members {
		if id == userID {
			return i
		}
	}
	return -1
}

// IsMember reports whether userID is in Members.
func (r *Room) IsMember(userID string) bool {
	return r.IndexOf(userID) >= 0
}

// IsChangeling reports whether userID is in Changelings.
func (r *Room) IsChangeling(userID string) bool {
	for _, id := range r.Changelings {
		if id == userID {
			return true
		}
	}
	return false
}

// TurnOwner returns the user id owning the current turn, or "" for an empty room.
func (r *Room) TurnOwner() string {
	if r.TurnOwnerIndex < 0 || r.TurnOwnerIndex >= len(r.Members) {
		return ""
	}
	return r.Members[r.TurnOwnerIndex]
}

// PlayerData 下发给客户端的玩家信息（字段名沿用客户端约定）
type PlayerData struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	PortraitName string `json:"portraitName"`
	PlayerRole   Role   `json:"playerRole"`
	Admin        bool   `json:"admin"`
	IsYou        bool   `json:"is_you"`
	Burned       bool   `json:"burned"`
}

// GameState 同一房间内所有玩家共享的对局视图
type GameState struct {
	RoomID         string    `json:"room_id"`
	TurnState      TurnState `json:"game_state"`
	Turn           int       `json:"turn"`
	RealTurn       int       `json:"real_turn"`
	TurnOwnerIndex int       `json:"turn_owner_index"`
	TurnOwner      string    `json:"turn_owner"`
	Outcome        Outcome   `json:"outcome,omitempty"`
}

// GameRecord 对局结束后归档的记录
type GameRecord struct {
	RoomID    string       `json:"room_id"`
	Outcome   Outcome      `json:"outcome"`
	Turns     int          `json:"turns"`
	RealTurns int          `json:"real_turns"`
	Players   []PlayerInfo `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
}

// PlayerInfo 玩家信息（用于游戏记录）
type PlayerInfo struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Burned bool   `json:"burned"`
	Admin  bool   `json:"admin"`
}

// RoomSummary is the admin-facing description of a live room.
type RoomSummary struct {
	RoomID    string    `json:"room_id"`
	Admin     string    `json:"admin"`
	TurnState TurnState `json:"turn_state"`
	Members   int       `json:"members"`
	Turn      int       `json:"turn"`
}
