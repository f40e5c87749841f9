package network

import (
	"encoding/json"

	"github.com/wfunc/changeling/models"
)

// 客户端请求
const (
	ReqHostGame    = "req_host_game"
	ReqJoinGame    = "req_join_game"
	ReqLeaveGame   = "req_leave_game"
	ReqStartGame   = "req_start_game"
	ReqNextTurn    = "req_next_turn"
	ReqBurnPlayer  = "req_burn_player"
	ReqConvert     = "req_conv_changling"
	ReqRestartGame = "req_restart_game"
	ReqHeartbeat   = "req_heartbeat"
)

// 服务端响应与推送
const (
	RespAckHost     = "resp_ack_host"
	RespAckJoin     = "resp_ack_join"
	RespSyncPlayers = "resp_sync_players"
	RespGameState   = "resp_syn_gamestate"
	RespPlayerLeave = "resp_player_leave"
	RespError       = "error_occured"
)

// Request is one decoded inbound message, tagged with the sender.
type Request struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Sender  string          `json:"-"`
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (r *Request) Decode(v any) error {
	if len(r.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(r.Payload, v)
}

// Message is one outbound message.
type Message struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Request payloads.

type HostGamePayload struct {
	Name     string `json:"name"`
	Portrait string `json:"portrait"`
}

type JoinGamePayload struct {
	Name     string `json:"name"`
	Portrait string `json:"portrait"`
	RoomID   string `json:"roomID"`
}

type TargetPayload struct {
	UserID string `json:"user_id"`
}

// Response payloads.

type AckHostPayload struct {
	RoomID string `json:"room_id"`
	models.PlayerData
}

type AckJoinPayload struct {
	RoomID string `json:"roomID"`
	models.PlayerData
}

type SyncPlayersPayload struct {
	Players []models.PlayerData `json:"players"`
}

type PlayerLeavePayload struct {
	UserID string `json:"user_id"`
	Admin  string `json:"admin"`
}

type ErrorPayload struct {
	ErrType string `json:"err_type"`
}
