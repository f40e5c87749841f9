package models

import (
	"errors"
)

// Request-local failures. None of them mutate state.
var (
	ErrAlreadyInRoom = errors.New("user already in a room")
	ErrNotFound      = errors.New("room not found")
	ErrFull          = errors.New("room is full")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotTurnOwner  = errors.New("not the turn owner")
	ErrInvalidState  = errors.New("action not valid in current state")
	ErrInvalidTarget = errors.New("invalid target")
	ErrBadRequest    = errors.New("malformed request")
)

// 客户端错误码
const (
	CodeAlreadyJoined = "err_already_joined"
	CodeRoomNotFound  = "err_room_not_found"
	CodeUserLimit     = "err_user_limit"
	CodeNotAuthorized = "err_not_authorized"
	CodeNotTurnOwner  = "err_not_turn_owner"
	CodeInvalidState  = "err_invalid_state"
	CodeInvalidTarget = "err_invalid_target"
	CodeBadRequest    = "err_bad_request"
	CodeInternal      = "err_internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInRoom, CodeAlreadyJoined},
	{ErrNotFound, CodeRoomNotFound},
	{ErrFull, CodeUserLimit},
	{ErrNotAuthorized, CodeNotAuthorized},
	{ErrNotTurnOwner, CodeNotTurnOwner},
	{ErrInvalidState, CodeInvalidState},
	{ErrInvalidTarget, CodeInvalidTarget},
	{ErrBadRequest, CodeBadRequest},
}

// ErrorKind maps err to the code sent to the client. Anything unrecognised,
// store failures included, is reported as internal.
func ErrorKind(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsRequestError reports whether err is one of the request-local kinds above.
func IsRequestError(err error) bool {
	return ErrorKind(err) != CodeInternal
}
