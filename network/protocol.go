package network

const (
	MsgTypeHeartbeat = 1
	MsgTypeLogin     = 2

	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103

	MsgTypePlayerAction = 202

	MsgTypeRoomState      = 301
	MsgTypeGameStart      = 303
	MsgTypeGameEnd        = 305
	MsgTypeReveal         = 306
	MsgTypeActionRejected = 307
	MsgTypeRoomClosed     = 308

	MsgTypeError = 400
)

// LoginRequest binds a connection to a participant. An empty UserID gets a
// fresh one.
type LoginRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type LoginResponse struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type CreateRoomRequest struct {
	Mode string `json:"mode"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// RoomResponse answers create, join and leave.
type RoomResponse struct {
	RoomID string `json:"roomId"`
}

type ActionRejected struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type ErrorMessage struct {
	Request uint16 `json:"request"`
	Error   string `json:"error"`
}

type GameEvent struct {
	RoomID string `json:"roomId"`
	Winner string `json:"winner,omitempty"`
}
