package game

import "errors"

// Invalid actions. They are reported to the acting participant only and
// never reach the shared room.
var (
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrTooManyPlayers   = errors.New("too many players")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyJoined    = errors.New("player already in room")
	ErrGameStarted      = errors.New("game already started")
	ErrGameFinished     = errors.New("game already finished")
	ErrWrongPhase       = errors.New("action not allowed in this phase")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrDeadActor        = errors.New("dead players cannot act")
	ErrDeadTarget       = errors.New("target is not alive")
	ErrSelfTarget       = errors.New("cannot target yourself")
	ErrNotLeader        = errors.New("only the killer leader can plan")
	ErrInvalidPlan      = errors.New("invalid plan")
	ErrKillerTarget     = errors.New("killers cannot target their own faction")
	ErrNotPlannedTarget = errors.New("target is not tonight's planned target")
	ErrNoNightAction    = errors.New("role has no night action")
	ErrAlreadyActed     = errors.New("already acted tonight")
	ErrRepeatHeal       = errors.New("cannot heal the same player two nights in a row")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyNominated = errors.New("already nominated today")
	ErrNotCandidate     = errors.New("player is not on trial")
)
