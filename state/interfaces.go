// state/interfaces.go
package state

import (
	"github.com/wfunc/kruivka/bot"
	"github.com/wfunc/kruivka/game"
)

// Player defines the minimal interface for a participant that a state needs to interact with.
type Player interface {
	GetID() string
}

// RoomContext is what a phase state needs from the room driver.
// This breaks the import cycle between room and state.
type RoomContext interface {
	GetID() string
	// Snapshot is the latest room observed from the store.
	Snapshot() *game.Room
	// Commit writes one transition atomically. A stale transition is a no-op.
	Commit(p game.Patch) error
	Brain() *bot.Brain
	Timings() Timings
	// Reveal privately tells the sheriff the result of a check.
	Reveal(userID string, r *game.Reveal)
	Report(ev Event)
	// Record stores a finished game.
	Record(r *game.Room) error
}

// EventKind 结算事件类型
type EventKind string

const (
	EventGameStarted EventKind = "game_started"
	EventNightKill   EventKind = "night_kill"
	EventSaved       EventKind = "saved"
	EventHanged      EventKind = "hanged"
	EventGameOver    EventKind = "game_over"
)

// Event is an outcome of a resolution, reported for logs and metrics.
type Event struct {
	Kind     EventKind
	PlayerID string
	Winner   game.Faction
}

// Timings are phase windows in ticks (1 tick = 1 second).
type Timings struct {
	Discussion  int // per speaker
	BotSpeak    int
	BotPass     int
	NightZero   int // human don plan timeout
	Planning    int
	BotPlan     int
	Night       int
	VoteDelay   int
	VoteGrace   int
	InfoDisplay int
}

func DefaultTimings() Timings {
	return Timings{
		Discussion:  30,
		BotSpeak:    2,
		BotPass:     5,
		NightZero:   60,
		Planning:    30,
		BotPlan:     3,
		Night:       15,
		VoteDelay:   5,
		VoteGrace:   3,
		InfoDisplay: 3,
	}
}
