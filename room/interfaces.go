package room

import (
	"time"
)

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// Metrics is the part of the monitor the rooms report to.
type Metrics interface {
	SetActiveRooms(count int)
	IncGamesStarted()
	IncGamesFinished(winner string)
	IncEliminations(cause string)
	IncSaves()
	IncStaleTransitions()
	ObserveResolution(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SetActiveRooms(int)                {}
func (nopMetrics) IncGamesStarted()                  {}
func (nopMetrics) IncGamesFinished(string)           {}
func (nopMetrics) IncEliminations(string)            {}
func (nopMetrics) IncSaves()                         {}
func (nopMetrics) IncStaleTransitions()              {}
func (nopMetrics) ObserveResolution(d time.Duration) {}
