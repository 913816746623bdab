// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/room"
	"github.com/wfunc/kruivka/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	room, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	// Get a thread-safe copy of the sessions
	for _, s := range room.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			// the read loop notices the broken connection and detaches it
			logger.Log.Debugf("broadcast %d to session %s: %v", msgID, s.GetID(), err)
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("broadcast %d to session %s: %v", msgID, s.GetID(), err)
		}
	}
	return nil
}

// BroadcastToUsers reaches every connection of the given participants.
func (b *RoomBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error {
	for _, userID := range userIDs {
		for _, s := range b.sessionManager.GetByUserID(userID) {
			if err := s.Send(msgID, data); err != nil {
				logger.Log.Debugf("send %d to %s: %v", msgID, userID, err)
			}
		}
	}
	return nil
}
