package state

import (
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
)

// FinishedState 游戏结束，只记录一次战绩
type FinishedState struct {
	RoomStateBase
	recorded bool
}

func (s *FinishedState) OnEnter() {
	s.RoomStateBase.OnEnter()
	logger.Log.Infof("房间 %s 游戏结束, winner %s", s.Room.GetID(), s.Room.Snapshot().Winner)
}

func (s *FinishedState) OnUpdate() {
	s.RoomStateBase.OnUpdate()
	if s.recorded {
		return
	}
	if err := s.Room.Record(s.Room.Snapshot()); err != nil {
		logger.Log.Errorf("房间 %s record game failed: %v", s.Room.GetID(), err)
		return
	}
	s.recorded = true
}

func (s *FinishedState) HandleAction(player Player, actionData []byte) error {
	return game.ErrGameFinished
}
