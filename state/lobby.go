package state

import (
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
)

// LobbyState 等待玩家加入
type LobbyState struct {
	RoomStateBase
}

func (s *LobbyState) HandleAction(player Player, actionData []byte) error {
	action, err := decodeAction(actionData)
	if err != nil {
		return err
	}
	snap := s.Room.Snapshot()
	switch action.Type {
	case "ready":
		return s.commit(game.SetReady(snap, player.GetID(), action.Ready))
	case "speak":
		return s.speak(player, action.Message)
	case "add_bots":
		if player.GetID() != snap.HostID {
			return ErrNotHost
		}
		ids, names := s.Room.Brain().NewBots(snap, game.MaxPlayers-len(snap.Players))
		return s.commit(game.AddBots(snap, ids, names))
	case "start":
		if player.GetID() != snap.HostID {
			return ErrNotHost
		}
		return s.start(snap)
	}
	return ErrActionNotAllowed
}

// start deals the roles. A bot don plans in the same write so the game
// never waits on it.
func (s *LobbyState) start(snap *game.Room) error {
	p, err := game.Deal(snap, s.Room.Brain().Rand())
	if err != nil {
		return err
	}
	dealt, err := p.Apply(snap)
	if err != nil {
		return err
	}
	if don := dealt.AliveWithRole(game.RoleDon); don != nil && don.IsBot() {
		targets := s.Room.Brain().InitialPlan(dealt)
		plan, err := game.SubmitPlan(dealt, don.UserID, targets)
		if err != nil {
			return err
		}
		p = p.Merge(plan)
		logger.Log.Infof("房间 %s bot don %s planned %v", s.Room.GetID(), don.UserID, targets)
	}
	if err := s.Room.Commit(p); err != nil {
		return err
	}
	s.Room.Report(Event{Kind: EventGameStarted})
	return nil
}
