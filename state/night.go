package state

import (
	"errors"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
)

// NightZeroState 认识之夜：don 制定三晚的刺杀计划
type NightZeroState struct {
	RoomStateBase
}

func (s *NightZeroState) HandleAction(player Player, actionData []byte) error {
	action, err := decodeAction(actionData)
	if err != nil {
		return err
	}
	if action.Type != "plan" {
		return ErrActionNotAllowed
	}
	return s.commit(game.SubmitPlan(s.Room.Snapshot(), player.GetID(), action.Targets))
}

func (s *NightZeroState) OnUpdate() {
	s.RoomStateBase.OnUpdate()
	snap := s.Room.Snapshot()
	don := snap.AliveWithRole(game.RoleDon)
	if don == nil {
		return
	}
	if !don.IsBot() && s.ticks < s.Room.Timings().NightZero {
		return
	}
	targets := s.Room.Brain().InitialPlan(snap)
	if err := s.commit(game.SubmitPlan(snap, don.UserID, targets)); err != nil {
		logger.Log.Warnf("房间 %s auto plan failed: %v", s.Room.GetID(), err)
	}
}

// NightPlanningState 计划用完后由首领补充当晚目标
type NightPlanningState struct {
	RoomStateBase
}

func (s *NightPlanningState) HandleAction(player Player, actionData []byte) error {
	action, err := decodeAction(actionData)
	if err != nil {
		return err
	}
	if action.Type != "target" {
		return ErrActionNotAllowed
	}
	return s.commit(game.AppendPlan(s.Room.Snapshot(), player.GetID(), action.Target))
}

func (s *NightPlanningState) OnUpdate() {
	s.RoomStateBase.OnUpdate()
	snap := s.Room.Snapshot()
	leader := snap.ActiveLeader()
	if leader == nil {
		return
	}
	t := s.Room.Timings()
	due := s.ticks >= t.Planning || (leader.IsBot() && s.ticks >= t.BotPlan)
	if !due {
		return
	}
	target := s.Room.Brain().PlanningTarget(snap)
	if target == "" {
		return
	}
	if err := s.commit(game.AppendPlan(snap, leader.UserID, target)); err != nil {
		logger.Log.Warnf("房间 %s auto target failed: %v", s.Room.GetID(), err)
	}
}

// NightState 夜间行动
type NightState struct {
	RoomStateBase
	botsDone bool
}

func (s *NightState) HandleAction(player Player, actionData []byte) error {
	action, err := decodeAction(actionData)
	if err != nil {
		return err
	}
	if action.Type != "action" {
		return ErrActionNotAllowed
	}
	p, reveal, err := game.SubmitNightAction(s.Room.Snapshot(), player.GetID(), action.Target)
	if err := s.commit(p, err); err != nil {
		return err
	}
	if reveal != nil {
		s.Room.Reveal(player.GetID(), reveal)
	}
	return nil
}

func (s *NightState) OnUpdate() {
	s.RoomStateBase.OnUpdate()
	if !s.botsDone {
		s.botsDone = true
		s.botActions()
	}

	snap := s.Room.Snapshot()
	if !game.NightComplete(snap) && s.ticks < s.Room.Timings().Night {
		return
	}
	p, out, err := game.EndNight(snap)
	if err := s.commit(p, err); err != nil {
		logger.Log.Warnf("房间 %s end night failed: %v", s.Room.GetID(), err)
		return
	}
	switch {
	case out.Killed != "":
		s.Room.Report(Event{Kind: EventNightKill, PlayerID: out.Killed})
	case out.Saved != "":
		s.Room.Report(Event{Kind: EventSaved, PlayerID: out.Saved})
	}
	if out.Winner != game.FactionNone {
		s.Room.Report(Event{Kind: EventGameOver, Winner: out.Winner})
	}
}

// botActions submits the night actions of every living bot.
func (s *NightState) botActions() {
	brain := s.Room.Brain()
	for _, p := range s.Room.Snapshot().SortedPlayers() {
		if !p.IsBot() || !p.Alive {
			continue
		}
		snap := s.Room.Snapshot()
		var target string
		switch {
		case p.Role.IsKiller():
			target = snap.CurrentTarget()
		case p.Role == game.RoleDoctor:
			target = brain.Heal(snap, p.UserID)
		case p.Role == game.RoleSheriff:
			target = brain.Investigate(snap, p.UserID)
		}
		if target == "" {
			continue
		}
		patch, _, err := game.SubmitNightAction(snap, p.UserID, target)
		if err := s.commit(patch, err); err != nil && !errors.Is(err, game.ErrDeadTarget) {
			logger.Log.Debugf("房间 %s bot %s night action: %v", s.Room.GetID(), p.UserID, err)
		}
	}
}
