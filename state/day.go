package state

import (
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
)

// DayDiscussionState 白天轮流发言
type DayDiscussionState struct {
	RoomStateBase
	speaker int // speakerIndex the tick counter belongs to
}

func (s *DayDiscussionState) HandleAction(player Player, actionData []byte) error {
	action, err := decodeAction(actionData)
	if err != nil {
		return err
	}
	snap := s.Room.Snapshot()
	switch action.Type {
	case "nominate":
		return s.commit(game.Nominate(snap, player.GetID(), action.Target))
	case "speak":
		return s.speak(player, action.Message)
	case "pass":
		if !game.IsSpeaking(snap, player.GetID()) {
			return game.ErrNotYourTurn
		}
		return s.commit(game.PassTurn(snap))
	}
	return ErrActionNotAllowed
}

func (s *DayDiscussionState) OnUpdate() {
	snap := s.Room.Snapshot()
	if snap.SpeakerIndex != s.speaker {
		// new speaker, new window
		s.speaker = snap.SpeakerIndex
		s.ticks = 0
	}
	s.RoomStateBase.OnUpdate()

	t := s.Room.Timings()
	speaker := game.CurrentSpeaker(snap)
	switch {
	case speaker == nil || !speaker.Alive || s.ticks >= t.Discussion:
		s.pass(snap)
	case speaker.IsBot():
		if s.ticks == t.BotSpeak {
			s.botTalk(snap, speaker)
		}
		if s.ticks >= t.BotPass {
			s.pass(s.Room.Snapshot())
		}
	}
}

func (s *DayDiscussionState) pass(snap *game.Room) {
	if err := s.commit(game.PassTurn(snap)); err != nil {
		logger.Log.Warnf("房间 %s pass turn failed: %v", s.Room.GetID(), err)
	}
}

// botTalk lets a speaking bot accuse someone or just say a line.
func (s *DayDiscussionState) botTalk(snap *game.Room, speaker *game.Player) {
	brain := s.Room.Brain()
	if target, ok := brain.Nomination(snap, speaker.UserID); ok {
		if err := s.commit(game.Nominate(snap, speaker.UserID, target)); err != nil {
			logger.Log.Debugf("房间 %s bot %s nominate: %v", s.Room.GetID(), speaker.UserID, err)
			return
		}
		name := target
		if p := snap.Player(target); p != nil {
			name = p.Name
		}
		s.say(speaker.UserID, brain.NominationSpeech(name))
		return
	}
	s.say(speaker.UserID, brain.Speech(snap, speaker.UserID))
}

func (s *DayDiscussionState) say(userID, msg string) {
	if err := s.commit(game.SetMessage(s.Room.Snapshot(), userID, msg)); err != nil {
		logger.Log.Debugf("房间 %s bot %s speak: %v", s.Room.GetID(), userID, err)
	}
}

// DayVotingState 审判投票
type DayVotingState struct {
	RoomStateBase
	botsVoted bool
}

func (s *DayVotingState) HandleAction(player Player, actionData []byte) error {
	action, err := decodeAction(actionData)
	if err != nil {
		return err
	}
	if action.Type != "vote" {
		return ErrActionNotAllowed
	}
	return s.commit(game.CastVote(s.Room.Snapshot(), player.GetID(), action.Target))
}

func (s *DayVotingState) OnUpdate() {
	s.RoomStateBase.OnUpdate()
	t := s.Room.Timings()
	if !s.botsVoted && s.ticks >= t.VoteDelay {
		s.botsVoted = true
		s.botVotes()
	}
	if s.ticks < t.VoteDelay+t.VoteGrace {
		return
	}

	p, out, err := game.FinalizeVoting(s.Room.Snapshot())
	if err := s.commit(p, err); err != nil {
		logger.Log.Warnf("房间 %s finalize voting failed: %v", s.Room.GetID(), err)
		return
	}
	if out.Hanged != "" {
		s.Room.Report(Event{Kind: EventHanged, PlayerID: out.Hanged})
	}
	if out.Winner != game.FactionNone {
		s.Room.Report(Event{Kind: EventGameOver, Winner: out.Winner})
	}
}

func (s *DayVotingState) botVotes() {
	brain := s.Room.Brain()
	for _, p := range s.Room.Snapshot().SortedPlayers() {
		if !p.IsBot() || !p.Alive {
			continue
		}
		snap := s.Room.Snapshot()
		choice := brain.Vote(snap, p.UserID)
		if choice == "" {
			continue
		}
		if err := s.commit(game.CastVote(snap, p.UserID, choice)); err != nil {
			logger.Log.Debugf("房间 %s bot %s vote: %v", s.Room.GetID(), p.UserID, err)
		}
	}
}
