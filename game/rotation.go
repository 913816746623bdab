package game

// CurrentSpeaker returns the player at speakerIndex in rotation order.
func CurrentSpeaker(r *Room) *Player {
	players := r.SortedPlayers()
	if r.SpeakerIndex < 0 || r.SpeakerIndex >= len(players) {
		return nil
	}
	return players[r.SpeakerIndex]
}

// IsSpeaking is the audio boundary signal: true while it is userID's turn.
func IsSpeaking(r *Room, userID string) bool {
	if r.Phase != PhaseDayDiscussion {
		return false
	}
	s := CurrentSpeaker(r)
	return s != nil && s.Alive && s.UserID == userID
}

// FirstAliveIndex returns the rotation index of the first living player,
// or the player count when nobody is alive.
func FirstAliveIndex(r *Room) int {
	return nextAlive(r.SortedPlayers(), 0)
}

func nextAlive(players []*Player, from int) int {
	i := from
	for i < len(players) && !players[i].Alive {
		i++
	}
	return i
}

// NextNightPhase picks night_planning once the plan queue is used up.
func NextNightPhase(r *Room) Phase {
	if r.PlanIndex >= len(r.NkvdPlan) {
		return PhaseNightPlanning
	}
	return PhaseNight
}

// PassTurn ends the current speaker's turn. When no living player is left
// in the rotation the day ends: a trial if there was a night kill and at
// least one accusation, otherwise straight to the next night.
func PassTurn(r *Room) (Patch, error) {
	if r.Status == StatusFinished {
		return Patch{}, ErrGameFinished
	}
	if r.Phase != PhaseDayDiscussion {
		return Patch{}, ErrWrongPhase
	}

	p := NewPatch()
	p.expect("phase", PhaseDayDiscussion)
	p.expect("speakerIndex", r.SpeakerIndex)
	p.expect("dayNumber", r.DayNumber)

	players := r.SortedPlayers()
	for _, player := range players {
		if player.Message != "" {
			p.set(Path("players", player.UserID, "message"), "")
		}
	}

	next := nextAlive(players, r.SpeakerIndex+1)
	if next < len(players) {
		p.set("speakerIndex", next)
		return p, nil
	}

	if r.WasNightKill && len(Candidates(r)) > 0 {
		p.set("phase", PhaseDayVoting)
		p.set("votes", map[string]string{})
		p.set("infoMessage", "Voting!")
		return p, nil
	}

	info := "No one was nominated. Everyone sleeps."
	if !r.WasNightKill {
		info = "There was no killing. The trial is cancelled."
	}
	p.set("phase", NextNightPhase(r))
	p.set("speakerIndex", 0)
	p.set("nominations", map[string]string{})
	p.set("infoMessage", info)
	return p, nil
}
