package game

// Evaluate returns the winning faction as if every id in justDead were
// already eliminated, or FactionNone while the game goes on. A finished
// room keeps its winner.
func Evaluate(r *Room, justDead ...string) Faction {
	if r.Status == StatusFinished {
		return r.Winner
	}
	dead := map[string]bool{}
	for _, id := range justDead {
		dead[id] = true
	}

	killers, peaceful := 0, 0
	for _, p := range r.Players {
		if !p.Alive || dead[p.UserID] {
			continue
		}
		if p.Role.IsKiller() {
			killers++
		} else {
			peaceful++
		}
	}

	switch {
	case killers == 0:
		return FactionUPA
	case killers >= peaceful:
		return FactionNKVD
	}
	return FactionNone
}

// Finish is the terminal write for a decided game.
func Finish(w Faction) Patch {
	p := NewPatch()
	msg := "NKVD WINS"
	if w == FactionUPA {
		msg = "VICTORY FOR THE UPA!"
	}
	p.set("winner", w)
	p.set("status", StatusFinished)
	p.set("phase", PhaseFinished)
	p.set("infoMessage", msg)
	return p
}
