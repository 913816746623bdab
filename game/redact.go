package game

// Redact returns the room as viewer may see it. Roles stay hidden except
// the viewer's own, fellow killers for a killer, dead players in open mode,
// and everyone once the game is over. The plan and the night actions are
// killer knowledge. Night actions of other roles stay hidden from everyone
// but the actor, and only the doctor sees the last patient.
func Redact(r *Room, viewer string) *Room {
	v := r.Clone()
	if v == nil || v.Status == StatusFinished || v.Status == StatusLobby {
		return v
	}

	me := r.Player(viewer)
	killer := me != nil && me.Role.IsKiller()

	for id, p := range v.Players {
		switch {
		case id == viewer:
		case killer && p.Role.IsKiller():
		case !p.Alive && v.GameMode == ModeOpen:
		default:
			p.Role = ""
		}
	}

	actions := map[string]string{}
	for actor, t := range v.NightActions {
		a := r.Player(actor)
		if actor == viewer || (killer && a != nil && a.Role.IsKiller()) {
			actions[actor] = t
		}
	}
	v.NightActions = actions
	if !killer {
		v.NkvdPlan = []string{}
	}
	if me == nil || me.Role != RoleDoctor {
		v.LastHealedTarget = ""
	}
	return v
}
