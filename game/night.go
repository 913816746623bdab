package game

import "fmt"

// Reveal is the sheriff's private check result. It is sent to the sheriff
// only and never written to the room.
type Reveal struct {
	TargetID string `json:"targetId"`
	Name     string `json:"name"`
	IsEnemy  bool   `json:"isEnemy"`
}

// SubmitPlan stores the don's three-night target queue during night zero.
func SubmitPlan(r *Room, actor string, targets []string) (Patch, error) {
	if r.Status == StatusFinished {
		return Patch{}, ErrGameFinished
	}
	if r.Phase != PhaseNightZero {
		return Patch{}, ErrWrongPhase
	}
	don := r.Player(actor)
	if don == nil {
		return Patch{}, ErrUnknownPlayer
	}
	if !don.Alive {
		return Patch{}, ErrDeadActor
	}
	if don.Role != RoleDon {
		return Patch{}, ErrNotLeader
	}
	if len(targets) != PlanSize {
		return Patch{}, fmt.Errorf("%w: want %d targets, got %d", ErrInvalidPlan, PlanSize, len(targets))
	}
	seen := map[string]bool{}
	for _, id := range targets {
		if err := checkKillTarget(r, actor, id); err != nil {
			return Patch{}, err
		}
		if seen[id] {
			return Patch{}, fmt.Errorf("%w: duplicate target %s", ErrInvalidPlan, id)
		}
		seen[id] = true
	}

	p := NewPatch()
	p.expect("phase", PhaseNightZero)
	p.set("nkvdPlan", append([]string{}, targets...))
	p.set("planIndex", 0)
	p.set("phase", PhaseNight)
	p.set("wasNightKill", false)
	p.set("infoMessage", "The plan is set. Night falls.")
	return p, nil
}

// AppendPlan adds tonight's target once the queue is used up.
func AppendPlan(r *Room, actor, target string) (Patch, error) {
	if r.Status == StatusFinished {
		return Patch{}, ErrGameFinished
	}
	if r.Phase != PhaseNightPlanning {
		return Patch{}, ErrWrongPhase
	}
	leader := r.ActiveLeader()
	if leader == nil || leader.UserID != actor {
		if p := r.Player(actor); p != nil && !p.Alive {
			return Patch{}, ErrDeadActor
		}
		return Patch{}, ErrNotLeader
	}
	if err := checkKillTarget(r, actor, target); err != nil {
		return Patch{}, err
	}

	p := NewPatch()
	p.expect("phase", PhaseNightPlanning)
	p.expect("planIndex", r.PlanIndex)
	plan := append(append([]string{}, r.NkvdPlan...), target)
	p.set("nkvdPlan", plan)
	p.set("phase", PhaseNight)
	p.set("wasNightKill", false)
	p.set("infoMessage", "The target is chosen. Night falls.")
	return p, nil
}

func checkKillTarget(r *Room, actor, target string) error {
	t := r.Player(target)
	switch {
	case t == nil:
		return ErrUnknownPlayer
	case target == actor:
		return ErrSelfTarget
	case !t.Alive:
		return ErrDeadTarget
	case t.Role.IsKiller():
		return ErrKillerTarget
	}
	return nil
}

// SubmitNightAction records one night action: a killer's confirmation of
// the planned target, the doctor's heal or the sheriff's check.
func SubmitNightAction(r *Room, actor, target string) (Patch, *Reveal, error) {
	if r.Status == StatusFinished {
		return Patch{}, nil, ErrGameFinished
	}
	if r.Phase != PhaseNight {
		return Patch{}, nil, ErrWrongPhase
	}
	a := r.Player(actor)
	if a == nil {
		return Patch{}, nil, ErrUnknownPlayer
	}
	if !a.Alive {
		return Patch{}, nil, ErrDeadActor
	}
	if _, ok := r.NightActions[actor]; ok {
		return Patch{}, nil, ErrAlreadyActed
	}
	t := r.Player(target)
	if t == nil {
		return Patch{}, nil, ErrUnknownPlayer
	}
	if !t.Alive {
		return Patch{}, nil, ErrDeadTarget
	}

	var reveal *Reveal
	switch a.Role {
	case RoleDon, RoleMafia:
		if target != r.CurrentTarget() {
			return Patch{}, nil, ErrNotPlannedTarget
		}
	case RoleDoctor:
		if target == r.LastHealedTarget {
			return Patch{}, nil, ErrRepeatHeal
		}
	case RoleSheriff:
		if target == actor {
			return Patch{}, nil, ErrSelfTarget
		}
		reveal = &Reveal{TargetID: target, Name: t.Name, IsEnemy: t.Role.IsKiller()}
	default:
		return Patch{}, nil, ErrNoNightAction
	}

	p := NewPatch()
	p.expect("phase", PhaseNight)
	p.expect("planIndex", r.PlanIndex)
	p.expectAbsent(Path("nightActions", actor))
	p.set(Path("nightActions", actor), target)
	return p, reveal, nil
}

// NightComplete reports whether every living night actor has acted. Bot
// killers confirm without submitting, and killers have nothing to confirm
// once the planned target is dead.
func NightComplete(r *Room) bool {
	for _, p := range r.SortedPlayers() {
		if !p.Alive {
			continue
		}
		_, acted := r.NightActions[p.UserID]
		switch {
		case p.Role.IsKiller():
			if !p.IsBot() && !acted && r.IsAlive(r.CurrentTarget()) {
				return false
			}
		case p.Role == RoleDoctor, p.Role == RoleSheriff:
			if !acted {
				return false
			}
		}
	}
	return true
}

// NightOutcome summarises a resolved night.
type NightOutcome struct {
	Target  string // planned target, may be empty
	Killed  string
	Saved   string
	Healed  string
	Winner  Faction
	Message string
}

// EndNight resolves the night and opens the next day.
func EndNight(r *Room) (Patch, NightOutcome, error) {
	if r.Status == StatusFinished {
		return Patch{}, NightOutcome{}, ErrGameFinished
	}
	if r.Phase != PhaseNight {
		return Patch{}, NightOutcome{}, ErrWrongPhase
	}

	out := NightOutcome{Target: r.CurrentTarget(), Message: "The night passed quietly. The NKVD missed."}

	var kill string
	killers := r.AliveKillers()
	if len(killers) > 0 && out.Target != "" {
		confirmed := 0
		for _, k := range killers {
			if k.IsBot() || r.NightActions[k.UserID] == out.Target {
				confirmed++
			}
		}
		victim := r.Player(out.Target)
		if confirmed == len(killers) && victim != nil && victim.Alive && !victim.Role.IsKiller() {
			kill = out.Target
		}
	}

	if doc := r.AliveWithRole(RoleDoctor); doc != nil {
		out.Healed = r.NightActions[doc.UserID]
	}

	p := NewPatch()
	p.expect("phase", PhaseNight)
	p.expect("planIndex", r.PlanIndex)
	p.expect("dayNumber", r.DayNumber)

	if out.Healed != "" {
		p.set("lastHealedTarget", out.Healed)
	} else {
		p.del("lastHealedTarget")
	}

	next := r.Clone()
	switch {
	case kill != "" && kill == out.Healed:
		out.Saved = kill
		out.Message = "The doctor saved a life tonight!"
	case kill != "":
		out.Killed = kill
		out.Message = fmt.Sprintf("%s was killed. Professionals at work.", r.name(kill))
		p.set(Path("players", kill, "alive"), false)
		next.Players[kill].Alive = false
	}

	p.set("nightActions", map[string]string{})
	p.set("nominations", map[string]string{})
	p.set("votes", map[string]string{})
	p.set("planIndex", r.PlanIndex+1)
	p.set("dayNumber", r.DayNumber+1)
	p.set("phase", PhaseDayDiscussion)
	p.set("speakerIndex", FirstAliveIndex(next))
	p.set("wasNightKill", out.Killed != "")
	p.set("infoMessage", out.Message)

	if out.Killed != "" {
		if w := Evaluate(r, out.Killed); w != FactionNone {
			out.Winner = w
			p = p.Merge(Finish(w))
		}
	}
	return p, out, nil
}
