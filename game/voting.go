package game

import (
	"fmt"
	"sort"
)

// Nominate records the current speaker's accusation. The first accusation
// of the day wins; a second one is refused.
func Nominate(r *Room, nominator, target string) (Patch, error) {
	if r.Status == StatusFinished {
		return Patch{}, ErrGameFinished
	}
	if r.Phase != PhaseDayDiscussion {
		return Patch{}, ErrWrongPhase
	}
	actor := r.Player(nominator)
	if actor == nil {
		return Patch{}, ErrUnknownPlayer
	}
	if !actor.Alive {
		return Patch{}, ErrDeadActor
	}
	if !IsSpeaking(r, nominator) {
		return Patch{}, ErrNotYourTurn
	}
	if _, ok := r.Nominations[nominator]; ok {
		return Patch{}, ErrAlreadyNominated
	}
	if target == nominator {
		return Patch{}, ErrSelfTarget
	}
	if r.Player(target) == nil {
		return Patch{}, ErrUnknownPlayer
	}
	if !r.IsAlive(target) {
		return Patch{}, ErrDeadTarget
	}

	p := NewPatch()
	p.expect("phase", PhaseDayDiscussion)
	p.expect("dayNumber", r.DayNumber)
	p.expectAbsent(Path("nominations", nominator))
	p.set(Path("nominations", nominator), target)
	return p, nil
}

// Candidates returns the distinct accused ids, sorted.
func Candidates(r *Room) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, target := range r.Nominations {
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// IsCandidate reports whether userID is on trial.
func IsCandidate(r *Room, userID string) bool {
	for _, c := range Candidates(r) {
		if c == userID {
			return true
		}
	}
	return false
}

// CastVote records or replaces a vote. Votes may change until the trial is
// finalized.
func CastVote(r *Room, voter, candidate string) (Patch, error) {
	if r.Status == StatusFinished {
		return Patch{}, ErrGameFinished
	}
	if r.Phase != PhaseDayVoting {
		return Patch{}, ErrWrongPhase
	}
	actor := r.Player(voter)
	if actor == nil {
		return Patch{}, ErrUnknownPlayer
	}
	if !actor.Alive {
		return Patch{}, ErrDeadActor
	}
	if voter == candidate {
		return Patch{}, ErrSelfTarget
	}
	if !IsCandidate(r, candidate) {
		return Patch{}, ErrNotCandidate
	}

	p := NewPatch()
	p.expect("phase", PhaseDayVoting)
	p.expect("dayNumber", r.DayNumber)
	p.set(Path("votes", voter), candidate)
	return p, nil
}

// VoteTally is the ranked result of a trial.
type VoteTally struct {
	Counts    map[string]int
	Ranking   []string // candidates, most votes first
	Sentenced string   // empty on a tie or when nobody voted
	Tie       bool
}

// effectiveVotes applies the two-candidate default and drops invalid votes.
func effectiveVotes(r *Room, candidates []string) map[string]string {
	votes := make(map[string]string, len(r.Votes)+2)
	for voter, c := range r.Votes {
		votes[voter] = c
	}
	if len(candidates) == 2 {
		c1, c2 := candidates[0], candidates[1]
		// 两人对决时，未投票的候选人默认投给对方
		if votes[c1] == "" {
			votes[c1] = c2
		}
		if votes[c2] == "" {
			votes[c2] = c1
		}
	}

	valid := map[string]string{}
	for voter, c := range votes {
		if voter == c || !r.IsAlive(voter) {
			continue
		}
		if !containsPath(candidates, c) {
			continue
		}
		valid[voter] = c
	}
	return valid
}

// Tally counts the valid votes. A candidate is sentenced only with a unique
// highest count above zero.
func Tally(r *Room) VoteTally {
	candidates := Candidates(r)
	t := VoteTally{Counts: map[string]int{}}
	for _, c := range candidates {
		t.Counts[c] = 0
	}
	for _, c := range effectiveVotes(r, candidates) {
		t.Counts[c]++
	}

	t.Ranking = append(t.Ranking, candidates...)
	sort.SliceStable(t.Ranking, func(i, j int) bool {
		return t.Counts[t.Ranking[i]] > t.Counts[t.Ranking[j]]
	})
	if len(t.Ranking) == 0 {
		return t
	}
	top := t.Counts[t.Ranking[0]]
	if top == 0 || (len(t.Ranking) > 1 && t.Counts[t.Ranking[1]] == top) {
		t.Tie = true
		return t
	}
	t.Sentenced = t.Ranking[0]
	return t
}

// VoteCounts returns the votes received per candidate as the table shows
// them while voting is open.
func VoteCounts(r *Room) map[string]int {
	return Tally(r).Counts
}

// VoteOutcome describes a finalized trial.
type VoteOutcome struct {
	Tally   VoteTally
	Hanged  string
	Winner  Faction
	Message string
}

// FinalizeVoting closes the trial, eliminates the sentenced player and
// moves on to the next night.
func FinalizeVoting(r *Room) (Patch, VoteOutcome, error) {
	if r.Status == StatusFinished {
		return Patch{}, VoteOutcome{}, ErrGameFinished
	}
	if r.Phase != PhaseDayVoting {
		return Patch{}, VoteOutcome{}, ErrWrongPhase
	}

	out := VoteOutcome{Tally: Tally(r), Message: "No one was hanged."}
	p := NewPatch()
	p.expect("phase", PhaseDayVoting)
	p.expect("dayNumber", r.DayNumber)

	switch {
	case out.Tally.Sentenced != "":
		out.Hanged = out.Tally.Sentenced
		out.Message = fmt.Sprintf("The community decided: %s is hanged!", r.name(out.Hanged))
		p.expect(Path("players", out.Hanged, "alive"), true)
		p.set(Path("players", out.Hanged, "alive"), false)
	case len(out.Tally.Ranking) > 0:
		out.Message = "A tie. Everyone lives."
	}

	p.set("phase", NextNightPhase(r))
	p.set("nominations", map[string]string{})
	p.set("votes", map[string]string{})
	p.set("speakerIndex", 0)
	p.set("infoMessage", out.Message)

	if out.Hanged != "" {
		if w := Evaluate(r, out.Hanged); w != FactionNone {
			out.Winner = w
			p = p.Merge(Finish(w))
		}
	}
	return p, out, nil
}
