// bot/brain.go
package bot

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/wfunc/kruivka/game"
)

// DefaultNominateChance 机器人发言时提名的概率
const DefaultNominateChance = 0.4

var defaultNames = []string{"Taras", "Ostap", "Bohdan", "Ivan", "Petro", "Andriy", "Mykola", "Stepan", "Vasyl", "Hryts"}

// Brain makes every automatic decision for computer controlled players.
// All randomness comes from the injected source so games replay with a seed.
type Brain struct {
	rng            *rand.Rand
	NominateChance float64
}

func NewBrain(rng *rand.Rand) *Brain {
	return &Brain{rng: rng, NominateChance: DefaultNominateChance}
}

// Rand exposes the source so the driver shuffles the deck with it too.
func (b *Brain) Rand() *rand.Rand {
	return b.rng
}

func (b *Brain) pick(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[b.rng.Intn(len(ids))]
}

// aliveNonKillers 可被刺杀的目标
func aliveNonKillers(r *game.Room) []string {
	var out []string
	for _, p := range r.SortedPlayers() {
		if p.Alive && !p.Role.IsKiller() {
			out = append(out, p.UserID)
		}
	}
	return out
}

// InitialPlan picks the don's three distinct non-killer targets.
func (b *Brain) InitialPlan(r *game.Room) []string {
	targets := aliveNonKillers(r)
	b.rng.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	if len(targets) > game.PlanSize {
		targets = targets[:game.PlanSize]
	}
	return targets
}

// PlanningTarget picks tonight's target once the plan queue is exhausted.
func (b *Brain) PlanningTarget(r *game.Room) string {
	return b.pick(aliveNonKillers(r))
}

// Nomination decides whether the speaking bot accuses someone. Bots only
// accuse after a night kill, once per day, and never while on trial.
func (b *Brain) Nomination(r *game.Room, botID string) (string, bool) {
	if !r.WasNightKill {
		return "", false
	}
	if _, done := r.Nominations[botID]; done {
		return "", false
	}
	if game.IsCandidate(r, botID) {
		return "", false
	}
	if b.rng.Float64() >= b.NominateChance {
		return "", false
	}
	var targets []string
	for _, p := range r.SortedPlayers() {
		if p.UserID != botID && p.Alive && !game.IsCandidate(r, p.UserID) {
			targets = append(targets, p.UserID)
		}
	}
	target := b.pick(targets)
	return target, target != ""
}

// Vote picks a candidate other than the bot itself.
func (b *Brain) Vote(r *game.Room, botID string) string {
	var choices []string
	for _, c := range game.Candidates(r) {
		if c != botID {
			choices = append(choices, c)
		}
	}
	return b.pick(choices)
}

// Heal picks any living player except last night's patient.
func (b *Brain) Heal(r *game.Room, botID string) string {
	var choices []string
	for _, p := range r.SortedPlayers() {
		if p.Alive && p.UserID != r.LastHealedTarget {
			choices = append(choices, p.UserID)
		}
	}
	return b.pick(choices)
}

// Investigate picks a living player other than the sheriff.
func (b *Brain) Investigate(r *game.Room, botID string) string {
	var choices []string
	for _, p := range r.SortedPlayers() {
		if p.Alive && p.UserID != botID {
			choices = append(choices, p.UserID)
		}
	}
	return b.pick(choices)
}

// NewBots returns fresh bot ids and names that do not clash with the
// players already seated.
func (b *Brain) NewBots(r *game.Room, n int) (ids, names []string) {
	taken := map[string]bool{}
	for _, p := range r.Players {
		taken[p.Name] = true
	}
	var free []string
	for _, name := range defaultNames {
		if !taken[name] {
			free = append(free, name)
		}
	}
	for i := 0; i < n; i++ {
		ids = append(ids, fmt.Sprintf("%s-%s", game.BotPrefix, uuid.NewString()[:5]))
		if i < len(free) {
			names = append(names, free[i])
		} else {
			names = append(names, fmt.Sprintf("Insurgent %d", i+1))
		}
	}
	return ids, names
}
