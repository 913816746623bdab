package bot

import (
	"fmt"

	"github.com/wfunc/kruivka/game"
)

var (
	nominationLines = []string{
		"I don't like %s.",
		"My gut says %s is a traitor.",
		"I propose we check %s.",
		"Keep an eye on %s.",
	}
	defenseLines = []string{
		"That's a mistake! I'm one of us!",
		"I'm peaceful!",
		"I'm UPA!",
		"That's slander!",
	}
	generalLines = map[game.Role][]string{
		game.RoleSheriff: {"I'm keeping order.", "I have my suspicions."},
		game.RoleMafia:   {"We must stay united.", "Don't let the enemy divide us."},
		game.RoleDon:     {"We must stay united.", "Don't let the enemy divide us."},
		game.RoleDoctor:  {"Life comes first.", "Take care of yourselves."},
	}
	civilianLines = []string{"I want victory.", "Someone is lying.", "Let's vote wisely."}
)

// NominationSpeech is said when the bot accuses targetName.
func (b *Brain) NominationSpeech(targetName string) string {
	return fmt.Sprintf(b.pick(nominationLines), targetName)
}

// Speech is the bot's line for its turn when it does not accuse anyone.
func (b *Brain) Speech(r *game.Room, botID string) string {
	if game.IsCandidate(r, botID) {
		return b.pick(defenseLines)
	}
	var role game.Role
	if p := r.Player(botID); p != nil {
		role = p.Role
	}
	if lines, ok := generalLines[role]; ok {
		return b.pick(lines)
	}
	return b.pick(civilianLines)
}
