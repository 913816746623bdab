package room

import (
	"github.com/wfunc/kruivka/game"
)

// View is the snapshot one participant receives.
type View struct {
	*game.Room
	You           string         `json:"you"`
	Candidates    []string       `json:"candidates"`
	VotesReceived map[string]int `json:"votesReceived"`
	// Speaking is the participant whose microphone should be live.
	Speaking string `json:"speaking"`
}

// NewView redacts r for viewer.
func NewView(r *game.Room, viewer string) View {
	v := View{
		Room:          game.Redact(r, viewer),
		You:           viewer,
		Candidates:    game.Candidates(r),
		VotesReceived: map[string]int{},
	}
	if r.Phase == game.PhaseDayVoting {
		v.VotesReceived = game.VoteCounts(r)
	}
	if s := game.CurrentSpeaker(r); s != nil && game.IsSpeaking(r, s.UserID) {
		v.Speaking = s.UserID
	}
	return v
}
