package game

import "math/rand"

// Deal shuffles the role deck and the player list and zips them together.
// It is all or nothing: fewer or more than MaxPlayers players is refused.
func Deal(r *Room, rng *rand.Rand) (Patch, error) {
	if r.Status != StatusLobby {
		return Patch{}, ErrGameStarted
	}
	switch {
	case len(r.Players) < MaxPlayers:
		return Patch{}, ErrNotEnoughPlayers
	case len(r.Players) > MaxPlayers:
		return Patch{}, ErrTooManyPlayers
	}

	deck := append([]Role(nil), Deck...)
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	players := r.SortedPlayers()
	rng.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })

	p := NewPatch()
	p.expect("status", StatusLobby)
	for i, player := range players {
		p.set(Path("players", player.UserID, "role"), deck[i])
		p.set(Path("players", player.UserID, "alive"), true)
		p.set(Path("players", player.UserID, "message"), "")
	}
	p.set("status", StatusPlaying)
	p.set("phase", PhaseNightZero)
	p.set("dayNumber", 1)
	p.set("nkvdPlan", []string{})
	p.set("planIndex", 0)
	p.set("nightActions", map[string]string{})
	p.set("nominations", map[string]string{})
	p.set("votes", map[string]string{})
	p.set("wasNightKill", false)
	p.set("infoMessage", "Roles are dealt. The night of acquaintance begins.")
	return p, nil
}
