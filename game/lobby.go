package game

import "fmt"

// Join adds a player to a lobby.
func Join(r *Room, player Player) (Patch, error) {
	if r.Status != StatusLobby {
		return Patch{}, ErrGameStarted
	}
	if r.Player(player.UserID) != nil {
		return Patch{}, ErrAlreadyJoined
	}
	if len(r.Players) >= MaxPlayers {
		return Patch{}, ErrRoomFull
	}
	player.Role = RoleCivilian
	player.Alive = true
	player.Message = ""
	player.KnownEnemyID = nil

	p := NewPatch()
	p.expect("status", StatusLobby)
	p.expectAbsent(Path("players", player.UserID))
	p.set(Path("players", player.UserID), player)
	return p, nil
}

// LeaveResult tells the caller whether the room is now empty and should be
// torn down.
type LeaveResult struct {
	Empty   bool
	NewHost string
}

// Leave removes a player before the game starts. The host seat passes to
// the next human in rotation order.
func Leave(r *Room, userID string) (Patch, LeaveResult, error) {
	if r.Status != StatusLobby {
		return Patch{}, LeaveResult{}, ErrGameStarted
	}
	if r.Player(userID) == nil {
		return Patch{}, LeaveResult{}, ErrUnknownPlayer
	}

	p := NewPatch()
	p.expect("status", StatusLobby)
	p.del(Path("players", userID))

	var res LeaveResult
	humans := 0
	for _, other := range r.SortedPlayers() {
		if other.UserID == userID || other.IsBot() {
			continue
		}
		humans++
		if r.HostID == userID && res.NewHost == "" {
			res.NewHost = other.UserID
		}
	}
	if humans == 0 {
		res.Empty = true
		return p, res, nil
	}
	if res.NewHost != "" {
		p.set("hostId", res.NewHost)
	}
	return p, res, nil
}

// AddBots fills the free seats with bots. ids and names are consumed in
// order; surplus entries are ignored.
func AddBots(r *Room, ids, names []string) (Patch, error) {
	if r.Status != StatusLobby {
		return Patch{}, ErrGameStarted
	}
	free := MaxPlayers - len(r.Players)
	if free <= 0 {
		return Patch{}, ErrRoomFull
	}

	p := NewPatch()
	p.expect("status", StatusLobby)
	for i := 0; i < free && i < len(ids); i++ {
		if !IsBot(ids[i]) || r.Player(ids[i]) != nil {
			return Patch{}, fmt.Errorf("%w: bad bot id %q", ErrAlreadyJoined, ids[i])
		}
		name := fmt.Sprintf("Insurgent %d", i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		p.expectAbsent(Path("players", ids[i]))
		p.set(Path("players", ids[i]), Player{
			UserID: ids[i],
			Name:   name,
			Role:   RoleCivilian,
			Alive:  true,
			Ready:  true,
		})
	}
	return p, nil
}

// SetReady toggles the lobby readiness flag.
func SetReady(r *Room, userID string, ready bool) (Patch, error) {
	if r.Status != StatusLobby {
		return Patch{}, ErrGameStarted
	}
	if r.Player(userID) == nil {
		return Patch{}, ErrUnknownPlayer
	}
	p := NewPatch()
	p.expect("status", StatusLobby)
	p.set(Path("players", userID, "ready"), ready)
	return p, nil
}

// SetMessage overwrites a player's current utterance. Only the living
// current speaker talks during discussion.
func SetMessage(r *Room, userID, message string) (Patch, error) {
	player := r.Player(userID)
	if player == nil {
		return Patch{}, ErrUnknownPlayer
	}
	if r.Status == StatusPlaying {
		if !player.Alive {
			return Patch{}, ErrDeadActor
		}
		if r.Phase == PhaseDayDiscussion && !IsSpeaking(r, userID) {
			return Patch{}, ErrNotYourTurn
		}
	}
	p := NewPatch()
	p.set(Path("players", userID, "message"), message)
	return p, nil
}

// ClaimDriver makes driverID the process that runs the room's automation,
// unless another process already does.
func ClaimDriver(r *Room, driverID string) (Patch, bool) {
	if driverID == "" || r.DriverID != "" {
		return Patch{}, false
	}
	p := NewPatch()
	p.expectAbsent("driverId")
	p.set("driverId", driverID)
	return p, true
}

// ClearInfo clears the announcement if msg is still the one shown.
func ClearInfo(r *Room, msg string) (Patch, bool) {
	if msg == "" || r.InfoMessage != msg {
		return Patch{}, false
	}
	p := NewPatch()
	p.expect("infoMessage", msg)
	p.set("infoMessage", "")
	return p, true
}
