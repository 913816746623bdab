// game/types.go
package game

import (
	"sort"
	"strings"
)

// Role 玩家身份
type Role string

const (
	RoleDon      Role = "don"
	RoleMafia    Role = "mafia"
	RoleSheriff  Role = "sheriff"
	RoleDoctor   Role = "doctor"
	RoleCivilian Role = "civilian"
)

// IsKiller reports whether the role belongs to the killer faction.
func (r Role) IsKiller() bool {
	return r == RoleDon || r == RoleMafia
}

// Faction 阵营
type Faction string

const (
	FactionNone Faction = ""
	FactionNKVD Faction = "NKVD" // killers
	FactionUPA  Faction = "UPA"
)

// Status 房间生命周期
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Phase 游戏阶段
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseNightZero     Phase = "night_zero"
	PhaseNightPlanning Phase = "night_planning"
	PhaseNight         Phase = "night"
	PhaseDayDiscussion Phase = "day_discussion"
	PhaseDayVoting     Phase = "day_voting"
	PhaseFinished      Phase = "finished"
)

// Mode decides whether the roles of eliminated players stay hidden.
type Mode string

const (
	ModeOpen   Mode = "open"
	ModeClosed Mode = "closed"
)

const (
	MaxPlayers = 10
	PlanSize   = 3
	BotPrefix  = "BOT"
)

// Deck is the fixed role deck dealt at game start.
var Deck = []Role{
	RoleDon, RoleMafia, RoleMafia, RoleSheriff, RoleDoctor,
	RoleCivilian, RoleCivilian, RoleCivilian, RoleCivilian, RoleCivilian,
}

// Player 玩家
type Player struct {
	UserID       string  `json:"userId"`
	Name         string  `json:"name"`
	Role         Role    `json:"role"`
	Message      string  `json:"message"`
	Alive        bool    `json:"alive"`
	Ready        bool    `json:"ready"`
	KnownEnemyID *string `json:"knownEnemyId"`
}

// IsBot reports whether the player is computer controlled.
func (p *Player) IsBot() bool {
	return IsBot(p.UserID)
}

func IsBot(userID string) bool {
	return strings.HasPrefix(userID, BotPrefix)
}

// Room is the single shared aggregate of one game.
type Room struct {
	RoomID           string             `json:"roomId"`
	HostID           string             `json:"hostId"`
	Status           Status             `json:"status"`
	GameMode         Mode               `json:"gameMode"`
	Phase            Phase              `json:"phase"`
	DayNumber        int                `json:"dayNumber"`
	InfoMessage      string             `json:"infoMessage"`
	Winner           Faction            `json:"winner"`
	Players          map[string]*Player `json:"players"`
	NkvdPlan         []string           `json:"nkvdPlan"`
	PlanIndex        int                `json:"planIndex"`
	NightActions     map[string]string  `json:"nightActions"`
	SpeakerIndex     int                `json:"speakerIndex"`
	LastHealedTarget string             `json:"lastHealedTarget,omitempty"`
	Nominations      map[string]string  `json:"nominations"`
	Votes            map[string]string  `json:"votes"`
	WasNightKill     bool               `json:"wasNightKill"`
	// DriverID is the server process running the room's automation.
	DriverID string `json:"driverId,omitempty"`
}

// NewRoom creates a lobby with the host as its only player.
func NewRoom(roomID string, host Player, mode Mode) *Room {
	if mode != ModeOpen {
		mode = ModeClosed
	}
	host.Role = RoleCivilian
	host.Alive = true
	host.Ready = true
	return &Room{
		RoomID:       roomID,
		HostID:       host.UserID,
		Status:       StatusLobby,
		GameMode:     mode,
		Phase:        PhaseLobby,
		DayNumber:    1,
		Players:      map[string]*Player{host.UserID: &host},
		NkvdPlan:     []string{},
		NightActions: map[string]string{},
		Nominations:  map[string]string{},
		Votes:        map[string]string{},
	}
}

// SortedPlayers returns the rotation order: players sorted by id.
func (r *Room) SortedPlayers() []*Player {
	players := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].UserID < players[j].UserID
	})
	return players
}

// Player returns the player with the given id, or nil.
func (r *Room) Player(userID string) *Player {
	if r.Players == nil {
		return nil
	}
	return r.Players[userID]
}

// IsAlive reports whether userID names a living player.
func (r *Room) IsAlive(userID string) bool {
	p := r.Player(userID)
	return p != nil && p.Alive
}

// AliveKillers returns the living killer-faction players in rotation order.
func (r *Room) AliveKillers() []*Player {
	var out []*Player
	for _, p := range r.SortedPlayers() {
		if p.Alive && p.Role.IsKiller() {
			out = append(out, p)
		}
	}
	return out
}

// AliveWithRole returns the first living player holding role, or nil.
func (r *Room) AliveWithRole(role Role) *Player {
	for _, p := range r.SortedPlayers() {
		if p.Alive && p.Role == role {
			return p
		}
	}
	return nil
}

// CurrentTarget is the sanctioned kill target of the current night.
func (r *Room) CurrentTarget() string {
	if r.PlanIndex < 0 || r.PlanIndex >= len(r.NkvdPlan) {
		return ""
	}
	return r.NkvdPlan[r.PlanIndex]
}

// ActiveLeader is the alive don, falling back to the first alive killer.
func (r *Room) ActiveLeader() *Player {
	if don := r.AliveWithRole(RoleDon); don != nil {
		return don
	}
	killers := r.AliveKillers()
	if len(killers) == 0 {
		return nil
	}
	return killers[0]
}

func (r *Room) name(userID string) string {
	if p := r.Player(userID); p != nil && p.Name != "" {
		return p.Name
	}
	return "..."
}
