package state

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/kruivka/bot"
	"github.com/wfunc/kruivka/game"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID             string
	OnEnterCalled  bool
	OnExitCalled   bool
	OnUpdateCalled bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) OnUpdate() {
	m.OnUpdateCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

func (m *MockState) HandleAction(player Player, actionData []byte) error {
	return nil
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
	m.OnUpdateCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset()

	if err := sm.ChangeState(nextState); err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}
	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}
	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}
	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_BlockedTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)
	sm.AddTransition("A", "B", func() bool { return true })
	sm.AddTransition("B", "C", func() bool { return false })

	if err := sm.ChangeState(stateB); err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}

	stateB.reset()
	if err := sm.ChangeState(stateC); err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState().GetID())
	}
	if stateB.OnExitCalled || stateC.OnEnterCalled {
		t.Error("a blocked transition must not run OnExit/OnEnter")
	}
}

type fakePlayer string

func (p fakePlayer) GetID() string { return string(p) }

// fakeRoom is an in-memory RoomContext.
type fakeRoom struct {
	room     *game.Room
	brain    *bot.Brain
	timings  Timings
	reveals  map[string]*game.Reveal
	events   []Event
	recorded int
}

func newFakeRoom(r *game.Room, seed int64) *fakeRoom {
	return &fakeRoom{
		room:    r,
		brain:   bot.NewBrain(rand.New(rand.NewSource(seed))),
		timings: DefaultTimings(),
		reveals: map[string]*game.Reveal{},
	}
}

func (f *fakeRoom) GetID() string           { return f.room.RoomID }
func (f *fakeRoom) Snapshot() *game.Room    { return f.room }
func (f *fakeRoom) Brain() *bot.Brain       { return f.brain }
func (f *fakeRoom) Timings() Timings        { return f.timings }
func (f *fakeRoom) Report(ev Event)         { f.events = append(f.events, ev) }
func (f *fakeRoom) Record(*game.Room) error { f.recorded++; return nil }

func (f *fakeRoom) Reveal(userID string, r *game.Reveal) { f.reveals[userID] = r }

func (f *fakeRoom) Commit(p game.Patch) error {
	next, err := p.Apply(f.room)
	if errors.Is(err, game.ErrStale) {
		return nil
	}
	if err != nil {
		return err
	}
	f.room = next
	return nil
}

func action(typ, target string) []byte {
	return []byte(fmt.Sprintf(`{"type":%q,"target":%q}`, typ, target))
}

// seatedRoom has one human host and nine bots.
func seatedRoom(t *testing.T, f *fakeRoom) {
	t.Helper()
	ids, names := f.brain.NewBots(f.room, 9)
	p, err := game.AddBots(f.room, ids, names)
	require.NoError(t, err)
	require.NoError(t, f.Commit(p))
}

func TestNewMachineFinishedIsTerminal(t *testing.T) {
	f := newFakeRoom(game.NewRoom("UKR-1", game.Player{UserID: "h"}, game.ModeOpen), 1)
	sm := NewMachine(f, game.PhaseFinished)
	err := sm.ChangeState(NewPhaseState(f, game.PhaseNight))
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Equal(t, string(game.PhaseFinished), sm.GetCurrentState().GetID())
}

func TestLobbyStartWithBotDon(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		f := newFakeRoom(game.NewRoom("UKR-1", game.Player{UserID: "host", Name: "h"}, game.ModeClosed), seed)
		seatedRoom(t, f)
		lobby := NewPhaseState(f, game.PhaseLobby)

		some := f.room.SortedPlayers()[0].UserID
		assert.ErrorIs(t, lobby.HandleAction(fakePlayer(some), action("start", "")), ErrNotHost)
		require.NoError(t, lobby.HandleAction(fakePlayer("host"), action("start", "")))

		don := f.room.AliveWithRole(game.RoleDon)
		if don.IsBot() {
			assert.Equal(t, game.PhaseNight, f.room.Phase)
			require.Len(t, f.room.NkvdPlan, game.PlanSize)
			for _, id := range f.room.NkvdPlan {
				assert.False(t, f.room.Players[id].Role.IsKiller())
			}
		} else {
			assert.Equal(t, game.PhaseNightZero, f.room.Phase)
		}
		assert.Equal(t, EventGameStarted, f.events[0].Kind)
	}
}

func TestNightZeroHumanDonTimeout(t *testing.T) {
	f := newFakeRoom(game.NewRoom("UKR-1", game.Player{UserID: "host", Name: "h"}, game.ModeClosed), 1)
	seatedRoom(t, f)
	for _, p := range f.room.Players {
		p.Role = game.RoleCivilian
	}
	f.room.Players["host"].Role = game.RoleDon
	f.room.Status = game.StatusPlaying
	f.room.Phase = game.PhaseNightZero
	f.timings.NightZero = 3

	s := NewPhaseState(f, game.PhaseNightZero)
	s.OnEnter()
	s.OnUpdate()
	s.OnUpdate()
	assert.Equal(t, game.PhaseNightZero, f.room.Phase)
	s.OnUpdate()
	assert.Equal(t, game.PhaseNight, f.room.Phase)
	assert.Len(t, f.room.NkvdPlan, game.PlanSize)
}

func playingRoom(t *testing.T, ids []string, roles []game.Role, phase game.Phase) *fakeRoom {
	t.Helper()
	r := game.NewRoom("UKR-9", game.Player{UserID: ids[0], Name: ids[0]}, game.ModeClosed)
	for i, id := range ids {
		if r.Players[id] == nil {
			r.Players[id] = &game.Player{UserID: id, Name: id, Alive: true}
		}
		r.Players[id].Role = roles[i]
	}
	r.Status = game.StatusPlaying
	r.Phase = phase
	return newFakeRoom(r, 42)
}

func TestNightHumanAndBotKiller(t *testing.T) {
	ids := []string{"BOT-doc", "BOT-k", "BOT-sh", "don", "v1", "v2", "v3", "v4", "v5", "v6"}
	roles := []game.Role{game.RoleDoctor, game.RoleMafia, game.RoleSheriff, game.RoleDon,
		game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleMafia}
	f := playingRoom(t, ids, roles, game.PhaseNight)
	f.room.Players["v6"].Alive = false
	f.room.NkvdPlan = []string{"v1", "v2", "v3"}
	f.room.LastHealedTarget = "v1" // the bot doctor cannot save v1 tonight

	s := NewPhaseState(f, game.PhaseNight)
	s.OnEnter()
	assert.ErrorIs(t, s.HandleAction(fakePlayer("don"), action("action", "v2")), game.ErrNotPlannedTarget)
	require.NoError(t, s.HandleAction(fakePlayer("don"), action("action", "v1")))

	s.OnUpdate()
	assert.Equal(t, game.PhaseDayDiscussion, f.room.Phase)
	assert.False(t, f.room.Players["v1"].Alive)
	assert.True(t, f.room.WasNightKill)
	assert.Equal(t, 2, f.room.DayNumber)
	assert.Equal(t, Event{Kind: EventNightKill, PlayerID: "v1"}, f.events[0])
}

func TestSheriffRevealIsPrivate(t *testing.T) {
	ids := []string{"don", "k", "m", "sh", "v1", "v2", "v3", "v4", "v5", "v6"}
	roles := []game.Role{game.RoleDon, game.RoleDoctor, game.RoleMafia, game.RoleSheriff,
		game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleMafia}
	f := playingRoom(t, ids, roles, game.PhaseNight)
	f.room.NkvdPlan = []string{"v1", "v2", "v3"}

	s := NewPhaseState(f, game.PhaseNight)
	require.NoError(t, s.HandleAction(fakePlayer("sh"), action("action", "m")))
	require.NotNil(t, f.reveals["sh"])
	assert.True(t, f.reveals["sh"].IsEnemy)

	doc, err := game.Encode(f.room)
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "isEnemy")
}

func TestDiscussionBotAndDeadSpeakers(t *testing.T) {
	ids := []string{"BOT-a", "BOT-b", "c", "d", "e", "f", "g", "h", "i", "j"}
	roles := []game.Role{game.RoleCivilian, game.RoleCivilian, game.RoleDon, game.RoleMafia, game.RoleMafia,
		game.RoleDoctor, game.RoleSheriff, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian}
	f := playingRoom(t, ids, roles, game.PhaseDayDiscussion)
	f.room.NkvdPlan = []string{"h", "i", "j"}
	f.room.PlanIndex = 1
	f.room.Players["BOT-b"].Alive = false
	f.brain.NominateChance = 0

	s := NewPhaseState(f, game.PhaseDayDiscussion)
	s.OnEnter()
	tm := f.timings
	for i := 1; i < tm.BotSpeak; i++ {
		s.OnUpdate()
	}
	assert.Empty(t, f.room.Players["BOT-a"].Message)
	s.OnUpdate()
	assert.NotEmpty(t, f.room.Players["BOT-a"].Message)
	for i := tm.BotSpeak; i < tm.BotPass; i++ {
		s.OnUpdate()
	}
	// BOT-b is dead, so the turn goes to c
	assert.Equal(t, 2, f.room.SpeakerIndex)
	assert.Empty(t, f.room.Players["BOT-a"].Message)

	assert.ErrorIs(t, s.HandleAction(fakePlayer("d"), action("pass", "")), game.ErrNotYourTurn)
	require.NoError(t, s.HandleAction(fakePlayer("c"), action("nominate", "d")))
	require.NoError(t, s.HandleAction(fakePlayer("c"), action("pass", "")))
	assert.Equal(t, 3, f.room.SpeakerIndex)

	f.room.Players["d"].Alive = false
	s.OnUpdate()
	assert.Equal(t, 4, f.room.SpeakerIndex)
}

func TestVotingBotsThenFinalize(t *testing.T) {
	ids := []string{"BOT-1", "BOT-2", "BOT-3", "BOT-4", "BOT-5", "BOT-6", "BOT-7", "c1", "c2", "x"}
	roles := []game.Role{game.RoleDon, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian,
		game.RoleCivilian, game.RoleCivilian, game.RoleMafia, game.RoleDoctor, game.RoleSheriff}
	f := playingRoom(t, ids, roles, game.PhaseDayVoting)
	f.room.NkvdPlan = []string{"BOT-2", "BOT-3", "BOT-4"}
	f.room.PlanIndex = 3
	f.room.Nominations = map[string]string{"BOT-1": "c1"}

	s := NewPhaseState(f, game.PhaseDayVoting)
	s.OnEnter()
	tm := f.timings
	for i := 0; i < tm.VoteDelay; i++ {
		s.OnUpdate()
	}
	assert.Len(t, f.room.Votes, 7)
	assert.Equal(t, game.PhaseDayVoting, f.room.Phase)

	for i := 0; i < tm.VoteGrace; i++ {
		s.OnUpdate()
	}
	assert.False(t, f.room.Players["c1"].Alive)
	assert.Equal(t, game.PhaseNightPlanning, f.room.Phase)
	assert.Equal(t, Event{Kind: EventHanged, PlayerID: "c1"}, f.events[0])
}

func TestVotingWithoutDelay(t *testing.T) {
	ids := []string{"BOT-1", "BOT-2", "BOT-3", "BOT-4", "BOT-5", "BOT-6", "BOT-7", "c1", "c2", "x"}
	roles := []game.Role{game.RoleDon, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian,
		game.RoleCivilian, game.RoleCivilian, game.RoleMafia, game.RoleDoctor, game.RoleSheriff}
	f := playingRoom(t, ids, roles, game.PhaseDayVoting)
	f.room.NkvdPlan = []string{"BOT-2", "BOT-3", "BOT-4"}
	f.room.PlanIndex = 3
	f.room.Nominations = map[string]string{"BOT-1": "c1"}
	f.timings.VoteDelay = 0
	f.timings.VoteGrace = 2

	s := NewPhaseState(f, game.PhaseDayVoting)
	s.OnEnter()
	s.OnUpdate()
	assert.Len(t, f.room.Votes, 7)
	s.OnUpdate()
	assert.False(t, f.room.Players["c1"].Alive)
}

func TestPlanningBotLeader(t *testing.T) {
	ids := []string{"BOT-don", "m1", "m2", "s", "d", "v1", "v2", "v3", "v4", "v5"}
	roles := []game.Role{game.RoleDon, game.RoleMafia, game.RoleMafia, game.RoleSheriff, game.RoleDoctor,
		game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian, game.RoleCivilian}
	f := playingRoom(t, ids, roles, game.PhaseNightPlanning)
	f.room.NkvdPlan = []string{"v1", "v2", "v3"}
	f.room.PlanIndex = 3
	f.room.Players["v1"].Alive = false

	s := NewPhaseState(f, game.PhaseNightPlanning)
	assert.ErrorIs(t, s.HandleAction(fakePlayer("m1"), action("target", "v4")), game.ErrNotLeader)
	s.OnEnter()
	for i := 0; i < f.timings.BotPlan; i++ {
		s.OnUpdate()
	}
	assert.Equal(t, game.PhaseNight, f.room.Phase)
	target := f.room.CurrentTarget()
	assert.True(t, f.room.IsAlive(target))
	assert.False(t, f.room.Players[target].Role.IsKiller())
}

func TestFinishedRecordsOnce(t *testing.T) {
	f := newFakeRoom(game.NewRoom("UKR-1", game.Player{UserID: "h"}, game.ModeOpen), 1)
	f.room.Status = game.StatusFinished
	f.room.Phase = game.PhaseFinished
	s := NewPhaseState(f, game.PhaseFinished)
	s.OnEnter()
	s.OnUpdate()
	s.OnUpdate()
	assert.Equal(t, 1, f.recorded)
	assert.ErrorIs(t, s.HandleAction(fakePlayer("h"), action("vote", "x")), game.ErrGameFinished)

	// a machine attached to a room that is already over does not record it again
	sm := NewMachine(f, game.PhaseFinished)
	sm.GetCurrentState().OnUpdate()
	assert.Equal(t, 1, f.recorded)
}
