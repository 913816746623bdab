package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/kruivka/game"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from, to string, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	OnUpdate()
	GetID() string
	HandleAction(player Player, actionData []byte) error
}

var (
	// ErrTransitionNotAllowed is returned when a state transition is not allowed.
	ErrTransitionNotAllowed = errors.New("state transition not allowed")
	// ErrActionNotAllowed is returned for an action the current phase does not take.
	ErrActionNotAllowed = errors.New("action not allowed")
	ErrNotHost          = errors.New("only the host can do that")
)

// 基础状态机实现
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

// NewMachine builds the phase machine of one room starting at the phase the
// room is in. finished is terminal.
func NewMachine(ctx RoomContext, phase game.Phase) *BaseStateMachine {
	initial := NewPhaseState(ctx, phase)
	if f, ok := initial.(*FinishedState); ok {
		// over before we attached: whoever finished it recorded it
		f.recorded = true
	}
	sm := NewBaseStateMachine(initial)
	for _, to := range phases {
		if to != game.PhaseFinished {
			sm.AddTransition(string(game.PhaseFinished), string(to), func() bool { return false })
		}
	}
	return sm
}

var phases = []game.Phase{
	game.PhaseLobby, game.PhaseNightZero, game.PhaseNightPlanning, game.PhaseNight,
	game.PhaseDayDiscussion, game.PhaseDayVoting, game.PhaseFinished,
}

// NewPhaseState returns the handler for phase.
func NewPhaseState(ctx RoomContext, phase game.Phase) State {
	base := RoomStateBase{ID: string(phase), Room: ctx}
	switch phase {
	case game.PhaseNightZero:
		return &NightZeroState{RoomStateBase: base}
	case game.PhaseNightPlanning:
		return &NightPlanningState{RoomStateBase: base}
	case game.PhaseNight:
		return &NightState{RoomStateBase: base}
	case game.PhaseDayDiscussion:
		return &DayDiscussionState{RoomStateBase: base, speaker: -1}
	case game.PhaseDayVoting:
		return &DayVotingState{RoomStateBase: base}
	case game.PhaseFinished:
		return &FinishedState{RoomStateBase: base}
	}
	base.ID = string(game.PhaseLobby)
	return &LobbyState{RoomStateBase: base}
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	// 检查是否有转换条件
	if conditions, exists := sm.transitions[currentID]; exists {
		if condition, exists := conditions[newID]; exists {
			if condition != nil && !condition() {
				return ErrTransitionNotAllowed
			}
		}
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from, to string, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[string]func() bool)
	}
	sm.transitions[from][to] = condition
	return nil
}

// Action is a participant request decoded from a packet.
type Action struct {
	Type    string   `json:"type"`
	Target  string   `json:"target,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Message string   `json:"message,omitempty"`
	Ready   bool     `json:"ready,omitempty"`
}

func decodeAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("failed to unmarshal action data: %w", err)
	}
	return a, nil
}

// 房间状态基础结构
type RoomStateBase struct {
	ID    string
	Room  RoomContext
	ticks int
}

func (s *RoomStateBase) GetID() string {
	return s.ID
}

func (s *RoomStateBase) OnEnter() {
	s.ticks = 0
}

func (s *RoomStateBase) OnExit() {
	// 默认实现
}

func (s *RoomStateBase) OnUpdate() {
	s.ticks++
}

func (s *RoomStateBase) HandleAction(player Player, actionData []byte) error {
	return ErrActionNotAllowed
}

// Ticks is the number of updates since the state was entered.
func (s *RoomStateBase) Ticks() int {
	return s.ticks
}

func (s *RoomStateBase) commit(p game.Patch, err error) error {
	if err != nil {
		return err
	}
	return s.Room.Commit(p)
}

// speak is accepted in every phase that has talk.
func (s *RoomStateBase) speak(player Player, msg string) error {
	return s.commit(game.SetMessage(s.Room.Snapshot(), player.GetID(), msg))
}
