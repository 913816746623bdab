// room/room.go
package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/kruivka/bot"
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/models"
	"github.com/wfunc/kruivka/network"
	"github.com/wfunc/kruivka/persistence"
	"github.com/wfunc/kruivka/session"
	"github.com/wfunc/kruivka/state"
	"github.com/wfunc/kruivka/timer"
)

var (
	ErrRoomClosed = errors.New("room closed")
	ErrRoomFull   = errors.New("room has no free seats")
)

const storeTimeout = 5 * time.Second

// Options 房间运行参数
type Options struct {
	Timings state.Timings
	// DriverID names this process. Rooms claimed by another driver are
	// only mirrored here; empty drives every room.
	DriverID string
	// Tick is the wall time of one tick. Zero leaves ticking to the caller.
	Tick        time.Duration
	MaxSessions int
	Metrics     Metrics
}

// member is a participant id as seen by the phase states.
type member string

func (m member) GetID() string { return string(m) }

// Room 是游戏房间的核心结构. It mirrors the stored room, runs the phase
// machine over it and pushes a redacted view to every connected session.
type Room struct {
	ID           string
	MaxSessions  int
	Players      map[string]*session.Session // sessionID -> session
	StateMachine *state.BaseStateMachine
	CreatedAt    time.Time

	store       persistence.GameStore
	records     persistence.RecordStore
	broadcaster Broadcaster // Use the interface, not the concrete type
	brain       *bot.Brain
	opts        Options
	metrics     Metrics

	snapshot    atomic.Pointer[game.Room]
	deleted     atomic.Bool
	changed     chan struct{}
	unsubscribe func()
	onDeleted   func(id string)

	// mu 串行化所有结算: ticks, timers and participant actions
	mu        sync.Mutex
	wheel     *timer.Wheel
	infoTimer int64
	infoShown string

	playerMutex sync.RWMutex
	ticker      *time.Ticker
	closeChan   chan bool
	closeOnce   sync.Once
}

// NewRoom attaches a driver to a room that already exists in store.
func NewRoom(ctx context.Context, id string, store persistence.GameStore, records persistence.RecordStore,
	broadcaster Broadcaster, brain *bot.Brain, opts Options) (*Room, error) {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 2 * game.MaxPlayers
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	r := &Room{
		ID:          id,
		MaxSessions: opts.MaxSessions,
		Players:     make(map[string]*session.Session),
		CreatedAt:   time.Now(),
		store:       store,
		records:     records,
		broadcaster: broadcaster,
		brain:       brain,
		opts:        opts,
		metrics:     metrics,
		changed:     make(chan struct{}, 1),
		wheel:       timer.NewWheel(),
		closeChan:   make(chan bool),
	}

	r.unsubscribe = store.Subscribe(id, r.observe)
	snap, err := store.Get(ctx, id)
	if err != nil {
		r.unsubscribe()
		return nil, err
	}
	// a publish that raced the read is newer than what Get returned
	r.snapshot.CompareAndSwap(nil, snap)

	if err := r.claim(ctx); err != nil {
		r.unsubscribe()
		return nil, err
	}

	// 初始化状态机，将房间自身(room)作为上下文传入
	r.StateMachine = state.NewMachine(r, r.Snapshot().Phase)

	if opts.Tick > 0 {
		// 启动房间心跳
		r.ticker = time.NewTicker(opts.Tick)
		go r.loop()
	}
	return r, nil
}

// claim takes over the automation of a room nobody drives yet. Losing the
// race to another process leaves this one a mirror.
func (r *Room) claim(ctx context.Context) error {
	p, ok := game.ClaimDriver(r.Snapshot(), r.opts.DriverID)
	if !ok {
		return nil
	}
	if _, err := r.store.ApplyPatch(ctx, r.ID, p); err != nil && !errors.Is(err, game.ErrStale) {
		return err
	}
	return nil
}

// observe runs on the store's publishing goroutine, so it must not block.
func (r *Room) observe(snap *game.Room) {
	if snap == nil {
		r.deleted.Store(true)
	} else {
		r.snapshot.Store(snap)
	}
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// --- 实现 state.RoomContext 接口 ---

// GetID 返回房间ID
func (r *Room) GetID() string {
	return r.ID
}

func (r *Room) Snapshot() *game.Room {
	return r.snapshot.Load()
}

// Commit writes p through the store. Losing a race is not an error.
func (r *Room) Commit(p game.Patch) error {
	if p.IsEmpty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	start := time.Now()
	_, err := r.store.ApplyPatch(ctx, r.ID, p)
	r.metrics.ObserveResolution(time.Since(start))
	if errors.Is(err, game.ErrStale) {
		r.metrics.IncStaleTransitions()
		logger.Log.Debugf("room %s: dropped stale transition: %v", r.ID, err)
		return nil
	}
	return err
}

func (r *Room) Brain() *bot.Brain {
	return r.brain
}

func (r *Room) Timings() state.Timings {
	return r.opts.Timings
}

// Reveal 私下告知警长查验结果
func (r *Room) Reveal(userID string, rev *game.Reveal) {
	data, err := json.Marshal(rev)
	if err != nil {
		logger.Log.Errorf("room %s: encode reveal: %v", r.ID, err)
		return
	}
	if err := r.broadcaster.BroadcastToUsers([]string{userID}, network.MsgTypeReveal, data); err != nil {
		logger.Log.Warnf("room %s: reveal to %s: %v", r.ID, userID, err)
	}
}

func (r *Room) Report(ev state.Event) {
	logger.Log.Infow("game event", "room", r.ID, "kind", ev.Kind, "player", ev.PlayerID, "winner", ev.Winner)
	switch ev.Kind {
	case state.EventGameStarted:
		r.metrics.IncGamesStarted()
		r.broadcastEvent(network.MsgTypeGameStart, network.GameEvent{RoomID: r.ID})
	case state.EventNightKill:
		r.metrics.IncEliminations("night_kill")
	case state.EventHanged:
		r.metrics.IncEliminations("hanged")
	case state.EventSaved:
		r.metrics.IncSaves()
	case state.EventGameOver:
		r.metrics.IncGamesFinished(string(ev.Winner))
		r.broadcastEvent(network.MsgTypeGameEnd, network.GameEvent{RoomID: r.ID, Winner: string(ev.Winner)})
	}
}

func (r *Room) broadcastEvent(msgID uint16, ev network.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := r.broadcaster.BroadcastToRoom(r.ID, msgID, data); err != nil {
		logger.Log.Warnf("room %s: broadcast %d: %v", r.ID, msgID, err)
	}
}

// Record 保存对局结果
func (r *Room) Record(snap *game.Room) error {
	if r.records == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return r.records.SaveGameRecord(ctx, models.NewGameRecord(snap, time.Now()))
}

// --- 房间核心逻辑 ---

// Authoritative reports whether this process runs the room's automation.
func (r *Room) Authoritative() bool {
	snap := r.Snapshot()
	return snap != nil && (r.opts.DriverID == "" || snap.DriverID == r.opts.DriverID)
}

// HandleAction routes one participant action to the current phase.
func (r *Room) HandleAction(userID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.Snapshot()
	if snap == nil || r.deleted.Load() {
		return ErrRoomClosed
	}
	if snap.Player(userID) == nil {
		return game.ErrUnknownPlayer
	}
	r.syncState()
	return r.StateMachine.GetCurrentState().HandleAction(member(userID), data)
}

// Update 由主循环调用，每个 tick 驱动一次状态机
func (r *Room) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Snapshot() == nil || r.deleted.Load() {
		return
	}
	r.syncState()
	r.wheel.Advance()
	if !r.Authoritative() {
		return
	}
	if currentState := r.StateMachine.GetCurrentState(); currentState != nil {
		currentState.OnUpdate()
	}
}

// Flush reacts to a published change: the machine follows the new phase
// and every session gets its view.
func (r *Room) Flush() {
	if r.deleted.Load() {
		r.teardown()
		return
	}
	snap := r.Snapshot()
	if snap == nil {
		return
	}

	r.mu.Lock()
	r.syncState()
	r.scheduleInfoClear(snap)
	r.mu.Unlock()

	r.pushState(snap)
}

// syncState 让状态机跟随快照中的阶段
func (r *Room) syncState() {
	snap := r.Snapshot()
	if snap == nil {
		return
	}
	current := r.StateMachine.GetCurrentState()
	if current.GetID() == string(snap.Phase) {
		return
	}
	if err := r.StateMachine.ChangeState(state.NewPhaseState(r, snap.Phase)); err != nil {
		logger.Log.Warnf("room %s: %s -> %s: %v", r.ID, current.GetID(), snap.Phase, err)
	}
}

func (r *Room) scheduleInfoClear(snap *game.Room) {
	if snap.InfoMessage == r.infoShown {
		return
	}
	r.infoShown = snap.InfoMessage
	if r.infoTimer != 0 {
		r.wheel.RemoveTimer(r.infoTimer)
		r.infoTimer = 0
	}
	if snap.InfoMessage == "" || !r.Authoritative() {
		return
	}

	msg := snap.InfoMessage
	r.infoTimer = r.wheel.AddTimer(int64(r.opts.Timings.InfoDisplay), 0, func() {
		r.infoTimer = 0
		p, ok := game.ClearInfo(r.Snapshot(), msg)
		if !ok {
			return
		}
		if err := r.Commit(p); err != nil {
			logger.Log.Warnf("room %s: clear info: %v", r.ID, err)
		}
	})
}

func (r *Room) pushState(snap *game.Room) {
	for _, s := range r.GetSessions() {
		userID, _ := s.Identity()
		data, err := json.Marshal(NewView(snap, userID))
		if err != nil {
			logger.Log.Errorf("room %s: encode view: %v", r.ID, err)
			return
		}
		if err := s.Send(network.MsgTypeRoomState, data); err != nil {
			logger.Log.Debugf("room %s: send state to %s: %v", r.ID, s.ID, err)
		}
	}
}

// SendState pushes the current view to one session, used right after a join.
func (r *Room) SendState(s *session.Session) error {
	snap := r.Snapshot()
	if snap == nil {
		return ErrRoomClosed
	}
	userID, _ := s.Identity()
	data, err := json.Marshal(NewView(snap, userID))
	if err != nil {
		return err
	}
	return s.Send(network.MsgTypeRoomState, data)
}

func (r *Room) teardown() {
	for _, s := range r.GetSessions() {
		s.SetRoom("")
		s.Send(network.MsgTypeRoomClosed, []byte(`{"roomId":"`+r.ID+`"}`))
	}
	if r.onDeleted != nil {
		r.onDeleted(r.ID)
		return
	}
	r.Close()
}

// AddPlayer 添加一个连接到房间
func (r *Room) AddPlayer(s *session.Session) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if _, exists := r.Players[s.ID]; !exists && len(r.Players) >= r.MaxSessions {
		return false
	}

	r.Players[s.ID] = s
	s.SetRoom(r.ID)
	return true
}

// RemovePlayer 从房间移除一个连接
func (r *Room) RemovePlayer(sessionID string) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if player, exists := r.Players[sessionID]; exists {
		player.SetRoom("")
		delete(r.Players, sessionID)
	}
}

// GetPlayer 获取单个连接
func (r *Room) GetPlayer(sessionID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	player, exists := r.Players[sessionID]
	return player, exists
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Players))
	for _, s := range r.Players {
		sessions = append(sessions, s)
	}
	return sessions
}

// SessionCount 当前连接数
func (r *Room) SessionCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.Players)
}

// loop 是房间的主循环，定时驱动状态更新
func (r *Room) loop() {
	for {
		select {
		case <-r.ticker.C:
			r.Update()
		case <-r.changed:
			r.Flush()
		case <-r.closeChan:
			r.ticker.Stop()
			return
		}
	}
}

// Close 关闭房间，停止主循环
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.unsubscribe()
		r.wheel.Clear()
		close(r.closeChan)
	})
}
