// room/manager.go
package room

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/kruivka/bot"
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/persistence"
	"github.com/wfunc/kruivka/session"
)

const createAttempts = 5

// BrainOptions 机器人参数
type BrainOptions struct {
	Seed           int64 // 0 seeds from the clock
	NominateChance float64
}

// Manager 管理所有房间
type Manager struct {
	rooms       map[string]*Room
	mutex       sync.RWMutex
	store       persistence.Database
	broadcaster Broadcaster
	opts        Options
	brains      BrainOptions
	seq         int64
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(store persistence.Database, opts Options, brains BrainOptions) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Manager{
		rooms:  make(map[string]*Room),
		store:  store,
		opts:   opts,
		brains: brains,
	}
}

// SetBroadcaster wires the broadcaster, which itself needs the manager.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.broadcaster = b
}

// newBrain gives every room its own random source.
func (m *Manager) newBrain() *bot.Brain {
	seed := m.brains.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m.seq++
	brain := bot.NewBrain(rand.New(rand.NewSource(seed + m.seq)))
	if m.brains.NominateChance > 0 {
		brain.NominateChance = m.brains.NominateChance
	}
	return brain
}

// NewRoomCode returns a short shareable room id.
func NewRoomCode() string {
	return "UKR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
}

// CreateRoom 创建一个新房间并添加到管理器
func (m *Manager) CreateRoom(ctx context.Context, host game.Player, mode game.Mode) (*Room, error) {
	var err error
	for i := 0; i < createAttempts; i++ {
		r := game.NewRoom(NewRoomCode(), host, mode)
		if err = m.store.Create(ctx, r); err == nil {
			logger.Log.Infof("room %s created by %s (%s)", r.RoomID, host.UserID, r.GameMode)
			return m.OpenRoom(ctx, r.RoomID)
		}
		if !errors.Is(err, persistence.ErrRoomExists) {
			return nil, err
		}
	}
	return nil, err
}

// OpenRoom returns the driver of a stored room, attaching one if needed.
func (m *Manager) OpenRoom(ctx context.Context, id string) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room, nil
	}
	room, err := NewRoom(ctx, id, m.store, m.store, m.broadcaster, m.newBrain(), m.opts)
	if err != nil {
		return nil, err
	}
	room.onDeleted = m.RemoveRoom
	m.rooms[id] = room
	m.opts.Metrics.SetActiveRooms(len(m.rooms))
	return room, nil
}

// Join seats the session's participant in the room, or reattaches a
// participant who is already seated.
func (m *Manager) Join(ctx context.Context, id string, s *session.Session) (*Room, error) {
	room, err := m.OpenRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	userID, name := s.Identity()
	if room.Snapshot().Player(userID) == nil {
		p, err := game.Join(room.Snapshot(), game.Player{UserID: userID, Name: name})
		if err != nil {
			return nil, err
		}
		if _, err := m.store.ApplyPatch(ctx, id, p); err != nil && !errors.Is(err, game.ErrStale) {
			return nil, err
		}
		// a stale join means someone else changed the room first
		if room.Snapshot().Player(userID) == nil {
			return nil, game.ErrStale
		}
	}
	if !room.AddPlayer(s) {
		return nil, ErrRoomFull
	}
	return room, room.SendState(s)
}

// Leave detaches the session. Before the game starts the participant also
// gives up the seat; the room is torn down once no humans remain.
func (m *Manager) Leave(ctx context.Context, s *session.Session) error {
	id := s.Room()
	room, exists := m.GetRoom(id)
	if !exists {
		return nil
	}
	room.RemovePlayer(s.ID)

	snap := room.Snapshot()
	if snap == nil {
		return nil
	}
	userID, _ := s.Identity()
	switch snap.Status {
	case game.StatusLobby:
		if snap.Player(userID) == nil {
			return nil
		}
		p, res, err := game.Leave(snap, userID)
		if err != nil {
			return err
		}
		if res.Empty {
			return m.Teardown(ctx, id)
		}
		if _, err := m.store.ApplyPatch(ctx, id, p); err != nil && !errors.Is(err, game.ErrStale) {
			return err
		}
	case game.StatusFinished:
		if room.SessionCount() == 0 {
			return m.Teardown(ctx, id)
		}
	}
	return nil
}

// Disconnect drops a closed connection without giving up the seat. A
// finished room nobody watches any more is torn down.
func (m *Manager) Disconnect(s *session.Session) {
	room, exists := m.GetRoom(s.Room())
	if !exists {
		return
	}
	room.RemovePlayer(s.ID)
	if snap := room.Snapshot(); snap == nil || snap.Status != game.StatusFinished || room.SessionCount() > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.Teardown(ctx, room.ID); err != nil {
		logger.Log.Warnf("room %s: teardown: %v", room.ID, err)
	}
}

// Teardown deletes the room from the store and closes its driver.
func (m *Manager) Teardown(ctx context.Context, id string) error {
	err := m.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, persistence.ErrRoomNotFound) {
		return err
	}
	m.RemoveRoom(id)
	logger.Log.Infof("room %s torn down", id)
	return nil
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		room.Close()
		delete(m.rooms, id)
		m.opts.Metrics.SetActiveRooms(len(m.rooms))
	}
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Count 当前房间数
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Close 关闭所有房间
func (m *Manager) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id, room := range m.rooms {
		room.Close()
		delete(m.rooms, id)
	}
}
