package room

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/network"
	"github.com/wfunc/kruivka/persistence"
	"github.com/wfunc/kruivka/session"
	"github.com/wfunc/kruivka/state"
)

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	mu      sync.Mutex
	toRoom  []uint16
	toUsers map[string][]uint16
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toRoom = append(m.toRoom, msgID)
	return nil
}

func (m *MockBroadcaster) BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.toUsers == nil {
		m.toUsers = map[string][]uint16{}
	}
	for _, id := range userIDs {
		m.toUsers[id] = append(m.toUsers[id], msgID)
	}
	return nil
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mu   sync.Mutex
	sent []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) count(msgID uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.sent {
		if id == msgID {
			n++
		}
	}
	return n
}

// MockMetrics counts stale transitions.
type MockMetrics struct {
	nopMetrics
	stale int
}

func (m *MockMetrics) IncStaleTransitions() { m.stale++ }

// newTestSession creates a dummy session for testing purposes.
func newTestSession(id string) *session.Session {
	return session.NewSession(id, &MockConnection{})
}

func newTestRoom(t *testing.T, opts Options) (*Room, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	r := game.NewRoom("UKR-TEST", game.Player{UserID: "host", Name: "Host"}, game.ModeOpen)
	if err := store.Create(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if opts.Timings == (state.Timings{}) {
		opts.Timings = state.DefaultTimings()
	}
	room, err := NewRoom(context.Background(), r.RoomID, store, store, &MockBroadcaster{}, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(room.Close)
	return room, store
}

func newTestManager(t *testing.T) (*Manager, *persistence.MemoryStore, *MockBroadcaster) {
	t.Helper()
	store := persistence.NewMemoryStore()
	manager := NewRoomManager(store, Options{Timings: state.DefaultTimings()}, BrainOptions{Seed: 7})
	b := &MockBroadcaster{}
	manager.SetBroadcaster(b)
	t.Cleanup(manager.Close)
	return manager, store, b
}

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	manager, store, _ := newTestManager(t)

	room, err := manager.CreateRoom(context.Background(), game.Player{UserID: "host", Name: "Host"}, game.ModeClosed)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(room.ID, "UKR-") {
		t.Errorf("Expected room code with UKR- prefix, got %s", room.ID)
	}

	retrievedRoom, exists := manager.GetRoom(room.ID)
	if !exists {
		t.Fatal("GetRoom should find the created room")
	}
	if retrievedRoom != room {
		t.Error("GetRoom should return the same room instance")
	}

	stored, err := store.Get(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.HostID != "host" || stored.GameMode != game.ModeClosed {
		t.Errorf("Unexpected stored room: host %s mode %s", stored.HostID, stored.GameMode)
	}
}

func TestRoom_AddPlayer(t *testing.T) {
	room, _ := newTestRoom(t, Options{MaxSessions: 2})

	player1 := newTestSession("player1")

	added := room.AddPlayer(player1)
	if !added {
		t.Fatal("Failed to add first player")
	}

	if len(room.Players) != 1 {
		t.Errorf("Expected player count to be 1, got %d", len(room.Players))
	}

	if _, exists := room.Players[player1.GetID()]; !exists {
		t.Error("Player was not correctly added to the room's player map")
	}
	if player1.Room() != room.ID {
		t.Errorf("Expected session room %s, got %s", room.ID, player1.Room())
	}
}

func TestRoom_AddPlayer_Full(t *testing.T) {
	room, _ := newTestRoom(t, Options{MaxSessions: 1})

	player1 := newTestSession("player1")
	player2 := newTestSession("player2")

	// Add first player, should succeed
	if !room.AddPlayer(player1) {
		t.Fatal("Failed to add the first player")
	}

	// Add second player, should fail
	if room.AddPlayer(player2) {
		t.Fatal("Should not be able to add a player to a full room")
	}

	if len(room.Players) != 1 {
		t.Errorf("Expected player count to be 1 after trying to add to a full room, got %d", len(room.Players))
	}
}

func TestRoom_RemovePlayer(t *testing.T) {
	room, _ := newTestRoom(t, Options{})

	player1 := newTestSession("player1")
	room.AddPlayer(player1)

	if len(room.Players) != 1 {
		t.Fatalf("Setup failed: player not added correctly. Count: %d", len(room.Players))
	}

	room.RemovePlayer(player1.GetID())

	if len(room.Players) != 0 {
		t.Errorf("Expected player count to be 0 after removing player, got %d", len(room.Players))
	}

	if _, exists := room.Players[player1.GetID()]; exists {
		t.Error("Player was not correctly removed from the room's player map")
	}
}

func TestRoomStartFollowsPhase(t *testing.T) {
	ctx := context.Background()
	manager, _, b := newTestManager(t)

	room, err := manager.CreateRoom(ctx, game.Player{UserID: "host", Name: "Host"}, game.ModeOpen)
	require.NoError(t, err)

	conn := &MockConnection{}
	sess := session.NewSession("s-host", conn)
	sess.Identify("host", "Host")
	_, err = manager.Join(ctx, room.ID, sess)
	require.NoError(t, err)
	assert.Equal(t, 1, conn.count(network.MsgTypeRoomState))

	require.ErrorIs(t, room.HandleAction("host", []byte(`{"type":"start"}`)), game.ErrNotEnoughPlayers)
	require.NoError(t, room.HandleAction("host", []byte(`{"type":"add_bots"}`)))
	require.Len(t, room.Snapshot().Players, game.MaxPlayers)
	require.NoError(t, room.HandleAction("host", []byte(`{"type":"start"}`)))

	snap := room.Snapshot()
	assert.Equal(t, game.StatusPlaying, snap.Status)
	assert.Contains(t, []game.Phase{game.PhaseNightZero, game.PhaseNight}, snap.Phase)

	room.Flush()
	assert.Equal(t, string(snap.Phase), room.StateMachine.GetCurrentState().GetID())
	assert.Equal(t, 2, conn.count(network.MsgTypeRoomState))
	assert.Contains(t, b.toRoom, uint16(network.MsgTypeGameStart))
}

func TestRoomRejectsStrangers(t *testing.T) {
	room, _ := newTestRoom(t, Options{})
	err := room.HandleAction("stranger", []byte(`{"type":"ready","ready":true}`))
	assert.ErrorIs(t, err, game.ErrUnknownPlayer)
}

func TestRoomInfoClearsAfterDisplay(t *testing.T) {
	ctx := context.Background()
	room, store := newTestRoom(t, Options{})

	_, err := store.ApplyPatch(ctx, room.ID, game.Patch{Set: map[string]any{"infoMessage": "Hello"}})
	require.NoError(t, err)
	room.Flush()

	for i := 1; i < room.Timings().InfoDisplay; i++ {
		room.Update()
		assert.Equal(t, "Hello", room.Snapshot().InfoMessage)
	}
	room.Update()
	assert.Empty(t, room.Snapshot().InfoMessage)
}

func TestRoomMirrorsWhenNotAuthoritative(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	r := game.NewRoom("UKR-TEST", game.Player{UserID: "host", Name: "Host"}, game.ModeOpen)
	r.DriverID = "node-b"
	require.NoError(t, store.Create(ctx, r))

	room, err := NewRoom(ctx, r.RoomID, store, store, &MockBroadcaster{}, nil, Options{Timings: state.DefaultTimings(), DriverID: "node-a"})
	require.NoError(t, err)
	t.Cleanup(room.Close)
	assert.False(t, room.Authoritative())
	assert.Equal(t, "node-b", room.Snapshot().DriverID)

	_, err = store.ApplyPatch(ctx, room.ID, game.Patch{Set: map[string]any{"infoMessage": "Hello"}})
	require.NoError(t, err)
	room.Flush()
	for i := 0; i < 10; i++ {
		room.Update()
	}
	assert.Equal(t, "Hello", room.Snapshot().InfoMessage)
}

func TestRoomWithDriverIDClaimsAndAdvances(t *testing.T) {
	ctx := context.Background()
	room, store := newTestRoom(t, Options{DriverID: "node-a"})
	require.True(t, room.Authoritative())
	stored, err := store.Get(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "node-a", stored.DriverID)
	assert.Equal(t, "host", stored.HostID)

	// a second node attaching later only mirrors
	other, err := NewRoom(ctx, room.ID, store, store, &MockBroadcaster{}, nil, Options{Timings: state.DefaultTimings(), DriverID: "node-b"})
	require.NoError(t, err)
	t.Cleanup(other.Close)
	assert.False(t, other.Authoritative())

	_, err = store.ApplyPatch(ctx, room.ID, game.Patch{Set: map[string]any{"infoMessage": "Hello"}})
	require.NoError(t, err)
	room.Flush()
	for i := 0; i < room.Timings().InfoDisplay; i++ {
		room.Update()
	}
	assert.Empty(t, room.Snapshot().InfoMessage)
}

func TestRoomStaleCommitIsDropped(t *testing.T) {
	metrics := &MockMetrics{}
	room, _ := newTestRoom(t, Options{Metrics: metrics})

	p := game.Patch{
		Guard: game.Guard{Equal: map[string]any{"status": string(game.StatusPlaying)}},
		Set:   map[string]any{"infoMessage": "never"},
	}
	require.NoError(t, room.Commit(p))
	assert.Equal(t, 1, metrics.stale)
	assert.Empty(t, room.Snapshot().InfoMessage)
}

func TestManagerLeaveTearsDownEmptyLobby(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	room, err := manager.CreateRoom(ctx, game.Player{UserID: "host", Name: "Host"}, game.ModeOpen)
	require.NoError(t, err)

	host := newTestSession("s-host")
	host.Identify("host", "Host")
	guest := newTestSession("s-guest")
	guest.Identify("guest", "Guest")
	_, err = manager.Join(ctx, room.ID, host)
	require.NoError(t, err)
	_, err = manager.Join(ctx, room.ID, guest)
	require.NoError(t, err)
	require.NotNil(t, room.Snapshot().Player("guest"))

	require.NoError(t, manager.Leave(ctx, host))
	assert.Equal(t, "guest", room.Snapshot().HostID)
	assert.Nil(t, room.Snapshot().Player("host"))

	require.NoError(t, manager.Leave(ctx, guest))
	_, exists := manager.GetRoom(room.ID)
	assert.False(t, exists)
	_, err = store.Get(ctx, room.ID)
	assert.ErrorIs(t, err, persistence.ErrRoomNotFound)
}

func TestRoomClosesWhenDeleted(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	room, err := manager.CreateRoom(ctx, game.Player{UserID: "host", Name: "Host"}, game.ModeOpen)
	require.NoError(t, err)
	conn := &MockConnection{}
	sess := session.NewSession("s-host", conn)
	sess.Identify("host", "Host")
	_, err = manager.Join(ctx, room.ID, sess)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, room.ID))
	room.Flush()

	_, exists := manager.GetRoom(room.ID)
	assert.False(t, exists)
	assert.Equal(t, 1, conn.count(network.MsgTypeRoomClosed))
	assert.Empty(t, sess.Room())
	assert.ErrorIs(t, room.HandleAction("host", []byte(`{"type":"ready"}`)), ErrRoomClosed)
}

func TestRoomRecord(t *testing.T) {
	ctx := context.Background()
	room, store := newTestRoom(t, Options{})

	finished := room.Snapshot().Clone()
	finished.Status = game.StatusFinished
	finished.Winner = game.FactionUPA
	require.NoError(t, room.Record(finished))

	stats, err := store.PlayerStats(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.Wins)
}

func TestManagerDisconnectKeepsSeat(t *testing.T) {
	ctx := context.Background()
	manager, store, _ := newTestManager(t)

	room, err := manager.CreateRoom(ctx, game.Player{UserID: "host", Name: "Host"}, game.ModeOpen)
	require.NoError(t, err)
	sess := newTestSession("s-host")
	sess.Identify("host", "Host")
	_, err = manager.Join(ctx, room.ID, sess)
	require.NoError(t, err)

	manager.Disconnect(sess)
	assert.Equal(t, 0, room.SessionCount())
	assert.NotNil(t, room.Snapshot().Player("host"))

	// reconnecting reattaches the seated participant
	again := newTestSession("s-host-2")
	again.Identify("host", "Host")
	_, err = manager.Join(ctx, room.ID, again)
	require.NoError(t, err)
	assert.Len(t, room.Snapshot().Players, 1)

	// a finished room is dropped once its last session goes
	_, err = store.ApplyPatch(ctx, room.ID, game.Finish(game.FactionUPA))
	require.NoError(t, err)
	manager.Disconnect(again)
	_, exists := manager.GetRoom(room.ID)
	assert.False(t, exists)
}
