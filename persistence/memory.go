// persistence/memory.go
package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/models"
)

type memoryDoc struct {
	doc     []byte
	version int64
}

// MemoryStore keeps room documents in process. Used by tests and single
// node deployments without a database.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]memoryDoc
	records []models.GameRecord
	hub     *hub
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]memoryDoc),
		hub:  newHub(),
	}
}

func (m *MemoryStore) Create(ctx context.Context, r *game.Room) error {
	doc, err := game.Encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.docs[r.RoomID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRoomExists, r.RoomID)
	}
	m.docs[r.RoomID] = memoryDoc{doc: doc, version: 1}
	m.mu.Unlock()

	m.hub.publish(r.RoomID, 1, r)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, roomID string) (*game.Room, error) {
	m.mu.Lock()
	d, ok := m.docs[roomID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return game.Decode(d.doc)
}

func (m *MemoryStore) ApplyPatch(ctx context.Context, roomID string, p game.Patch) (*game.Room, error) {
	m.mu.Lock()
	d, ok := m.docs[roomID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	doc, err := p.ApplyJSON(d.doc)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	r, err := game.Decode(doc)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	version := d.version + 1
	m.docs[roomID] = memoryDoc{doc: doc, version: version}
	m.mu.Unlock()

	m.hub.publish(roomID, version, r)
	return r, nil
}

func (m *MemoryStore) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	_, ok := m.docs[roomID]
	delete(m.docs, roomID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	m.hub.publish(roomID, 0, nil)
	return nil
}

func (m *MemoryStore) Subscribe(roomID string, fn func(*game.Room)) func() {
	return m.hub.subscribe(roomID, fn)
}

func (m *MemoryStore) SaveGameRecord(ctx context.Context, rec models.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.GameID == rec.GameID {
			return nil
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) PlayerStats(ctx context.Context, userID string) (models.PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := models.PlayerStats{UserID: userID}
	for _, rec := range m.records {
		for _, p := range rec.Players {
			if p.UserID != userID {
				continue
			}
			stats.TotalGames++
			if p.Won {
				stats.Wins++
			}
			if p.Survived {
				stats.Survived++
			}
		}
	}
	stats.Losses = stats.TotalGames - stats.Wins
	return stats, nil
}

func (m *MemoryStore) RecentGames(ctx context.Context, userID string, limit int) ([]models.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.GameRecord
	for _, rec := range m.records {
		for _, p := range rec.Players {
			if p.UserID == userID {
				out = append(out, rec)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
