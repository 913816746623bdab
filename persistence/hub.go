package persistence

import (
	"sync"

	"github.com/wfunc/kruivka/game"
)

// hub fans snapshots out to local subscribers. Publishes are serialised and
// an older version never follows a newer one.
type hub struct {
	mu    sync.Mutex
	pubMu sync.Mutex
	subs  map[string]map[int64]func(*game.Room)
	last  map[string]int64
	next  int64
}

func newHub() *hub {
	return &hub{
		subs: make(map[string]map[int64]func(*game.Room)),
		last: make(map[string]int64),
	}
}

func (h *hub) subscribe(roomID string, fn func(*game.Room)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[int64]func(*game.Room))
	}
	h.subs[roomID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[roomID], id)
			if len(h.subs[roomID]) == 0 {
				delete(h.subs, roomID)
			}
		})
	}
}

func (h *hub) rooms() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	return ids
}

// publish delivers r at version. A nil room means deleted.
func (h *hub) publish(roomID string, version int64, r *game.Room) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	if r != nil && version <= h.last[roomID] {
		h.mu.Unlock()
		return
	}
	if r == nil {
		delete(h.last, roomID)
	} else {
		h.last[roomID] = version
	}
	fns := make([]func(*game.Room), 0, len(h.subs[roomID]))
	for _, fn := range h.subs[roomID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		if r == nil {
			fn(nil)
			continue
		}
		// every subscriber gets its own copy
		fn(r.Clone())
	}
}
