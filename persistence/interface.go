// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/models"
)

// GameStore is the shared room store: atomic patches plus change
// subscriptions.
type GameStore interface {
	Create(ctx context.Context, r *game.Room) error
	Get(ctx context.Context, roomID string) (*game.Room, error)
	// ApplyPatch checks the patch guard and writes it atomically. A failed
	// guard returns an error wrapping game.ErrStale.
	ApplyPatch(ctx context.Context, roomID string, p game.Patch) (*game.Room, error)
	Delete(ctx context.Context, roomID string) error
	// Subscribe calls fn with every new snapshot of the room, and with nil
	// once the room is deleted. fn must not call back into the store.
	Subscribe(roomID string, fn func(*game.Room)) (cancel func())
}

// RecordStore keeps finished games.
type RecordStore interface {
	SaveGameRecord(ctx context.Context, rec models.GameRecord) error
	PlayerStats(ctx context.Context, userID string) (models.PlayerStats, error)
	RecentGames(ctx context.Context, userID string, limit int) ([]models.GameRecord, error)
}

// Database 数据库接口
type Database interface {
	GameStore
	RecordStore
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("room already exists")
)
