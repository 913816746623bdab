// services/player_service.go
package services

import (
	"context"
	"fmt"

	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/models"
	"github.com/wfunc/kruivka/persistence"
)

// DefaultRecentGames 默认返回的最近对局数
const DefaultRecentGames = 10

type PlayerService struct {
	games   persistence.GameStore
	records persistence.RecordStore
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{games: db, records: db}
}

// PlayerSummary 玩家战绩
type PlayerSummary struct {
	Stats  models.PlayerStats  `json:"stats"`
	Recent []models.GameRecord `json:"recent"`
}

// GetPlayerWithStats 获取玩家统计和最近对局
func (s *PlayerService) GetPlayerWithStats(ctx context.Context, userID string, limit int) (PlayerSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentGames
	}
	stats, err := s.records.PlayerStats(ctx, userID)
	if err != nil {
		return PlayerSummary{}, fmt.Errorf("player stats %s: %w", userID, err)
	}
	recent, err := s.records.RecentGames(ctx, userID, limit)
	if err != nil {
		return PlayerSummary{}, fmt.Errorf("recent games %s: %w", userID, err)
	}
	return PlayerSummary{Stats: stats, Recent: recent}, nil
}

// GetRoom returns the room as a spectator sees it.
func (s *PlayerService) GetRoom(ctx context.Context, roomID string) (*game.Room, error) {
	r, err := s.games.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return game.Redact(r, ""), nil
}
