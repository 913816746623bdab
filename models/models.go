// models/models.go
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/kruivka/game"
)

// GameRecord 游戏记录模型
type GameRecord struct {
	GameID     string         `json:"game_id"`
	RoomID     string         `json:"room_id"`
	Mode       string         `json:"mode"`
	Winner     string         `json:"winner"`
	Days       int            `json:"days"`
	Players    []PlayerResult `json:"players"`
	FinishedAt time.Time      `json:"finished_at"`
}

// PlayerResult 玩家结果（用于游戏记录）
type PlayerResult struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Faction  string `json:"faction"`
	Won      bool   `json:"won"`
	Survived bool   `json:"survived"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	UserID     string `json:"user_id"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Survived   int    `json:"survived"`
}

// NewGameRecord summarises a finished room. Bots are left out.
func NewGameRecord(r *game.Room, finishedAt time.Time) GameRecord {
	rec := GameRecord{
		GameID:     uuid.NewString(),
		RoomID:     r.RoomID,
		Mode:       string(r.GameMode),
		Winner:     string(r.Winner),
		Days:       r.DayNumber,
		FinishedAt: finishedAt,
	}
	for _, p := range r.SortedPlayers() {
		if p.IsBot() {
			continue
		}
		faction := game.FactionUPA
		if p.Role.IsKiller() {
			faction = game.FactionNKVD
		}
		rec.Players = append(rec.Players, PlayerResult{
			UserID:   p.UserID,
			Name:     p.Name,
			Role:     string(p.Role),
			Faction:  string(faction),
			Won:      faction == r.Winner,
			Survived: p.Alive,
		})
	}
	return rec
}

// ToModel converts the record to its table rows.
func (g GameRecord) ToModel() GameRecordModel {
	m := GameRecordModel{
		GameID:     g.GameID,
		RoomID:     g.RoomID,
		Mode:       g.Mode,
		Winner:     g.Winner,
		Days:       g.Days,
		FinishedAt: g.FinishedAt,
	}
	for _, p := range g.Players {
		m.Players = append(m.Players, PlayerResultModel{
			UserID:   p.UserID,
			Name:     p.Name,
			Role:     p.Role,
			Faction:  p.Faction,
			Won:      p.Won,
			Survived: p.Survived,
		})
	}
	return m
}

// FromModel is the inverse of ToModel.
func FromModel(m GameRecordModel) GameRecord {
	g := GameRecord{
		GameID:     m.GameID,
		RoomID:     m.RoomID,
		Mode:       m.Mode,
		Winner:     m.Winner,
		Days:       m.Days,
		FinishedAt: m.FinishedAt,
	}
	for _, p := range m.Players {
		g.Players = append(g.Players, PlayerResult{
			UserID:   p.UserID,
			Name:     p.Name,
			Role:     p.Role,
			Faction:  p.Faction,
			Won:      p.Won,
			Survived: p.Survived,
		})
	}
	return g
}
