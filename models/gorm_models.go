// models/gorm_models.go
package models

import (
	"time"
)

// RoomModel 房间文档，整个房间以 JSONB 存储
type RoomModel struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"uniqueIndex;not null"`
	Document  string `gorm:"type:jsonb;not null"`
	Version   int64  `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RoomModel) TableName() string { return "rooms" }

// GameRecordModel 游戏记录
type GameRecordModel struct {
	ID         uint                `gorm:"primaryKey"`
	GameID     string              `gorm:"uniqueIndex;not null"`
	RoomID     string              `gorm:"index;not null"`
	Mode       string              `gorm:"not null"`
	Winner     string              `gorm:"not null"`
	Days       int                 `gorm:"default:0"`
	Players    []PlayerResultModel `gorm:"foreignKey:GameRecordID;constraint:OnDelete:CASCADE"`
	FinishedAt time.Time           `gorm:"index"`
	CreatedAt  time.Time
}

func (GameRecordModel) TableName() string { return "game_records" }

// PlayerResultModel 单个玩家在一局中的结果
type PlayerResultModel struct {
	ID           uint   `gorm:"primaryKey"`
	GameRecordID uint   `gorm:"index;not null"`
	UserID       string `gorm:"index;not null"`
	Name         string
	Role         string `gorm:"not null"`
	Faction      string `gorm:"not null"`
	Won          bool
	Survived     bool
}

func (PlayerResultModel) TableName() string { return "player_results" }
