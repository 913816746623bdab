// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wfunc/kruivka/config"
	"github.com/wfunc/kruivka/game"
	"github.com/wfunc/kruivka/logger"
	"github.com/wfunc/kruivka/models"
)

// RoomChannel is the postgres NOTIFY channel carrying changed room ids.
const RoomChannel = "room_changes"

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db  *gorm.DB
	hub *hub
}

// DSN builds the libpq connection string shared by gorm and the listener.
func DSN(c config.PostgresConfig) string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslmode)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(c config.PostgresConfig) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(DSN(c)), &gorm.Config{
		Logger:         logger.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db, hub: newHub()}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.RoomModel{},
		&models.GameRecordModel{},
		&models.PlayerResultModel{},
	)
}

func (p *GormPostgreSQL) Create(ctx context.Context, r *game.Room) error {
	doc, err := game.Encode(r)
	if err != nil {
		return err
	}
	m := models.RoomModel{RoomID: r.RoomID, Document: string(doc), Version: 1}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrRoomExists, r.RoomID)
			}
			return err
		}
		return notify(tx, r.RoomID)
	})
	if err != nil {
		return err
	}
	p.hub.publish(r.RoomID, m.Version, r)
	return nil
}

func (p *GormPostgreSQL) load(ctx context.Context, roomID string) (*game.Room, int64, error) {
	var m models.RoomModel
	if err := p.db.WithContext(ctx).Where("room_id = ?", roomID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return nil, 0, err
	}
	r, err := game.Decode([]byte(m.Document))
	return r, m.Version, err
}

func (p *GormPostgreSQL) Get(ctx context.Context, roomID string) (*game.Room, error) {
	r, _, err := p.load(ctx, roomID)
	return r, err
}

// ApplyPatch locks the room row, checks the guard and rewrites the document
// in one transaction, then notifies listeners.
func (p *GormPostgreSQL) ApplyPatch(ctx context.Context, roomID string, patch game.Patch) (*game.Room, error) {
	var (
		room    *game.Room
		version int64
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.RoomModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ?", roomID).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		if err != nil {
			return err
		}

		doc, err := patch.ApplyJSON([]byte(m.Document))
		if err != nil {
			return err
		}
		if room, err = game.Decode(doc); err != nil {
			return err
		}
		version = m.Version + 1
		err = tx.Model(&m).Updates(map[string]interface{}{
			"document": string(doc),
			"version":  version,
		}).Error
		if err != nil {
			return err
		}
		return notify(tx, roomID)
	})
	if err != nil {
		return nil, err
	}
	p.hub.publish(roomID, version, room)
	return room, nil
}

func (p *GormPostgreSQL) Delete(ctx context.Context, roomID string) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ?", roomID).Delete(&models.RoomModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return notify(tx, roomID)
	})
	if err != nil {
		return err
	}
	p.hub.publish(roomID, 0, nil)
	return nil
}

func (p *GormPostgreSQL) Subscribe(roomID string, fn func(*game.Room)) func() {
	return p.hub.subscribe(roomID, fn)
}

// reload publishes the stored state of roomID to local subscribers. It is
// how changes made by other processes arrive.
func (p *GormPostgreSQL) reload(ctx context.Context, roomID string) error {
	r, version, err := p.load(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		p.hub.publish(roomID, 0, nil)
		return nil
	}
	if err != nil {
		return err
	}
	p.hub.publish(roomID, version, r)
	return nil
}

func notify(tx *gorm.DB, roomID string) error {
	return tx.Exec("SELECT pg_notify(?, ?)", RoomChannel, roomID).Error
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, rec models.GameRecord) error {
	m := rec.ToModel()
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "game_id"}}, DoNothing: true}).
		Create(&m).Error
}

// PlayerStats 玩家战绩统计
func (p *GormPostgreSQL) PlayerStats(ctx context.Context, userID string) (models.PlayerStats, error) {
	var row struct {
		TotalGames int
		Wins       int
		Survived   int
	}
	err := p.db.WithContext(ctx).Model(&models.PlayerResultModel{}).
		Select(`COUNT(*) AS total_games,
			COALESCE(SUM(CASE WHEN won THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(CASE WHEN survived THEN 1 ELSE 0 END), 0) AS survived`).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return models.PlayerStats{}, err
	}
	return models.PlayerStats{
		UserID:     userID,
		TotalGames: row.TotalGames,
		Wins:       row.Wins,
		Losses:     row.TotalGames - row.Wins,
		Survived:   row.Survived,
	}, nil
}

func (p *GormPostgreSQL) RecentGames(ctx context.Context, userID string, limit int) ([]models.GameRecord, error) {
	var rows []models.GameRecordModel
	q := p.db.WithContext(ctx).Preload("Players").
		Where("id IN (?)", p.db.Model(&models.PlayerResultModel{}).Select("game_record_id").Where("user_id = ?", userID)).
		Order("finished_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.GameRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, models.FromModel(m))
	}
	return out, nil
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Database = (*GormPostgreSQL)(nil)
var _ Database = (*MemoryStore)(nil)
