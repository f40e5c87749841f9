// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGameRecord 游戏记录模型
type GormGameRecord struct {
	gorm.Model
	RoomID    string           `gorm:"index;not null"`
	Outcome   string           `gorm:"not null"`
	Turns     int              `gorm:"default:0"`
	RealTurns int              `gorm:"default:0"`
	Players   []GormGamePlayer `gorm:"foreignKey:GameRecordID"`
}

// GormGamePlayer 对局中的一名玩家
type GormGamePlayer struct {
	gorm.Model
	GameRecordID uint   `gorm:"index;not null"`
	UserID       string `gorm:"not null"`
	Name         string
	Role         string `gorm:"not null"`
	Burned       bool   `gorm:"default:false"`
	Admin        bool   `gorm:"default:false"`
}

// ToRecord converts the stored row back to the domain record.
func (g *GormGameRecord) ToRecord() GameRecord {
	rec := GameRecord{
		RoomID:    g.RoomID,
		Outcome:   Outcome(g.Outcome),
		Turns:     g.Turns,
		RealTurns: g.RealTurns,
		CreatedAt: g.CreatedAt,
		Players:   make([]PlayerInfo, 0, len(g.Players)),
	}
	for _, p := range g.Players {
		rec.Players = append(rec.Players, PlayerInfo{
			UserID: p.UserID,
			Name:   p.Name,
			Role:   Role(p.Role),
			Burned: p.Burned,
			Admin:  p.Admin,
		})
	}
	return rec
}

// NewGormGameRecord builds the row for rec.
func NewGormGameRecord(rec GameRecord) *GormGameRecord {
	row := &GormGameRecord{
		RoomID:    rec.RoomID,
		Outcome:   string(rec.Outcome),
		Turns:     rec.Turns,
		RealTurns: rec.RealTurns,
	}
	for _, p := range rec.Players {
		row.Players = append(row.Players, GormGamePlayer{
			UserID: p.UserID,
			Name:   p.Name,
			Role:   string(p.Role),
			Burned: p.Burned,
			Admin:  p.Admin,
		})
	}
	return row
}
