package models

import (
	"gorm.io/gorm"
)

// Ticket モデルの定義。番号はゲーム内で一意（複合ユニークインデックス）
type Ticket struct {
	gorm.Model
	GameID   uint `gorm:"not null;uniqueIndex:idx_tickets_game_number"`
	Number   int  `gorm:"not null;uniqueIndex:idx_tickets_game_number"` // [1, Game.MaxTickets]
	PlayerID uint `gorm:"not null;index"`
	Eligible bool `gorm:"not null;default:true"` // falseのチケットは当選対象にならない
}
