package models

import (
	"gorm.io/gorm"
)

// Player モデルの定義。ゲームごとに登録される参加者
type Player struct {
	gorm.Model
	GameID    uint   `gorm:"not null;index"`
	FirstName string `gorm:"size:50;not null"`
	LastName  string `gorm:"size:50;not null"`
	Email     string `gorm:"size:255;not null"`
	Phone     string `gorm:"size:20"`
}
