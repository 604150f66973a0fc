package models

import (
	"time"

	"gorm.io/gorm"
)

// Game のステータス遷移は draft → open → locked → drawn → closed の一方向。
// drawn への遷移は抽選プロトコル（drawパッケージ）だけが行う。
const (
	GameStatusDraft  = "draft"
	GameStatusOpen   = "open"
	GameStatusLocked = "locked"
	GameStatusDrawn  = "drawn"
	GameStatusClosed = "closed"
)

// Game モデルの定義（1つの抽選会＝1レコード）
type Game struct {
	gorm.Model
	Code6            string    `gorm:"size:6;uniqueIndex;not null"` // 観客が入室に使う公開6桁コード
	Name             string    `gorm:"not null"`                    // 賞品名
	TicketPriceMinor int64     `gorm:"not null"`                    // チケット価格（最小通貨単位）
	MaxTickets       int       `gorm:"not null"`                    // チケット番号の上限。番号は[1, MaxTickets]
	DrawAt           time.Time `gorm:"not null"`
	Status           string    `gorm:"not null;default:draft"`
	CreatedByUserID  uint      `gorm:"not null;index"`
}
