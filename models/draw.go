package models

import (
	"time"

	"gorm.io/datatypes"
)

// Draw は抽選試行1回分の台帳レコード。追記専用で、書き込み後の更新・削除は行わない。
// WinnerTicketID が null の行は「該当番号のチケット未販売」だった試行を表す。
type Draw struct {
	ID             uint      `gorm:"primarykey"`
	GameID         uint      `gorm:"not null;index"`
	Algorithm      string    `gorm:"not null"` // 乱数生成方式のタグ
	WinnerTicketID *uint     `gorm:"index"`
	ExecutedAt     time.Time `gorm:"not null;index"`
	AuditJSON      datatypes.JSON
}

// DrawAudit は AuditJSON に格納する監査情報
type DrawAudit struct {
	WinningNumber      int    `json:"winning_number"`
	Timestamp          string `json:"timestamp"`
	EntropySourceBytes string `json:"entropy_source_bytes"` // 乱数源から読んだ生バイト列（hex）
}

// AuditLog はゲーム作成やステータス変更などの操作ログ
type AuditLog struct {
	ID          uint      `gorm:"primarykey"`
	GameID      *uint     `gorm:"index"`
	ActorUserID *uint     `gorm:"index"`
	EventType   string    `gorm:"not null"`
	EventData   datatypes.JSON
	CreatedAt   time.Time
}
