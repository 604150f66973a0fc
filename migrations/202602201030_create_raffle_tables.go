package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const maxRetries = 3                  // 最大再試行回数
const retryInterval = 5 * time.Second // 再試行間の待機時間

var logger *zap.Logger

func init() {
	var err error
	// Zapのロガーを設定
	logger, err = zap.NewProduction()
	if err != nil {
		panic(err)
	}
}

// User モデルの定義
type User struct {
	gorm.Model
	Username      string `gorm:"unique;not null"`
	Role          string `gorm:"not null;default:host"`
	AnimationType string `gorm:"not null;default:spinning_wheel"`
}

// Game モデルの定義
type Game struct {
	gorm.Model
	Code6            string    `gorm:"size:6;uniqueIndex;not null"`
	Name             string    `gorm:"not null"`
	TicketPriceMinor int64     `gorm:"not null"`
	MaxTickets       int       `gorm:"not null"`
	DrawAt           time.Time `gorm:"not null"`
	Status           string    `gorm:"not null;default:draft"`
	CreatedByUserID  uint      `gorm:"not null;index"`
}

// Player モデルの定義
type Player struct {
	gorm.Model
	GameID    uint   `gorm:"not null;index"`
	FirstName string `gorm:"size:50;not null"`
	LastName  string `gorm:"size:50;not null"`
	Email     string `gorm:"size:255;not null"`
	Phone     string `gorm:"size:20"`
}

// Ticket モデルの定義
type Ticket struct {
	gorm.Model
	GameID   uint `gorm:"not null;uniqueIndex:idx_tickets_game_number"`
	Number   int  `gorm:"not null;uniqueIndex:idx_tickets_game_number"`
	PlayerID uint `gorm:"not null;index"`
	Eligible bool `gorm:"not null;default:true"`
}

// Draw モデルの定義（追記専用の抽選台帳）
type Draw struct {
	ID             uint      `gorm:"primarykey"`
	GameID         uint      `gorm:"not null;index"`
	Algorithm      string    `gorm:"not null"`
	WinnerTicketID *uint     `gorm:"index"`
	ExecutedAt     time.Time `gorm:"not null;index"`
	AuditJSON      datatypes.JSON
}

// AuditLog モデルの定義
type AuditLog struct {
	ID          uint  `gorm:"primarykey"`
	GameID      *uint `gorm:"index"`
	ActorUserID *uint `gorm:"index"`
	EventType   string `gorm:"not null"`
	EventData   datatypes.JSON
	CreatedAt   time.Time
}

// テーブルの作成
func AutoMigrateDB(db *gorm.DB) {
	err := db.AutoMigrate(&User{}, &Game{}, &Player{}, &Ticket{}, &Draw{}, &AuditLog{})
	if err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}
	fmt.Println("Raffle tables created successfully")
}

func main() {
	defer logger.Sync()

	// 環境変数からデータベースの接続情報を取得
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE")

	dsn := "host=" + host + " user=" + user + " dbname=" + dbname + " password=" + password + " sslmode=" + sslmode

	var db *gorm.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		logger.Warn("データベース接続に失敗しました。再試行します",
			zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(retryInterval)
	}
	if err != nil {
		logger.Fatal("データベースに接続できませんでした", zap.Error(err))
	}

	AutoMigrateDB(db)
}
