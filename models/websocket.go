package models

import (
	"github.com/gorilla/websocket"
)

// ライブ画面のWebsocketクライアントを定義
type Client struct {
	Conn   *websocket.Conn
	UserID uint   // JWTから抽出したユーザーID。匿名の観客は0
	GameID uint
	Role   string // "host" または "spectator"
}
