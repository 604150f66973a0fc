package models

import "time"

// トークン発行リクエスト。Tokenが空でなければ検証・更新を行う
type TokenRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// ゲーム作成リクエスト
type CreateGameRequest struct {
	Name             string    `json:"name" binding:"required,max=100"`
	TicketPriceMinor int64     `json:"ticket_price_minor" binding:"gte=0,lte=1000000"`
	MaxTickets       int       `json:"max_tickets" binding:"required,gt=0,lte=1000000"`
	DrawAt           time.Time `json:"draw_at" binding:"required"`
}

// プレイヤー登録リクエスト。チケット番号はサーバー側で割り当てる
type AddPlayerRequest struct {
	FirstName string `json:"first_name" binding:"required,max=50"`
	LastName  string `json:"last_name" binding:"required,max=50"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Phone     string `json:"phone" binding:"max=20"`
}

// ステータス変更リクエスト
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
