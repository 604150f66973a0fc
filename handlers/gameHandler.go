package handlers

import (
	"errors"
	"net/http"

	"rafserver/middlewares"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GetGameByCode は公開6桁コードからゲームの公開情報を返します。観客画面の
// 初期表示用で、認証は不要
func GetGameByCode(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	code := c.Param("code")

	var game models.Game
	if err := db.Where("code6 = ?", code).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		logger.Error("Failed to fetch game by code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ゲーム取得に失敗しました"})
		return
	}

	// ホストのプロフィールから演出タイプを取得
	animationType := "spinning_wheel"
	var host models.User
	if err := db.First(&host, game.CreatedByUserID).Error; err == nil {
		animationType = host.AnimationType
	}

	var soldCount int64
	db.Model(&models.Ticket{}).Where("game_id = ?", game.ID).Count(&soldCount)

	c.JSON(http.StatusOK, gin.H{
		"id":             game.ID,
		"code6":          game.Code6,
		"name":           game.Name,
		"max_tickets":    game.MaxTickets,
		"status":         game.Status,
		"draw_at":        game.DrawAt,
		"tickets_sold":   soldCount,
		"animation_type": animationType,
	})
}

// Dashboard はホスト自身のゲーム一覧と販売実績を返します。
// 売上はチケット価格（最小通貨単位）×販売数をdecimalで集計する
func Dashboard(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, _ := middlewares.CallerFromContext(c)

	var games []models.Game
	if err := db.Where("created_by_user_id = ?", userID).Order("created_at DESC").Find(&games).Error; err != nil {
		logger.Error("Failed to fetch games for dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ゲーム一覧の取得に失敗しました"})
		return
	}

	type gameSummary struct {
		ID          uint   `json:"id"`
		Code6       string `json:"code6"`
		Name        string `json:"name"`
		Status      string `json:"status"`
		MaxTickets  int    `json:"max_tickets"`
		TicketsSold int64  `json:"tickets_sold"`
		Revenue     string `json:"revenue"` // 主要通貨単位の文字列表現
	}

	summaries := make([]gameSummary, 0, len(games))
	totalRevenue := decimal.Zero
	for _, game := range games {
		var soldCount int64
		db.Model(&models.Ticket{}).Where("game_id = ?", game.ID).Count(&soldCount)

		revenue := decimal.NewFromInt(game.TicketPriceMinor).
			Mul(decimal.NewFromInt(soldCount)).
			Div(decimal.NewFromInt(100))
		totalRevenue = totalRevenue.Add(revenue)

		summaries = append(summaries, gameSummary{
			ID:          game.ID,
			Code6:       game.Code6,
			Name:        game.Name,
			Status:      game.Status,
			MaxTickets:  game.MaxTickets,
			TicketsSold: soldCount,
			Revenue:     revenue.StringFixed(2),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"games":         summaries,
		"total_revenue": totalRevenue.StringFixed(2),
	})
}
