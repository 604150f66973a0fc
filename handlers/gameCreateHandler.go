package handlers

import (
	"math/rand"
	"net/http"
	"time"

	"rafserver/middlewares"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// code6は秘密情報ではないので疑似乱数で十分
func createLocalRandGenerator() *rand.Rand {
	source := rand.NewSource(time.Now().UnixNano())
	return rand.New(source)
}

func generateCode6(randGen *rand.Rand) string {
	const digits = "0123456789"
	code := make([]byte, 6)
	for i := range code {
		code[i] = digits[randGen.Intn(len(digits))]
	}
	return string(code)
}

// CreateGame は新しい抽選ゲームを作成します。公開用の6桁コードは衝突時に
// 引き直して一意性を保証する
func CreateGame(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, _ := middlewares.CallerFromContext(c)

	var request models.CreateGameRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Error("Game create request bind error", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 6桁コードの生成。既存コードと衝突したら引き直す
	randGen := createLocalRandGenerator()
	var code6 string
	for attempt := 0; attempt < 10; attempt++ {
		code6 = generateCode6(randGen)
		var count int64
		if err := db.Model(&models.Game{}).Where("code6 = ?", code6).Count(&count).Error; err != nil {
			logger.Error("Failed to check code6 uniqueness", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ゲーム作成に失敗しました"})
			return
		}
		if count == 0 {
			break
		}
		code6 = ""
	}
	if code6 == "" {
		logger.Error("Failed to generate unique code6")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ゲーム作成に失敗しました"})
		return
	}

	game := models.Game{
		Code6:            code6,
		Name:             request.Name,
		TicketPriceMinor: request.TicketPriceMinor,
		MaxTickets:       request.MaxTickets,
		DrawAt:           request.DrawAt,
		Status:           models.GameStatusDraft,
		CreatedByUserID:  userID,
	}
	if err := db.Create(&game).Error; err != nil {
		logger.Error("Failed to create game", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ゲーム作成に失敗しました"})
		return
	}

	recordAuditLog(db, logger, game.ID, userID, "game_created", map[string]interface{}{
		"gameName": game.Name,
		"code6":    code6,
	})
	logger.Info("Game created", zap.Uint("gameID", game.ID), zap.String("code6", code6))

	c.JSON(http.StatusOK, gin.H{
		"id":     game.ID,
		"code6":  game.Code6,
		"status": game.Status,
	})
}
