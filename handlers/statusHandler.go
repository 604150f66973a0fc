package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rafserver/middlewares"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// このエンドポイントで許可するステータス遷移。ライフサイクルは一方向で、
// drawnへの遷移は抽選プロトコルだけが行うためここには含めない
var allowedTransitions = map[string][]string{
	models.GameStatusDraft: {models.GameStatusOpen},
	models.GameStatusOpen:  {models.GameStatusLocked},
	models.GameStatusDrawn: {models.GameStatusClosed},
}

// ChangeStatus はゲームのライフサイクル遷移を行います。lockedへの遷移は
// チケットが1枚以上存在することが条件
func ChangeStatus(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, role := middlewares.CallerFromContext(c)

	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
		return
	}

	var request models.ChangeStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var game models.Game
	if err := db.First(&game, uint(gameID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		logger.Error("Failed to fetch game", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ゲーム取得に失敗しました"})
		return
	}

	if game.CreatedByUserID != userID && role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the game host can change the status"})
		return
	}

	if !transitionAllowed(game.Status, request.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status transition"})
		return
	}

	if request.Status == models.GameStatusLocked {
		var ticketCount int64
		db.Model(&models.Ticket{}).Where("game_id = ?", game.ID).Count(&ticketCount)
		if ticketCount == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot lock a game without tickets"})
			return
		}
	}

	// 条件付きUPDATEで遷移を原子的に行う。0行更新なら並行する変更に敗れている
	res := db.Model(&models.Game{}).
		Where("id = ? AND status = ?", game.ID, game.Status).
		Update("status", request.Status)
	if res.Error != nil {
		logger.Error("Failed to update game status", zap.Error(res.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータス更新に失敗しました"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Game status changed concurrently"})
		return
	}

	recordAuditLog(db, logger, game.ID, userID, "status_changed", map[string]interface{}{
		"oldStatus": game.Status,
		"newStatus": request.Status,
	})
	logger.Info("Game status changed",
		zap.Uint("gameID", game.ID),
		zap.String("oldStatus", game.Status),
		zap.String("newStatus", request.Status))

	c.JSON(http.StatusOK, gin.H{"status": request.Status})
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
