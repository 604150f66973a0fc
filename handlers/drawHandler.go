package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rafserver/draw"
	"rafserver/middlewares"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExecuteDraw は単発の抽選を実行します。再抽選ループはライブ配信側が担当
func ExecuteDraw(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, role := middlewares.CallerFromContext(c)

	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
		return
	}

	selector := draw.NewSelector(db, logger)
	result, err := selector.Execute(c.Request.Context(), uint(gameID), userID, role)
	if err != nil {
		switch {
		case errors.Is(err, draw.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		case errors.Is(err, draw.ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the game host can execute the draw"})
		case errors.Is(err, draw.ErrInvalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Game must be locked before drawing"})
		case errors.Is(err, draw.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Draw already completed concurrently"})
		default:
			logger.Error("Draw execution failed", zap.Error(err), zap.Uint64("gameID", gameID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "抽選の実行に失敗しました"})
		}
		return
	}

	response := gin.H{
		"winningNumber": result.WinningNumber,
		"hasWinner":     result.HasWinner,
		"winner":        nil,
	}
	if result.HasWinner {
		response["winner"] = gin.H{
			"ticket_number": result.Winner.TicketNumber,
			"player_name":   result.Winner.FullName(),
			"player_email":  result.Winner.Email,
		}
	}
	c.JSON(http.StatusOK, response)
}

// GetLatestDraw は最新の抽選記録を返します(ホスト用)。記録がなければnull
func GetLatestDraw(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, role := middlewares.CallerFromContext(c)

	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the game host can view draw records"})
		return
	}

	row, err := draw.Latest(db, game.ID)
	if err != nil {
		logger.Error("Failed to fetch latest draw", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "抽選記録の取得に失敗しました"})
		return
	}
	if row == nil {
		c.JSON(http.StatusOK, gin.H{"draw": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"draw": gin.H{
		"id":                row.ID,
		"winning_ticket_id": row.WinnerTicketID,
		"executed_at":       row.ExecutedAt,
		"audit_json":        row.AuditJSON,
	}})
}

// GetPublicWinner は公開コードから当選者を返します。認証不要。
// 観客向けのため姓はイニシャルに伏せる
func GetPublicWinner(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
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

	if game.Status != models.GameStatusDrawn && game.Status != models.GameStatusClosed {
		c.JSON(http.StatusOK, gin.H{"winner": nil, "status": game.Status})
		return
	}

	winningNumber, winner, err := draw.LatestWinner(db, game.ID)
	if err != nil {
		logger.Error("Failed to fetch winner", zap.Error(err), zap.Uint("gameID", game.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "当選者の取得に失敗しました"})
		return
	}
	if winner == nil {
		c.JSON(http.StatusOK, gin.H{"winner": nil, "status": game.Status})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": game.Status,
		"winner": gin.H{
			"ticket_number": winner.TicketNumber,
			"player_name":   winner.PublicName(),
		},
		"winning_number": winningNumber,
	})
}
