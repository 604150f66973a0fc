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

// pickTicketNumber は[1, maxTickets]の範囲から未使用のチケット番号をランダムに選びます。
// 使用済み番号のマップを作ってから空きのみを候補にするため、残り枠が少なくても偏らない
func pickTicketNumber(db *gorm.DB, gameID uint, maxTickets int) (int, error) {
	var used []int
	if err := db.Model(&models.Ticket{}).Where("game_id = ?", gameID).Pluck("number", &used).Error; err != nil {
		return 0, err
	}
	usedSet := make(map[int]bool, len(used))
	for _, n := range used {
		usedSet[n] = true
	}
	free := make([]int, 0, maxTickets-len(used))
	for n := 1; n <= maxTickets; n++ {
		if !usedSet[n] {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return 0, errors.New("no ticket numbers available")
	}
	rng := createLocalRandGenerator()
	return free[rng.Intn(len(free))], nil
}

// AddPlayer は参加者を登録してチケットを1枚発行します
func AddPlayer(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	userID, role := middlewares.CallerFromContext(c)

	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game id"})
		return
	}

	var request models.AddPlayerRequest
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the game host can add players"})
		return
	}

	// 募集中のみ登録を受け付ける
	if game.Status != models.GameStatusOpen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Game is not open for registration"})
		return
	}

	var sold int64
	db.Model(&models.Ticket{}).Where("game_id = ?", game.ID).Count(&sold)
	if sold >= int64(game.MaxTickets) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Game is sold out"})
		return
	}

	number, err := pickTicketNumber(db, game.ID, game.MaxTickets)
	if err != nil {
		logger.Error("Failed to pick a ticket number", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "チケット番号の割り当てに失敗しました"})
		return
	}

	player := models.Player{
		GameID:    game.ID,
		FirstName: request.FirstName,
		LastName:  request.LastName,
		Email:     request.Email,
		Phone:     request.Phone,
	}
	var ticket models.Ticket
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		ticket = models.Ticket{
			GameID:   game.ID,
			Number:   number,
			PlayerID: player.ID,
			Eligible: true,
		}
		return tx.Create(&ticket).Error
	})
	if err != nil {
		logger.Error("Failed to register player", zap.Error(err), zap.Uint("gameID", game.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "参加者の登録に失敗しました"})
		return
	}

	logger.Info("Player registered",
		zap.Uint("gameID", game.ID),
		zap.Uint("playerID", player.ID),
		zap.Int("ticketNumber", number))

	c.JSON(http.StatusCreated, gin.H{
		"player_id":     player.ID,
		"ticket_id":     ticket.ID,
		"ticket_number": number,
	})
}

// ListTickets はゲームの全チケットを参加者情報付きで返します(ホスト用)
func ListTickets(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the game host can list tickets"})
		return
	}

	type ticketRow struct {
		TicketID  uint   `json:"ticket_id"`
		Number    int    `json:"number"`
		Eligible  bool   `json:"eligible"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	var rows []ticketRow
	err = db.Model(&models.Ticket{}).
		Select("tickets.id AS ticket_id, tickets.number, tickets.eligible, players.first_name, players.last_name, players.email").
		Joins("JOIN players ON players.id = tickets.player_id").
		Where("tickets.game_id = ?", game.ID).
		Order("tickets.number ASC").
		Scan(&rows).Error
	if err != nil {
		logger.Error("Failed to list tickets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "チケット一覧の取得に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": rows})
}
