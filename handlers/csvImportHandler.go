package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"rafserver/middlewares"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CSVの列名とフィールドの対応。ヘッダ行の大文字小文字と空白は無視する
var csvColumns = []string{"first_name", "last_name", "email", "phone"}

type csvRecord struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// parsePlayerCSV はアップロードされたCSVを検証しながら読み込みます。
// 1行でも不正があれば行番号付きのエラーを返し、全体を拒否する
func parsePlayerCSV(r io.Reader) ([]csvRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"first_name", "last_name", "email"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []csvRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := csvRecord{
			FirstName: field(row, "first_name"),
			LastName:  field(row, "last_name"),
			Email:     field(row, "email"),
			Phone:     field(row, "phone"),
		}
		if rec.FirstName == "" || rec.LastName == "" {
			return nil, fmt.Errorf("line %d: first_name and last_name are required", line)
		}
		if len(rec.FirstName) > 50 || len(rec.LastName) > 50 {
			return nil, fmt.Errorf("line %d: name exceeds 50 characters", line)
		}
		if _, err := mail.ParseAddress(rec.Email); err != nil {
			return nil, fmt.Errorf("line %d: invalid email address", line)
		}
		if len(rec.Phone) > 20 {
			return nil, fmt.Errorf("line %d: phone exceeds 20 characters", line)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV contains no data rows")
	}
	return records, nil
}

// ImportPlayersCSV はCSVファイルから参加者を一括登録します。
// チケット番号は空き番号を昇順で割り当てる
func ImportPlayersCSV(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the game host can import players"})
		return
	}
	if game.Status != models.GameStatusOpen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Game is not open for registration"})
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV file is required"})
		return
	}
	defer file.Close()

	records, err := parsePlayerCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var used []int
	if err := db.Model(&models.Ticket{}).Where("game_id = ?", game.ID).Pluck("number", &used).Error; err != nil {
		logger.Error("Failed to load ticket numbers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "チケット番号の取得に失敗しました"})
		return
	}
	if len(used)+len(records) > game.MaxTickets {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("import of %d players exceeds remaining capacity %d", len(records), game.MaxTickets-len(used)),
		})
		return
	}
	usedSet := make(map[int]bool, len(used))
	for _, n := range used {
		usedSet[n] = true
	}
	numbers := make([]int, 0, len(records))
	for n := 1; n <= game.MaxTickets && len(numbers) < len(records); n++ {
		if !usedSet[n] {
			numbers = append(numbers, n)
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for i, rec := range records {
			player := models.Player{
				GameID:    game.ID,
				FirstName: rec.FirstName,
				LastName:  rec.LastName,
				Email:     rec.Email,
				Phone:     rec.Phone,
			}
			if err := tx.Create(&player).Error; err != nil {
				return err
			}
			ticket := models.Ticket{
				GameID:   game.ID,
				Number:   numbers[i],
				PlayerID: player.ID,
				Eligible: true,
			}
			if err := tx.Create(&ticket).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to import players", zap.Error(err), zap.Uint("gameID", game.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CSVインポートに失敗しました"})
		return
	}

	recordAuditLog(db, logger, game.ID, userID, "players_imported", map[string]interface{}{
		"count": len(records),
	})
	logger.Info("Players imported from CSV",
		zap.Uint("gameID", game.ID),
		zap.Int("count", len(records)))

	c.JSON(http.StatusCreated, gin.H{"imported": len(records)})
}
