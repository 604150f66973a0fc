package draw

import (
	"encoding/json"
	"errors"
	"fmt"

	"rafserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Latest は指定ゲームの最新の台帳行を返します。行が無い場合は (nil, nil)。
// 観客はspinning配信を受けた時点でこのクエリから当選番号を取得する。
func Latest(db *gorm.DB, gameID uint) (*models.Draw, error) {
	var row models.Draw
	err := db.Where("game_id = ?", gameID).
		Order("executed_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest draw: %w", err)
	}
	return &row, nil
}

// WinningNumber は台帳行のAuditJSONから当選番号を取り出します。
func WinningNumber(row *models.Draw) (int, error) {
	var audit models.DrawAudit
	if err := json.Unmarshal(row.AuditJSON, &audit); err != nil {
		return 0, fmt.Errorf("failed to decode audit json: %w", err)
	}
	return audit.WinningNumber, nil
}

// LatestWinner は最新の当選行（WinnerTicketIDが非null）からチケットとプレイヤーを
// 解決します。当選行が無ければ (0, nil, nil)。
func LatestWinner(db *gorm.DB, gameID uint) (int, *WinnerRecord, error) {
	var row models.Draw
	err := db.Where("game_id = ? AND winner_ticket_id IS NOT NULL", gameID).
		Order("executed_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("failed to fetch winning draw: %w", err)
	}

	winningNumber, err := WinningNumber(&row)
	if err != nil {
		return 0, nil, err
	}

	var ticket models.Ticket
	if err := db.First(&ticket, *row.WinnerTicketID).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to fetch winner ticket: %w", err)
	}
	var player models.Player
	if err := db.First(&player, ticket.PlayerID).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to fetch winner player: %w", err)
	}

	return winningNumber, &WinnerRecord{
		TicketNumber: ticket.Number,
		FirstName:    player.FirstName,
		LastName:     player.LastName,
		Email:        player.Email,
	}, nil
}

// RecoverDrawnStatus は当選行が台帳に残っているのにステータスがlockedのままの
// ゲームを修復します。台帳書き込み後・ステータス更新前に障害が起きた場合の
// 復旧経路で、番号を引き直すのではなくステータス遷移だけをやり直す。
func RecoverDrawnStatus(db *gorm.DB, logger *zap.Logger) (int, error) {
	var gameIDs []uint
	err := db.Model(&models.Draw{}).
		Distinct("draws.game_id").
		Joins("JOIN games ON games.id = draws.game_id AND games.status = ?", models.GameStatusLocked).
		Where("draws.winner_ticket_id IS NOT NULL").
		Pluck("draws.game_id", &gameIDs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query stuck games: %w", err)
	}

	recovered := 0
	for _, gameID := range gameIDs {
		res := db.Model(&models.Game{}).
			Where("id = ? AND status = ?", gameID, models.GameStatusLocked).
			Update("status", models.GameStatusDrawn)
		if res.Error != nil {
			logger.Error("Failed to recover drawn status",
				zap.Uint("gameID", gameID), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected > 0 {
			logger.Info("Recovered drawn status from ledger", zap.Uint("gameID", gameID))
			recovered++
		}
	}
	return recovered, nil
}
