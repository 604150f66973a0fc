package connection

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"rafserver/auth"
	"rafserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientContext はライブ画面に接続するクライアントのセッション情報を保持します。
type ClientContext struct {
	UserID uint
	GameID uint
	Role   string // "host" または "spectator"
	Game   *models.Game
	Claims *models.MyClaims // 匿名の観客はnil
}

// FetchClientContext は公開コードからゲームを解決し、トークンがあれば検証して
// ロールを決定します。観客はトークン無しで接続できる（閲覧専用）。
// ホスト判定はゲーム作成者本人またはadminロールのみ。
func FetchClientContext(r *http.Request, code string, db *gorm.DB, logger *zap.Logger) (*ClientContext, error) {
	var game models.Game
	if err := db.Where("code6 = ?", code).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("game not found for code %s", code)
		}
		logger.Error("Failed to fetch game by code", zap.Error(err))
		return nil, fmt.Errorf("game fetch failed: %w", err)
	}

	clientCtx := &ClientContext{
		GameID: game.ID,
		Role:   "spectator",
		Game:   &game,
	}

	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		// 匿名の観客として接続
		return clientCtx, nil
	}
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}

	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		logger.Error("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("unauthorized: %w", err)
	}

	clientCtx.UserID = claims.UserID
	clientCtx.Claims = claims
	if game.CreatedByUserID == claims.UserID || claims.Role == models.RoleAdmin {
		clientCtx.Role = "host"
	}

	return clientCtx, nil
}
