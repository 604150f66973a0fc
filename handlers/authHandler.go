package handlers

import (
	"errors"
	"net/http"
	"time"

	"rafserver/auth"
	"rafserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IssueToken はトークンの発行・更新を行います。トークンが提供された場合は検証し、
// 有効期限が近ければ新しいトークンを返す。トークンが無い場合はユーザー名から
// ユーザーを検索（無ければhostロールで作成）してトークンを発行する
func IssueToken(c *gin.Context, db *gorm.DB, logger *zap.Logger) {
	var request models.TokenRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		logger.Error("Token request bind error", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if request.Token != "" {
		// トークンが提供された場合、そのトークンをパースして検証
		claims, err := auth.ParseToken(request.Token)
		if err != nil {
			logger.Error("Token validation error", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証失敗"})
			return
		}

		// トークンの有効期限チェック
		needUpdate := time.Unix(claims.ExpiresAt, 0).Sub(time.Now()) < time.Hour
		if needUpdate {
			newToken, err := auth.GenerateToken(claims.UserID, claims.Role)
			if err != nil {
				logger.Error("Token generation error", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": newToken})
			return
		}

		// トークンが有効な場合、認証成功
		c.JSON(http.StatusOK, gin.H{"message": "認証成功"})
		return
	}

	if request.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	// ユーザーを検索し、存在しなければhostロールで作成
	var user models.User
	err := db.Where("username = ?", request.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Username: request.Username, Role: models.RoleHost}
		if err := db.Create(&user).Error; err != nil {
			logger.Error("ユーザー作成中にエラー発生", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
			return
		}
	} else if err != nil {
		logger.Error("ユーザー検索中にエラー発生", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー検索に失敗しました"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		logger.Error("Token generation error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID, "role": user.Role})
}
