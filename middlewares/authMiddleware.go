package middlewares

import (
	"net/http"
	"strings"

	"rafserver/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// トークン検証を行うミドルウェア。検証に成功したクレームをコンテキストにセットする
func AuthMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			return
		}

		// Bearerトークンのプレフィックスを確認し、存在する場合は削除
		if strings.HasPrefix(tokenString, "Bearer ") {
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			logger.Warn("認証失敗", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// CallerFromContext はAuthMiddlewareがセットした認証情報を取り出すヘルパー
func CallerFromContext(c *gin.Context) (userID uint, role string) {
	if v, ok := c.Get("userID"); ok {
		userID, _ = v.(uint)
	}
	if v, ok := c.Get("role"); ok {
		role, _ = v.(string)
	}
	return userID, role
}
