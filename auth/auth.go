package auth

import (
	"fmt"
	"os"
	"time"

	"rafserver/models"

	jwt "github.com/dgrijalva/jwt-go"
)

// ！！！本番環境では必ず環境変数JWT_SECRETを設定すること
var JwtKey = loadJwtKey()

func loadJwtKey() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev_secret_key")
}

// ParseToken はトークンを検証してクレームを返します。
func ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claims, nil
}

func IsValidToken(tokenString string) (bool, error) {
	_, err := ParseToken(tokenString)
	if err != nil {
		return false, err
	}
	return true, nil
}

// GenerateToken はユーザーIDとロールを内包したJWTトークンを生成します。
func GenerateToken(userID uint, role string) (string, error) {
	expirationTime := time.Now().Add(72 * time.Hour) // 例: 72時間

	claims := &models.MyClaims{
		UserID: userID,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JwtKey)
}
