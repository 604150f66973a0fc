package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionInfo はRedisに保存する再接続用のセッション情報。AuthRoleはJWTで検証済みの
// ロールで、トークン無しの再接続でもstart_drawの認可判定に引き継ぐ
type sessionInfo struct {
	UserID   uint   `json:"userID"`
	GameID   uint   `json:"gameID"`
	Role     string `json:"role"`
	AuthRole string `json:"authRole"`
}

func sessionInfoFor(sess *session) sessionInfo {
	return sessionInfo{
		UserID:   sess.client.UserID,
		GameID:   sess.client.GameID,
		Role:     sess.client.Role,
		AuthRole: sess.authRole,
	}
}

// applySessionInfo は保存済みのセッション情報をデコードしてセッションへ反映します。
func applySessionInfo(sess *session, data []byte, logger *zap.Logger) bool {
	var info sessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		logger.Error("Failed to decode session info", zap.Error(err))
		return false
	}
	if info.UserID != 0 {
		sess.client.UserID = info.UserID
	}
	if info.Role != "" {
		sess.client.Role = info.Role
	}
	if info.AuthRole != "" {
		sess.authRole = info.AuthRole
	}
	return true
}

// restoreSession はクライアントが送ってきたセッションIDをRedisから照合し、
// 有効なら切断前のセッション情報（検証済みロールを含む）を復元します。復元の成否を返す
func restoreSession(ctx context.Context, sessionID string, sess *session, rdb *redis.Client, logger *zap.Logger) bool {
	sessionInfoJSON, err := rdb.Get(ctx, "live_session:"+sessionID).Result()
	if err != nil {
		// セッションIDが無効または期限切れ
		return false
	}
	if !applySessionInfo(sess, []byte(sessionInfoJSON), logger) {
		return false
	}
	// 旧セッションの削除
	rdb.Del(ctx, "live_session:"+sessionID)
	return true
}

// generateAndStoreSessionID は再接続用のセッションIDを発行してRedisに保存し、
// クライアントに送り返します。
func generateAndStoreSessionID(ctx context.Context, sess *session, rdb *redis.Client, logger *zap.Logger) error {
	sessionID := uuid.New().String()

	sessionInfoJSON, err := json.Marshal(sessionInfoFor(sess))
	if err != nil {
		logger.Error("Error encoding session info", zap.Error(err))
		return err
	}

	err = rdb.Set(ctx, "live_session:"+sessionID, sessionInfoJSON, 24*time.Hour).Err() // 24時間の有効期限
	if err != nil {
		logger.Error("Error storing session info in Redis", zap.Error(err))
		return err
	}

	return sess.sendJSON(map[string]string{"sessionID": sessionID})
}
