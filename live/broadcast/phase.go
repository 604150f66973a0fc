// Package broadcast はゲーム単位のフェーズ同期チャンネル（Redis Pub/Sub）を提供します。
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rafserver/draw"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	EventDrawStarted = "draw_started"
	EventPhaseChange = "phase_change"
)

// Event はフェーズ同期チャンネルを流れるイベント
type Event struct {
	Type   string    `json:"type"`
	Phase  string    `json:"phase,omitempty"` // "spinning" または "redraw"
	GameID uint      `json:"game_id"`
	SentAt time.Time `json:"sent_at"`
}

// ChannelName はゲームごとのチャンネル名
func ChannelName(gameID uint) string {
	return fmt.Sprintf("draw:%d", gameID)
}

// RedisPublisher は draw.Publisher のRedis実装
type RedisPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

var _ draw.Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(rdb *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, logger: logger}
}

func (p *RedisPublisher) PublishDrawStarted(ctx context.Context, gameID uint) error {
	return p.publish(ctx, gameID, Event{
		Type:   EventDrawStarted,
		GameID: gameID,
		SentAt: time.Now().UTC(),
	})
}

func (p *RedisPublisher) PublishPhase(ctx context.Context, gameID uint, phase string) error {
	return p.publish(ctx, gameID, Event{
		Type:   EventPhaseChange,
		Phase:  phase,
		GameID: gameID,
		SentAt: time.Now().UTC(),
	})
}

func (p *RedisPublisher) publish(ctx context.Context, gameID uint, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast event: %w", err)
	}
	if err := p.rdb.Publish(ctx, ChannelName(gameID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast event: %w", err)
	}
	p.logger.Info("Broadcast event published",
		zap.Uint("gameID", gameID), zap.String("type", event.Type), zap.String("phase", event.Phase))
	return nil
}

// Subscribe はゲームのフェーズ同期チャンネルを購読します。購読の解除は
// 呼び出し側がPubSubをCloseすること（セッションのライフサイクルに紐づける）。
func Subscribe(ctx context.Context, rdb *redis.Client, gameID uint) *redis.PubSub {
	return rdb.Subscribe(ctx, ChannelName(gameID))
}
