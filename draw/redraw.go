package draw

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ブロードキャストするフェーズ名
const (
	PhaseSpinning = "spinning"
	PhaseRedraw   = "redraw"
)

// ホスト画面のカウントダウン（1秒×5カウント）と、外れ時の再抽選までの待機時間
const (
	DefaultCountdown   = 5 * time.Second
	DefaultRedrawDelay = 2 * time.Second
)

// Publisher はフェーズ同期イベントの配信先。Redis実装はlive/broadcastにある。
type Publisher interface {
	PublishDrawStarted(ctx context.Context, gameID uint) error
	PublishPhase(ctx context.Context, gameID uint, phase string) error
}

// Controller は当選チケットが見つかるまでSelectorを繰り返し起動するループ。
// 各試行は完全に独立で、過去の外れ番号を避けたりはしない（毎回[1, MaxTickets]の
// 一様抽選）。spinningの配信は必ず台帳行のコミット後に行われる（Selectorが
// 追記してから返るため）。
type Controller struct {
	Selector    *Selector
	Publisher   Publisher
	Logger      *zap.Logger
	Countdown   time.Duration
	RedrawDelay time.Duration
	MaxAttempts int // 0なら無制限。上限到達でErrNoEligibleTicket
}

func NewController(selector *Selector, publisher Publisher, logger *zap.Logger) *Controller {
	return &Controller{
		Selector:    selector,
		Publisher:   publisher,
		Logger:      logger,
		Countdown:   DefaultCountdown,
		RedrawDelay: DefaultRedrawDelay,
	}
}

// Run は抽選セッション1回分を実行します。draw_started配信→カウントダウン待機→
// 抽選→spinning配信、外れならredraw配信と待機を挟んで再抽選、の繰り返し。
func (c *Controller) Run(ctx context.Context, gameID uint, callerID uint, callerRole string) (*Result, error) {
	if err := c.Publisher.PublishDrawStarted(ctx, gameID); err != nil {
		// 配信はベストエフォート。失敗しても抽選自体は続行する
		c.Logger.Error("Failed to publish draw_started", zap.Uint("gameID", gameID), zap.Error(err))
	}
	if err := c.wait(ctx, c.Countdown); err != nil {
		return nil, err
	}

	attempt := 0
	for {
		attempt++
		result, err := c.Selector.Execute(ctx, gameID, callerID, callerRole)
		if err != nil {
			if isTerminal(err) || attempt == 1 {
				return nil, err
			}
			// 一時的な失敗は一度だけ通知し、予定されていた次の試行へ進む。
			// 失敗した試行も上限の消費にカウントする
			c.Logger.Error("Transient selector failure during redraw",
				zap.Uint("gameID", gameID), zap.Int("attempt", attempt), zap.Error(err))
			if c.MaxAttempts > 0 && attempt >= c.MaxAttempts {
				c.Logger.Warn("Draw attempt limit reached",
					zap.Uint("gameID", gameID), zap.Int("attempts", attempt))
				return nil, ErrNoEligibleTicket
			}
			if err := c.wait(ctx, c.RedrawDelay); err != nil {
				return nil, err
			}
			continue
		}

		// 台帳行はコミット済み。観客は受信後に最新行から当選番号を取得できる
		if err := c.Publisher.PublishPhase(ctx, gameID, PhaseSpinning); err != nil {
			c.Logger.Error("Failed to publish spinning phase", zap.Uint("gameID", gameID), zap.Error(err))
		}

		if result.HasWinner {
			c.Logger.Info("Draw session finished",
				zap.Uint("gameID", gameID), zap.Int("attempts", attempt))
			return result, nil
		}

		if err := c.Publisher.PublishPhase(ctx, gameID, PhaseRedraw); err != nil {
			c.Logger.Error("Failed to publish redraw phase", zap.Uint("gameID", gameID), zap.Error(err))
		}

		if c.MaxAttempts > 0 && attempt >= c.MaxAttempts {
			c.Logger.Warn("Draw attempt limit reached",
				zap.Uint("gameID", gameID), zap.Int("attempts", attempt))
			return nil, ErrNoEligibleTicket
		}

		if err := c.wait(ctx, c.RedrawDelay); err != nil {
			return nil, err
		}
	}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	// 待機時間ゼロでもキャンセルは見逃さない
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// そのセッションでの再試行が無意味なエラーかどうか
func isTerminal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict)
}
