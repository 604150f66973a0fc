package utils

import (
	"time"

	"rafserver/draw"
	"rafserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func CronCleaner(db *gorm.DB, logger *zap.Logger) {
	c := cron.New()

	// 抽選完了から14日経過したゲームをclosedに更新するジョブ（毎日実行）
	c.AddFunc("@daily", func() {
		logger.Info("抽選済みゲームをクローズする処理を開始")
		result := db.Model(&models.Game{}).
			Where("status = ? AND updated_at <= ?", models.GameStatusDrawn, time.Now().Add(-14*24*time.Hour)).
			Update("status", models.GameStatusClosed)
		if result.Error != nil {
			logger.Error("抽選済みゲームのクローズに失敗しました", zap.Error(result.Error))
		} else if result.RowsAffected > 0 {
			logger.Info("抽選済みゲームのクローズ完了", zap.Int("games_closed", int(result.RowsAffected)))
		}
	})

	// 当選記録があるのにlockedのままのゲームを復旧するジョブ（毎分実行）。
	// ステータス更新前にクラッシュした場合の後始末で、再抽選はしない
	c.AddFunc("* * * * *", func() {
		recovered, err := draw.RecoverDrawnStatus(db, logger)
		if err != nil {
			logger.Error("ゲームステータスの復旧に失敗しました", zap.Error(err))
		} else if recovered > 0 {
			logger.Info("ゲームステータスを復旧しました", zap.Int("games_recovered", recovered))
		}
	})

	c.Start()
}
