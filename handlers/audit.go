package handlers

import (
	"encoding/json"

	"rafserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordAuditLog は操作ログを追記します。失敗しても元の操作は巻き戻さない
func recordAuditLog(db *gorm.DB, logger *zap.Logger, gameID, actorUserID uint, eventType string, eventData map[string]interface{}) {
	var dataJSON []byte
	if eventData != nil {
		dataJSON, _ = json.Marshal(eventData)
	}
	row := models.AuditLog{
		EventType: eventType,
		EventData: dataJSON,
	}
	if gameID != 0 {
		row.GameID = &gameID
	}
	if actorUserID != 0 {
		row.ActorUserID = &actorUserID
	}
	if err := db.Create(&row).Error; err != nil {
		logger.Error("Failed to write audit log", zap.String("eventType", eventType), zap.Error(err))
	}
}
