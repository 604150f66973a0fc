package models

import (
	"gorm.io/gorm"
)

// ユーザーロール。admin は任意のゲームの抽選を実行できる
const (
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// User モデルの定義
type User struct {
	gorm.Model
	Username      string `gorm:"unique;not null"`
	Role          string `gorm:"not null;default:host"`
	AnimationType string `gorm:"not null;default:spinning_wheel"` // 観客画面の演出タイプ
}
