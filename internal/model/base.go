package model

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel 通用审计字段（业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ensureID 主键为空时生成 UUID
// 迁移脚本中的 gen_random_uuid() 仅在 PostgreSQL 可用，应用侧统一生成
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
