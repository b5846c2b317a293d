package model

import "gorm.io/gorm"

// Snippet 代码片段表，对应 snippets
// IsViewOnly 为 true 的片段由管理员发布，所有学生可读不可改
type Snippet struct {
	SnippetID      string `gorm:"type:uuid;primaryKey"                       json:"snippet_id"`
	Title          string `gorm:"type:varchar(200);not null"                 json:"title"`
	Code           string `gorm:"type:text;not null"                         json:"code"`
	Language       string `gorm:"type:varchar(50);not null;default:'text'"   json:"language"`
	Description    string `gorm:"type:text;not null;default:''"              json:"description"`
	CreatedBy      string `gorm:"type:uuid;not null;index"                   json:"created_by"`
	CreatedByName  string `gorm:"type:varchar(100);not null"                 json:"created_by_name"`
	CreatedByEmail string `gorm:"type:varchar(255);not null"                 json:"created_by_email"`
	IsViewOnly     bool   `gorm:"not null;default:false;index"               json:"is_view_only"`
	BaseModel
}

func (Snippet) TableName() string { return "snippets" }

// BeforeCreate 生成主键
func (s *Snippet) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.SnippetID)
	return nil
}
