package model

import "gorm.io/gorm"

// 用户角色
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User 用户表，对应 users
type User struct {
	UserID           string `gorm:"type:uuid;primaryKey"                          json:"user_id"`
	Name             string `gorm:"type:varchar(100);not null"                    json:"name"`
	Email            string `gorm:"type:varchar(255);not null;uniqueIndex:uq_users_email"             json:"email"`
	EnrollmentNumber string `gorm:"type:varchar(20);not null;uniqueIndex:uq_users_enrollment_number"  json:"enrollment_number"`
	PasswordHash     string `gorm:"type:varchar(255);not null"                    json:"-"`
	Role             string `gorm:"type:varchar(20);not null;default:'student'"   json:"role"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成主键
func (u *User) BeforeCreate(_ *gorm.DB) error {
	ensureID(&u.UserID)
	return nil
}
