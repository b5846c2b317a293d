package errors

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrStateConflict 条件更新未命中：记录状态已被其他操作修改
var ErrStateConflict = errors.New("数据状态已被其他操作修改，请刷新后重试")

// pgUniqueViolation PostgreSQL unique_violation 错误码
const pgUniqueViolation = "23505"

// IsUniqueViolation 判断错误是否为唯一约束冲突
// 依次识别 gorm 翻译后的 ErrDuplicatedKey、pgconn.PgError 以及 SQLite 的错误文本
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate "+pgUniqueViolation)
}
