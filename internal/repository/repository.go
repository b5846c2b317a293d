package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User                 UserRepository
	Snippet              SnippetRepository
	Course               CourseRepository
	AttendanceSession    AttendanceSessionRepository
	AttendanceSubmission AttendanceSubmissionRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                   db,
		User:                 NewUserRepo(db),
		Snippet:              NewSnippetRepo(db),
		Course:               NewCourseRepo(db),
		AttendanceSession:    NewAttendanceSessionRepo(db),
		AttendanceSubmission: NewAttendanceSubmissionRepo(db),
	}
}

// beginTx 开启事务，调用方负责 Commit / Rollback
func (r *Repository) beginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在事务中执行 fn，fn 返回错误时回滚
// 未绑定数据库（单元测试注入 mock）时直接在当前 Repository 上执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(r.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
