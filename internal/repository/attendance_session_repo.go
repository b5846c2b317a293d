package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bytecopied/backend/internal/model"
	pkgerrors "bytecopied/backend/pkg/errors"
)

// 行锁强度
const (
	LockShare  = "SHARE"
	LockUpdate = "UPDATE"
)

// SessionResult 结束会话时写回的统计结果
type SessionResult struct {
	EndedAt        time.Time
	PresentCount   int
	AbsentCount    int
	UnmatchedCount int
}

// AttendanceSessionRepository 签到会话数据访问接口
type AttendanceSessionRepository interface {
	Create(ctx context.Context, session *model.AttendanceSession) error
	GetByID(ctx context.Context, id string) (*model.AttendanceSession, error)
	// GetByIDLocked 加行锁读取，必须在事务内调用（通过 Repository.Transaction 注入）
	GetByIDLocked(ctx context.Context, id string, strength string) (*model.AttendanceSession, error)
	GetLatestActive(ctx context.Context) (*model.AttendanceSession, error)
	ListRecent(ctx context.Context, limit int) ([]model.AttendanceSession, error)
	// CompleteActiveBySection 将班级的进行中会话直接置为已结束（不做对账），返回影响行数
	CompleteActiveBySection(ctx context.Context, section string, endedAt time.Time) (int64, error)
	// Complete 结束指定会话并写入统计；会话已非 active 时返回 ErrStateConflict
	Complete(ctx context.Context, id string, result SessionResult) error
}

type attendanceSessionRepo struct {
	db *gorm.DB
}

// NewAttendanceSessionRepo 创建 AttendanceSessionRepository 实例
func NewAttendanceSessionRepo(db *gorm.DB) AttendanceSessionRepository {
	return &attendanceSessionRepo{db: db}
}

func (r *attendanceSessionRepo) Create(ctx context.Context, session *model.AttendanceSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *attendanceSessionRepo) GetByID(ctx context.Context, id string) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *attendanceSessionRepo) GetByIDLocked(ctx context.Context, id string, strength string) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: strength}).
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *attendanceSessionRepo) GetLatestActive(ctx context.Context) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SessionStatusActive).
		Order("started_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *attendanceSessionRepo) ListRecent(ctx context.Context, limit int) ([]model.AttendanceSession, error) {
	var sessions []model.AttendanceSession
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *attendanceSessionRepo) CompleteActiveBySection(ctx context.Context, section string, endedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceSession{}).
		Where("section = ? AND status = ?", section, model.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":     model.SessionStatusCompleted,
			"ended_at":   endedAt,
			"updated_at": endedAt,
		})
	return result.RowsAffected, result.Error
}

func (r *attendanceSessionRepo) Complete(ctx context.Context, id string, res SessionResult) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceSession{}).
		Where("session_id = ? AND status = ?", id, model.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":          model.SessionStatusCompleted,
			"ended_at":        res.EndedAt,
			"present_count":   res.PresentCount,
			"absent_count":    res.AbsentCount,
			"unmatched_count": res.UnmatchedCount,
			"updated_at":      res.EndedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStateConflict
	}
	return nil
}
