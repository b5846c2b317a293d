package repository

import (
	"context"

	"gorm.io/gorm"

	"bytecopied/backend/internal/model"
)

// AttendanceSubmissionRepository 签到记录数据访问接口
// 记录只增不改；重复提交由唯一索引拒绝，调用方通过 pkg/errors.IsUniqueViolation 识别
type AttendanceSubmissionRepository interface {
	Create(ctx context.Context, submission *model.AttendanceSubmission) error
	GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.AttendanceSubmission, error)
	GetBySessionAndRoll(ctx context.Context, sessionID, rollNumber string) (*model.AttendanceSubmission, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceSubmission, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

type attendanceSubmissionRepo struct {
	db *gorm.DB
}

// NewAttendanceSubmissionRepo 创建 AttendanceSubmissionRepository 实例
func NewAttendanceSubmissionRepo(db *gorm.DB) AttendanceSubmissionRepository {
	return &attendanceSubmissionRepo{db: db}
}

func (r *attendanceSubmissionRepo) Create(ctx context.Context, submission *model.AttendanceSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *attendanceSubmissionRepo) GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.AttendanceSubmission, error) {
	var sub model.AttendanceSubmission
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND submitted_by = ?", sessionID, userID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *attendanceSubmissionRepo) GetBySessionAndRoll(ctx context.Context, sessionID, rollNumber string) (*model.AttendanceSubmission, error) {
	var sub model.AttendanceSubmission
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND roll_number = ?", sessionID, rollNumber).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListBySession 按提交先后返回会话的全部签到记录
func (r *attendanceSubmissionRepo) ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceSubmission, error) {
	var subs []model.AttendanceSubmission
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("submitted_at ASC, created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (r *attendanceSubmissionRepo) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceSubmission{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error
	return n, err
}
