package model

import (
	"time"

	"gorm.io/gorm"
)

// 签到会话状态
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// AttendanceSession 签到会话表，对应 attendance_sessions
// 同一班级至多一条 status=active 记录，由部分唯一索引保证
type AttendanceSession struct {
	SessionID      string     `gorm:"type:uuid;primaryKey"                                                                 json:"session_id"`
	Section        string     `gorm:"type:varchar(10);not null;uniqueIndex:uq_attendance_sessions_active_section,where:status = 'active'" json:"section"`
	TimerDuration  int        `gorm:"not null"                                                                             json:"timer_duration"` // 秒
	TotalStudents  int        `gorm:"not null"                                                                             json:"total_students"`
	StartedBy      string     `gorm:"type:uuid;not null"                                                                   json:"started_by"`
	Status         string     `gorm:"type:varchar(20);not null;index:idx_attendance_sessions_status_started,priority:1"    json:"status"`
	PresentCount   int        `gorm:"not null;default:0"                                                                   json:"present_count"`
	AbsentCount    int        `gorm:"not null;default:0"                                                                   json:"absent_count"`
	UnmatchedCount int        `gorm:"not null;default:0"                                                                   json:"unmatched_count"`
	StartedAt      time.Time  `gorm:"not null;index:idx_attendance_sessions_status_started,priority:2"                     json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	BaseModel
}

func (AttendanceSession) TableName() string { return "attendance_sessions" }

// BeforeCreate 生成主键
func (s *AttendanceSession) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.SessionID)
	return nil
}

// IsActive 会话是否处于进行中
func (s *AttendanceSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Deadline 签到窗口截止时刻
func (s *AttendanceSession) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.TimerDuration) * time.Second)
}

// TimeRemaining 以秒为单位的剩余时间，max(0, duration - 已过秒数)
// 已结束的会话恒为 0
func (s *AttendanceSession) TimeRemaining(now time.Time) int {
	if !s.IsActive() {
		return 0
	}
	elapsed := now.Sub(s.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := s.TimerDuration - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AttendanceSubmission 签到记录表，对应 attendance_submissions
// (session_id, submitted_by) 与 (session_id, roll_number) 均唯一，记录创建后不可修改
type AttendanceSubmission struct {
	SubmissionID string    `gorm:"type:uuid;primaryKey"                                                                                        json:"submission_id"`
	SessionID    string    `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_submissions_session_user;uniqueIndex:uq_attendance_submissions_session_roll" json:"session_id"`
	RollNumber   string    `gorm:"type:varchar(32);not null;uniqueIndex:uq_attendance_submissions_session_roll"                                json:"roll_number"`
	SubmittedBy  string    `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_submissions_session_user"                                       json:"submitted_by"`
	SubmittedAt  time.Time `gorm:"not null"                                                                                                    json:"submitted_at"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                                                                          json:"created_at"`
}

func (AttendanceSubmission) TableName() string { return "attendance_submissions" }

// BeforeCreate 生成主键
func (s *AttendanceSubmission) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.SubmissionID)
	return nil
}
