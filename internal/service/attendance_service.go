package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bytecopied/backend/config"
	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/report"
	"bytecopied/backend/internal/repository"
	"bytecopied/backend/internal/roster"
	pkgerrors "bytecopied/backend/pkg/errors"
)

// ── 签到模块业务错误 ──

var (
	ErrPermissionDenied    = errors.New("无权执行该操作")
	ErrInvalidSection      = errors.New("班级不在可选范围内")
	ErrInvalidDuration     = errors.New("签到时长不在可选范围内")
	ErrInvalidRollNumber   = errors.New("学号不能为空")
	ErrInvalidReportFormat = errors.New("不支持的报表格式")
	ErrSessionNotFound     = errors.New("签到会话不存在")
	ErrSessionInactive     = errors.New("签到会话已结束")
	ErrSessionExpired      = errors.New("签到时间已截止")
	ErrSessionConflict     = errors.New("该班级正在开启签到，请稍后重试")
	ErrReportRenderFailed  = errors.New("生成签到报表失败")

	// ErrRosterUnavailable 花名册不可用，会话状态保持不变
	ErrRosterUnavailable = roster.ErrRosterUnavailable
)

// 重复签到原因
const (
	DuplicateReasonSelf       = "self"
	DuplicateReasonRollNumber = "roll_number"
)

// startMaxAttempts 并发开启同一班级时的最大尝试次数
const startMaxAttempts = 3

// ReportArtifact 结束签到后生成的报表文件
type ReportArtifact struct {
	Filename       string
	ContentType    string
	Data           []byte
	SessionID      string
	PresentCount   int
	AbsentCount    int
	UnmatchedCount int
}

// AttendanceService 签到会话业务接口
//
// 设计说明：
//   - 每个班级同时至多一个进行中会话，由部分唯一索引兜底
//   - 签到在会话行共享锁下写入，结束会话持排他锁，两者以结束事务提交为界
//   - 重复签到由唯一索引拒绝，对外表现为幂等成功
//   - 花名册加载失败时不修改任何数据
type AttendanceService interface {
	StartSession(ctx context.Context, p Principal, req *dto.StartSessionRequest) (*dto.SessionView, error)
	GetActiveSessionView(ctx context.Context, p Principal) ([]dto.SessionView, error)
	CheckSubmission(ctx context.Context, p Principal, sessionID string) (*dto.SubmissionStatusResponse, error)
	Submit(ctx context.Context, p Principal, req *dto.SubmitAttendanceRequest) (*dto.SubmitResponse, error)
	EndSession(ctx context.Context, p Principal, req *dto.EndSessionRequest) (*ReportArtifact, error)
}

type attendanceService struct {
	cfg    *config.AttendanceConfig
	repo   *repository.Repository
	roster roster.Source
	logger *zap.Logger
	now    func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(
	cfg *config.AttendanceConfig,
	repo *repository.Repository,
	rosterSrc roster.Source,
	logger *zap.Logger,
) AttendanceService {
	return &attendanceService{
		cfg:    cfg,
		repo:   repo,
		roster: rosterSrc,
		logger: logger,
		now:    time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// StartSession 开启签到
// ═══════════════════════════════════════════════════════════
//
// 流程：
//  1. 校验能力、班级与时长
//  2. 加载花名册（失败则不做任何修改）
//  3. 事务内结束该班级旧的进行中会话并插入新会话
//  4. 与并发开启冲突时重试，超过次数返回 ErrSessionConflict

func (s *attendanceService) StartSession(ctx context.Context, p Principal, req *dto.StartSessionRequest) (*dto.SessionView, error) {
	if !p.Can(CapStartSession) {
		return nil, ErrPermissionDenied
	}

	section := strings.TrimSpace(req.Section)
	if !containsString(s.cfg.Sections, section) {
		return nil, ErrInvalidSection
	}
	if !containsInt(s.cfg.Durations, req.TimerDuration) {
		return nil, ErrInvalidDuration
	}

	rolls, err := s.roster.Load(ctx, section)
	if err != nil {
		return nil, s.rosterError(section, err)
	}

	var session *model.AttendanceSession
	for attempt := 1; attempt <= startMaxAttempts; attempt++ {
		now := s.now()
		session = &model.AttendanceSession{
			Section:       section,
			TimerDuration: req.TimerDuration,
			TotalStudents: len(rolls),
			StartedBy:     p.UserID,
			Status:        model.SessionStatusActive,
			StartedAt:     now,
		}

		err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			closed, err := txRepo.AttendanceSession.CompleteActiveBySection(ctx, section, now)
			if err != nil {
				return err
			}
			if closed > 0 {
				s.logger.Info("开启新签到，自动结束旧会话", zap.String("section", section))
			}
			return txRepo.AttendanceSession.Create(ctx, session)
		})
		if err == nil {
			break
		}
		if !pkgerrors.IsUniqueViolation(err) {
			s.logger.Error("开启签到失败", zap.String("section", section), zap.Error(err))
			return nil, fmt.Errorf("开启签到失败: %w", err)
		}
		s.logger.Warn("并发开启签到冲突，重试",
			zap.String("section", section),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		return nil, ErrSessionConflict
	}

	s.logger.Info("签到已开启",
		zap.String("session_id", session.SessionID),
		zap.String("section", section),
		zap.Int("timer_duration", session.TimerDuration),
		zap.Int("total_students", session.TotalStudents),
	)
	view := toOperatorView(session, 0, session.StartedAt)
	return &view, nil
}

// ═══════════════════════════════════════════════════════════
// GetActiveSessionView 会话列表（按能力区分视图）
// ═══════════════════════════════════════════════════════════

func (s *attendanceService) GetActiveSessionView(ctx context.Context, p Principal) ([]dto.SessionView, error) {
	now := s.now()

	if p.Can(CapViewAll) {
		sessions, err := s.repo.AttendanceSession.ListRecent(ctx, s.historyLimit())
		if err != nil {
			s.logger.Error("查询签到会话失败", zap.Error(err))
			return nil, err
		}
		views := make([]dto.SessionView, 0, len(sessions))
		for i := range sessions {
			count, err := s.repo.AttendanceSubmission.CountBySession(ctx, sessions[i].SessionID)
			if err != nil {
				s.logger.Error("统计签到人数失败", zap.String("session_id", sessions[i].SessionID), zap.Error(err))
				return nil, err
			}
			views = append(views, toOperatorView(&sessions[i], int(count), now))
		}
		return views, nil
	}

	if !p.Can(CapViewOwn) {
		return nil, ErrPermissionDenied
	}

	session, err := s.repo.AttendanceSession.GetLatestActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []dto.SessionView{}, nil
		}
		s.logger.Error("查询进行中会话失败", zap.Error(err))
		return nil, err
	}

	submitted, err := s.hasSubmitted(ctx, session.SessionID, p.UserID)
	if err != nil {
		return nil, err
	}
	return []dto.SessionView{toSubmitterView(session, submitted, now)}, nil
}

// ═══════════════════════════════════════════════════════════
// CheckSubmission 查询本人签到状态
// ═══════════════════════════════════════════════════════════

func (s *attendanceService) CheckSubmission(ctx context.Context, p Principal, sessionID string) (*dto.SubmissionStatusResponse, error) {
	if !p.Can(CapViewOwn) {
		return nil, ErrPermissionDenied
	}

	sessionID = strings.TrimSpace(sessionID)
	if !isUUID(sessionID) {
		return nil, ErrSessionNotFound
	}
	if _, err := s.repo.AttendanceSession.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	resp := &dto.SubmissionStatusResponse{SessionID: sessionID}
	sub, err := s.repo.AttendanceSubmission.GetBySessionAndUser(ctx, sessionID, p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		s.logger.Error("查询签到记录失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	at := formatTime(sub.SubmittedAt)
	resp.HasSubmitted = true
	resp.RollNumber = sub.RollNumber
	resp.SubmittedAt = &at
	return resp, nil
}

// ═══════════════════════════════════════════════════════════
// Submit 学生签到
// ═══════════════════════════════════════════════════════════
//
// 会话行以共享锁读取：多个签到可并行，结束会话的排他锁会等待它们提交。
// 唯一索引冲突在事务回滚后查询归因，返回幂等结果。

func (s *attendanceService) Submit(ctx context.Context, p Principal, req *dto.SubmitAttendanceRequest) (*dto.SubmitResponse, error) {
	if !p.Can(CapSubmit) {
		return nil, ErrPermissionDenied
	}

	roll := roster.Normalize(req.RollNumber)
	if roll == "" {
		return nil, ErrInvalidRollNumber
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if !isUUID(sessionID) {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	sub := &model.AttendanceSubmission{
		SessionID:   sessionID,
		RollNumber:  roll,
		SubmittedBy: p.UserID,
		SubmittedAt: now,
	}

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		session, err := txRepo.AttendanceSession.GetByIDLocked(ctx, sessionID, repository.LockShare)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if !session.IsActive() {
			return ErrSessionInactive
		}
		if s.cfg.EnforceDeadline && session.TimeRemaining(now) == 0 {
			return ErrSessionExpired
		}
		return txRepo.AttendanceSubmission.Create(ctx, sub)
	})

	switch {
	case err == nil:
		return &dto.SubmitResponse{
			Submitted:   true,
			RollNumber:  roll,
			SubmittedAt: formatTime(now),
		}, nil
	case pkgerrors.IsUniqueViolation(err):
		return s.duplicateResult(ctx, sessionID, p.UserID, roll)
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionInactive),
		errors.Is(err, ErrSessionExpired):
		return nil, err
	default:
		s.logger.Error("签到写入失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("签到失败: %w", err)
	}
}

// duplicateResult 唯一索引冲突归因：本人已签到，或学号已被他人使用
func (s *attendanceService) duplicateResult(ctx context.Context, sessionID, userID, roll string) (*dto.SubmitResponse, error) {
	existing, err := s.repo.AttendanceSubmission.GetBySessionAndUser(ctx, sessionID, userID)
	if err == nil {
		return &dto.SubmitResponse{
			Submitted:        true,
			AlreadySubmitted: true,
			Reason:           DuplicateReasonSelf,
			RollNumber:       existing.RollNumber,
			SubmittedAt:      formatTime(existing.SubmittedAt),
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询重复签到记录失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	holder, err := s.repo.AttendanceSubmission.GetBySessionAndRoll(ctx, sessionID, roll)
	if err != nil {
		s.logger.Error("唯一冲突无法归因",
			zap.String("session_id", sessionID),
			zap.String("roll_number", roll),
			zap.Error(err),
		)
		return nil, fmt.Errorf("签到失败: %w", err)
	}

	s.logger.Info("学号已被其他账号签到",
		zap.String("session_id", sessionID),
		zap.String("roll_number", roll),
		zap.String("user_id", userID),
		zap.String("holder", holder.SubmittedBy),
	)
	return &dto.SubmitResponse{
		Submitted:        false,
		AlreadySubmitted: true,
		Reason:           DuplicateReasonRollNumber,
		RollNumber:       roll,
	}, nil
}

// ═══════════════════════════════════════════════════════════
// EndSession 结束签到并生成报表
// ═══════════════════════════════════════════════════════════
//
// 流程：
//  1. 校验能力与报表格式，确认会话存在且进行中
//  2. 加载花名册，失败时会话保持进行中
//  3. 事务内：排他锁读取会话 → 复核状态 → 按提交顺序取签到记录
//     → 对账 → 渲染报表 → 条件更新为已结束
//  4. 渲染失败整体回滚，会话保持进行中

func (s *attendanceService) EndSession(ctx context.Context, p Principal, req *dto.EndSessionRequest) (*ReportArtifact, error) {
	if !p.Can(CapEndSession) {
		return nil, ErrPermissionDenied
	}

	renderer, err := report.NewRenderer(req.Format)
	if err != nil {
		return nil, ErrInvalidReportFormat
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if !isUUID(sessionID) {
		return nil, ErrSessionNotFound
	}
	session, err := s.repo.AttendanceSession.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询签到会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	if !session.IsActive() {
		return nil, ErrSessionInactive
	}

	rolls, err := s.roster.Load(ctx, session.Section)
	if err != nil {
		return nil, s.rosterError(session.Section, err)
	}

	var artifact *ReportArtifact
	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		locked, err := txRepo.AttendanceSession.GetByIDLocked(ctx, sessionID, repository.LockUpdate)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if !locked.IsActive() {
			return ErrSessionInactive
		}

		subs, err := txRepo.AttendanceSubmission.ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		rec := Reconcile(rolls, subs)

		endedAt := s.now()
		data := &report.Data{
			SessionID:     locked.SessionID,
			Section:       locked.Section,
			TimerDuration: locked.TimerDuration,
			StartedAt:     locked.StartedAt,
			EndedAt:       endedAt,
			TotalStudents: len(rolls),
			Present:       rec.Present,
			Absent:        rec.Absent,
			Unmatched:     rec.Unmatched,
		}
		body, err := renderer.Render(data)
		if err != nil {
			s.logger.Error("渲染签到报表失败", zap.String("session_id", sessionID), zap.Error(err))
			return ErrReportRenderFailed
		}

		err = txRepo.AttendanceSession.Complete(ctx, sessionID, repository.SessionResult{
			EndedAt:        endedAt,
			PresentCount:   len(rec.Present),
			AbsentCount:    len(rec.Absent),
			UnmatchedCount: len(rec.Unmatched),
		})
		if err != nil {
			if errors.Is(err, pkgerrors.ErrStateConflict) {
				return ErrSessionInactive
			}
			return err
		}

		artifact = &ReportArtifact{
			Filename:       report.Filename(data, renderer),
			ContentType:    renderer.ContentType(),
			Data:           body,
			SessionID:      sessionID,
			PresentCount:   len(rec.Present),
			AbsentCount:    len(rec.Absent),
			UnmatchedCount: len(rec.Unmatched),
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound),
			errors.Is(err, ErrSessionInactive),
			errors.Is(err, ErrReportRenderFailed):
			return nil, err
		}
		s.logger.Error("结束签到失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("结束签到失败: %w", err)
	}

	s.logger.Info("签到已结束",
		zap.String("session_id", sessionID),
		zap.String("section", session.Section),
		zap.Int("present", artifact.PresentCount),
		zap.Int("absent", artifact.AbsentCount),
		zap.Int("unmatched", artifact.UnmatchedCount),
	)
	return artifact, nil
}

// ── 辅助函数 ──

func (s *attendanceService) hasSubmitted(ctx context.Context, sessionID, userID string) (bool, error) {
	_, err := s.repo.AttendanceSubmission.GetBySessionAndUser(ctx, sessionID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	s.logger.Error("查询签到记录失败", zap.String("session_id", sessionID), zap.Error(err))
	return false, err
}

// isUUID 非 UUID 的主键直接视为不存在，避免数据库类型错误
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *attendanceService) historyLimit() int {
	if s.cfg.HistoryLimit <= 0 {
		return 10
	}
	return s.cfg.HistoryLimit
}

func (s *attendanceService) rosterError(section string, err error) error {
	if errors.Is(err, roster.ErrRosterUnavailable) {
		s.logger.Error("花名册不可用", zap.String("section", section), zap.Error(err))
		return err
	}
	s.logger.Error("加载花名册失败", zap.String("section", section), zap.Error(err))
	return fmt.Errorf("%w: 班级 %s: %v", ErrRosterUnavailable, section, err)
}

// baseView 两种视图共有的字段
func baseView(session *model.AttendanceSession, now time.Time) dto.SessionView {
	return dto.SessionView{
		SessionID:     session.SessionID,
		Section:       session.Section,
		TimerDuration: session.TimerDuration,
		Status:        session.Status,
		StartedAt:     formatTime(session.StartedAt),
		Deadline:      formatTime(session.Deadline()),
		ServerTime:    formatTime(now),
		TimeRemaining: session.TimeRemaining(now),
	}
}

// toOperatorView 管理员视图，含统计数据
func toOperatorView(session *model.AttendanceSession, submittedCount int, now time.Time) dto.SessionView {
	v := baseView(session, now)
	total := session.TotalStudents
	present := session.PresentCount
	absent := session.AbsentCount
	unmatched := session.UnmatchedCount
	v.TotalStudents = &total
	v.SubmittedCount = &submittedCount
	v.PresentCount = &present
	v.AbsentCount = &absent
	v.UnmatchedCount = &unmatched
	if session.EndedAt != nil {
		ended := formatTime(*session.EndedAt)
		v.EndedAt = &ended
	}
	return v
}

// toSubmitterView 学生视图，仅含本人是否已签到
func toSubmitterView(session *model.AttendanceSession, hasSubmitted bool, now time.Time) dto.SessionView {
	v := baseView(session, now)
	v.HasSubmitted = &hasSubmitted
	return v
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
