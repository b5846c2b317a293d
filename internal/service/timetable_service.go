package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bytecopied/backend/config"
	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/repository"
	pkgerrors "bytecopied/backend/pkg/errors"
)

// ── 课表模块业务错误 ──

var (
	ErrCourseNotFound = errors.New("课程不存在")
	ErrCourseExists   = errors.New("该课程代码与班级已存在")
	ErrInvalidCourse  = errors.New("课程代码、名称与班级不能为空")
	ErrInvalidTiming  = errors.New("上课时间无效，结束时间须晚于开始时间")
	ErrICSParseFailed = errors.New("ICS 文件解析失败")
	ErrICSEmpty       = errors.New("ICS 文件中未发现有效课程事件")
	ErrICSTooLarge    = errors.New("ICS 文件过大")
)

// SkippedCourse.Reason 取值
const (
	SkipReasonExists  = "exists"
	SkipReasonInvalid = "invalid"
)

// courseColors 未指定颜色时按课程代码取色，同一代码颜色稳定
var courseColors = []string{
	"#6366f1", "#8b5cf6", "#ec4899", "#f472b6",
	"#10b981", "#14b8a6", "#3b82f6", "#06b6d4",
	"#f59e0b", "#ef4444", "#84cc16", "#a855f7",
}

// ── TimetableService 接口 ──────────────────────────────────
//
// 设计说明：
//   - 课程归属创建者，其他用户的课程一律视为不存在
//   - 同一用户下 (course_code, section) 唯一，先查后写，并发写入由唯一索引兜底
//   - 上课时段整体替换，不做跨课程的时间冲突检查
//   - ICS 导入逐门课程校验，已存在或不合法的课程跳过，其余单事务写入
// ─────────────────────────────────────────────────────────────

// TimetableService 课表模块业务接口
type TimetableService interface {
	ListCourses(ctx context.Context, p Principal) ([]dto.CourseResponse, error)
	CreateCourse(ctx context.Context, p Principal, req *dto.CreateCourseRequest) (*dto.CourseResponse, error)
	UpdateCourse(ctx context.Context, p Principal, id string, req *dto.UpdateCourseRequest) (*dto.CourseResponse, error)
	DeleteCourse(ctx context.Context, p Principal, id string) error
	// ImportICS 从 ICS 导入课程，section 为导入课程统一所属班级
	ImportICS(ctx context.Context, p Principal, r io.Reader, section string) (*dto.ImportCoursesResponse, error)
}

type timetableService struct {
	cfg    *config.TimetableConfig
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(cfg *config.TimetableConfig, repo *repository.Repository, logger *zap.Logger) TimetableService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("课表时区无效，回退到 UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.UTC
	}
	return &timetableService{cfg: cfg, repo: repo, loc: loc, logger: logger}
}

func (s *timetableService) ListCourses(ctx context.Context, p Principal) ([]dto.CourseResponse, error) {
	courses, err := s.repo.Course.ListByOwner(ctx, p.UserID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}
	list := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		list = append(list, toCourseResponse(&courses[i]))
	}
	return list, nil
}

// ════════════════════════════════════════════════════════════
// CreateCourse 创建课程
// ════════════════════════════════════════════════════════════

func (s *timetableService) CreateCourse(ctx context.Context, p Principal, req *dto.CreateCourseRequest) (*dto.CourseResponse, error) {
	course, err := buildCourse(p.UserID, req.CourseCode, req.CourseName, req.Section, req.Color, req.Timings)
	if err != nil {
		return nil, err
	}
	course.Source = model.CourseSourceManual

	exists, err := s.repo.Course.ExistsByCodeAndSection(ctx, p.UserID, course.CourseCode, course.Section, "")
	if err != nil {
		s.logger.Error("查询课程唯一性失败", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, courseExists(course)
	}

	if err := s.repo.Course.Create(ctx, course); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, courseExists(course)
		}
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("课程已创建",
		zap.String("course_id", course.CourseID),
		zap.String("course_code", course.CourseCode),
		zap.String("section", course.Section),
		zap.String("user_id", p.UserID),
	)
	resp := toCourseResponse(course)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// UpdateCourse 更新课程
// ════════════════════════════════════════════════════════════

func (s *timetableService) UpdateCourse(ctx context.Context, p Principal, id string, req *dto.UpdateCourseRequest) (*dto.CourseResponse, error) {
	course, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}

	code, name, section, color := course.CourseCode, course.CourseName, course.Section, course.Color
	if req.CourseCode != nil {
		code = *req.CourseCode
	}
	if req.CourseName != nil {
		name = *req.CourseName
	}
	if req.Section != nil {
		section = *req.Section
	}
	if req.Color != nil {
		color = *req.Color
	}
	timings := req.Timings
	if timings == nil {
		timings = toTimingRequests(course.Timings)
	}

	updated, err := buildCourse(p.UserID, code, name, section, color, timings)
	if err != nil {
		return nil, err
	}
	updated.CourseID = course.CourseID
	updated.Source = course.Source
	updated.CreatedAt = course.CreatedAt

	if updated.CourseCode != course.CourseCode || updated.Section != course.Section {
		exists, err := s.repo.Course.ExistsByCodeAndSection(ctx, p.UserID, updated.CourseCode, updated.Section, course.CourseID)
		if err != nil {
			s.logger.Error("查询课程唯一性失败", zap.Error(err))
			return nil, err
		}
		if exists {
			return nil, courseExists(updated)
		}
	}

	if err := s.repo.Course.Update(ctx, updated); err != nil {
		switch {
		case pkgerrors.IsUniqueViolation(err):
			return nil, courseExists(updated)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrCourseNotFound
		}
		s.logger.Error("更新课程失败", zap.String("course_id", id), zap.Error(err))
		return nil, err
	}

	// 重新读取，带回数据库写入的 updated_at 与新时段主键
	saved, err := s.repo.Course.GetByID(ctx, updated.CourseID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.String("course_id", id), zap.Error(err))
		return nil, err
	}
	resp := toCourseResponse(saved)
	return &resp, nil
}

func (s *timetableService) DeleteCourse(ctx context.Context, p Principal, id string) error {
	if _, err := s.loadOwned(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Course.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		s.logger.Error("删除课程失败", zap.String("course_id", id), zap.Error(err))
		return err
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// ImportICS 导入 ICS 课表
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 限长读取并解析 ICS 为课程草稿
//   2. 逐门校验：不合法或 (code, section) 已存在则跳过
//   3. 其余课程单事务批量写入

func (s *timetableService) ImportICS(ctx context.Context, p Principal, r io.Reader, section string) (*dto.ImportCoursesResponse, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, ErrInvalidCourse
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取 ICS 失败: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxImportBytes {
		return nil, ErrICSTooLarge
	}

	drafts, err := parseICS(strings.NewReader(string(data)), s.loc)
	if err != nil {
		s.logger.Warn("ICS 解析失败", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, ErrICSParseFailed
	}
	if len(drafts) == 0 {
		return nil, ErrICSEmpty
	}

	resp := &dto.ImportCoursesResponse{
		Imported: []dto.CourseResponse{},
		Skipped:  []dto.SkippedCourse{},
	}
	var courses []model.Course
	for _, d := range drafts {
		course, err := buildCourse(p.UserID, d.Code, d.Name, section, "", d.Timings)
		if err != nil {
			resp.Skipped = append(resp.Skipped, dto.SkippedCourse{CourseCode: d.Code, Section: section, Reason: SkipReasonInvalid})
			continue
		}
		exists, err := s.repo.Course.ExistsByCodeAndSection(ctx, p.UserID, course.CourseCode, section, "")
		if err != nil {
			s.logger.Error("查询课程唯一性失败", zap.Error(err))
			return nil, err
		}
		if exists {
			resp.Skipped = append(resp.Skipped, dto.SkippedCourse{CourseCode: course.CourseCode, Section: section, Reason: SkipReasonExists})
			continue
		}
		course.Source = model.CourseSourceICS
		courses = append(courses, *course)
	}

	if err := s.repo.Course.BatchCreate(ctx, courses); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, ErrCourseExists
		}
		s.logger.Error("ICS 课程写入失败", zap.Error(err))
		return nil, fmt.Errorf("课表导入失败: %w", err)
	}

	for i := range courses {
		resp.Imported = append(resp.Imported, toCourseResponse(&courses[i]))
	}
	resp.ImportedCount = len(resp.Imported)

	s.logger.Info("ICS 课表已导入",
		zap.String("user_id", p.UserID),
		zap.String("section", section),
		zap.Int("imported", resp.ImportedCount),
		zap.Int("skipped", len(resp.Skipped)),
	)
	return resp, nil
}

// ── 辅助函数 ──

// loadOwned 读取课程并校验归属，非 UUID 或他人课程均返回 ErrCourseNotFound
func (s *timetableService) loadOwned(ctx context.Context, p Principal, id string) (*model.Course, error) {
	id = strings.TrimSpace(id)
	if !isUUID(id) {
		return nil, ErrCourseNotFound
	}
	course, err := s.repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("course_id", id), zap.Error(err))
		return nil, err
	}
	if course.CreatedBy != p.UserID {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

// buildCourse 规范化课程字段与上课时段
// 课程代码大写；时段统一为零填充 HH:MM，去重后按星期、开始时间排序
func buildCourse(owner, code, name, section, color string, timings []dto.TimingRequest) (*model.Course, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	section = strings.TrimSpace(section)
	if code == "" || name == "" || section == "" || len(code) > 20 || len(section) > 20 {
		return nil, ErrInvalidCourse
	}
	if len(timings) == 0 {
		return nil, ErrInvalidTiming
	}

	normalized := make([]model.CourseTiming, 0, len(timings))
	seen := make(map[model.CourseTiming]bool, len(timings))
	for _, t := range timings {
		day, ok := model.WeekdayNumber(strings.TrimSpace(t.Day))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTiming, t.Day)
		}
		start, okStart := parseClock(t.StartTime)
		end, okEnd := parseClock(t.EndTime)
		if !okStart || !okEnd || end <= start {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTiming, model.WeekdayName(day))
		}
		ct := model.CourseTiming{DayOfWeek: day, StartTime: formatClock(start), EndTime: formatClock(end)}
		if seen[ct] {
			continue
		}
		seen[ct] = true
		normalized = append(normalized, ct)
	}
	sort.Slice(normalized, func(i, j int) bool {
		if normalized[i].DayOfWeek != normalized[j].DayOfWeek {
			return normalized[i].DayOfWeek < normalized[j].DayOfWeek
		}
		return normalized[i].StartTime < normalized[j].StartTime
	})

	color = strings.TrimSpace(color)
	if color == "" {
		color = pickCourseColor(code)
	}

	return &model.Course{
		CourseCode: code,
		CourseName: name,
		Section:    section,
		Color:      color,
		CreatedBy:  owner,
		Timings:    normalized,
	}, nil
}

// parseClock HH:MM（小时可无前导零）转为当天分钟数
func parseClock(v string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func pickCourseColor(code string) string {
	h := fnv.New32a()
	h.Write([]byte(code))
	return courseColors[h.Sum32()%uint32(len(courseColors))]
}

func courseExists(c *model.Course) error {
	return fmt.Errorf("%w: %s %s", ErrCourseExists, c.CourseCode, c.Section)
}

func toTimingRequests(timings []model.CourseTiming) []dto.TimingRequest {
	list := make([]dto.TimingRequest, 0, len(timings))
	for _, t := range timings {
		list = append(list, dto.TimingRequest{
			Day:       model.WeekdayName(t.DayOfWeek),
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
		})
	}
	return list
}

func toCourseResponse(c *model.Course) dto.CourseResponse {
	timings := make([]dto.TimingResponse, 0, len(c.Timings))
	for _, t := range c.Timings {
		timings = append(timings, dto.TimingResponse{
			Day:       model.WeekdayName(t.DayOfWeek),
			DayOfWeek: t.DayOfWeek,
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
		})
	}
	return dto.CourseResponse{
		ID:         c.CourseID,
		CourseCode: c.CourseCode,
		CourseName: c.CourseName,
		Section:    c.Section,
		Color:      c.Color,
		Source:     c.Source,
		Timings:    timings,
		CreatedAt:  formatTime(c.CreatedAt),
		UpdatedAt:  formatTime(c.UpdatedAt),
	}
}
