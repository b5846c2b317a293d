package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"bytecopied/backend/config"
	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/repository"
)

// ── 测试辅助 ──

var (
	adminP   = Principal{UserID: "admin-1", Role: model.RoleAdmin, Name: "Admin", Email: "admin@example.com"}
	studentX = Principal{UserID: "stu-x", Role: model.RoleStudent, Name: "X", Email: "x@example.com"}
	studentY = Principal{UserID: "stu-y", Role: model.RoleStudent, Name: "Y", Email: "y@example.com"}
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type attendanceFixture struct {
	svc      *attendanceService
	sessions *mockSessionRepo
	subs     *mockSubmissionRepo
	roster   *fakeRoster
	clock    *fakeClock
}

func testAttendanceConfig() *config.AttendanceConfig {
	return &config.AttendanceConfig{
		Sections:        []string{"1", "2", "3", "4"},
		Durations:       []int{30, 40, 50, 60},
		HistoryLimit:    10,
		EnforceDeadline: true,
	}
}

func setupAttendanceService(t *testing.T) *attendanceFixture {
	t.Helper()
	sessions := newMockSessionRepo()
	subs := newMockSubmissionRepo()
	repo := &repository.Repository{
		User:                 newMockUserRepo(),
		Snippet:              newMockSnippetRepo(),
		AttendanceSession:    sessions,
		AttendanceSubmission: subs,
	}
	rs := &fakeRoster{rolls: map[string][]string{
		"1": {"A", "B", "C", "D", "E"},
		"2": {"AU2340017", "AU2340018"},
	}}
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	svc := NewAttendanceService(testAttendanceConfig(), repo, rs, zap.NewNop()).(*attendanceService)
	svc.now = clock.Now
	return &attendanceFixture{svc: svc, sessions: sessions, subs: subs, roster: rs, clock: clock}
}

func (f *attendanceFixture) start(t *testing.T, section string, duration int) *dto.SessionView {
	t.Helper()
	view, err := f.svc.StartSession(context.Background(), adminP, &dto.StartSessionRequest{
		Section:       section,
		TimerDuration: duration,
	})
	if err != nil {
		t.Fatalf("StartSession 应成功: %v", err)
	}
	return view
}

func (f *attendanceFixture) submit(t *testing.T, p Principal, sessionID, roll string) *dto.SubmitResponse {
	t.Helper()
	resp, err := f.svc.Submit(context.Background(), p, &dto.SubmitAttendanceRequest{
		SessionID:  sessionID,
		RollNumber: roll,
	})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	return resp
}

// ── StartSession 测试 ──

func TestAttendanceService_Start_FullFlow(t *testing.T) {
	f := setupAttendanceService(t)

	view := f.start(t, "1", 60)
	if view.Status != model.SessionStatusActive {
		t.Errorf("期望 status=active，实际=%s", view.Status)
	}
	if view.TotalStudents == nil || *view.TotalStudents != 5 {
		t.Errorf("期望 total_students=5，实际=%v", view.TotalStudents)
	}
	if view.TimeRemaining != 60 {
		t.Errorf("期望 time_remaining=60，实际=%d", view.TimeRemaining)
	}

	f.clock.Advance(61 * time.Second)
	views, err := f.svc.GetActiveSessionView(context.Background(), adminP)
	if err != nil {
		t.Fatalf("GetActiveSessionView 失败: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("期望 1 个会话，实际 %d", len(views))
	}
	if views[0].TimeRemaining != 0 {
		t.Errorf("61 秒后 time_remaining 应为 0，实际=%d", views[0].TimeRemaining)
	}
	if views[0].Status != model.SessionStatusActive {
		t.Errorf("到期后会话仍应为 active，实际=%s", views[0].Status)
	}
}

func TestAttendanceService_Start_PermissionDenied(t *testing.T) {
	f := setupAttendanceService(t)

	_, err := f.svc.StartSession(context.Background(), studentX, &dto.StartSessionRequest{Section: "1", TimerDuration: 60})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("期望 ErrPermissionDenied，实际: %v", err)
	}
	if f.roster.calls != 0 || f.sessions.writes != 0 {
		t.Error("权限不足时不应读取花名册或写入数据")
	}
}

func TestAttendanceService_Start_Validation(t *testing.T) {
	f := setupAttendanceService(t)

	tests := []struct {
		name    string
		req     dto.StartSessionRequest
		wantErr error
	}{
		{"未配置的班级", dto.StartSessionRequest{Section: "9", TimerDuration: 60}, ErrInvalidSection},
		{"未配置的时长", dto.StartSessionRequest{Section: "1", TimerDuration: 45}, ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.StartSession(context.Background(), adminP, &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
	if f.sessions.writes != 0 {
		t.Error("校验失败时不应写入数据")
	}
}

func TestAttendanceService_Start_RosterUnavailable(t *testing.T) {
	f := setupAttendanceService(t)

	_, err := f.svc.StartSession(context.Background(), adminP, &dto.StartSessionRequest{Section: "3", TimerDuration: 30})
	if !errors.Is(err, ErrRosterUnavailable) {
		t.Errorf("期望 ErrRosterUnavailable，实际: %v", err)
	}
	if f.sessions.writes != 0 {
		t.Error("花名册不可用时不应写入数据")
	}
}

// 再次开启同一班级会自动结束旧会话
func TestAttendanceService_Start_CompletesPrevious(t *testing.T) {
	f := setupAttendanceService(t)

	first := f.start(t, "1", 30)
	f.clock.Advance(5 * time.Second)
	second := f.start(t, "1", 40)

	old, _ := f.sessions.GetByID(context.Background(), first.SessionID)
	if old.Status != model.SessionStatusCompleted {
		t.Errorf("旧会话应被结束，实际 status=%s", old.Status)
	}
	if old.EndedAt == nil {
		t.Error("旧会话应写入 ended_at")
	}

	active, err := f.sessions.activeBySection("1")
	if err != nil {
		t.Fatalf("查询进行中会话失败: %v", err)
	}
	if active.SessionID != second.SessionID {
		t.Errorf("进行中会话应为新会话 %s，实际 %s", second.SessionID, active.SessionID)
	}

	// 其他班级不受影响
	other := f.start(t, "2", 30)
	if _, err := f.sessions.activeBySection("1"); err != nil {
		t.Errorf("开启班级 2 不应影响班级 1: %v", err)
	}
	_ = other
}

// ── GetActiveSessionView 测试 ──

func TestAttendanceService_View_OperatorAndSubmitter(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 30)
	f.submit(t, studentX, s.SessionID, "au2340017")

	f.clock.Advance(10 * time.Second)

	ops, err := f.svc.GetActiveSessionView(context.Background(), adminP)
	if err != nil {
		t.Fatalf("管理员视图失败: %v", err)
	}
	if len(ops) != 1 || ops[0].SubmittedCount == nil || *ops[0].SubmittedCount != 1 {
		t.Errorf("管理员视图应包含 submitted_count=1，实际 %+v", ops)
	}
	if ops[0].HasSubmitted != nil {
		t.Error("管理员视图不应包含 has_submitted")
	}

	mine, err := f.svc.GetActiveSessionView(context.Background(), studentX)
	if err != nil {
		t.Fatalf("学生视图失败: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("期望 1 个会话，实际 %d", len(mine))
	}
	if mine[0].HasSubmitted == nil || !*mine[0].HasSubmitted {
		t.Error("studentX 应显示已签到")
	}
	if mine[0].SubmittedCount != nil || mine[0].TotalStudents != nil {
		t.Error("学生视图不应包含统计数据")
	}
	if mine[0].TimeRemaining != 20 {
		t.Errorf("期望 time_remaining=20，实际=%d", mine[0].TimeRemaining)
	}
	if mine[0].Deadline != "2026-03-02T09:00:30Z" {
		t.Errorf("deadline 错误: %s", mine[0].Deadline)
	}
	if mine[0].ServerTime != "2026-03-02T09:00:10Z" {
		t.Errorf("server_time 错误: %s", mine[0].ServerTime)
	}

	other, _ := f.svc.GetActiveSessionView(context.Background(), studentY)
	if other[0].HasSubmitted == nil || *other[0].HasSubmitted {
		t.Error("studentY 应显示未签到")
	}
}

func TestAttendanceService_View_NoActiveSession(t *testing.T) {
	f := setupAttendanceService(t)

	views, err := f.svc.GetActiveSessionView(context.Background(), studentX)
	if err != nil {
		t.Fatalf("无会话时不应报错: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("期望空列表，实际 %d", len(views))
	}
}

func TestAttendanceService_View_UnknownRole(t *testing.T) {
	f := setupAttendanceService(t)

	_, err := f.svc.GetActiveSessionView(context.Background(), Principal{UserID: "u", Role: "guest"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("期望 ErrPermissionDenied，实际: %v", err)
	}
}

// 剩余时间单调不增且按时归零
func TestAttendanceService_View_MonotonicTime(t *testing.T) {
	f := setupAttendanceService(t)
	f.start(t, "1", 30)

	prev := 31
	for i := 0; i <= 35; i++ {
		views, err := f.svc.GetActiveSessionView(context.Background(), studentX)
		if err != nil {
			t.Fatalf("GetActiveSessionView 失败: %v", err)
		}
		got := views[0].TimeRemaining
		if got > prev {
			t.Fatalf("第 %d 秒 time_remaining 增大: %d > %d", i, got, prev)
		}
		if i >= 30 && got != 0 {
			t.Fatalf("第 %d 秒 time_remaining 应为 0，实际 %d", i, got)
		}
		prev = got
		f.clock.Advance(time.Second)
	}
}

// ── Submit 测试 ──

// 不同账号提交同一规范化学号
func TestAttendanceService_Submit_SameRollDifferentAccounts(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 60)

	first := f.submit(t, studentX, s.SessionID, "au2340017")
	if !first.Submitted || first.AlreadySubmitted {
		t.Errorf("首次签到应成功，实际 %+v", first)
	}
	if first.RollNumber != "AU2340017" {
		t.Errorf("学号应规范化为 AU2340017，实际 %s", first.RollNumber)
	}

	second := f.submit(t, studentY, s.SessionID, " AU2340017 ")
	if !second.AlreadySubmitted || second.Reason != DuplicateReasonRollNumber {
		t.Errorf("期望 already_submitted/roll_number，实际 %+v", second)
	}
	if second.Submitted {
		t.Error("学号被占用时 studentY 不应计为已签到")
	}

	n, _ := f.subs.CountBySession(context.Background(), s.SessionID)
	if n != 1 {
		t.Errorf("期望 1 条签到记录，实际 %d", n)
	}
}

func TestAttendanceService_Submit_SelfDuplicate(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 60)

	f.submit(t, studentX, s.SessionID, "AU2340017")
	again := f.submit(t, studentX, s.SessionID, "AU2340018")
	if !again.Submitted || !again.AlreadySubmitted || again.Reason != DuplicateReasonSelf {
		t.Errorf("期望幂等 self 结果，实际 %+v", again)
	}
	if again.RollNumber != "AU2340017" {
		t.Errorf("应返回首次签到的学号，实际 %s", again.RollNumber)
	}
}

func TestAttendanceService_Submit_UnattributedDuplicate(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 60)

	// 唯一冲突但两条索引上都查不到占用记录
	f.subs.createErr = gorm.ErrDuplicatedKey
	_, err := f.svc.Submit(context.Background(), studentX, &dto.SubmitAttendanceRequest{
		SessionID:  s.SessionID,
		RollNumber: "AU2340017",
	})
	if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("无法归因的冲突应返回错误，实际 %v", err)
	}
}

func TestAttendanceService_Submit_Errors(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 30)

	tests := []struct {
		name    string
		p       Principal
		req     dto.SubmitAttendanceRequest
		advance time.Duration
		wantErr error
	}{
		{"管理员无签到能力", adminP, dto.SubmitAttendanceRequest{SessionID: s.SessionID, RollNumber: "AU2340017"}, 0, ErrPermissionDenied},
		{"空学号", studentX, dto.SubmitAttendanceRequest{SessionID: s.SessionID, RollNumber: "   "}, 0, ErrInvalidRollNumber},
		{"会话不存在", studentX, dto.SubmitAttendanceRequest{SessionID: "missing", RollNumber: "AU2340017"}, 0, ErrSessionNotFound},
		{"超过截止时间", studentX, dto.SubmitAttendanceRequest{SessionID: s.SessionID, RollNumber: "AU2340017"}, 31 * time.Second, ErrSessionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Advance(tt.advance)
			_, err := f.svc.Submit(context.Background(), tt.p, &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
}

func TestAttendanceService_Submit_DeadlineNotEnforced(t *testing.T) {
	f := setupAttendanceService(t)
	f.svc.cfg.EnforceDeadline = false
	s := f.start(t, "2", 30)

	f.clock.Advance(5 * time.Minute)
	resp := f.submit(t, studentX, s.SessionID, "AU2340017")
	if !resp.Submitted {
		t.Error("关闭截止校验后到期会话仍应接受签到")
	}
}

// 结束后签到返回 ErrSessionInactive
func TestAttendanceService_Submit_AfterEnd(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 60)

	if _, err := f.svc.EndSession(context.Background(), adminP, &dto.EndSessionRequest{SessionID: s.SessionID}); err != nil {
		t.Fatalf("EndSession 失败: %v", err)
	}

	_, err := f.svc.Submit(context.Background(), studentX, &dto.SubmitAttendanceRequest{SessionID: s.SessionID, RollNumber: "AU2340017"})
	if !errors.Is(err, ErrSessionInactive) {
		t.Errorf("期望 ErrSessionInactive，实际: %v", err)
	}
}

// ── CheckSubmission 测试 ──

func TestAttendanceService_CheckSubmission(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "2", 60)

	status, err := f.svc.CheckSubmission(context.Background(), studentX, s.SessionID)
	if err != nil {
		t.Fatalf("CheckSubmission 失败: %v", err)
	}
	if status.HasSubmitted {
		t.Error("未签到时 has_submitted 应为 false")
	}

	f.submit(t, studentX, s.SessionID, "au2340018")
	status, _ = f.svc.CheckSubmission(context.Background(), studentX, s.SessionID)
	if !status.HasSubmitted || status.RollNumber != "AU2340018" || status.SubmittedAt == nil {
		t.Errorf("签到后状态错误: %+v", status)
	}

	for _, id := range []string{"missing", "9b2e4f6a-0c1d-4e3f-8a5b-7c9d1e2f3a4b"} {
		if _, err := f.svc.CheckSubmission(context.Background(), studentX, id); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("id=%s 期望 ErrSessionNotFound，实际: %v", id, err)
		}
	}
}

// ── EndSession 测试 ──

// 结束后生成 CSV 报表，出勤与缺勤覆盖整个花名册
func TestAttendanceService_End_CSVReport(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "1", 60)

	f.submit(t, studentX, s.SessionID, "C")
	f.clock.Advance(time.Second)
	f.submit(t, studentY, s.SessionID, "A")

	artifact, err := f.svc.EndSession(context.Background(), adminP, &dto.EndSessionRequest{SessionID: s.SessionID, Format: "csv"})
	if err != nil {
		t.Fatalf("EndSession 失败: %v", err)
	}
	if artifact.PresentCount != 2 || artifact.AbsentCount != 3 || artifact.UnmatchedCount != 0 {
		t.Errorf("期望 present=2 absent=3 unmatched=0，实际 %d/%d/%d",
			artifact.PresentCount, artifact.AbsentCount, artifact.UnmatchedCount)
	}
	if artifact.ContentType != "text/csv; charset=utf-8" || len(artifact.Data) == 0 {
		t.Errorf("报表内容错误: %s (%d bytes)", artifact.ContentType, len(artifact.Data))
	}

	ended, _ := f.sessions.GetByID(context.Background(), s.SessionID)
	if ended.Status != model.SessionStatusCompleted || ended.PresentCount != 2 || ended.AbsentCount != 3 {
		t.Errorf("会话统计写入错误: %+v", ended)
	}

	// 重复结束
	_, err = f.svc.EndSession(context.Background(), adminP, &dto.EndSessionRequest{SessionID: s.SessionID})
	if !errors.Is(err, ErrSessionInactive) {
		t.Errorf("重复结束期望 ErrSessionInactive，实际: %v", err)
	}
}

// 花名册不可用时会话保持进行中，恢复后可重试
func TestAttendanceService_End_RosterUnavailableKeepsActive(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "1", 60)
	f.submit(t, studentX, s.SessionID, "B")

	f.roster.err = ErrRosterUnavailable
	_, err := f.svc.EndSession(context.Background(), adminP, &dto.EndSessionRequest{SessionID: s.SessionID})
	if !errors.Is(err, ErrRosterUnavailable) {
		t.Fatalf("期望 ErrRosterUnavailable，实际: %v", err)
	}
	still, _ := f.sessions.GetByID(context.Background(), s.SessionID)
	if !still.IsActive() {
		t.Fatal("花名册不可用时会话应保持 active")
	}

	f.roster.err = nil
	artifact, err := f.svc.EndSession(context.Background(), adminP, &dto.EndSessionRequest{SessionID: s.SessionID})
	if err != nil {
		t.Fatalf("重试 EndSession 应成功: %v", err)
	}
	if artifact.PresentCount != 1 || artifact.AbsentCount != 4 {
		t.Errorf("期望 present=1 absent=4，实际 %d/%d", artifact.PresentCount, artifact.AbsentCount)
	}
}

func TestAttendanceService_End_Unmatched(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "1", 60)
	f.submit(t, studentX, s.SessionID, "A")
	f.submit(t, studentY, s.SessionID, "TYPO")

	artifact, err := f.svc.EndSession(context.Background(), adminP, &dto.EndSessionRequest{SessionID: s.SessionID})
	if err != nil {
		t.Fatalf("EndSession 失败: %v", err)
	}
	if artifact.PresentCount != 1 || artifact.AbsentCount != 4 || artifact.UnmatchedCount != 1 {
		t.Errorf("期望 1/4/1，实际 %d/%d/%d", artifact.PresentCount, artifact.AbsentCount, artifact.UnmatchedCount)
	}
	if artifact.ContentType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("默认格式应为 xlsx，实际 %s", artifact.ContentType)
	}
}

func TestAttendanceService_End_Errors(t *testing.T) {
	f := setupAttendanceService(t)
	s := f.start(t, "1", 60)

	tests := []struct {
		name    string
		p       Principal
		req     dto.EndSessionRequest
		wantErr error
	}{
		{"学生无权结束", studentX, dto.EndSessionRequest{SessionID: s.SessionID}, ErrPermissionDenied},
		{"不支持的格式", adminP, dto.EndSessionRequest{SessionID: s.SessionID, Format: "pdf"}, ErrInvalidReportFormat},
		{"会话不存在", adminP, dto.EndSessionRequest{SessionID: "missing"}, ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.EndSession(context.Background(), tt.p, &tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}

	still, _ := f.sessions.GetByID(context.Background(), s.SessionID)
	if !still.IsActive() {
		t.Error("失败的结束请求不应改变会话状态")
	}
}

// ── Capability 测试 ──

func TestCapabilitiesFor(t *testing.T) {
	admin := CapabilitiesFor(model.RoleAdmin)
	for _, c := range []Capability{CapViewAll, CapStartSession, CapEndSession} {
		if !admin.Has(c) {
			t.Errorf("admin 应具备能力 %d", c)
		}
	}
	if admin.Has(CapSubmit) || admin.Has(CapViewOwn) {
		t.Error("admin 不应具备学生能力")
	}

	student := CapabilitiesFor(model.RoleStudent)
	if !student.Has(CapSubmit) || !student.Has(CapViewOwn) {
		t.Error("student 应具备 Submit 与 ViewOwn")
	}
	if student.Has(CapStartSession) || student.Has(CapEndSession) || student.Has(CapViewAll) {
		t.Error("student 不应具备管理员能力")
	}

	if len(CapabilitiesFor("guest")) != 0 {
		t.Error("未知角色应为空集")
	}
}
