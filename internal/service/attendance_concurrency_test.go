package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/internal/repository"
)

// 基于 SQLite 的并发测试：唯一索引与事务由真实数据库保证

func setupDBAttendanceService(t *testing.T) (*attendanceService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&model.AttendanceSession{}, &model.AttendanceSubmission{}); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}

	rs := &fakeRoster{rolls: map[string][]string{
		"1": {"AU2340001", "AU2340002", "AU2340003", "AU2340004", "AU2340005"},
	}}
	svc := NewAttendanceService(testAttendanceConfig(), repository.NewRepository(db), rs, zap.NewNop()).(*attendanceService)
	return svc, db
}

func countSubmissions(t *testing.T, db *gorm.DB, sessionID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.AttendanceSubmission{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		t.Fatalf("统计签到记录失败: %v", err)
	}
	return n
}

// 同一账号并发签到只写入一条，所有请求均返回成功形态
func TestAttendanceConcurrency_SameSubmitter(t *testing.T) {
	svc, db := setupDBAttendanceService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx, adminP, &dto.StartSessionRequest{Section: "1", TimerDuration: 60})
	if err != nil {
		t.Fatalf("StartSession 失败: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	results := make(chan *dto.SubmitResponse, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Submit(ctx, studentX, &dto.SubmitAttendanceRequest{
				SessionID:  view.SessionID,
				RollNumber: "AU2340001",
			})
			if err != nil {
				errs <- err
				return
			}
			results <- resp
		}()
	}
	wg.Wait()
	close(errs)
	close(results)

	for err := range errs {
		t.Errorf("并发签到不应返回错误: %v", err)
	}
	fresh := 0
	for r := range results {
		if !r.Submitted {
			t.Errorf("同一账号的重复签到应为成功形态: %+v", r)
		}
		if !r.AlreadySubmitted {
			fresh++
		}
	}
	if fresh != 1 {
		t.Errorf("期望恰好 1 个首次签到结果，实际 %d", fresh)
	}
	if got := countSubmissions(t, db, view.SessionID); got != 1 {
		t.Errorf("期望 1 条记录，实际 %d", got)
	}
}

// 不同账号并发提交同一学号只保留一条
func TestAttendanceConcurrency_SameRollNumber(t *testing.T) {
	svc, db := setupDBAttendanceService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx, adminP, &dto.StartSessionRequest{Section: "1", TimerDuration: 60})
	if err != nil {
		t.Fatalf("StartSession 失败: %v", err)
	}

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := Principal{UserID: fmt.Sprintf("stu-%d", i), Role: model.RoleStudent}
			if _, err := svc.Submit(ctx, p, &dto.SubmitAttendanceRequest{
				SessionID:  view.SessionID,
				RollNumber: "au2340002",
			}); err != nil {
				t.Errorf("签到不应返回错误: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := countSubmissions(t, db, view.SessionID); got != 1 {
		t.Errorf("期望 1 条记录，实际 %d", got)
	}
}

// 并发开启同一班级，任意时刻至多一个进行中会话
func TestAttendanceConcurrency_StartSameSection(t *testing.T) {
	svc, db := setupDBAttendanceService(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartSession(ctx, adminP, &dto.StartSessionRequest{Section: "1", TimerDuration: 30})
			if err != nil && !errors.Is(err, ErrSessionConflict) {
				t.Errorf("并发开启仅允许 ErrSessionConflict，实际: %v", err)
			}
		}()
	}
	wg.Wait()

	var active int64
	db.Model(&model.AttendanceSession{}).
		Where("section = ? AND status = ?", "1", model.SessionStatusActive).
		Count(&active)
	if active != 1 {
		t.Errorf("期望恰好 1 个进行中会话，实际 %d", active)
	}
}

// 结束与签到并发：报表包含且仅包含结束前已提交的签到
func TestAttendanceConcurrency_EndDuringSubmits(t *testing.T) {
	svc, db := setupDBAttendanceService(t)
	svc.cfg.EnforceDeadline = false
	ctx := context.Background()

	view, err := svc.StartSession(ctx, adminP, &dto.StartSessionRequest{Section: "1", TimerDuration: 60})
	if err != nil {
		t.Fatalf("StartSession 失败: %v", err)
	}

	var (
		wg       sync.WaitGroup
		artifact *ReportArtifact
		endErr   error
	)
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := Principal{UserID: fmt.Sprintf("stu-%d", i), Role: model.RoleStudent}
			_, err := svc.Submit(ctx, p, &dto.SubmitAttendanceRequest{
				SessionID:  view.SessionID,
				RollNumber: fmt.Sprintf("AU234000%d", i),
			})
			if err != nil && !errors.Is(err, ErrSessionInactive) {
				t.Errorf("签到仅允许 ErrSessionInactive，实际: %v", err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		artifact, endErr = svc.EndSession(ctx, adminP, &dto.EndSessionRequest{SessionID: view.SessionID})
	}()
	wg.Wait()

	if endErr != nil {
		t.Fatalf("EndSession 失败: %v", endErr)
	}
	rows := countSubmissions(t, db, view.SessionID)
	if int64(artifact.PresentCount) != rows {
		t.Errorf("报表出勤人数 %d 与已提交记录数 %d 不一致", artifact.PresentCount, rows)
	}
	if artifact.PresentCount+artifact.AbsentCount != 5 {
		t.Errorf("present+absent 应等于花名册人数 5，实际 %d", artifact.PresentCount+artifact.AbsentCount)
	}
}
