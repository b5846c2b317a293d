package service

import (
	"go.uber.org/zap"

	"bytecopied/backend/config"
	"bytecopied/backend/internal/repository"
	"bytecopied/backend/internal/roster"
	"bytecopied/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Snippet    SnippetService
	Attendance AttendanceService
	Timetable  TimetableService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rosterSrc roster.Source,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:       NewAuthService(repo, jwtMgr, blacklist, logger),
		User:       NewUserService(repo, logger),
		Snippet:    NewSnippetService(repo, logger),
		Attendance: NewAttendanceService(&cfg.Attendance, repo, rosterSrc, logger),
		Timetable:  NewTimetableService(&cfg.Timetable, repo, logger),
	}
}
