package handler

import "bytecopied/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Snippet    *SnippetHandler
	Attendance *AttendanceHandler
	Timetable  *TimetableHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User),
		Snippet:    NewSnippetHandler(svc.Snippet),
		Attendance: NewAttendanceHandler(svc.Attendance),
		Timetable:  NewTimetableHandler(svc.Timetable),
	}
}
