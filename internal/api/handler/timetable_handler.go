package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/service"
	"bytecopied/backend/pkg/response"
)

// TimetableHandler 课表模块 Handler
type TimetableHandler struct {
	svc service.TimetableService
}

// NewTimetableHandler 创建 TimetableHandler 实例
func NewTimetableHandler(svc service.TimetableService) *TimetableHandler {
	return &TimetableHandler{svc: svc}
}

// ListCourses 获取我的课程
// GET /api/v1/timetable/courses
func (h *TimetableHandler) ListCourses(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.svc.ListCourses(c.Request.Context(), p)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, list)
}

// CreateCourse 创建课程
// POST /api/v1/timetable/courses
func (h *TimetableHandler) CreateCourse(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	course, err := h.svc.CreateCourse(c.Request.Context(), p, &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse 更新课程
// PUT /api/v1/timetable/courses/:id
func (h *TimetableHandler) UpdateCourse(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	course, err := h.svc.UpdateCourse(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, course)
}

// DeleteCourse 删除课程
// DELETE /api/v1/timetable/courses/:id
func (h *TimetableHandler) DeleteCourse(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteCourse(c.Request.Context(), p, c.Param("id")); err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, nil)
}

// ImportICS 导入 ICS 课表
// POST /api/v1/timetable/import
//
// multipart/form-data：file 为 ICS 文件，section 为导入课程所属班级
func (h *TimetableHandler) ImportICS(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	section := c.PostForm("section")
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "请上传 ICS 文件")
		return
	}
	defer file.Close()

	resp, err := h.svc.ImportICS(c.Request.Context(), p, file, section)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.Created(c, resp)
}

func handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 60001, err.Error())
	case errors.Is(err, service.ErrCourseExists):
		response.Conflict(c, 60002, err.Error())
	case errors.Is(err, service.ErrInvalidCourse), errors.Is(err, service.ErrInvalidTiming):
		response.BadRequest(c, 60003, err.Error())
	case errors.Is(err, service.ErrICSParseFailed), errors.Is(err, service.ErrICSEmpty):
		response.BadRequest(c, 60004, err.Error())
	case errors.Is(err, service.ErrICSTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 60005, err.Error())
	default:
		response.InternalError(c)
	}
}
