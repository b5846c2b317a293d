package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/service"
	"bytecopied/backend/pkg/response"
)

// AttendanceHandler 签到会话 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// Start 开启签到
// POST /api/v1/attendance/start
func (h *AttendanceHandler) Start(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	view, err := h.attendanceSvc.StartSession(c.Request.Context(), p, &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.Created(c, view)
}

// Sessions 当前进行中会话视图，按角色裁剪字段
// GET /api/v1/attendance/sessions
func (h *AttendanceHandler) Sessions(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	views, err := h.attendanceSvc.GetActiveSessionView(c.Request.Context(), p)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.OK(c, views)
}

// SubmissionStatus 当前用户在该会话的签到状态
// GET /api/v1/attendance/sessions/:id/submission
func (h *AttendanceHandler) SubmissionStatus(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	status, err := h.attendanceSvc.CheckSubmission(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.OK(c, status)
}

// Submit 学生签到，重复提交返回成功形态
// POST /api/v1/attendance/submit
func (h *AttendanceHandler) Submit(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.attendanceSvc.Submit(c.Request.Context(), p, &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	if result.AlreadySubmitted {
		response.OKWithMessage(c, "已签到", result)
		return
	}
	response.OK(c, result)
}

// End 结束签到并下发报表文件
// POST /api/v1/attendance/end
func (h *AttendanceHandler) End(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	var req dto.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	artifact, err := h.attendanceSvc.EndSession(c.Request.Context(), p, &req)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	c.Header("X-Session-ID", artifact.SessionID)
	c.Header("X-Present-Count", strconv.Itoa(artifact.PresentCount))
	c.Header("X-Absent-Count", strconv.Itoa(artifact.AbsentCount))
	c.Header("X-Unmatched-Count", strconv.Itoa(artifact.UnmatchedCount))
	response.Attachment(c, artifact.Filename, artifact.ContentType, artifact.Data)
}

// handleAttendanceError 业务错误映射到 HTTP 状态码与业务码
func handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		response.Forbidden(c, 10003, err.Error())
	case errors.Is(err, service.ErrInvalidSection),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidRollNumber),
		errors.Is(err, service.ErrInvalidReportFormat):
		response.BadRequest(c, 10001, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 30001, err.Error())
	case errors.Is(err, service.ErrSessionInactive):
		response.BadRequest(c, 30002, err.Error())
	case errors.Is(err, service.ErrSessionExpired):
		response.BadRequest(c, 30003, err.Error())
	case errors.Is(err, service.ErrRosterUnavailable):
		// 消息中携带班级
		response.Error(c, http.StatusInternalServerError, 30004, err.Error())
	case errors.Is(err, service.ErrSessionConflict):
		response.Conflict(c, 30005, err.Error())
	case errors.Is(err, service.ErrReportRenderFailed):
		response.Error(c, http.StatusInternalServerError, 30006, err.Error())
	default:
		response.InternalError(c)
	}
}
