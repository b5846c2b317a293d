package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"bytecopied/backend/internal/dto"
	"bytecopied/backend/internal/service"
	"bytecopied/backend/pkg/response"
)

// SnippetHandler 代码片段 HTTP 处理器
type SnippetHandler struct {
	snippetSvc service.SnippetService
}

// NewSnippetHandler 创建 SnippetHandler
func NewSnippetHandler(snippetSvc service.SnippetService) *SnippetHandler {
	return &SnippetHandler{snippetSvc: snippetSvc}
}

// List GET /api/v1/snippets
func (h *SnippetHandler) List(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	list, err := h.snippetSvc.List(c.Request.Context(), p)
	if err != nil {
		handleSnippetError(c, err)
		return
	}
	response.OK(c, list)
}

// Get GET /api/v1/snippets/:id
func (h *SnippetHandler) Get(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	snippet, err := h.snippetSvc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleSnippetError(c, err)
		return
	}
	response.OK(c, snippet)
}

// Create POST /api/v1/snippets
func (h *SnippetHandler) Create(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.CreateSnippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	snippet, err := h.snippetSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleSnippetError(c, err)
		return
	}
	response.Created(c, snippet)
}

// Update PUT /api/v1/snippets/:id
func (h *SnippetHandler) Update(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	var req dto.UpdateSnippetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	snippet, err := h.snippetSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleSnippetError(c, err)
		return
	}
	response.OK(c, snippet)
}

// Delete DELETE /api/v1/snippets/:id
func (h *SnippetHandler) Delete(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}
	if err := h.snippetSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleSnippetError(c, err)
		return
	}
	response.OK(c, nil)
}

func handleSnippetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSnippetNotFound):
		response.NotFound(c, 40001, err.Error())
	case errors.Is(err, service.ErrSnippetReadOnly):
		response.Forbidden(c, 40002, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		response.Forbidden(c, 10003, err.Error())
	default:
		response.InternalError(c)
	}
}
