package handler

import (
	"github.com/gin-gonic/gin"

	"bytecopied/backend/internal/api/middleware"
	"bytecopied/backend/internal/service"
	"bytecopied/backend/pkg/jwt"
	"bytecopied/backend/pkg/response"
)

// MustGetPrincipal 从 Gin 上下文中安全提取调用者身份。
// 如果 JWT 中间件未正确注入 user_id / role，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetPrincipal(c *gin.Context) (service.Principal, bool) {
	userID := c.GetString(middleware.CtxUserID)
	role := c.GetString(middleware.CtxRole)
	if userID == "" || role == "" {
		response.Unauthorized(c, 10002, "未认证")
		return service.Principal{}, false
	}
	return service.Principal{
		UserID: userID,
		Role:   role,
		Name:   c.GetString(middleware.CtxName),
		Email:  c.GetString(middleware.CtxEmail),
	}, true
}

// MustGetClaims 提取当前 Access Token 的声明，用于注销
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.CtxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}
