package dto

// ── 认证模块 DTO ──

// SignupRequest 注册请求
type SignupRequest struct {
	Name             string `json:"name"              binding:"required,min=1,max=100"`
	Email            string `json:"email"             binding:"required,email"`
	EnrollmentNumber string `json:"enrollment_number" binding:"required,enrollment"`
	Password         string `json:"password"          binding:"required,min=6,max=72"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
