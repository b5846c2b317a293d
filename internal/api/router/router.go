package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bytecopied/backend/config"
	"bytecopied/backend/internal/api/handler"
	"bytecopied/backend/internal/api/middleware"
	"bytecopied/backend/internal/model"
	"bytecopied/backend/pkg/jwt"
	"bytecopied/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时黑名单与限流降级放行
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	// 避免 nil 指针装入接口
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证），按 IP 限流
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimit(limiter, cfg.Auth.RateLimit, cfg.Auth.RateWindow))
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 用户模块
			authorized.GET("/users", middleware.RoleAuth(model.RoleAdmin), h.User.ListUsers)

			// 签到模块（细粒度权限在 Service 层按能力集判断）
			attendance := authorized.Group("/attendance")
			{
				attendance.POST("/start", middleware.RoleAuth(model.RoleAdmin), h.Attendance.Start)
				attendance.GET("/sessions", h.Attendance.Sessions)
				attendance.GET("/sessions/:id/submission", h.Attendance.SubmissionStatus)
				attendance.POST("/submit",
					middleware.UserRateLimit(limiter, cfg.Attendance.SubmitRateLimit, cfg.Attendance.SubmitRateWindow),
					h.Attendance.Submit,
				)
				attendance.POST("/end", middleware.RoleAuth(model.RoleAdmin), h.Attendance.End)
			}

			// 代码片段模块（可见性与修改权限在 Service 层判断）
			snippets := authorized.Group("/snippets")
			{
				snippets.GET("", h.Snippet.List)
				snippets.GET("/:id", h.Snippet.Get)
				snippets.POST("", h.Snippet.Create)
				snippets.PUT("/:id", h.Snippet.Update)
				snippets.DELETE("/:id", h.Snippet.Delete)
			}

			// 课表模块（课程仅对创建者可见）
			timetable := authorized.Group("/timetable")
			{
				timetable.GET("/courses", h.Timetable.ListCourses)
				timetable.POST("/courses", h.Timetable.CreateCourse)
				timetable.PUT("/courses/:id", h.Timetable.UpdateCourse)
				timetable.DELETE("/courses/:id", h.Timetable.DeleteCourse)
				timetable.POST("/import", h.Timetable.ImportICS)
			}
		}
	}

	return r
}
