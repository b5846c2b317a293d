package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bytecopied/backend/pkg/response"
)

// RateLimiter 滑动窗口限流器，由 Redis 实现
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由限流
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// limiter 为 nil 时降级放行（与 JWTAuth 策略一致）
func RateLimit(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return rateLimit(limiter, limit, window, func(c *gin.Context) string {
		return fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())
	})
}

// UserRateLimit 按登录用户与路由限流，须挂在 JWTAuth 之后
func UserRateLimit(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return rateLimit(limiter, limit, window, func(c *gin.Context) string {
		who := c.GetString(CtxUserID)
		if who == "" {
			who = c.ClientIP()
		}
		return fmt.Sprintf("rate_limit:user:%s:%s", who, c.FullPath())
	})
}

func rateLimit(limiter RateLimiter, limit int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), keyFn(c), limit, window)
		if err != nil {
			// Redis 出错时降级放行
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
