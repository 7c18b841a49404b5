package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/redis"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的写接口限流
// 已认证请求按用户计数，否则按 IP；limit <= 0 或 rdb 为 nil 时放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), rateLimitKey(c), limit, window)
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

func rateLimitKey(c *gin.Context) string {
	if uid := c.GetString(CtxUserID); uid != "" {
		return fmt.Sprintf("rate_limit:user:%s:%s:%s", uid, c.Request.Method, c.FullPath())
	}
	return fmt.Sprintf("rate_limit:ip:%s:%s:%s", c.ClientIP(), c.Request.Method, c.FullPath())
}
