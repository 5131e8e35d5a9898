package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cucumber_hub/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitTimeout = 200 * time.Millisecond

// RateLimiter фиксированное окно в минуту на участника, счетчик в Redis
// (общий для всех инстансов)
type RateLimiter struct {
	rdb       redis.UniversalClient
	perMinute int
	now       func() time.Time
}

// NewRateLimiter nil rdb или perMinute <= 0 - лимит выключен
func NewRateLimiter(rdb redis.UniversalClient, perMinute int) *RateLimiter {
	return &RateLimiter{rdb: rdb, perMinute: perMinute, now: time.Now}
}

func (l *RateLimiter) Enabled() bool {
	return l != nil && l.rdb != nil && l.perMinute > 0
}

// Middleware ставится после Auth. Redis недоступен - запрос пропускаем.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Enabled() {
			c.Next()
			return
		}
		id, ok := ParticipantID(c)
		if !ok {
			id = c.ClientIP()
		}

		window := l.now().Unix() / 60
		key := "ratelimit:" + id + ":" + strconv.FormatInt(window, 10)

		ctx, cancel := context.WithTimeout(c.Request.Context(), rateLimitTimeout)
		defer cancel()

		var incr *redis.IntCmd
		_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.Expire(ctx, key, time.Minute)
			return nil
		})
		if err != nil {
			logger.Warn("rate limit: redis недоступен, пропускаем", "error", err)
			c.Next()
			return
		}

		if incr.Val() > int64(l.perMinute) {
			c.Header("Retry-After", strconv.FormatInt(60-l.now().Unix()%60, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
