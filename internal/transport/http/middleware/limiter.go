// file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 15 * time.Minute

// IPRateLimiter 为每个客户端 IP 维护一个令牌桶，空闲 15 分钟后由缓存回收
type IPRateLimiter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter 创建一个新的IP速率限制器
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(limiterIdleTTL, 10*time.Minute),
		rate:     r,
		burst:    b,
	}
}

// getLimiter 返回或创建指定IP的速率限制器，并刷新其过期时间
func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	if v, found := l.limiters.Get(ip); found {
		limiter := v.(*rate.Limiter)
		l.limiters.SetDefault(ip, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	if err := l.limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		// 并发请求已为该 IP 创建了限制器
		if v, found := l.limiters.Get(ip); found {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// Middleware 返回 gin 中间件
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.getLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试。"})
			return
		}
		c.Next()
	}
}

// LoginFailureLock 记录每个 (IP, 用户) 的认证失败次数，达到上限后临时锁定
type LoginFailureLock struct {
	failureCache    *cache.Cache
	maxFailures     int
	lockoutDuration time.Duration
}

// NewLoginFailureLock 创建一个新的登录失败锁定器
func NewLoginFailureLock(maxFailures int, lockoutDuration time.Duration) *LoginFailureLock {
	return &LoginFailureLock{
		failureCache:    cache.New(5*time.Minute, 10*time.Minute),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
	}
}

// Middleware 包裹令牌签发处理器：锁定期间直接拒绝，处理器返回 401 时累计失败
func (l *LoginFailureLock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, err := Login(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "用户名或密码不能为空"})
			return
		}
		username := creds.User
		ip := c.ClientIP()
		lockKey := "lock:" + ip + ":" + username
		failureKey := "failures:" + ip + ":" + username

		if _, found := l.failureCache.Get(lockKey); found {
			slog.Warn("已锁定的账户再次尝试获取令牌", "user", username, "ip", ip)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码无效"})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			failures, err := l.failureCache.IncrementInt64(failureKey, 1)
			if err != nil {
				l.failureCache.SetDefault(failureKey, int64(1))
				failures = 1
			}
			slog.Info("获取令牌失败", "user", username, "ip", ip, "failures", failures)
			if failures >= int64(l.maxFailures) {
				l.failureCache.Set(lockKey, true, l.lockoutDuration)
				l.failureCache.Delete(failureKey)
				slog.Warn("账户已被临时锁定", "user", username, "ip", ip, "duration", l.lockoutDuration.String())
			}
		case http.StatusOK:
			l.failureCache.Delete(failureKey)
		}
	}
}
