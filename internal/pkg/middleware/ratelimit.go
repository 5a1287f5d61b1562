package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"storefront/pkg/apperr"
	"storefront/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPRateLimiter 按 key（IP 或用户）存储限流器
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  *sync.RWMutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter 创建一个新的限流器
// r: 每秒允许的请求数 (QPS)
// b: 桶的大小 (Burst)
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		mu:  &sync.RWMutex{},
		r:   r,
		b:   b,
	}
}

// GetLimiter 获取指定 key 的限流器
func (i *IPRateLimiter) GetLimiter(key string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[key]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[key] = limiter
	}

	return limiter
}

// Allow 判断是否放行；拒绝时返回建议的重试间隔
func (i *IPRateLimiter) Allow(key string) (bool, time.Duration) {
	l := i.GetLimiter(key)
	if l.Allow() {
		return true, 0
	}
	r := l.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, delay
}

// RateLimitMiddleware 全局按 IP 限流
func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, retryAfter := limiter.Allow(c.ClientIP()); !ok {
			tooManyRequests(c, retryAfter)
			return
		}
		c.Next()
	}
}

// SensitiveRateLimiter 敏感接口（支付核验等）的按用户固定窗口限流
// 计数保存在 Redis 中，多实例共享；Redis 不可用时退化为本地令牌桶
type SensitiveRateLimiter struct {
	rdb      *redis.Client
	limit    int
	window   time.Duration
	fallback *IPRateLimiter
	log      *zap.Logger
}

func NewSensitiveRateLimiter(rdb *redis.Client, limit int, window time.Duration, log *zap.Logger) *SensitiveRateLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SensitiveRateLimiter{
		rdb:      rdb,
		limit:    limit,
		window:   window,
		fallback: NewIPRateLimiter(rate.Limit(float64(limit)/window.Seconds()), limit),
		log:      log,
	}
}

// Allow 返回是否放行以及拒绝时的剩余窗口
func (l *SensitiveRateLimiter) Allow(ctx context.Context, scope, key string) (bool, time.Duration) {
	if l.rdb == nil {
		return l.fallback.Allow(scope + ":" + key)
	}

	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)
	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		l.log.Warn("sensitive rate limiter falling back to local bucket", zap.Error(err))
		return l.fallback.Allow(scope + ":" + key)
	}
	if count == 1 {
		l.rdb.Expire(ctx, redisKey, l.window)
	}
	if count <= int64(l.limit) {
		return true, 0
	}

	ttl, err := l.rdb.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// 键没有过期时间时补上，避免永久封禁
		l.rdb.Expire(ctx, redisKey, l.window)
		ttl = l.window
	}
	return false, ttl
}

// Middleware 按当前登录用户限流，未登录时按 IP
func (l *SensitiveRateLimiter) Middleware(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := CurrentUserID(c)
		if !ok {
			key = "ip:" + c.ClientIP()
		}
		if allowed, retryAfter := l.Allow(c.Request.Context(), scope, key); !allowed {
			l.log.Warn("sensitive rate limit exceeded",
				zap.String("scope", scope),
				zap.String("key", key),
				zap.Duration("retry_after", retryAfter),
			)
			tooManyRequests(c, retryAfter)
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	response.FromError(c, apperr.ErrRateLimited)
	c.Abort()
}
