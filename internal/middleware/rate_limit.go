package middleware

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'updated_at')
local tokens = tonumber(bucket[1])
local updated_at = tonumber(bucket[2])

if tokens == nil or updated_at == nil then
    tokens = capacity
    updated_at = now
end

local elapsed = math.max(0, now - updated_at)
local added_tokens = elapsed * rate
tokens = math.min(capacity, tokens + added_tokens)

local allowed = 0
local retry_after = 0

if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
else
    retry_after = (requested - tokens) / rate
end

redis.call('HMSET', key, 'tokens', tokens, 'updated_at', now)
redis.call('EXPIRE', key, 86400)

return {allowed, math.floor(tokens), math.ceil(retry_after)}
`

type bucketVerdict struct {
	allowed    bool
	remaining  int
	retryAfter int
}

// RateLimit is a redis token bucket, one bucket per authenticated user and
// per client IP for anonymous requests. Bucket capacity is 2*qps with qps
// tokens refilled per second.
func RateLimit(redisClient *redis.Client, qps int) gin.HandlerFunc {
	capacity := 2 * qps
	return func(c *gin.Context) {
		verdict, err := takeToken(c, redisClient, bucketKey(c), capacity, qps)
		if err != nil {
			log.Printf("限流服务异常(已降级): %v", err)
			// Fail-Open: Redis挂了不能影响业务，直接放行
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(capacity))
		if !verdict.allowed {
			c.Header("Retry-After", strconv.Itoa(verdict.retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(verdict.remaining))
		c.Next()
	}
}

// bucketKey用已认证的user_id做桶键，共享出口IP的用户互不影响；
// 未认证的请求（注册、登录）退回IP。
func bucketKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "rate_limit:user:" + userID
	}
	return "rate_limit:ip:" + c.ClientIP()
}

func takeToken(c *gin.Context, redisClient *redis.Client, key string, capacity, qps int) (*bucketVerdict, error) {
	now := float64(time.Now().UnixNano()) / 1e9
	requested := 1 // 每个请求消耗1个令牌

	// 执行Lua脚本保证原子性
	result, err := redisClient.Eval(
		c.Request.Context(),
		tokenBucketScript,
		[]string{key},
		capacity, float64(qps), now, requested,
	).Result()
	if err != nil {
		return nil, err
	}

	verdict := &bucketVerdict{remaining: capacity}
	// Lua脚本保证返回整数，Go-Redis解析为int64
	if arr, ok := result.([]any); ok && len(arr) >= 3 {
		if v, ok := arr[0].(int64); ok {
			verdict.allowed = v == 1
		}
		if v, ok := arr[1].(int64); ok {
			verdict.remaining = int(v)
		}
		if v, ok := arr[2].(int64); ok {
			verdict.retryAfter = int(v)
		}
	}
	return verdict, nil
}
