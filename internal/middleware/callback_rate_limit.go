package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CallbackRateLimit limits interbank callback deliveries per reference number
// (falling back to client IP) using Redis if available. The payment switch is
// expected to redeliver, so the window is generous and the limiter fails open.
func CallbackRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			ReferenceNumber string `json:"reference_number"`
		}
		_ = c.BodyParser(&req)
		source := strings.TrimSpace(req.ReferenceNumber)
		if source == "" {
			source = c.IP()
		}
		key := "rl:callback:" + source
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many callback deliveries, try again later")
		}
		return c.Next()
	}
}
