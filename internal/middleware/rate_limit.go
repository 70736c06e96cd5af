package middleware

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/coaching-api/internal/utils"
)

// RateLimit bounds requests per signed-in principal, falling back to the client IP.
// It must run after a gate so user_id and user_role are populated.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 300
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			userID, _ := c.Locals("user_id").(uint)
			if userID == 0 {
				return fmt.Sprintf("%s:ip:%s", identifier, c.IP())
			}
			role, _ := c.Locals("user_role").(string)
			return fmt.Sprintf("%s:%s:%d", identifier, role, userID)
		},
		LimitReached: limitReached,
	})
}

// IdentifierRateLimit bounds attempts per client IP and the identifier named in the JSON body.
func IdentifierRateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			var body struct {
				Identifier string `json:"identifier"`
			}
			_ = json.Unmarshal(c.Body(), &body)
			subject := strings.ToLower(strings.TrimSpace(body.Identifier))
			return fmt.Sprintf("%s:%s:%s", identifier, c.IP(), subject)
		},
		LimitReached: limitReached,
	})
}

func limitReached(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests, please try again later")
}
