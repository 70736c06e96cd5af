package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coaching-api/internal/session"
	"github.com/noah-isme/coaching-api/internal/utils"
)

// Sign-in pages the client is redirected to when a gate rejects a request.
const (
	StudentLoginPath = "/login"
	AdminLoginPath   = "/admin/login"
)

// StudentGate admits requests whose session carries a student.
func StudentGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		student, ok := session.Student(c)
		if !ok {
			return utils.Unauthorized(c, StudentLoginPath)
		}

		c.Locals("user_id", student.ID)
		c.Locals("user_role", "student")
		return c.Next()
	}
}

// AdminGate admits requests whose session carries an admin.
func AdminGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, ok := session.Admin(c)
		if !ok {
			return utils.Unauthorized(c, AdminLoginPath)
		}

		c.Locals("user_id", admin.ID)
		c.Locals("user_role", admin.Role)
		return c.Next()
	}
}
