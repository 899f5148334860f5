// Package requestid 为每个请求生成 ID，写入 Locals 与 X-Request-ID 响应头。
package requestid

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// HeaderName 是回写给客户端的响应头。
const HeaderName = "X-Request-ID"

const contextKey = "_bundlehub_request_id"

// New 返回生成请求 ID 的中间件。客户端已带 X-Request-ID 时沿用其值。
func New() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := string(c.Request().Header.Peek(HeaderName))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Locals(contextKey, reqID)
		c.Set(HeaderName, reqID)
		return c.Next()
	}
}

// FromCtx 返回中间件保存的请求 ID，未经过中间件时返回空串。
func FromCtx(c fiber.Ctx) string {
	if value := c.Locals(contextKey); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
