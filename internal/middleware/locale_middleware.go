package middleware

import (
	"strings"

	"go-hrflow/internal/i18n"

	"github.com/gofiber/fiber/v2"
)

// LocaleMiddleware reads the preferred language from Accept-Language
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if lang := c.Get(fiber.HeaderAcceptLanguage); lang != "" {
			tag := strings.TrimSpace(strings.SplitN(strings.SplitN(lang, ",", 2)[0], ";", 2)[0])
			if tag != "" {
				c.SetUserContext(i18n.WithLocale(c.UserContext(), tag))
			}
		}
		return c.Next()
	}
}
