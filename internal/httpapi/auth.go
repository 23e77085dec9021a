package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"karigari.shop/catalog/internal/auth"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey gates the API behind the configured bcrypt key hashes. An
// empty hash list disables the check; that is intended for local runs only.
func (s *Server) requireAPIKey() echo.MiddlewareFunc {
	hashes := s.cfg.APIKeyHashList()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(hashes) == 0 {
				return next(c)
			}

			key := strings.TrimSpace(c.Request().Header.Get(apiKeyHeader))
			if key == "" || !auth.VerifyAPIKey(key, hashes) {
				return unauthorizedResponse(c)
			}
			return next(c)
		}
	}
}
