package middleware

import (
	"fmt"

	"github.com/Laisky/zap"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
)

const (
	localPrincipal = "principal"

	sessionCookie   = "cookie_session"
	userHeader      = "X-User"
	programIDHeader = "X-Program-Id"
)

// Principal resolves the caller and stores it for handlers. With an authorizer configured the
// session cookie is required; otherwise the gateway headers are trusted and may be absent.
func Principal(cfg *config.Config, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := c.Get(userHeader)

		if cfg.AuthzURL != "" {
			session := c.Cookies(sessionCookie)
			if session == "" {
				return types.Forbidden(fmt.Sprintf("Authorizer cookie %q not found", sessionCookie))
			}
			if !services.IsAuthorizerInitialized() {
				if err := services.InitAuthorizer(cfg, c.BaseURL(), log); err != nil {
					log.Error("authorizer unavailable", zap.Error(err))
					return types.Internal("Authorizer unavailable")
				}
			}

			name, err := services.SessionUsername(session)
			if err != nil {
				return types.Forbidden(fmt.Sprintf("Invalid session: %v", err))
			}
			username = name
		}

		p := services.Principal{Username: username, ProgramID: c.Get(programIDHeader)}
		role, err := services.LookupRole(db, username)
		if err != nil {
			return err
		}
		p.Role = role

		c.Locals(localPrincipal, p)
		return c.Next()
	}
}

// PrincipalFrom returns the resolved caller, or a reviewer with no name when none was resolved
func PrincipalFrom(c *fiber.Ctx) services.Principal {
	if p, ok := c.Locals(localPrincipal).(services.Principal); ok {
		return p
	}
	return services.Principal{Role: models.RoleReviewer}
}
