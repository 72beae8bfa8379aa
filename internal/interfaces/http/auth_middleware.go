package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/pkg/jwt"
)

// Locals keys para la identidad del actor en Fiber.
const (
	LocalUserID         = "user_id"
	LocalOrganizationID = "organization_id"
	LocalRole           = "role"
	LocalUserName       = "user_name"
)

// AuthMiddleware valida el Bearer Token JWT y deja la identidad del actor en c.Locals.
// issuer vacío no valida el emisor.
func AuthMiddleware(jwtSecret, issuer string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		id, err := jwt.Parse(jwtSecret, issuer, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUserID, id.UserID)
		c.Locals(LocalOrganizationID, id.OrganizationID)
		c.Locals(LocalRole, id.Role)
		c.Locals(LocalUserName, id.Name)
		return c.Next()
	}
}

// RequireRole deja pasar solo a los roles indicados. Sin roles, cualquier miembro de la organización.
// Va después de AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "el token no incluye rol"})
		}
		if len(roles) == 0 {
			if entity.IsMemberRole(role) {
				return c.Next()
			}
		}
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para esta operación"})
	}
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string { return local(c, LocalUserID) }

// GetOrganizationID devuelve la organización activa del actor.
func GetOrganizationID(c *fiber.Ctx) string { return local(c, LocalOrganizationID) }

// GetRole devuelve el rol del actor en su organización.
func GetRole(c *fiber.Ctx) string { return local(c, LocalRole) }

// ActorFromCtx arma el actor de la petición.
func ActorFromCtx(c *fiber.Ctx) entity.Actor {
	return entity.Actor{
		UserID:         GetUserID(c),
		OrganizationID: GetOrganizationID(c),
		Name:           local(c, LocalUserName),
		Role:           GetRole(c),
	}
}

func local(c *fiber.Ctx, key string) string {
	v := c.Locals(key)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
