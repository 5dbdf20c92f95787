package user

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
)

// Identity is the authenticated caller as read from the JWT claims.
type Identity struct {
	UserID int
	Email  string
	Role   Role
}

func (i Identity) IsVendor() bool   { return i.Role == RoleVendor }
func (i Identity) IsSupplier() bool { return i.Role == RoleSupplier }

// IdentityFromCtx extracts the user_id and role claims from the token that
// jwtware stores in c.Locals("user").
func IdentityFromCtx(c *fiber.Ctx) (Identity, error) {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok || tok == nil {
		return Identity{}, apperr.Unauthorized("unauthorized")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, apperr.Unauthorized("unauthorized")
	}

	id, ok := claimInt(claims["user_id"])
	if !ok || id <= 0 {
		return Identity{}, apperr.Unauthorized("unauthorized")
	}

	ident := Identity{UserID: id}
	if email, ok := claims["email"].(string); ok {
		ident.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		ident.Role = Role(role)
	}
	return ident, nil
}

// claimInt handles the numeric shapes a user_id claim can take after JSON
// decoding.
func claimInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case int64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(val)
		return n, err == nil
	default:
		return 0, false
	}
}

// RequireRole rejects callers whose role claim is not one of roles.
func RequireRole(roles ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, err := IdentityFromCtx(c)
		if err != nil {
			return apperr.Write(c, err)
		}
		for _, r := range roles {
			if ident.Role == r {
				return c.Next()
			}
		}
		return apperr.Write(c, apperr.Forbidden("this action requires role "+joinRoles(roles)))
	}
}

func joinRoles(roles []Role) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += " or "
		}
		out += string(r)
	}
	return out
}
