package auth

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	localUserID   = "user_id"
	localUsername = "username"
)

// Authenticate reads a bearer header or the access cookie and, when the token
// is valid, stores the caller in locals. Anonymous requests pass through.
func Authenticate(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(AccessCookie)
		}
		if token == "" {
			return c.Next()
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return c.Next()
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.UserID == "" {
			return c.Next()
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localUsername, claims.Username)
		return c.Next()
	}
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

// CurrentUser returns the caller stored by Authenticate.
func CurrentUser(c *fiber.Ctx) (Identity, bool) {
	id, _ := c.Locals(localUserID).(string)
	if id == "" {
		return Identity{}, false
	}
	username, _ := c.Locals(localUsername).(string)
	return Identity{ID: id, Username: username}, true
}

// LoginRequired sends anonymous callers to loginURL with the original path
// in next.
func LoginRequired(loginURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); ok {
			return c.Next()
		}
		return c.Redirect(LoginRedirect(loginURL, c.OriginalURL()), fiber.StatusFound)
	}
}

// LoginRedirect builds "<loginURL>?next=<next>" keeping slashes readable.
func LoginRedirect(loginURL, next string) string {
	return loginURL + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

func AdminRequired(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		admin, err := svc.IsAdmin(c.UserContext(), user.ID)
		if err != nil {
			return err
		}
		if !admin {
			return fiber.NewError(fiber.StatusForbidden, "admin only")
		}
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
