package auth

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/login/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"form": fiber.Map{"username": "", "password": ""},
			"next": safeNext(c.Query("next")),
		})
	})

	r.Post("/login/", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
			return formError(c, ErrMissingCredentials)
		}
		_, tokens, err := svc.Login(c.UserContext(), req)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				return formError(c, err)
			}
			return err
		}
		return signedIn(c, tokens)
	})

	r.Post("/signup/", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, tokens, err := svc.Register(c.UserContext(), req)
		if err != nil {
			if errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrInvalidUsername) || errors.Is(err, ErrReservedUsername) || errors.Is(err, ErrUsernameTaken) {
				return formError(c, err)
			}
			return err
		}
		if c.Is("json") {
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "tokens": tokens})
		}
		return signedIn(c, tokens)
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		_ = c.BodyParser(&req)
		if req.RefreshToken == "" {
			req.RefreshToken = c.Cookies(RefreshCookie)
		}
		if req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token required")
		}

		id, err := svc.ValidateRefreshToken(c.UserContext(), req.RefreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		resp, err := svc.GenerateTokens(c.UserContext(), id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		setTokenCookies(c, resp)
		return c.JSON(resp)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		id, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(id)
	})

	r.Get("/logout/", func(c *fiber.Ctx) error {
		if refresh := c.Cookies(RefreshCookie); refresh != "" {
			if err := svc.RevokeRefreshToken(c.UserContext(), refresh); err != nil {
				return err
			}
		}
		clearTokenCookies(c)
		return c.Redirect("/", fiber.StatusFound)
	})
}

// signedIn answers JSON clients with the tokens and browsers with cookies
// plus a redirect to next.
func signedIn(c *fiber.Ctx, tokens TokenResponse) error {
	if c.Is("json") {
		return c.JSON(tokens)
	}
	setTokenCookies(c, tokens)
	return c.Redirect(safeNext(c.Query("next", c.FormValue("next"))), fiber.StatusFound)
}

func formError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"form":   fiber.Map{"username": c.FormValue("username")},
		"errors": fiber.Map{"__all__": []string{err.Error()}},
		"next":   safeNext(c.Query("next", c.FormValue("next"))),
	})
}

func setTokenCookies(c *fiber.Ctx, tokens TokenResponse) {
	c.Cookie(&fiber.Cookie{
		Name:     AccessCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  time.Now().Add(accessTokenTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Expires:  time.Now().Add(refreshTokenTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearTokenCookies(c *fiber.Ctx) {
	c.ClearCookie(AccessCookie, RefreshCookie)
}
