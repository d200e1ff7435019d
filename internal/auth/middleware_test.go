package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func whoami(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.SendString("anonymous")
	}
	return c.SendString(user.Username)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	return string(buf[:n])
}

func TestAuthenticate(t *testing.T) {
	app := fiber.New()
	app.Get("/whoami", Authenticate("secret"), whoami)

	svc := NewService("secret", nil)
	token, _ := svc.signToken(Identity{ID: "user-1", Username: "leo"}, accessTokenTTL)

	// anonymous
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if got := readBody(t, resp); got != "anonymous" {
		t.Fatalf("expected anonymous, got %q", got)
	}

	// bearer header
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if got := readBody(t, resp); got != "leo" {
		t.Fatalf("expected leo from header, got %q", got)
	}

	// cookie
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token})
	resp, _ = app.Test(req)
	if got := readBody(t, resp); got != "leo" {
		t.Fatalf("expected leo from cookie, got %q", got)
	}

	// expired and garbage tokens fall back to anonymous
	expired, _ := svc.signToken(Identity{ID: "user-1", Username: "leo"}, -time.Minute)
	for _, bad := range []string{expired, "garbage"} {
		req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: bad})
		resp, _ = app.Test(req)
		if got := readBody(t, resp); got != "anonymous" {
			t.Fatalf("expected anonymous for bad token, got %q", got)
		}
	}
}

func TestLoginRequiredRedirects(t *testing.T) {
	app := fiber.New()
	app.Use(Authenticate("secret"))
	app.Get("/new/", LoginRequired("/auth/login/"), whoami)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/new/", nil))
	if err != nil || resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect: %v", err)
	}
	if loc := resp.Header.Get("Location"); loc != "/auth/login/?next=/new/" {
		t.Fatalf("unexpected location: %s", loc)
	}

	token, _ := NewService("secret", nil).signToken(Identity{ID: "user-1", Username: "leo"}, accessTokenTTL)
	req := httptest.NewRequest(http.MethodGet, "/new/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token})
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok for signed in user: %v", err)
	}
}

func TestLoginRedirectEscapesQuery(t *testing.T) {
	got := LoginRedirect("/auth/login/", "/follow/?page=2")
	if got != "/auth/login/?next=/follow/%3Fpage%3D2" {
		t.Fatalf("unexpected redirect: %s", got)
	}
}

func TestAdminRequired(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService("secret", mock)
	app := fiber.New()
	app.Use(Authenticate("secret"))
	app.Post("/admin", AdminRequired(svc), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/admin", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}

	token, _ := svc.signToken(Identity{ID: "user-1", Username: "leo"}, accessTokenTTL)

	mock.ExpectQuery(`SELECT is_admin FROM users`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"is_admin"}).AddRow(false))
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", resp.StatusCode)
	}

	mock.ExpectQuery(`SELECT is_admin FROM users`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"is_admin"}).AddRow(true))
	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected admin through, got %d", resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/new/":            "/new/",
		"//evil.example":   "/",
		"https://evil.com": "/",
		"/\\evil":          "/",
	}
	for in, want := range cases {
		if got := safeNext(in); got != want {
			t.Fatalf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
