package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"golang.org/x/crypto/bcrypt"
)

var loginColumns = []string{"id", "email", "username", "password_hash", "full_name", "is_admin", "created_at", "updated_at"}

func TestRegisterAndLogin(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now().Add(-time.Minute)
	updatedAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "leo@example.com", "leo", pgxmock.AnyArg(), "Leo Tolstoy").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(createdAt, updatedAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	user, tokens, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "leo@example.com",
		Username: " leo ",
		Password: "password123",
		FullName: "Leo Tolstoy",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected user and tokens")
	}

	mock.ExpectQuery(`SELECT id, email, username, password_hash, full_name, is_admin, created_at, updated_at`).
		WithArgs("leo").
		WillReturnRows(pgxmock.NewRows(loginColumns).
			AddRow(user.ID, user.Email, user.Username, user.PasswordHash, user.FullName, false, createdAt, updatedAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), user.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, loginTokens, err := svc.Login(context.Background(), LoginRequest{Username: "leo", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := svc.ValidateAccessToken(loginTokens.AccessToken)
	if err != nil {
		t.Fatalf("validate access: %v", err)
	}
	if id.ID != user.ID || id.Username != "leo" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), Identity{ID: "user-1", Username: "leo"})
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	expiresAt := time.Now().Add(5 * time.Minute)
	mock.ExpectQuery(`SELECT rt.user_id, u.username, rt.expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "username", "expires_at"}).AddRow("user-1", "leo", expiresAt))

	id, err := svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh: %v", err)
	}
	if id.ID != "user-1" || id.Username != "leo" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc := NewService("test-secret", nil)
	_, _, err := svc.Register(context.Background(), RegisterRequest{Username: "  ", Password: "p"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	_, _, err = svc.Register(context.Background(), RegisterRequest{Username: "leo"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestRegisterInvalidUsername(t *testing.T) {
	svc := NewService("test-secret", nil)
	_, _, err := svc.Register(context.Background(), RegisterRequest{Username: "leo tolstoy", Password: "p"})
	if !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected invalid username, got %v", err)
	}
}

func TestRegisterReservedUsername(t *testing.T) {
	svc := NewService("test-secret", nil)
	for _, name := range []string{"new", "follow", "group", "auth", "admin", "stream", "media", "health", "metrics", "Admin"} {
		_, _, err := svc.Register(context.Background(), RegisterRequest{Username: name, Password: "p"})
		if !errors.Is(err, ErrReservedUsername) {
			t.Fatalf("%s: expected reserved username, got %v", name, err)
		}
	}
}

func TestRegisterUsernameTaken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "", "leo", pgxmock.AnyArg(), "").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	svc := NewService("test-secret", mock)
	_, _, err = svc.Register(context.Background(), RegisterRequest{Username: "leo", Password: "pass"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)

	mock.ExpectQuery(`SELECT id, email, username, password_hash`).
		WithArgs("leo").
		WillReturnRows(pgxmock.NewRows(loginColumns).
			AddRow("user-1", "", "leo", string(hash), "", false, time.Now(), time.Now()))

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Username: "leo", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, username, password_hash`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "pass"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, email, username, password_hash`).
		WithArgs("leo").
		WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Username: "leo", Password: "pass"})
	if !errors.Is(err, pgErr) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestGenerateTokensSaveRefreshError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgErr)

	svc := NewService("test-secret", mock)
	_, err = svc.GenerateTokens(context.Background(), Identity{ID: "user-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestGenerateTokensAccessSignError(t *testing.T) {
	oldSign := signTokenFn
	signTokenFn = func(_ *Service, _ Identity, _ time.Duration) (string, error) {
		return "", pgErr
	}
	defer func() { signTokenFn = oldSign }()

	svc := NewService("test-secret", nil)
	_, err := svc.GenerateTokens(context.Background(), Identity{ID: "user-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestGenerateTokensRefreshSignError(t *testing.T) {
	oldSign := signTokenFn
	call := 0
	signTokenFn = func(_ *Service, _ Identity, _ time.Duration) (string, error) {
		call++
		if call == 2 {
			return "", pgErr
		}
		return "token", nil
	}
	defer func() { signTokenFn = oldSign }()

	svc := NewService("test-secret", nil)
	_, err := svc.GenerateTokens(context.Background(), Identity{ID: "user-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegisterHashError(t *testing.T) {
	oldHash := hashPasswordFn
	hashPasswordFn = func(_ []byte, _ int) ([]byte, error) {
		return nil, pgErr
	}
	defer func() { hashPasswordFn = oldHash }()

	svc := NewService("test-secret", nil)
	_, _, err := svc.Register(context.Background(), RegisterRequest{Username: "leo", Password: "pass"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseTokenInvalid(t *testing.T) {
	oldParse := parseWithClaimsFn
	parseWithClaimsFn = func(_ string, _ jwt.Claims, _ jwt.Keyfunc, _ ...jwt.ParserOption) (*jwt.Token, error) {
		return &jwt.Token{Valid: false, Claims: &Claims{}}, nil
	}
	defer func() { parseWithClaimsFn = oldParse }()

	svc := NewService("test-secret", nil)
	_, err := svc.parseToken("token")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected token invalid, got %v", err)
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	token, err := NewService("other-secret", nil).signToken(Identity{ID: "user-1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewService("test-secret", nil).ValidateAccessToken(token); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := NewService("test-secret", nil).ValidateAccessToken("invalid-token"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRefreshTokenExpired(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), Identity{ID: "user-2"})
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT rt.user_id, u.username, rt.expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "username", "expires_at"}).AddRow("user-2", "anna", time.Now().Add(-time.Minute)))

	_, err = svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if err == nil {
		t.Fatalf("expected expired token error")
	}
}

func TestValidateRefreshTokenLookupError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService("test-secret", mock)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-3", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tokens, err := svc.GenerateTokens(context.Background(), Identity{ID: "user-3"})
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT rt.user_id, u.username, rt.expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnError(pgErr)

	_, err = svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at`).
		WithArgs("refresh-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := NewService("test-secret", mock).RevokeRefreshToken(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT is_admin FROM users`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"is_admin"}).AddRow(true))
	mock.ExpectQuery(`SELECT is_admin FROM users`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService("test-secret", mock)
	if admin, err := svc.IsAdmin(context.Background(), "user-1"); err != nil || !admin {
		t.Fatalf("expected admin: %v", err)
	}
	if admin, err := svc.IsAdmin(context.Background(), "ghost"); err != nil || admin {
		t.Fatalf("expected non-admin for unknown user: %v", err)
	}
}

var pgErr = errors.New("db error")
