package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/nastyaeremenko/yatube/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrMissingCredentials = errors.New("username and password required")
	ErrInvalidUsername    = errors.New("username may contain only letters, digits and @/./+/-/_ characters")
	ErrUsernameTaken      = errors.New("a user with that username already exists")
	ErrReservedUsername   = errors.New("this username is reserved")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

// reservedUsernames are path segments taken by fixed routes; profiles under
// these names would be unreachable. Routing is case-insensitive.
var reservedUsernames = map[string]bool{
	"new":     true,
	"follow":  true,
	"group":   true,
	"auth":    true,
	"admin":   true,
	"stream":  true,
	"media":   true,
	"health":  true,
	"metrics": true,
}

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
	}
}

var (
	hashPasswordFn    = bcrypt.GenerateFromPassword
	signTokenFn       = (*Service).signToken
	parseWithClaimsFn = jwt.ParseWithClaims
)

func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, TokenResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return User{}, TokenResponse{}, ErrMissingCredentials
	}
	if !usernamePattern.MatchString(req.Username) {
		return User{}, TokenResponse{}, ErrInvalidUsername
	}
	if reservedUsernames[strings.ToLower(req.Username)] {
		return User{}, TokenResponse{}, ErrReservedUsername
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenResponse{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(req.Email),
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, username, password_hash, full_name)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.Username, user.PasswordHash, user.FullName)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, TokenResponse{}, ErrUsernameTaken
		}
		return User{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(ctx, user.Identity())
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, username, password_hash, full_name, is_admin, created_at, updated_at
		FROM users WHERE username = $1
	`, strings.TrimSpace(req.Username))

	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FullName, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, TokenResponse{}, ErrInvalidCredentials
		}
		return User{}, TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, user.Identity())
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}

func (s *Service) GenerateTokens(ctx context.Context, id Identity) (TokenResponse, error) {
	access, err := signTokenFn(s, id, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, id, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, id.ID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (Identity, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Identity{}, err
	}

	id, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || id.ID != claims.UserID || time.Now().After(expiresAt) {
		return Identity{}, errors.New("refresh token invalid")
	}
	return id, nil
}

func (s *Service) ValidateAccessToken(token string) (Identity, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: claims.UserID, Username: claims.Username}, nil
}

// RevokeRefreshToken marks a refresh token unusable. Unknown tokens are ignored.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	return err
}

func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var admin bool
	err := s.db.QueryRow(ctx, `SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return admin, err
}

func (s *Service) signToken(id Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   id.ID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (Identity, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT rt.user_id, u.username, rt.expires_at
		FROM refresh_tokens rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.token = $1 AND rt.revoked_at IS NULL
	`, token)
	var id Identity
	var expiresAt time.Time
	if err := row.Scan(&id.ID, &id.Username, &expiresAt); err != nil {
		return Identity{}, time.Time{}, err
	}
	return id, expiresAt, nil
}
