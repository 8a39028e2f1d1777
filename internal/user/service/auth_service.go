package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jarcode/internal/user/model"
	"jarcode/internal/user/repository"
	pkgerrors "jarcode/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL  = 24 * time.Hour
	defaultJWTIssuer = "jarcode"

	minPasswordLength = 8
	maxUsernameLength = 64
)

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	JWTSecret []byte
	JWTIssuer string
	TokenTTL  time.Duration
}

// AuthService issues and verifies the JWTs that identify submission authors.
type AuthService struct {
	users  repository.UserRepository
	config AuthServiceConfig
}

func NewAuthService(users repository.UserRepository, cfg AuthServiceConfig) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = defaultJWTIssuer
	}
	return &AuthService{users: users, config: cfg}, nil
}

// UserInfo is the authenticated identity attached to requests.
type UserInfo struct {
	ID       int64
	Username string
}

// AuthResult carries the issued token and its owner.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      UserInfo
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Register creates a user and issues a token.
func (s *AuthService) Register(ctx context.Context, username, password string) (AuthResult, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(fmt.Errorf("hash password failed: %w", err), pkgerrors.InternalServerError)
	}

	user := &model.User{Username: username, PasswordHash: string(passwordHash)}
	if _, err := s.users.Create(ctx, user); err != nil {
		if stderrors.Is(err, repository.ErrUsernameUsed) {
			return AuthResult{}, pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("username already taken")
		}
		return AuthResult{}, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}
	return s.issueToken(user)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			// Same error as a wrong password, so usernames cannot be probed.
			return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
		}
		return AuthResult{}, pkgerrors.Wrap(err, pkgerrors.DatabaseError)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}
	return s.issueToken(user)
}

// Authenticate validates a raw token and returns its identity.
func (s *AuthService) Authenticate(raw string) (UserInfo, error) {
	if raw == "" {
		return UserInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}

	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return UserInfo{}, pkgerrors.New(pkgerrors.TokenExpired)
		}
		return UserInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return UserInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.Issuer != s.config.JWTIssuer {
		return UserInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return UserInfo{}, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return UserInfo{ID: userID, Username: claims.Username}, nil
}

func (s *AuthService) issueToken(user *model.User) (AuthResult, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)

	claims := tokenClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.JWTIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(fmt.Errorf("sign token failed: %w", err), pkgerrors.InternalServerError)
	}

	return AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      UserInfo{ID: user.ID, Username: user.Username},
	}, nil
}

func validateCredentials(username, password string) error {
	if username == "" || len(username) > maxUsernameLength {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("invalid username")
	}
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessagef("password must be at least %d characters", minPasswordLength)
	}
	return nil
}
