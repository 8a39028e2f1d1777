package service_test

import (
	"context"
	"testing"
	"time"

	"jarcode/internal/user/model"
	"jarcode/internal/user/repository"
	"jarcode/internal/user/service"
	pkgerrors "jarcode/pkg/errors"
)

type fakeUserRepo struct {
	nextID int64
	users  map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) (int64, error) {
	if _, exists := f.users[user.Username]; exists {
		return 0, repository.ErrUsernameUsed
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.users[user.Username] = user
	return user.ID, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func newAuthService(t *testing.T, cfg service.AuthServiceConfig) (*service.AuthService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	if cfg.JWTSecret == nil {
		cfg.JWTSecret = []byte("test-secret")
	}
	svc, err := service.NewAuthService(repo, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, repo
}

func TestAuthServiceConstructionValidation(t *testing.T) {
	t.Parallel()

	if _, err := service.NewAuthService(nil, service.AuthServiceConfig{JWTSecret: []byte("x")}); err == nil {
		t.Fatal("expected error for missing repository")
	}
	if _, err := service.NewAuthService(newFakeUserRepo(), service.AuthServiceConfig{}); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}

func TestRegisterLoginAuthenticateRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newAuthService(t, service.AuthServiceConfig{})

	registered, err := svc.Register(ctx, "alice", "s3cret-password")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if registered.User.ID == 0 || registered.Token == "" {
		t.Fatalf("registration should yield id and token, got %+v", registered)
	}

	logged, err := svc.Login(ctx, "alice", "s3cret-password")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	info, err := svc.Authenticate(logged.Token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if info.ID != registered.User.ID || info.Username != "alice" {
		t.Fatalf("identity mismatch: %+v", info)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newAuthService(t, service.AuthServiceConfig{})

	if _, err := svc.Register(ctx, "bob", "s3cret-password"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, wrongPass := svc.Login(ctx, "bob", "wrong-password")
	_, unknownUser := svc.Login(ctx, "nobody", "wrong-password")

	if !pkgerrors.Is(wrongPass, pkgerrors.InvalidCredentials) {
		t.Fatalf("wrong password error = %v, want InvalidCredentials", wrongPass)
	}
	// Unknown users must be indistinguishable from wrong passwords.
	if !pkgerrors.Is(unknownUser, pkgerrors.InvalidCredentials) {
		t.Fatalf("unknown user error = %v, want InvalidCredentials", unknownUser)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newAuthService(t, service.AuthServiceConfig{})

	if _, err := svc.Register(ctx, "", "s3cret-password"); !pkgerrors.Is(err, pkgerrors.ValidationFailed) {
		t.Fatalf("empty username error = %v, want ValidationFailed", err)
	}
	if _, err := svc.Register(ctx, "carol", "short"); !pkgerrors.Is(err, pkgerrors.ValidationFailed) {
		t.Fatalf("short password error = %v, want ValidationFailed", err)
	}

	if _, err := svc.Register(ctx, "carol", "s3cret-password"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "carol", "s3cret-password"); !pkgerrors.Is(err, pkgerrors.ValidationFailed) {
		t.Fatalf("duplicate username error = %v, want ValidationFailed", err)
	}
}

func TestAuthenticateRejectsExpiredAndTamperedTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	expiredSvc, _ := newAuthService(t, service.AuthServiceConfig{TokenTTL: -time.Minute})
	result, err := expiredSvc.Register(ctx, "dave", "s3cret-password")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := expiredSvc.Authenticate(result.Token); !pkgerrors.Is(err, pkgerrors.TokenExpired) {
		t.Fatalf("expired token error = %v, want TokenExpired", err)
	}

	svc, _ := newAuthService(t, service.AuthServiceConfig{JWTSecret: []byte("other-secret")})
	if _, err := svc.Authenticate(""); !pkgerrors.Is(err, pkgerrors.TokenInvalid) {
		t.Fatalf("empty token error = %v, want TokenInvalid", err)
	}
	if _, err := svc.Authenticate(result.Token); !pkgerrors.Is(err, pkgerrors.TokenInvalid) {
		t.Fatalf("foreign-secret token error = %v, want TokenInvalid", err)
	}
}
