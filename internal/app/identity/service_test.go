package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRepo struct {
	usersByID    map[string]User
	usersByEmail map[string]User
	tokens       map[string]RefreshToken // keyed by token hash
	createErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		usersByID:    map[string]User{},
		usersByEmail: map[string]User{},
		tokens:       map[string]RefreshToken{},
	}
}

func (f *fakeRepo) CreateUser(_ context.Context, u User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.usersByID[u.ID] = u
	f.usersByEmail[u.Email] = u
	return nil
}

func (f *fakeRepo) FindUserByID(_ context.Context, id string) (User, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) FindUserByEmail(_ context.Context, email string) (User, error) {
	u, ok := f.usersByEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) CreateRefreshToken(_ context.Context, t RefreshToken) error {
	f.tokens[t.TokenHash] = t
	return nil
}

func (f *fakeRepo) FindRefreshTokenByHash(_ context.Context, hash string) (RefreshToken, error) {
	t, ok := f.tokens[hash]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) RevokeRefreshToken(_ context.Context, tokenID string) error {
	for hash, t := range f.tokens {
		if t.TokenID == tokenID {
			delete(f.tokens, hash)
			return nil
		}
	}
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, NewTokenManager("test-secret"))
}

func TestRegisterIssuesTokens(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	resp, err := svc.Register(context.Background(), "Ada Lovelace", "Ada@Example.com ", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if resp.Token != resp.AccessToken {
		t.Fatal("legacy token field should mirror access_token")
	}
	if resp.Email != "ada@example.com" {
		t.Fatalf("email not normalized: %q", resp.Email)
	}
	if len(repo.tokens) != 1 {
		t.Fatalf("expected 1 stored refresh token, got %d", len(repo.tokens))
	}
	for _, stored := range repo.tokens {
		if stored.TokenHash == resp.RefreshToken {
			t.Fatal("refresh token stored in plaintext")
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	if _, err := svc.Register(context.Background(), "x", "not-an-email", "longenough"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "x", "a@b.com", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if _, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct-horse"); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := svc.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Name != "Ada" {
		t.Fatalf("unexpected name %q", resp.Name)
	}

	if _, err := svc.Login(context.Background(), "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	first, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The old token is single-use.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on reuse, got %v", err)
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	svc := newTestService(newFakeRepo())
	if _, err := svc.Refresh(context.Background(), "  "); !errors.Is(err, ErrRefreshTokenMissing) {
		t.Fatalf("expected ErrRefreshTokenMissing, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	resp, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Logout(context.Background(), resp.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(repo.tokens) != 0 {
		t.Fatalf("refresh token not revoked, %d remaining", len(repo.tokens))
	}

	// Logging out an already-revoked session is a no-op.
	if err := svc.Logout(context.Background(), resp.RefreshToken); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
}

func TestAccessTokenCarriesIdentity(t *testing.T) {
	svc := newTestService(newFakeRepo())

	resp, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.AuthToken.Parse(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Subject != resp.UserID || claims.Email != "ada@example.com" || claims.Name != "Ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Exp <= time.Now().Unix() {
		t.Fatal("access token already expired")
	}
}
