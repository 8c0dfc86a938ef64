package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/store"
)

const testSecret = "test-secret-key-with-at-least-32-bytes"

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {ID: 1, Username: "admin", Password: "admin123", Role: domain.RoleAdmin},
		},
	}

	manager := NewAuthManager(testSecret, time.Hour, users, nil)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	stored := users.users["admin"].Password
	if stored == "admin123" || !strings.HasPrefix(stored, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", stored)
	}
	if users.updates != 1 {
		t.Fatalf("expected one password update, got %d", users.updates)
	}

	// Second login goes through bcrypt and must not rewrite again.
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
	if users.updates != 1 {
		t.Fatalf("expected no further updates, got %d", users.updates)
	}
}

func TestAuthManagerLoginErrors(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"staff1": {ID: 2, Username: "staff1", Password: mustHashPassword(t, "staff123"), Role: domain.RoleStaff, BranchID: 1},
		},
	}
	manager := NewAuthManager(testSecret, time.Hour, users, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.LoginRequest
		want error
	}{
		{"missing password", domain.LoginRequest{Username: "staff1"}, ErrMissingCredentials},
		{"missing username", domain.LoginRequest{Password: "x"}, ErrMissingCredentials},
		{"unknown user", domain.LoginRequest{Username: "ghost", Password: "x"}, store.ErrNotFound},
		{"wrong password", domain.LoginRequest{Username: "staff1", Password: "nope"}, ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.Login(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	resp, err := manager.Login(ctx, domain.LoginRequest{Username: " Staff1 ", Password: "staff123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.User.Password != "" {
		t.Fatalf("password hash must not leave the auth manager")
	}

	principal, err := manager.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if principal != (domain.Principal{ID: 2, Role: domain.RoleStaff, BranchID: 1}) {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestParseTokenForcesAdminToAllBranches(t *testing.T) {
	manager := NewAuthManager(testSecret, time.Hour, &userStoreStub{}, nil)

	claims := principalClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "7",
			Issuer:    tokenIssuer,
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:   domain.RoleAdmin,
		Branch: 3,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	principal, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if principal.BranchID != domain.AllBranches || principal.ID != 7 {
		t.Fatalf("expected admin with all branches, got %+v", principal)
	}
}

func TestParseTokenRejectsBadTokens(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {ID: 1, Username: "admin", Password: mustHashPassword(t, "admin123"), Role: domain.RoleAdmin},
		},
	}
	manager := NewAuthManager(testSecret, time.Hour, users, nil)

	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	manager.now = time.Now
	if _, err := manager.ParseToken(expired.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	valid, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	other := NewAuthManager("another-secret-key-with-32-bytes-or-more", time.Hour, users, nil)
	if _, err := other.ParseToken(valid.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}

	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, principalClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "1", Issuer: tokenIssuer},
		Role:             domain.RoleAdmin,
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none failed: %v", err)
	}
	if _, err := manager.ParseToken(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none token to be rejected, got %v", err)
	}

	if _, err := manager.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to be rejected, got %v", err)
	}
}
