package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/store"
)

const tokenIssuer = "quanlydonhang"

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the slice of the repository the login flow needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	logger    *zap.Logger
	now       func() time.Time
}

type principalClaims struct {
	jwtlib.RegisteredClaims
	Role   string `json:"role"`
	Branch int64  `json:"branch"`
}

// NewAuthManager takes the signing secret once at startup; it is never reread.
func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, logger *zap.Logger) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		logger:    logger,
		now:       time.Now,
	}
}

// Login checks a username/password pair and issues a signed access token.
// Accounts still holding a plain-text password are rehashed with bcrypt on
// their first successful login.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return domain.LoginResponse{}, ErrMissingCredentials
	}

	user, err := a.userStore.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, fmt.Errorf("%w: user %s does not exist", store.ErrNotFound, username)
		}
		return domain.LoginResponse{}, err
	}

	if isPasswordHash(user.Password) {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
	} else {
		if user.Password == "" || subtle.ConstantTimeCompare([]byte(user.Password), []byte(req.Password)) != 1 {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		a.upgradeLegacyPassword(ctx, user.Username, req.Password)
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	user.Password = ""
	return domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      *user,
	}, nil
}

func (a *AuthManager) upgradeLegacyPassword(ctx context.Context, username string, plain string) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		a.logger.Warn("hash legacy password", zap.String("username", username), zap.Error(err))
		return
	}
	if err := a.userStore.UpdateUserPassword(ctx, username, string(hashed)); err != nil {
		a.logger.Warn("store upgraded password", zap.String("username", username), zap.Error(err))
		return
	}
	a.logger.Info("upgraded legacy plain-text password", zap.String("username", username))
}

// ParseToken validates signature and expiry and decodes the caller. Admin
// principals always carry AllBranches whatever branch the token encodes.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Principal, error) {
	claims := &principalClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Principal{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.Principal{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return domain.Principal{}, ErrInvalidToken
	}

	switch claims.Role {
	case domain.RoleAdmin:
		return domain.Principal{ID: id, Role: domain.RoleAdmin, BranchID: domain.AllBranches}, nil
	case domain.RoleStaff:
		return domain.Principal{ID: id, Role: domain.RoleStaff, BranchID: claims.Branch}, nil
	default:
		return domain.Principal{}, ErrInvalidToken
	}
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	branch := user.BranchID
	if user.Role == domain.RoleAdmin {
		branch = domain.AllBranches
	}
	claims := principalClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role:   user.Role,
		Branch: branch,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
