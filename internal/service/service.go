package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"quanlydonhang/backend/internal/cache"
	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/sequence"
	"quanlydonhang/backend/internal/store"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidScope = sequence.ErrInvalidScope
	// ErrInvoiceCreation hides which step of the invoice transaction failed.
	ErrInvoiceCreation = errors.New("failed to create invoice")
)

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return p, ok
}

func principal(ctx context.Context) (domain.Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.ID == 0 || p.Role == "" {
		return domain.Principal{}, ErrUnauthorized
	}
	return p, nil
}

func requireAdmin(ctx context.Context) (domain.Principal, error) {
	p, err := principal(ctx)
	if err != nil {
		return domain.Principal{}, err
	}
	if !p.IsAdmin() {
		return domain.Principal{}, ErrForbidden
	}
	return p, nil
}

type Options struct {
	Location     *time.Location
	StrictTotals bool
	CatalogTTL   time.Duration
	Now          func() time.Time
}

type Service struct {
	repo         store.Repository
	catalog      cache.CatalogCache
	logger       *zap.Logger
	validate     *validator.Validate
	loc          *time.Location
	strictTotals bool
	catalogTTL   time.Duration
	now          func() time.Time
}

func New(repo store.Repository, catalog cache.CatalogCache, logger *zap.Logger, opts Options) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	return &Service{
		repo:         repo,
		catalog:      catalog,
		logger:       logger,
		validate:     validate,
		loc:          opts.Location,
		strictTotals: opts.StrictTotals,
		catalogTTL:   opts.CatalogTTL,
		now:          opts.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// BranchScope is the branch visibility of one principal.
type BranchScope struct {
	All      bool
	BranchID int64
}

// noBranch matches no rows; it is the scope of a staff account with no branch assigned.
const noBranch int64 = -1

// ResolveScope is the single visibility policy for every list and search:
// admins see every branch, staff only their own.
func ResolveScope(p domain.Principal) BranchScope {
	if p.IsAdmin() {
		return BranchScope{All: true, BranchID: domain.AllBranches}
	}
	if p.BranchID <= 0 {
		return BranchScope{BranchID: noBranch}
	}
	return BranchScope{BranchID: p.BranchID}
}

// Filter turns a requested branch filter into the effective one. Admins get
// what they asked for (0 means all); staff always get their own branch.
func (b BranchScope) Filter(requested int64) int64 {
	if !b.All {
		return b.BranchID
	}
	if requested < 0 {
		return domain.AllBranches
	}
	return requested
}

func (b BranchScope) Allows(branchID int64) bool {
	return b.All || (b.BranchID > 0 && b.BranchID == branchID)
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed on %s", store.ErrInvalidInput, fieldPath(fe.Namespace()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
}

// fieldPath drops the top-level struct name validator puts in front of namespaces.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (s *Service) audit(ctx context.Context, action string, fields ...zap.Field) {
	p, _ := PrincipalFromContext(ctx)
	base := []zap.Field{
		zap.String("action", action),
		zap.Int64("actor_id", p.ID),
		zap.String("actor_role", p.Role),
	}
	s.logger.Info("audit", append(base, fields...)...)
}

func HashPassword(raw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
