package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"quanlydonhang/backend/internal/domain"
)

const defaultStaffBranch int64 = 1

// ListUsers returns every account to admins and only the caller's own account to staff.
func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		return s.repo.ListUsers(ctx, domain.AllBranches)
	}
	self, err := s.repo.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return []domain.UserAccount{*self}, nil
}

func userBranch(role string, branchID int64) int64 {
	if role == domain.RoleAdmin {
		return domain.AllBranches
	}
	if branchID <= 0 {
		return defaultStaffBranch
	}
	return branchID
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (*domain.UserAccount, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	req.AliasName = strings.TrimSpace(req.AliasName)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = domain.RoleStaff
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		AliasName: req.AliasName,
		Username:  req.Username,
		Password:  hashed,
		Role:      req.Role,
		BranchID:  userBranch(req.Role, req.BranchID),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "user_create", zap.Int64("user_id", created.ID), zap.String("username", created.Username), zap.String("role", created.Role))
	return created, nil
}

// UpdateUser keeps the stored password hash when no new password is given.
func (s *Service) UpdateUser(ctx context.Context, id int64, req domain.UserUpdateRequest) (*domain.UserAccount, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, invalidInput("user id must be positive")
	}
	req.AliasName = strings.TrimSpace(req.AliasName)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := s.check(req); err != nil {
		return nil, err
	}

	user := domain.UserAccount{
		ID:        id,
		AliasName: req.AliasName,
		Username:  req.Username,
		Role:      req.Role,
		BranchID:  userBranch(req.Role, req.BranchID),
	}
	if req.Password != "" {
		hashed, err := HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "user_update", zap.Int64("user_id", id), zap.Bool("password_changed", req.Password != ""))
	return updated, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	p, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if id <= 0 {
		return invalidInput("user id must be positive")
	}
	if id == p.ID {
		return invalidInput("cannot delete the signed-in account")
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, "user_delete", zap.Int64("user_id", id))
	return nil
}

// EnsureDefaultAdmin creates the first admin account on an empty user table.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, username string, password string) error {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if strings.TrimSpace(password) == "" {
		s.logger.Warn("user table is empty and SEED_ADMIN_PASSWORD is unset; no one can sign in")
		return nil
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	created, err := s.repo.CreateUser(ctx, domain.UserAccount{
		AliasName: "Administrator",
		Username:  username,
		Password:  hashed,
		Role:      domain.RoleAdmin,
		BranchID:  domain.AllBranches,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.logger.Info("seeded default admin", zap.Int64("user_id", created.ID), zap.String("username", created.Username))
	return nil
}
