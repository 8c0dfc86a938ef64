package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"quanlydonhang/backend/internal/domain"
)

const customerSearchLimit = 50

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	filter := ResolveScope(p).Filter(domain.AllBranches)

	if cached, ok, err := s.catalog.GetBranches(ctx, filter); err != nil {
		s.logger.Warn("branch cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	branches, err := s.repo.ListBranches(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.SetBranches(ctx, filter, branches, s.catalogTTL); err != nil {
		s.logger.Warn("branch cache write failed", zap.Error(err))
	}
	return branches, nil
}

func (s *Service) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	if _, err := principal(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListStatuses(ctx)
}

func (s *Service) ListPayMethods(ctx context.Context) ([]domain.PayMethod, error) {
	if _, err := principal(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListPayMethods(ctx)
}

func (s *Service) SearchCustomers(ctx context.Context, search string, branchID int64) ([]domain.Customer, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchCustomers(ctx, strings.TrimSpace(search), ResolveScope(p).Filter(branchID), customerSearchLimit)
}

// CreateCustomer registers a customer under a branch. Staff always create in
// their own branch; admins must name one.
func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerAddress = strings.TrimSpace(req.CustomerAddress)
	if err := s.check(req); err != nil {
		return nil, err
	}

	scope := ResolveScope(p)
	branchID := req.BranchID
	if !scope.All {
		if branchID != 0 && branchID != scope.BranchID {
			return nil, ErrForbidden
		}
		branchID = scope.BranchID
	}
	if branchID <= 0 {
		return nil, invalidInput("branch_id is required")
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		BranchID:        branchID,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "customer_create", zap.Int64("customer_id", created.ID), zap.Int64("branch_id", branchID))
	return created, nil
}

// normalizeProductSort maps the accepted spellings onto the store's closed
// column set. Anything unrecognised sorts by name ascending.
func normalizeProductSort(field string, order string) (string, string) {
	switch strings.TrimSpace(field) {
	case "totalQuantity", domain.ProductSortTotalQuantity:
		field = domain.ProductSortTotalQuantity
	default:
		field = domain.ProductSortName
	}
	if strings.EqualFold(strings.TrimSpace(order), "desc") {
		return field, "desc"
	}
	return field, "asc"
}

func (s *Service) SearchProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	query.Search = strings.TrimSpace(query.Search)
	query.SortField, query.SortOrder = normalizeProductSort(query.SortField, query.SortOrder)
	query.BranchID = ResolveScope(p).Filter(query.BranchID)

	if cached, ok, err := s.catalog.GetProducts(ctx, query); err != nil {
		s.logger.Warn("product cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	products, err := s.repo.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.SetProducts(ctx, query, products, s.catalogTTL); err != nil {
		s.logger.Warn("product cache write failed", zap.Error(err))
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	req.ProductName = strings.TrimSpace(req.ProductName)
	req.ProductCode = strings.ToUpper(strings.TrimSpace(req.ProductCode))
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.UnitPrice.IsNegative() {
		return nil, invalidInput("unit_price must not be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ProductName: req.ProductName,
		ProductCode: req.ProductCode,
		UnitPrice:   req.UnitPrice,
		Image:       strings.TrimSpace(req.Image),
		BranchID:    req.BranchID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.catalog.InvalidateProducts(ctx); err != nil {
		s.logger.Warn("invalidate product cache", zap.Error(err))
	}
	s.audit(ctx, "product_create",
		zap.Int64("product_id", created.ID),
		zap.String("product_code", created.ProductCode),
		zap.Int64("branch_id", created.BranchID),
	)
	return created, nil
}
