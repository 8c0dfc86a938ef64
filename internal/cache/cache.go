package cache

import (
	"context"
	"time"

	"quanlydonhang/backend/internal/domain"
)

// CatalogCache holds read-mostly catalog listings. Product listings carry sold
// quantities, so writers call InvalidateProducts after orders and product creation.
type CatalogCache interface {
	GetBranches(ctx context.Context, branchID int64) ([]domain.Branch, bool, error)
	SetBranches(ctx context.Context, branchID int64, branches []domain.Branch, ttl time.Duration) error
	GetProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, bool, error)
	SetProducts(ctx context.Context, query domain.ProductQuery, products []domain.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) GetBranches(_ context.Context, _ int64) ([]domain.Branch, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetBranches(_ context.Context, _ int64, _ []domain.Branch, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) GetProducts(_ context.Context, _ domain.ProductQuery) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) SetProducts(_ context.Context, _ domain.ProductQuery, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) InvalidateProducts(_ context.Context) error {
	return nil
}
