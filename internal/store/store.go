package store

import (
	"context"
	"errors"

	"quanlydonhang/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the persistent store behind the service. A branch id of
// domain.AllBranches in any filter argument means no branch restriction.
type Repository interface {
	Ping(ctx context.Context) error

	ListBranches(ctx context.Context, branchID int64) ([]domain.Branch, error)
	ListStatuses(ctx context.Context) ([]domain.Status, error)
	ListPayMethods(ctx context.Context) ([]domain.PayMethod, error)

	SearchCustomers(ctx context.Context, search string, branchID int64, limit int) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	SearchProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id int64) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, branchID int64) ([]domain.UserAccount, error)
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	UpdateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	DeleteUser(ctx context.Context, id int64) error

	// LastSequence returns the largest numeric tail among invoice names made of
	// prefix followed only by digits, or 0 when there are none.
	LastSequence(ctx context.Context, prefix string) (int64, error)
	// CreateInvoice writes the header, its items and its coworkers as one unit.
	// Nothing is persisted when it returns an error.
	CreateInvoice(ctx context.Context, invoice domain.Invoice, items []domain.InvoiceItem, coworkerIDs []int64) (int64, error)
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	GetInvoiceDetail(ctx context.Context, id int64) (*domain.InvoiceDetail, error)
	ListOrders(ctx context.Context, query domain.OrderQuery) ([]domain.OrderSummary, error)
	SettleInvoice(ctx context.Context, id int64, settlement domain.InvoiceSettlement) (*domain.Invoice, error)
}
