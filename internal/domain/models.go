package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// AllBranches is the branch id carried by principals that are not bound to a branch.
const AllBranches int64 = 0

const (
	StatusDraft     int64 = 1
	StatusConfirmed int64 = 2
)

const DefaultPayMethod int64 = 1

type Principal struct {
	ID       int64
	Role     string
	BranchID int64
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type Branch struct {
	ID          int64  `json:"id"`
	BranchName  string `json:"branch_name"`
	AliasBranch string `json:"alias_branch"`
}

type Status struct {
	ID         int64  `json:"id"`
	StatusName string `json:"status_name"`
}

type PayMethod struct {
	ID         int64  `json:"id"`
	MethodName string `json:"method_name"`
}

type UserAccount struct {
	ID        int64     `json:"id"`
	AliasName string    `json:"alias_name"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	BranchID  int64     `json:"branch"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	AliasName string `json:"alias_name" validate:"required"`
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"omitempty,oneof=admin staff"`
	BranchID  int64  `json:"branch" validate:"gte=0"`
}

type UserUpdateRequest struct {
	AliasName string `json:"alias_name" validate:"required"`
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"omitempty,min=6"`
	Role      string `json:"role" validate:"required,oneof=admin staff"`
	BranchID  int64  `json:"branch" validate:"gte=0"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      UserAccount `json:"user"`
}

type Customer struct {
	ID              int64     `json:"id"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	CustomerAddress string    `json:"customer_address"`
	BranchID        int64     `json:"branch_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	CustomerName    string `json:"customer_name" validate:"required"`
	CustomerPhone   string `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerAddress string `json:"customer_address"`
	BranchID        int64  `json:"branch_id" validate:"gte=0"`
}

type Product struct {
	ID            int64           `json:"id"`
	ProductName   string          `json:"product_name"`
	ProductCode   string          `json:"product_code"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Image         string          `json:"image"`
	BranchID      int64           `json:"branch_id"`
	TotalQuantity int64           `json:"total_quantity"`
}

type ProductCreateRequest struct {
	ProductName string          `json:"product_name" validate:"required"`
	ProductCode string          `json:"product_code" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Image       string          `json:"image"`
	BranchID    int64           `json:"branch_id" validate:"gt=0"`
}

// Product list sort columns. Anything else falls back to ProductSortName.
const (
	ProductSortName          = "product_name"
	ProductSortTotalQuantity = "total_quantity"
)

type ProductQuery struct {
	Search    string
	SortField string
	SortOrder string
	BranchID  int64
}

type Invoice struct {
	ID          int64           `json:"id"`
	InvoiceName string          `json:"invoice_name"`
	CustomerID  int64           `json:"customer_id"`
	BranchID    int64           `json:"branch_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	DebtAmount  decimal.Decimal `json:"debt_amount"`
	PayMethodID int64           `json:"pay_method"`
	StatusID    int64           `json:"status_id"`
	Discount    decimal.Decimal `json:"discount"`
	CreatedBy   int64           `json:"created_by"`
	ConfirmedBy *int64          `json:"confirmed_by"`
	ConfirmedAt *time.Time      `json:"confirmed_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type InvoiceItem struct {
	ID         int64           `json:"id"`
	InvoiceID  int64           `json:"invoice_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type InvoiceCoworker struct {
	ID        int64 `json:"id"`
	InvoiceID int64 `json:"invoice_id"`
	UserID    int64 `json:"user_id"`
}

// InvoiceSettlement is the set of header fields a confirmation overwrites.
// A nil ConfirmedAt keeps the stored timestamp; StampAt is used only when
// the invoice has never been confirmed.
type InvoiceSettlement struct {
	PaidAmount  decimal.Decimal
	DebtAmount  decimal.Decimal
	ConfirmedBy int64
	ConfirmedAt *time.Time
	StampAt     time.Time
	StatusID    int64
}

type InvoiceDraft struct {
	InvoiceName string          `json:"invoice_name"`
	CustomerID  int64           `json:"customer_id" validate:"gt=0"`
	BranchID    int64           `json:"branch_id" validate:"gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	PayMethodID int64           `json:"pay_method" validate:"gte=0"`
	StatusID    int64           `json:"status_id" validate:"gte=0"`
	CreatedBy   int64           `json:"created_by" validate:"gte=0"`
	Discount    decimal.Decimal `json:"discount"`
}

type OrderItemInput struct {
	ProductID  int64           `json:"product_id" validate:"gt=0"`
	Quantity   int64           `json:"quantity" validate:"gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderCreateRequest struct {
	Invoice   InvoiceDraft     `json:"invoice"`
	Items     []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	Coworkers []int64          `json:"coworkers" validate:"dive,gt=0"`
}

type OrderCreateResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	InvoiceID   int64  `json:"invoiceId"`
	InvoiceName string `json:"invoice_name"`
}

type InvoiceConfirmRequest struct {
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	DebtAmount  decimal.Decimal `json:"debt_amount"`
	ConfirmedBy int64           `json:"confirmed_by" validate:"gte=0"`
	ConfirmedAt string          `json:"confirmed_at"`
	StatusID    int64           `json:"status_id" validate:"gte=0"`
}

type OrderProductLine struct {
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
}

type OrderSummary struct {
	InvoiceID     int64              `json:"invoice_id"`
	InvoiceName   string             `json:"invoice_name"`
	CustomerName  string             `json:"customer_name"`
	BranchID      int64              `json:"branch_id"`
	CreatedAt     time.Time          `json:"created_at"`
	StatusID      int64              `json:"status_id"`
	StatusName    string             `json:"status_name"`
	InvoiceAmount decimal.Decimal    `json:"invoice_amount"`
	Products      []OrderProductLine `json:"products"`
}

type OrderQuery struct {
	Search    string
	SortOrder string
	BranchID  int64
	StatusID  int64
	From      time.Time
	To        time.Time
}

type InvoiceHeader struct {
	ID           int64           `json:"id"`
	InvoiceName  string          `json:"invoice_name"`
	CreatedAt    time.Time       `json:"created_at"`
	StatusID     int64           `json:"status_id"`
	StatusName   string          `json:"status_name"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	DebtAmount   decimal.Decimal `json:"debt_amount"`
	PayMethodID  int64           `json:"pay_method"`
	MethodName   string          `json:"method_name"`
	Discount     decimal.Decimal `json:"discount"`
	CreatedByID  int64           `json:"created_by_id"`
	CreatedBy    string          `json:"created_by"`
	BranchID     int64           `json:"branch_id"`
	AliasBranch  string          `json:"alias_branch"`
	ConfirmedBy  *int64          `json:"confirmed_by"`
	ConfirmedAt  *time.Time      `json:"confirmed_at"`
}

type InvoiceItemDetail struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type InvoiceCoworkerDetail struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	AliasName string `json:"alias_name"`
}

type InvoiceDetail struct {
	Invoice   InvoiceHeader           `json:"invoice"`
	Items     []InvoiceItemDetail     `json:"items"`
	Coworkers []InvoiceCoworkerDetail `json:"coworkers"`
}

type InvoiceNameResponse struct {
	InvoiceName string `json:"invoice_name"`
	Scope       string `json:"scope"`
}
