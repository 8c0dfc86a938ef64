package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/report"
	"quanlydonhang/backend/internal/sequence"
	"quanlydonhang/backend/internal/store"
)

// maxAllocationAttempts bounds how often a server-allocated invoice name is
// recomputed after losing an insert race on the unique name index.
const maxAllocationAttempts = 3

var hundred = decimal.NewFromInt(100)

// NextInvoiceName previews the next free name in the requested scope. The name
// is not reserved; CreateOrder detects a collision at insert time.
func (s *Service) NextInvoiceName(ctx context.Context, kind string, branchID int64) (domain.InvoiceNameResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return domain.InvoiceNameResponse{}, err
	}

	now := s.now().In(s.loc)
	var scope sequence.Scope
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", sequence.KindDaily:
		kind = sequence.KindDaily
		scope = sequence.Daily(now)
	case sequence.KindYearly:
		kind = sequence.KindYearly
		if branchID == 0 && !p.IsAdmin() {
			branchID = p.BranchID
		}
		scope, err = sequence.Yearly(branchID, now)
		if err != nil {
			return domain.InvoiceNameResponse{}, err
		}
		if !ResolveScope(p).Allows(branchID) {
			return domain.InvoiceNameResponse{}, ErrForbidden
		}
	default:
		return domain.InvoiceNameResponse{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, kind)
	}

	name, err := s.allocate(ctx, scope)
	if err != nil {
		return domain.InvoiceNameResponse{}, err
	}
	return domain.InvoiceNameResponse{InvoiceName: name, Scope: kind}, nil
}

func (s *Service) allocate(ctx context.Context, scope sequence.Scope) (string, error) {
	last, err := s.repo.LastSequence(ctx, scope.Prefix)
	if err != nil {
		return "", fmt.Errorf("read last sequence for %s: %w", scope.Prefix, err)
	}
	return scope.Next(last), nil
}

// CreateOrder validates the whole payload, then writes header, items and
// coworkers in one store transaction. An empty invoice_name is allocated from
// the daily scope here and reallocated when another order wins the same name.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderCreateResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return domain.OrderCreateResponse{}, err
	}
	if err := s.check(req); err != nil {
		return domain.OrderCreateResponse{}, err
	}

	draft := req.Invoice
	if draft.StatusID == 0 {
		draft.StatusID = domain.StatusDraft
	}
	if draft.StatusID != domain.StatusDraft {
		return domain.OrderCreateResponse{}, invalidInput("new orders must start as draft")
	}
	if draft.CreatedBy == 0 {
		draft.CreatedBy = p.ID
	}
	if draft.PayMethodID == 0 {
		draft.PayMethodID = domain.DefaultPayMethod
	}
	if draft.Amount.IsNegative() || draft.PaidAmount.IsNegative() {
		return domain.OrderCreateResponse{}, invalidInput("amounts must not be negative")
	}
	if draft.Discount.IsNegative() || draft.Discount.GreaterThan(hundred) {
		return domain.OrderCreateResponse{}, invalidInput("discount must be between 0 and 100")
	}

	items := make([]domain.InvoiceItem, 0, len(req.Items))
	for i, in := range req.Items {
		if in.UnitPrice.IsNegative() || in.TotalPrice.IsNegative() {
			return domain.OrderCreateResponse{}, invalidInput("items[%d]: prices must not be negative", i)
		}
		items = append(items, domain.InvoiceItem{
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
			TotalPrice: in.TotalPrice,
		})
	}
	if s.strictTotals {
		if err := checkTotals(items, draft.Amount, draft.Discount); err != nil {
			return domain.OrderCreateResponse{}, err
		}
	}

	invoice := domain.Invoice{
		CustomerID:  draft.CustomerID,
		BranchID:    draft.BranchID,
		Amount:      draft.Amount,
		PaidAmount:  draft.PaidAmount,
		PayMethodID: draft.PayMethodID,
		StatusID:    draft.StatusID,
		Discount:    draft.Discount,
		CreatedBy:   draft.CreatedBy,
		CreatedAt:   s.now().UTC(),
	}
	coworkers := uniqueIDs(req.Coworkers)

	name := strings.TrimSpace(draft.InvoiceName)
	allocated := name == ""
	for attempt := 1; ; attempt++ {
		if allocated {
			name, err = s.allocate(ctx, sequence.Daily(s.now().In(s.loc)))
			if err != nil {
				return domain.OrderCreateResponse{}, err
			}
		}
		invoice.InvoiceName = name

		id, err := s.repo.CreateInvoice(ctx, invoice, items, coworkers)
		if err == nil {
			invoice.ID = id
			break
		}
		if errors.Is(err, store.ErrConflict) {
			if allocated && attempt < maxAllocationAttempts {
				s.logger.Warn("invoice name taken, reallocating", zap.String("invoice_name", name), zap.Int("attempt", attempt))
				continue
			}
			return domain.OrderCreateResponse{}, fmt.Errorf("%w: invoice name %s is already taken", store.ErrConflict, name)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.OrderCreateResponse{}, ctxErr
		}
		s.logger.Error("invoice transaction failed", zap.String("invoice_name", name), zap.Error(err))
		return domain.OrderCreateResponse{}, ErrInvoiceCreation
	}

	if err := s.catalog.InvalidateProducts(ctx); err != nil {
		s.logger.Warn("invalidate product cache", zap.Error(err))
	}
	s.audit(ctx, "invoice_create",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("invoice_name", invoice.InvoiceName),
		zap.Int64("branch_id", invoice.BranchID),
		zap.Int("items", len(items)),
		zap.Int("coworkers", len(coworkers)),
	)

	return domain.OrderCreateResponse{
		Success:     true,
		Message:     "Tạo hóa đơn thành công",
		InvoiceID:   invoice.ID,
		InvoiceName: invoice.InvoiceName,
	}, nil
}

// checkTotals requires total_price = quantity * unit_price on every line and
// amount to equal the line sum, either before or after the percentage discount.
func checkTotals(items []domain.InvoiceItem, amount decimal.Decimal, discount decimal.Decimal) error {
	sum := decimal.Zero
	for i, item := range items {
		want := item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity))
		if !want.Equal(item.TotalPrice) {
			return invalidInput("items[%d]: total_price %s does not match quantity * unit_price %s", i, item.TotalPrice, want)
		}
		sum = sum.Add(want)
	}
	if amount.Equal(sum) {
		return nil
	}
	discounted := sum.Mul(hundred.Sub(discount)).Div(hundred).Round(2)
	if discount.IsPositive() && amount.Round(2).Equal(discounted) {
		return nil
	}
	return invalidInput("amount %s does not match item total %s", amount, sum)
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ConfirmInvoice overwrites the settlement fields of an existing invoice.
// Identical arguments always produce the same row: without confirmed_at the
// first confirmation time is kept.
func (s *Service) ConfirmInvoice(ctx context.Context, id int64, req domain.InvoiceConfirmRequest) (*domain.Invoice, error) {
	p, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(req); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, invalidInput("invoice id must be positive")
	}
	if req.PaidAmount.IsNegative() || req.DebtAmount.IsNegative() {
		return nil, invalidInput("amounts must not be negative")
	}

	settlement := domain.InvoiceSettlement{
		PaidAmount:  req.PaidAmount,
		DebtAmount:  req.DebtAmount,
		ConfirmedBy: req.ConfirmedBy,
		StampAt:     s.now().UTC(),
		StatusID:    req.StatusID,
	}
	if settlement.ConfirmedBy == 0 {
		settlement.ConfirmedBy = p.ID
	}
	if settlement.StatusID == 0 {
		settlement.StatusID = domain.StatusConfirmed
	}
	if raw := strings.TrimSpace(req.ConfirmedAt); raw != "" {
		at, err := parseTimestamp(raw, s.loc)
		if err != nil {
			return nil, invalidInput("confirmed_at: %v", err)
		}
		at = at.UTC()
		settlement.ConfirmedAt = &at
	}

	updated, err := s.repo.SettleInvoice(ctx, id, settlement)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "invoice_confirm",
		zap.Int64("invoice_id", id),
		zap.String("paid_amount", settlement.PaidAmount.String()),
		zap.String("debt_amount", settlement.DebtAmount.String()),
		zap.Int64("status_id", settlement.StatusID),
	)
	return updated, nil
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"}

// parseTimestamp accepts RFC 3339 or a zone-less local date/time interpreted in loc.
func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", raw)
}

func (s *Service) GetInvoiceDetail(ctx context.Context, id int64) (*domain.InvoiceDetail, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := s.repo.GetInvoiceDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ResolveScope(p).Allows(detail.Invoice.BranchID) {
		return nil, ErrForbidden
	}
	return detail, nil
}

// OrderFilter is the raw list filter as received from a caller. Dates are
// YYYY-MM-DD in the service location.
type OrderFilter struct {
	Search    string
	Sort      string
	BranchID  int64
	StatusID  int64
	StartDate string
	EndDate   string
}

func (s *Service) orderQuery(p domain.Principal, f OrderFilter) (domain.OrderQuery, error) {
	today := s.now().In(s.loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
	end := start

	if raw := strings.TrimSpace(f.StartDate); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, s.loc)
		if err != nil {
			return domain.OrderQuery{}, invalidInput("start_date must be YYYY-MM-DD")
		}
		start = t
		end = t
	}
	if raw := strings.TrimSpace(f.EndDate); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, s.loc)
		if err != nil {
			return domain.OrderQuery{}, invalidInput("end_date must be YYYY-MM-DD")
		}
		end = t
	}
	if end.Before(start) {
		return domain.OrderQuery{}, invalidInput("end_date is before start_date")
	}

	sort := "desc"
	if strings.EqualFold(strings.TrimSpace(f.Sort), "asc") {
		sort = "asc"
	}

	return domain.OrderQuery{
		Search:    strings.TrimSpace(f.Search),
		SortOrder: sort,
		BranchID:  ResolveScope(p).Filter(f.BranchID),
		StatusID:  max(f.StatusID, 0),
		From:      start.UTC(),
		To:        end.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC(),
	}, nil
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]domain.OrderSummary, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	query, err := s.orderQuery(p, f)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, query)
}

// ExportOrders renders the same rows as ListOrders into an XLSX workbook.
func (s *Service) ExportOrders(ctx context.Context, f OrderFilter) ([]byte, error) {
	orders, err := s.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	data, err := report.OrdersWorkbook(orders, s.loc)
	if err != nil {
		return nil, fmt.Errorf("build orders workbook: %w", err)
	}
	s.audit(ctx, "orders_export", zap.Int("rows", len(orders)))
	return data, nil
}
