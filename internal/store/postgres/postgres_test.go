package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func sampleInvoice() domain.Invoice {
	return domain.Invoice{
		InvoiceName: "DH2505010001",
		CustomerID:  1,
		BranchID:    1,
		Amount:      decimal.NewFromInt(650000),
		PayMethodID: 1,
		StatusID:    domain.StatusDraft,
		CreatedBy:   2,
		CreatedAt:   time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC),
	}
}

func sampleItems() []domain.InvoiceItem {
	return []domain.InvoiceItem{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(150000), TotalPrice: decimal.NewFromInt(300000)},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.NewFromInt(350000), TotalPrice: decimal.NewFromInt(350000)},
	}
}

func expectHeaderInsert(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectQuery("INSERT INTO invoices").
		WithArgs("DH2505010001", int64(1), int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(1), domain.StatusDraft, sqlmock.AnyArg(), int64(2), nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

const itemInsertSQL = "INSERT INTO invoice_items (invoice_id, product_id, quantity, unit_price, total_price) VALUES ($1,$2,$3,$4,$5), ($6,$7,$8,$9,$10)"

func TestCreateInvoice_InsertsHeaderItemsCoworkersInOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	expectHeaderInsert(mock, 7)
	mock.ExpectExec(regexp.QuoteMeta(itemInsertSQL)).
		WithArgs(int64(7), int64(1), int64(2), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(7), int64(2), int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_coworkers (invoice_id, user_id) VALUES ($1,$2)")).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.CreateInvoice(context.Background(), sampleInvoice(), sampleItems(), []int64{3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoice_SkipsCoworkerInsertWhenNone(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	expectHeaderInsert(mock, 8)
	mock.ExpectExec(regexp.QuoteMeta(itemInsertSQL)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	id, err := s.CreateInvoice(context.Background(), sampleInvoice(), sampleItems(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoice_RollsBackWhenItemInsertFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	expectHeaderInsert(mock, 9)
	mock.ExpectExec(regexp.QuoteMeta(itemInsertSQL)).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "invoice_items_product_id_fkey"})
	mock.ExpectRollback()

	_, err := s.CreateInvoice(context.Background(), sampleInvoice(), sampleItems(), []int64{3})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoice_RollsBackWhenCoworkerInsertFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	expectHeaderInsert(mock, 10)
	mock.ExpectExec(regexp.QuoteMeta(itemInsertSQL)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO invoice_coworkers").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "invoice_coworkers_user_id_fkey"})
	mock.ExpectRollback()

	_, err := s.CreateInvoice(context.Background(), sampleInvoice(), sampleItems(), []int64{999})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoice_DuplicateNameIsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO invoices").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "invoices_invoice_name_key"})
	mock.ExpectRollback()

	_, err := s.CreateInvoice(context.Background(), sampleInvoice(), sampleItems(), nil)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInvoice_RejectsEmptyItemsBeforeBegin(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.CreateInvoice(context.Background(), sampleInvoice(), nil, nil)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSequence(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM invoices").
		WithArgs("DH250501%", 9).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(42)))

	last, err := s.LastSequence(context.Background(), "DH250501")
	require.NoError(t, err)
	assert.Equal(t, int64(42), last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var invoiceRowColumns = []string{
	"id", "invoice_name", "customer_id", "branch_id", "amount", "paid_amount", "debt_amount",
	"pay_method", "status_id", "discount", "created_by", "confirmed_by", "confirmed_at", "created_at",
}

func TestSettleInvoice(t *testing.T) {
	at := time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC)
	settlement := domain.InvoiceSettlement{
		PaidAmount:  decimal.NewFromInt(600000),
		DebtAmount:  decimal.NewFromInt(50000),
		ConfirmedBy: 1,
		ConfirmedAt: &at,
		StampAt:     at.Add(time.Hour),
		StatusID:    domain.StatusConfirmed,
	}

	t.Run("returns updated row", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE invoices").
			WithArgs(int64(5), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), at, domain.StatusConfirmed, at.Add(time.Hour)).
			WillReturnRows(sqlmock.NewRows(invoiceRowColumns).AddRow(
				int64(5), "DH2505010001", int64(1), int64(1), "650000", "600000", "50000",
				int64(1), domain.StatusConfirmed, "0", int64(2), int64(1), at, at.Add(-time.Hour)))

		inv, err := s.SettleInvoice(context.Background(), 5, settlement)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, inv.StatusID)
		require.NotNil(t, inv.ConfirmedBy)
		assert.Equal(t, int64(1), *inv.ConfirmedBy)
		assert.True(t, inv.PaidAmount.Equal(decimal.NewFromInt(600000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("omitted confirmed_at keeps stored value", func(t *testing.T) {
		s, mock := newMockStore(t)
		keep := settlement
		keep.ConfirmedAt = nil
		mock.ExpectQuery(`confirmed_at = COALESCE\(\$5, confirmed_at, \$7\)`).
			WithArgs(int64(5), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), nil, domain.StatusConfirmed, at.Add(time.Hour)).
			WillReturnRows(sqlmock.NewRows(invoiceRowColumns).AddRow(
				int64(5), "DH2505010001", int64(1), int64(1), "650000", "600000", "50000",
				int64(1), domain.StatusConfirmed, "0", int64(2), int64(1), at, at.Add(-time.Hour)))

		inv, err := s.SettleInvoice(context.Background(), 5, keep)
		require.NoError(t, err)
		require.NotNil(t, inv.ConfirmedAt)
		assert.True(t, inv.ConfirmedAt.Equal(at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing invoice is not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("UPDATE invoices").WillReturnRows(sqlmock.NewRows(invoiceRowColumns))

		_, err := s.SettleInvoice(context.Background(), 404, settlement)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSearchProducts_SortColumnWhitelist(t *testing.T) {
	cols := []string{"id", "product_name", "product_code", "unit_price", "image", "branch_id", "total_quantity"}

	tests := []struct {
		name    string
		query   domain.ProductQuery
		orderBy string
	}{
		{"total quantity desc", domain.ProductQuery{SortField: "total_quantity", SortOrder: "desc"}, "ORDER BY total_quantity DESC, p.id"},
		{"name asc", domain.ProductQuery{SortField: "product_name", SortOrder: "asc"}, "ORDER BY p.product_name ASC, p.id"},
		{"unknown column falls back", domain.ProductQuery{SortField: "id; DROP TABLE products", SortOrder: "sideways"}, "ORDER BY p.product_name ASC, p.id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectQuery(regexp.QuoteMeta(tt.orderBy)).
				WithArgs("%%", int64(0)).
				WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "Áo thun", "AT001", "150000", "", int64(1), int64(3)))

			products, err := s.SearchProducts(context.Background(), tt.query)
			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, int64(3), products[0].TotalQuantity)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListOrders_DecodesProductLines(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY i.created_at DESC, i.id DESC")).
		WithArgs("%an%", int64(1), from, to, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "invoice_name", "customer_name", "branch_id", "created_at", "status_id", "status_name", "amount", "products",
		}).AddRow(int64(3), "DH2505010001", "Nguyễn Văn An", int64(1), from.Add(time.Hour), int64(1), "Phiếu tạm", "650000",
			[]byte(`[{"product_name":"Áo thun","quantity":2},{"product_name":"Quần jean","quantity":1}]`)))

	orders, err := s.ListOrders(context.Background(), domain.OrderQuery{Search: "an", BranchID: 1, From: from, To: to})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Products, 2)
	assert.Equal(t, "Áo thun", orders[0].Products[0].ProductName)
	assert.Equal(t, int64(2), orders[0].Products[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	t.Run("referenced user is conflict", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM users").WithArgs(int64(2)).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		assert.ErrorIs(t, s.DeleteUser(context.Background(), 2), store.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user is not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM users").WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.DeleteUser(context.Background(), 99), store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM users WHERE username").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.GetUserByUsername(context.Background(), "  Ghost ")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertPlaceholders(t *testing.T) {
	query, args := bulkInsert("invoice_coworkers", []string{"invoice_id", "user_id"}, 3, func(i int) []any {
		return []any{int64(1), int64(10 + i)}
	})
	assert.Equal(t, "INSERT INTO invoice_coworkers (invoice_id, user_id) VALUES ($1,$2), ($3,$4), ($5,$6)", query)
	assert.Equal(t, []any{int64(1), int64(10), int64(1), int64(11), int64(1), int64(12)}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off`, escapeLike("50%_off"))
	assert.Equal(t, "%abc%", likePattern("  abc "))
}
