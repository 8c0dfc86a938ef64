package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListBranches(ctx context.Context, branchID int64) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_name, alias_branch
		FROM branches
		WHERE ($1::bigint = 0 OR id = $1)
		ORDER BY id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.BranchName, &b.AliasBranch); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *Store) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status_name FROM statuses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]domain.Status, 0, 4)
	for rows.Next() {
		var st domain.Status
		if err := rows.Scan(&st.ID, &st.StatusName); err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func (s *Store) ListPayMethods(ctx context.Context) ([]domain.PayMethod, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, method_name FROM pay_methods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]domain.PayMethod, 0, 4)
	for rows.Next() {
		var pm domain.PayMethod
		if err := rows.Scan(&pm.ID, &pm.MethodName); err != nil {
			return nil, err
		}
		methods = append(methods, pm)
	}
	return methods, rows.Err()
}

func (s *Store) SearchCustomers(ctx context.Context, search string, branchID int64, limit int) ([]domain.Customer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, customer_phone, customer_address, branch_id, created_at
		FROM customers
		WHERE (customer_name ILIKE $1 OR customer_phone ILIKE $1)
		  AND ($2::bigint = 0 OR branch_id = $2)
		ORDER BY id
		LIMIT $3
	`, likePattern(search), branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 16)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.CustomerName, &c.CustomerPhone, &c.CustomerAddress, &c.BranchID, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.CustomerName) == "" {
		return nil, store.ErrInvalidInput
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (customer_name, customer_phone, customer_address, branch_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, customer.CustomerName, customer.CustomerPhone, customer.CustomerAddress, customer.BranchID).
		Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

var productSortColumns = map[string]string{
	domain.ProductSortName:          "p.product_name",
	domain.ProductSortTotalQuantity: "total_quantity",
}

func (s *Store) SearchProducts(ctx context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	column, ok := productSortColumns[query.SortField]
	if !ok {
		column = productSortColumns[domain.ProductSortName]
	}
	direction := "ASC"
	if strings.EqualFold(query.SortOrder, "desc") {
		direction = "DESC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.product_name, p.product_code, p.unit_price, p.image, p.branch_id,
		       COALESCE(SUM(ii.quantity), 0) AS total_quantity
		FROM products p
		LEFT JOIN invoice_items ii ON ii.product_id = p.id
		WHERE (p.product_name ILIKE $1 OR p.product_code ILIKE $1)
		  AND ($2::bigint = 0 OR p.branch_id = $2)
		GROUP BY p.id
		ORDER BY `+column+` `+direction+`, p.id
	`, likePattern(query.Search), query.BranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ProductName, &p.ProductCode, &p.UnitPrice, &p.Image, &p.BranchID, &p.TotalQuantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.ProductName) == "" || strings.TrimSpace(product.ProductCode) == "" || product.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (product_name, product_code, unit_price, image, branch_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, product.ProductName, product.ProductCode, product.UnitPrice, product.Image, product.BranchID).Scan(&product.ID)
	if err != nil {
		return nil, classify(err)
	}
	product.TotalQuantity = 0
	return &product, nil
}

const userColumns = `id, alias_name, username, password, role, branch, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.UserAccount, error) {
	var u domain.UserAccount
	if err := row.Scan(&u.ID, &u.AliasName, &u.Username, &u.Password, &u.Role, &u.BranchID, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`,
		strings.ToLower(strings.TrimSpace(username))))
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.UserAccount, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) ListUsers(ctx context.Context, branchID int64) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1::bigint = 0 OR branch = $1)
		ORDER BY id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (alias_name, username, password, role, branch)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, user.AliasName, user.Username, user.Password, user.Role, user.BranchID).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" {
		return nil, store.ErrInvalidInput
	}
	updated, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users
		SET alias_name = $2,
		    username = $3,
		    role = $4,
		    branch = $5,
		    password = COALESCE(NULLIF($6, ''), password)
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.AliasName, user.Username, user.Role, user.BranchID, user.Password))
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteUser fails with store.ErrConflict while invoices still reference the user.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %d is referenced by invoices", store.ErrConflict, id)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) LastSequence(ctx context.Context, prefix string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(invoice_name FROM $2::int) AS BIGINT)), 0)
		FROM invoices
		WHERE invoice_name LIKE $1
		  AND SUBSTRING(invoice_name FROM $2::int) ~ '^[0-9]{1,18}$'
	`, escapeLike(prefix)+"%", len(prefix)+1).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last, nil
}

// CreateInvoice inserts the header, then every item, then every coworker link
// inside one transaction. Any failure rolls the whole unit back.
func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice, items []domain.InvoiceItem, coworkerIDs []int64) (int64, error) {
	if strings.TrimSpace(invoice.InvoiceName) == "" || len(items) == 0 {
		return 0, store.ErrInvalidInput
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var invoiceID int64
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO invoices (
			invoice_name, customer_id, branch_id, amount, paid_amount, debt_amount,
			pay_method, status_id, discount, created_by, confirmed_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`, invoice.InvoiceName, invoice.CustomerID, invoice.BranchID, invoice.Amount, invoice.PaidAmount,
		invoice.DebtAmount, invoice.PayMethodID, invoice.StatusID, invoice.Discount, invoice.CreatedBy,
		nullInt64(invoice.ConfirmedBy), invoice.CreatedAt).Scan(&invoiceID)
	if err != nil {
		return 0, fmt.Errorf("insert invoice: %w", classify(err))
	}

	itemSQL, itemArgs := bulkInsert("invoice_items", []string{"invoice_id", "product_id", "quantity", "unit_price", "total_price"}, len(items),
		func(i int) []any {
			item := items[i]
			return []any{invoiceID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice}
		})
	if _, err := pgTx.ExecContext(ctx, itemSQL, itemArgs...); err != nil {
		return 0, fmt.Errorf("insert invoice items: %w", classify(err))
	}

	if len(coworkerIDs) > 0 {
		coworkerSQL, coworkerArgs := bulkInsert("invoice_coworkers", []string{"invoice_id", "user_id"}, len(coworkerIDs),
			func(i int) []any {
				return []any{invoiceID, coworkerIDs[i]}
			})
		if _, err := pgTx.ExecContext(ctx, coworkerSQL, coworkerArgs...); err != nil {
			return 0, fmt.Errorf("insert invoice coworkers: %w", classify(err))
		}
	}

	if err := pgTx.Commit(); err != nil {
		return 0, err
	}
	return invoiceID, nil
}

const invoiceColumns = `id, invoice_name, customer_id, branch_id, amount, paid_amount, debt_amount,
	pay_method, status_id, discount, created_by, confirmed_by, confirmed_at, created_at`

func scanInvoice(row interface{ Scan(...any) error }) (*domain.Invoice, error) {
	var (
		inv         domain.Invoice
		confirmedBy sql.NullInt64
		confirmedAt sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.InvoiceName, &inv.CustomerID, &inv.BranchID, &inv.Amount, &inv.PaidAmount,
		&inv.DebtAmount, &inv.PayMethodID, &inv.StatusID, &inv.Discount, &inv.CreatedBy, &confirmedBy,
		&confirmedAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if confirmedBy.Valid {
		inv.ConfirmedBy = &confirmedBy.Int64
	}
	if confirmedAt.Valid {
		at := confirmedAt.Time.UTC()
		inv.ConfirmedAt = &at
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	return &inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

func (s *Store) GetInvoiceDetail(ctx context.Context, id int64) (*domain.InvoiceDetail, error) {
	var (
		h           domain.InvoiceHeader
		confirmedBy sql.NullInt64
		confirmedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT i.id, i.invoice_name, i.created_at, i.status_id, s.status_name,
		       i.customer_id, c.customer_name, i.amount, i.paid_amount, i.debt_amount,
		       i.pay_method, pm.method_name, i.discount, i.created_by, u.alias_name,
		       i.branch_id, b.alias_branch, i.confirmed_by, i.confirmed_at
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		JOIN statuses s ON s.id = i.status_id
		JOIN branches b ON b.id = i.branch_id
		JOIN users u ON u.id = i.created_by
		JOIN pay_methods pm ON pm.id = i.pay_method
		WHERE i.id = $1
	`, id).Scan(&h.ID, &h.InvoiceName, &h.CreatedAt, &h.StatusID, &h.StatusName,
		&h.CustomerID, &h.CustomerName, &h.Amount, &h.PaidAmount, &h.DebtAmount,
		&h.PayMethodID, &h.MethodName, &h.Discount, &h.CreatedByID, &h.CreatedBy,
		&h.BranchID, &h.AliasBranch, &confirmedBy, &confirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	h.CreatedAt = h.CreatedAt.UTC()
	if confirmedBy.Valid {
		h.ConfirmedBy = &confirmedBy.Int64
	}
	if confirmedAt.Valid {
		at := confirmedAt.Time.UTC()
		h.ConfirmedAt = &at
	}

	detail := &domain.InvoiceDetail{
		Invoice:   h,
		Items:     make([]domain.InvoiceItemDetail, 0, 8),
		Coworkers: make([]domain.InvoiceCoworkerDetail, 0, 2),
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT ii.id, ii.product_id, p.product_name, p.product_code, ii.quantity, ii.unit_price, ii.total_price
		FROM invoice_items ii
		JOIN products p ON p.id = ii.product_id
		WHERE ii.invoice_id = $1
		ORDER BY ii.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item domain.InvoiceItemDetail
		if err := itemRows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.ProductCode,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		detail.Items = append(detail.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	coworkerRows, err := s.db.QueryContext(ctx, `
		SELECT ic.id, ic.user_id, u.alias_name
		FROM invoice_coworkers ic
		JOIN users u ON u.id = ic.user_id
		WHERE ic.invoice_id = $1
		ORDER BY ic.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer coworkerRows.Close()
	for coworkerRows.Next() {
		var cw domain.InvoiceCoworkerDetail
		if err := coworkerRows.Scan(&cw.ID, &cw.UserID, &cw.AliasName); err != nil {
			return nil, err
		}
		detail.Coworkers = append(detail.Coworkers, cw)
	}
	if err := coworkerRows.Err(); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) ListOrders(ctx context.Context, query domain.OrderQuery) ([]domain.OrderSummary, error) {
	direction := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		direction = "ASC"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.invoice_name, c.customer_name, i.branch_id, i.created_at,
		       i.status_id, s.status_name, i.amount,
		       COALESCE(
		           json_agg(json_build_object('product_name', p.product_name, 'quantity', ii.quantity) ORDER BY ii.id)
		               FILTER (WHERE ii.id IS NOT NULL),
		           '[]'
		       ) AS products
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		JOIN statuses s ON s.id = i.status_id
		LEFT JOIN invoice_items ii ON ii.invoice_id = i.id
		LEFT JOIN products p ON p.id = ii.product_id
		WHERE (c.customer_name ILIKE $1 OR i.invoice_name ILIKE $1)
		  AND ($2::bigint = 0 OR i.branch_id = $2)
		  AND i.created_at BETWEEN $3 AND $4
		  AND ($5::bigint = 0 OR i.status_id = $5)
		GROUP BY i.id, c.customer_name, s.status_name
		ORDER BY i.created_at `+direction+`, i.id `+direction+`
	`, likePattern(query.Search), query.BranchID, query.From, query.To, query.StatusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.OrderSummary, 0, 32)
	for rows.Next() {
		var (
			o        domain.OrderSummary
			products []byte
		)
		if err := rows.Scan(&o.InvoiceID, &o.InvoiceName, &o.CustomerName, &o.BranchID, &o.CreatedAt,
			&o.StatusID, &o.StatusName, &o.InvoiceAmount, &products); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(products, &o.Products); err != nil {
			return nil, fmt.Errorf("decode order products: %w", err)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SettleInvoice overwrites only the settlement columns of one invoice row.
func (s *Store) SettleInvoice(ctx context.Context, id int64, settlement domain.InvoiceSettlement) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `
		UPDATE invoices
		SET paid_amount = $2,
		    debt_amount = $3,
		    confirmed_by = $4,
		    confirmed_at = COALESCE($5, confirmed_at, $7),
		    status_id = $6
		WHERE id = $1
		RETURNING `+invoiceColumns,
		id, settlement.PaidAmount, settlement.DebtAmount, settlement.ConfirmedBy, nullTime(settlement.ConfirmedAt), settlement.StatusID, settlement.StampAt))
	if err != nil {
		return nil, classify(err)
	}
	return inv, nil
}

// bulkInsert builds one multi-row INSERT with sequential placeholders.
func bulkInsert(table string, columns []string, n int, row func(i int) []any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, n*len(columns))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", len(args)+j+1)
		}
		b.WriteByte(')')
		args = append(args, row(i)...)
	}
	return b.String(), args
}

// classify maps constraint violations onto store sentinels and passes anything else through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	case pgForeignKeyViolation, pgCheckViolation:
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, pgErr.ConstraintName)
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

func likePattern(search string) string {
	return "%" + escapeLike(strings.TrimSpace(search)) + "%"
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
