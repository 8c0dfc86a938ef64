package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/sequence"
	"quanlydonhang/backend/internal/store"
)

type Store struct {
	mu sync.RWMutex

	branches   []domain.Branch
	statuses   []domain.Status
	payMethods []domain.PayMethod

	customers map[int64]domain.Customer
	products  map[int64]domain.Product
	users     map[int64]domain.UserAccount

	invoices  map[int64]domain.Invoice
	items     map[int64][]domain.InvoiceItem
	coworkers map[int64][]domain.InvoiceCoworker

	lastID map[string]int64
}

// New returns a store holding only reference data (branches, statuses, pay methods).
func New() *Store {
	return &Store{
		branches: []domain.Branch{
			{ID: 1, BranchName: "Chi nhánh 1", AliasBranch: "CN1"},
			{ID: 2, BranchName: "Chi nhánh 2", AliasBranch: "CN2"},
		},
		statuses: []domain.Status{
			{ID: domain.StatusDraft, StatusName: "Phiếu tạm"},
			{ID: domain.StatusConfirmed, StatusName: "Hoàn thành"},
		},
		payMethods: []domain.PayMethod{
			{ID: 1, MethodName: "Tiền mặt"},
			{ID: 2, MethodName: "Chuyển khoản"},
		},
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
		users:     make(map[int64]domain.UserAccount),
		invoices:  make(map[int64]domain.Invoice),
		items:     make(map[int64][]domain.InvoiceItem),
		coworkers: make(map[int64][]domain.InvoiceCoworker),
		lastID:    make(map[string]int64),
	}
}

// NewSeeded returns a store with demo users, customers and products for dev mode.
// Seed passwords come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; when unset,
// dev defaults are used and a warning is logged. Never used when DATABASE_URL is set.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}
	for _, u := range []struct {
		alias    string
		username string
		password string
		role     string
		branch   int64
	}{
		{"Quản trị", envOr("SEED_ADMIN_USERNAME", "admin"), adminPwd, domain.RoleAdmin, domain.AllBranches},
		{"Nhân viên 1", "staff1", staffPwd, domain.RoleStaff, 1},
		{"Nhân viên 2", "staff2", staffPwd, domain.RoleStaff, 2},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed password for %s: %v", u.username, err))
		}
		id := s.nextID("users")
		s.users[id] = domain.UserAccount{
			ID:        id,
			AliasName: u.alias,
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			BranchID:  u.branch,
			CreatedAt: now,
		}
	}

	for _, c := range []domain.Customer{
		{CustomerName: "Nguyễn Văn An", CustomerPhone: "0901000001", CustomerAddress: "Quận 1", BranchID: 1},
		{CustomerName: "Trần Thị Bình", CustomerPhone: "0901000002", CustomerAddress: "Quận 3", BranchID: 1},
		{CustomerName: "Lê Văn Cường", CustomerPhone: "0901000003", CustomerAddress: "Thủ Đức", BranchID: 2},
	} {
		c.ID = s.nextID("customers")
		c.CreatedAt = now
		s.customers[c.ID] = c
	}

	for _, p := range []domain.Product{
		{ProductName: "Áo thun trắng", ProductCode: "AT001", UnitPrice: decimal.NewFromInt(150000), BranchID: 1},
		{ProductName: "Quần jean xanh", ProductCode: "QJ001", UnitPrice: decimal.NewFromInt(350000), BranchID: 1},
		{ProductName: "Mũ lưỡi trai", ProductCode: "ML001", UnitPrice: decimal.NewFromInt(90000), BranchID: 2},
		{ProductName: "Túi vải", ProductCode: "TV001", UnitPrice: decimal.NewFromInt(60000), BranchID: 2},
	} {
		p.ID = s.nextID("products")
		s.products[p.ID] = p
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// nextID must be called with the write lock held.
func (s *Store) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) ListBranches(_ context.Context, branchID int64) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		if branchID != domain.AllBranches && b.ID != branchID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) ListStatuses(_ context.Context) ([]domain.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.statuses), nil
}

func (s *Store) ListPayMethods(_ context.Context) ([]domain.PayMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.payMethods), nil
}

func (s *Store) SearchCustomers(_ context.Context, search string, branchID int64, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0)
	for _, c := range s.customers {
		if branchID != domain.AllBranches && c.BranchID != branchID {
			continue
		}
		if !containsFold(search, c.CustomerName, c.CustomerPhone) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.CustomerName) == "" {
		return nil, store.ErrInvalidInput
	}
	if !s.branchExists(customer.BranchID) {
		return nil, fmt.Errorf("%w: unknown branch %d", store.ErrInvalidInput, customer.BranchID)
	}
	if customer.CustomerPhone != "" {
		for _, existing := range s.customers {
			if existing.CustomerPhone == customer.CustomerPhone {
				return nil, fmt.Errorf("%w: phone %s already registered", store.ErrConflict, customer.CustomerPhone)
			}
		}
	}
	customer.ID = s.nextID("customers")
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) SearchProducts(_ context.Context, query domain.ProductQuery) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := make(map[int64]int64)
	for _, items := range s.items {
		for _, item := range items {
			sold[item.ProductID] += item.Quantity
		}
	}

	out := make([]domain.Product, 0)
	for _, p := range s.products {
		if query.BranchID != domain.AllBranches && p.BranchID != query.BranchID {
			continue
		}
		if !containsFold(query.Search, p.ProductName, p.ProductCode) {
			continue
		}
		p.TotalQuantity = sold[p.ID]
		out = append(out, p)
	}

	desc := strings.EqualFold(query.SortOrder, "desc")
	slices.SortFunc(out, func(a, b domain.Product) int {
		var c int
		if query.SortField == domain.ProductSortTotalQuantity {
			c = cmp.Compare(a.TotalQuantity, b.TotalQuantity)
		} else {
			c = cmp.Compare(a.ProductName, b.ProductName)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(product.ProductName) == "" || strings.TrimSpace(product.ProductCode) == "" {
		return nil, store.ErrInvalidInput
	}
	if product.UnitPrice.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if !s.branchExists(product.BranchID) {
		return nil, fmt.Errorf("%w: unknown branch %d", store.ErrInvalidInput, product.BranchID)
	}
	for _, existing := range s.products {
		if existing.ProductCode == product.ProductCode {
			return nil, fmt.Errorf("%w: product code %s", store.ErrConflict, product.ProductCode)
		}
	}
	product.ID = s.nextID("products")
	product.TotalQuantity = 0
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = normalizeUsername(username)
	for _, u := range s.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context, branchID int64) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		if branchID != domain.AllBranches && u.BranchID != branchID {
			continue
		}
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = normalizeUsername(user.Username)
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return nil, store.ErrInvalidInput
	}
	if s.usernameTaken(user.Username, 0) {
		return nil, fmt.Errorf("%w: username %s", store.ErrConflict, user.Username)
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.ID = s.nextID("users")
	s.users[user.ID] = user
	created := user
	return &created, nil
}

// UpdateUser overwrites alias, username, role and branch. The password is
// replaced only when user.Password is non-empty.
func (s *Store) UpdateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	user.Username = normalizeUsername(user.Username)
	if user.Username == "" {
		return nil, store.ErrInvalidInput
	}
	if s.usernameTaken(user.Username, user.ID) {
		return nil, fmt.Errorf("%w: username %s", store.ErrConflict, user.Username)
	}
	current.AliasName = user.AliasName
	current.Username = user.Username
	current.Role = user.Role
	current.BranchID = user.BranchID
	if user.Password != "" {
		current.Password = user.Password
	}
	s.users[current.ID] = current
	updated := current
	return &updated, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = normalizeUsername(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	for id, u := range s.users {
		if u.Username == username {
			u.Password = password
			s.users[id] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	for _, inv := range s.invoices {
		if inv.CreatedBy == id || (inv.ConfirmedBy != nil && *inv.ConfirmedBy == id) {
			return fmt.Errorf("%w: user %d is referenced by invoices", store.ErrConflict, id)
		}
	}
	for _, rows := range s.coworkers {
		for _, row := range rows {
			if row.UserID == id {
				return fmt.Errorf("%w: user %d is referenced by invoices", store.ErrConflict, id)
			}
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) LastSequence(_ context.Context, prefix string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope := sequence.Scope{Prefix: prefix}
	var last int64
	for _, inv := range s.invoices {
		if n, ok := scope.Counter(inv.InvoiceName); ok && n > last {
			last = n
		}
	}
	return last, nil
}

// CreateInvoice checks every reference before touching any map, so a failed
// call leaves the store exactly as it was.
func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice, items []domain.InvoiceItem, coworkerIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(invoice.InvoiceName) == "" || len(items) == 0 {
		return 0, store.ErrInvalidInput
	}
	for _, existing := range s.invoices {
		if existing.InvoiceName == invoice.InvoiceName {
			return 0, fmt.Errorf("%w: invoice name %s", store.ErrConflict, invoice.InvoiceName)
		}
	}
	if _, ok := s.customers[invoice.CustomerID]; !ok {
		return 0, fmt.Errorf("%w: unknown customer %d", store.ErrInvalidInput, invoice.CustomerID)
	}
	if !s.branchExists(invoice.BranchID) {
		return 0, fmt.Errorf("%w: unknown branch %d", store.ErrInvalidInput, invoice.BranchID)
	}
	if _, ok := s.users[invoice.CreatedBy]; !ok {
		return 0, fmt.Errorf("%w: unknown user %d", store.ErrInvalidInput, invoice.CreatedBy)
	}
	if !slices.ContainsFunc(s.statuses, func(st domain.Status) bool { return st.ID == invoice.StatusID }) {
		return 0, fmt.Errorf("%w: unknown status %d", store.ErrInvalidInput, invoice.StatusID)
	}
	if !slices.ContainsFunc(s.payMethods, func(pm domain.PayMethod) bool { return pm.ID == invoice.PayMethodID }) {
		return 0, fmt.Errorf("%w: unknown pay method %d", store.ErrInvalidInput, invoice.PayMethodID)
	}
	for _, item := range items {
		if _, ok := s.products[item.ProductID]; !ok {
			return 0, fmt.Errorf("%w: unknown product %d", store.ErrInvalidInput, item.ProductID)
		}
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
		}
	}
	for _, userID := range coworkerIDs {
		if _, ok := s.users[userID]; !ok {
			return 0, fmt.Errorf("%w: unknown coworker %d", store.ErrInvalidInput, userID)
		}
	}

	invoice.ID = s.nextID("invoices")
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	s.invoices[invoice.ID] = invoice

	rows := make([]domain.InvoiceItem, 0, len(items))
	for _, item := range items {
		item.ID = s.nextID("invoice_items")
		item.InvoiceID = invoice.ID
		rows = append(rows, item)
	}
	s.items[invoice.ID] = rows

	if len(coworkerIDs) > 0 {
		links := make([]domain.InvoiceCoworker, 0, len(coworkerIDs))
		for _, userID := range coworkerIDs {
			links = append(links, domain.InvoiceCoworker{
				ID:        s.nextID("invoice_coworkers"),
				InvoiceID: invoice.ID,
				UserID:    userID,
			})
		}
		s.coworkers[invoice.ID] = links
	}
	return invoice.ID, nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (s *Store) GetInvoiceDetail(_ context.Context, id int64) (*domain.InvoiceDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	header := domain.InvoiceHeader{
		ID:           inv.ID,
		InvoiceName:  inv.InvoiceName,
		CreatedAt:    inv.CreatedAt,
		StatusID:     inv.StatusID,
		StatusName:   s.statusName(inv.StatusID),
		CustomerID:   inv.CustomerID,
		CustomerName: s.customers[inv.CustomerID].CustomerName,
		Amount:       inv.Amount,
		PaidAmount:   inv.PaidAmount,
		DebtAmount:   inv.DebtAmount,
		PayMethodID:  inv.PayMethodID,
		MethodName:   s.methodName(inv.PayMethodID),
		Discount:     inv.Discount,
		CreatedByID:  inv.CreatedBy,
		CreatedBy:    s.users[inv.CreatedBy].AliasName,
		BranchID:     inv.BranchID,
		AliasBranch:  s.branchAlias(inv.BranchID),
	}
	if c := cloneInvoice(inv); c != nil {
		header.ConfirmedBy = c.ConfirmedBy
		header.ConfirmedAt = c.ConfirmedAt
	}

	detail := &domain.InvoiceDetail{
		Invoice:   header,
		Items:     make([]domain.InvoiceItemDetail, 0, len(s.items[id])),
		Coworkers: make([]domain.InvoiceCoworkerDetail, 0, len(s.coworkers[id])),
	}
	for _, item := range s.items[id] {
		product := s.products[item.ProductID]
		detail.Items = append(detail.Items, domain.InvoiceItemDetail{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: product.ProductName,
			ProductCode: product.ProductCode,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
	}
	for _, link := range s.coworkers[id] {
		detail.Coworkers = append(detail.Coworkers, domain.InvoiceCoworkerDetail{
			ID:        link.ID,
			UserID:    link.UserID,
			AliasName: s.users[link.UserID].AliasName,
		})
	}
	return detail, nil
}

func (s *Store) ListOrders(_ context.Context, query domain.OrderQuery) ([]domain.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.OrderSummary, 0)
	for _, inv := range s.invoices {
		if query.BranchID != domain.AllBranches && inv.BranchID != query.BranchID {
			continue
		}
		if query.StatusID != 0 && inv.StatusID != query.StatusID {
			continue
		}
		if !query.From.IsZero() && inv.CreatedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && inv.CreatedAt.After(query.To) {
			continue
		}
		customerName := s.customers[inv.CustomerID].CustomerName
		if !containsFold(query.Search, customerName, inv.InvoiceName) {
			continue
		}

		lines := make([]domain.OrderProductLine, 0, len(s.items[inv.ID]))
		for _, item := range s.items[inv.ID] {
			lines = append(lines, domain.OrderProductLine{
				ProductName: s.products[item.ProductID].ProductName,
				Quantity:    item.Quantity,
			})
		}
		out = append(out, domain.OrderSummary{
			InvoiceID:     inv.ID,
			InvoiceName:   inv.InvoiceName,
			CustomerName:  customerName,
			BranchID:      inv.BranchID,
			CreatedAt:     inv.CreatedAt,
			StatusID:      inv.StatusID,
			StatusName:    s.statusName(inv.StatusID),
			InvoiceAmount: inv.Amount,
			Products:      lines,
		})
	}

	asc := strings.EqualFold(query.SortOrder, "asc")
	slices.SortFunc(out, func(a, b domain.OrderSummary) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.InvoiceID, b.InvoiceID)
		}
		if asc {
			return c
		}
		return -c
	})
	return out, nil
}

func (s *Store) SettleInvoice(_ context.Context, id int64, settlement domain.InvoiceSettlement) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if _, ok := s.users[settlement.ConfirmedBy]; !ok {
		return nil, fmt.Errorf("%w: unknown user %d", store.ErrInvalidInput, settlement.ConfirmedBy)
	}
	if !slices.ContainsFunc(s.statuses, func(st domain.Status) bool { return st.ID == settlement.StatusID }) {
		return nil, fmt.Errorf("%w: unknown status %d", store.ErrInvalidInput, settlement.StatusID)
	}

	confirmedBy := settlement.ConfirmedBy
	switch {
	case settlement.ConfirmedAt != nil:
		at := *settlement.ConfirmedAt
		inv.ConfirmedAt = &at
	case inv.ConfirmedAt == nil:
		at := settlement.StampAt
		inv.ConfirmedAt = &at
	}
	inv.PaidAmount = settlement.PaidAmount
	inv.DebtAmount = settlement.DebtAmount
	inv.ConfirmedBy = &confirmedBy
	inv.StatusID = settlement.StatusID
	s.invoices[id] = inv
	return cloneInvoice(inv), nil
}

func (s *Store) branchExists(id int64) bool {
	return slices.ContainsFunc(s.branches, func(b domain.Branch) bool { return b.ID == id })
}

func (s *Store) branchAlias(id int64) string {
	for _, b := range s.branches {
		if b.ID == id {
			return b.AliasBranch
		}
	}
	return ""
}

func (s *Store) statusName(id int64) string {
	for _, st := range s.statuses {
		if st.ID == id {
			return st.StatusName
		}
	}
	return ""
}

func (s *Store) methodName(id int64) string {
	for _, pm := range s.payMethods {
		if pm.ID == id {
			return pm.MethodName
		}
	}
	return ""
}

func (s *Store) usernameTaken(username string, exceptID int64) bool {
	for id, u := range s.users {
		if id != exceptID && u.Username == username {
			return true
		}
	}
	return false
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// containsFold reports whether search occurs, case-insensitively, in any of fields.
// An empty search matches everything.
func containsFold(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func cloneInvoice(src domain.Invoice) *domain.Invoice {
	dst := src
	if src.ConfirmedBy != nil {
		v := *src.ConfirmedBy
		dst.ConfirmedBy = &v
	}
	if src.ConfirmedAt != nil {
		v := *src.ConfirmedAt
		dst.ConfirmedAt = &v
	}
	return &dst
}
