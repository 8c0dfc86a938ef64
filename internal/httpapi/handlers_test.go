package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"quanlydonhang/backend/internal/cache"
	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/report"
	"quanlydonhang/backend/internal/service"
	"quanlydonhang/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopCatalogCache{}, zap.NewNop(), service.Options{})
	auth := NewAuthManager(testSecret, time.Hour, repo, zap.NewNop())

	return New(svc, auth, zap.NewNop(), "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func loginAs(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:4000"
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		t.Fatalf("expected token in login response")
	}
	return payload.Token
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func orderPayload() map[string]any {
	return map[string]any{
		"invoice": map[string]any{
			"customer_id": 1,
			"branch_id":   1,
			"amount":      650000,
			"paid_amount": 650000,
		},
		"items": []map[string]any{
			{"product_id": 1, "quantity": 2, "unit_price": 150000, "total_price": 300000},
			{"product_id": 2, "quantity": 1, "unit_price": 350000, "total_price": 350000},
		},
		"coworkers": []int64{3},
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	res := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginStatusCodes(t *testing.T) {
	handler := newTestAPI(t).Handler()

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"success", "admin", "admin123", http.StatusOK},
		{"missing password", "admin", "", http.StatusBadRequest},
		{"unknown user", "nobody", "whatever", http.StatusNotFound},
		{"wrong password", "admin", "wrongpassword", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: tt.username, Password: tt.password})
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d (body: %s)", tt.want, res.Code, res.Body.String())
			}
		})
	}
}

func TestHandleLoginDoesNotLeakPassword(t *testing.T) {
	handler := newTestAPI(t).Handler()

	res := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "staff1", Password: "staff123"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "$2") || strings.Contains(res.Body.String(), "password") {
		t.Fatalf("login response must not carry password material: %s", res.Body.String())
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	for _, path := range []string{"/api/v1/products", "/api/v1/orders", "/api/v1/branches", "/api/v1/invoice-name"} {
		res := doJSON(t, handler, http.MethodGet, path, "", nil)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, res.Code)
		}
	}
}

func TestHandleBranchesScopedByRole(t *testing.T) {
	handler := newTestAPI(t).Handler()
	admin := loginAs(t, handler, "admin", "admin123")
	staff := loginAs(t, handler, "staff1", "staff123")

	var adminBody struct {
		Branches []domain.Branch `json:"branches"`
	}
	res := doJSON(t, handler, http.MethodGet, "/api/v1/branches", admin, nil)
	if err := json.NewDecoder(res.Body).Decode(&adminBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(adminBody.Branches) != 2 {
		t.Fatalf("admin should see both branches, got %d", len(adminBody.Branches))
	}

	var staffBody struct {
		Branches []domain.Branch `json:"branches"`
	}
	res = doJSON(t, handler, http.MethodGet, "/api/v1/branches", staff, nil)
	if err := json.NewDecoder(res.Body).Decode(&staffBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(staffBody.Branches) != 1 || staffBody.Branches[0].ID != 1 {
		t.Fatalf("staff should only see branch 1, got %+v", staffBody.Branches)
	}
}

func TestHandleInvoiceName(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/invoice-name?scope=daily", staff, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body domain.InvoiceNameResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "DH" + time.Now().UTC().Format("060102") + "0001"
	if body.InvoiceName != want {
		t.Fatalf("expected %s, got %s", want, body.InvoiceName)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/invoice-name?scope=yearly&branch_id=2", staff, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign branch, got %d", res.Code)
	}
	res = doJSON(t, handler, http.MethodGet, "/api/v1/invoice-name?scope=monthly", staff, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scope, got %d", res.Code)
	}
	res = doJSON(t, handler, http.MethodGet, "/api/v1/invoice-name?branch_id=abc", staff, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed branch, got %d", res.Code)
	}
}

func TestCreateOrderAndReadDetail(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, orderPayload())
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	var created domain.OrderCreateResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !created.Success || created.InvoiceID == 0 || !strings.HasPrefix(created.InvoiceName, "DH") {
		t.Fatalf("unexpected create response %+v", created)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/invoices/"+strconv.FormatInt(created.InvoiceID, 10), staff, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var detail domain.InvoiceDetail
	if err := json.NewDecoder(res.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(detail.Items) != 2 || len(detail.Coworkers) != 1 || detail.Invoice.StatusID != domain.StatusDraft {
		t.Fatalf("unexpected detail %+v", detail)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/orders", staff, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var list struct {
		Orders []domain.OrderSummary `json:"orders"`
	}
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Orders) != 1 || len(list.Orders[0].Products) != 2 {
		t.Fatalf("expected one order with two product lines, got %+v", list.Orders)
	}
}

func TestCreateOrderFailuresMapToStatusCodes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")

	empty := orderPayload()
	empty["items"] = []map[string]any{}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, empty); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty items, got %d", res.Code)
	}

	badProduct := orderPayload()
	badProduct["items"] = []map[string]any{{"product_id": 999, "quantity": 1, "unit_price": 1, "total_price": 1}}
	res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, badProduct)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failed transaction, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "failed to create invoice") {
		t.Fatalf("expected opaque creation message, got %s", res.Body.String())
	}
	if res := doJSON(t, handler, http.MethodGet, "/api/v1/invoices/1", staff, nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after rollback, got %d", res.Code)
	}

	named := orderPayload()
	named["invoice"].(map[string]any)["invoice_name"] = "DH9901010001"
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, named); res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, named); res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken name, got %d", res.Code)
	}

	unknown := orderPayload()
	unknown["surprise"] = true
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, unknown); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}

	preconfirmed := orderPayload()
	preconfirmed["invoice"].(map[string]any)["confirmed_by"] = 1
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, preconfirmed); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for draft carrying confirmed_by, got %d", res.Code)
	}
}

func TestConfirmInvoiceIsAdminOnly(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")
	admin := loginAs(t, handler, "admin", "admin123")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/orders", staff, orderPayload())
	if res.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", res.Code)
	}
	var created domain.OrderCreateResponse
	_ = json.NewDecoder(res.Body).Decode(&created)
	path := "/api/v1/invoices/" + strconv.FormatInt(created.InvoiceID, 10) + "/confirm"
	settle := map[string]any{"paid_amount": 650000, "debt_amount": 0, "status_id": 2}

	if res := doJSON(t, handler, http.MethodPost, path, staff, settle); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodPost, path, admin, settle)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %s)", res.Code, res.Body.String())
	}
	var body struct {
		Invoice domain.Invoice `json:"invoice"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Invoice.StatusID != domain.StatusConfirmed || body.Invoice.ConfirmedBy == nil || *body.Invoice.ConfirmedBy != 1 {
		t.Fatalf("unexpected settled invoice %+v", body.Invoice)
	}

	if res := doJSON(t, handler, http.MethodPost, "/api/v1/invoices/9999/confirm", admin, settle); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown invoice, got %d", res.Code)
	}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/invoices/abc/confirm", admin, settle); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", res.Code)
	}
}

func TestExportOrdersReturnsWorkbook(t *testing.T) {
	handler := newTestAPI(t).Handler()
	admin := loginAs(t, handler, "admin", "admin123")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/orders/export", admin, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != report.ContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Disposition"), "attachment;") {
		t.Fatalf("expected attachment disposition, got %q", res.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected xlsx zip payload")
	}
}

func TestProductsSearchAndAdminCreate(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")
	admin := loginAs(t, handler, "admin", "admin123")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/products?search=ao&criteria=name&order=asc", staff, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range body.Products {
		if p.BranchID != 1 {
			t.Fatalf("staff search leaked product from branch %d", p.BranchID)
		}
	}

	product := map[string]any{"product_name": "Mũ lưỡi trai", "product_code": "mu001", "unit_price": 120000, "branch_id": 1}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/products", staff, product); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", res.Code)
	}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/products", admin, product); res.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d (body: %s)", res.Code, res.Body.String())
	}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/products", admin, product); res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", res.Code)
	}
}

func TestCustomersCreateAndSearch(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")

	customer := map[string]any{"customer_name": "Phạm Thị Dung", "customer_phone": "0909000111"}
	res := doJSON(t, handler, http.MethodPost, "/api/v1/customers", staff, customer)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/customers", staff, customer); res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate phone, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/customers?search=dung", staff, nil)
	var body struct {
		Customers []domain.Customer `json:"customers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Customers) != 1 || body.Customers[0].BranchID != 1 {
		t.Fatalf("expected the new customer in branch 1, got %+v", body.Customers)
	}
}

func TestUserRoutes(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := loginAs(t, handler, "staff1", "staff123")
	admin := loginAs(t, handler, "admin", "admin123")

	newUser := map[string]any{"alias_name": "Nhân viên 3", "username": "staff3", "password": "staff333", "role": "staff", "branch": 2}
	if res := doJSON(t, handler, http.MethodPost, "/api/v1/users", staff, newUser); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", res.Code)
	}

	res := doJSON(t, handler, http.MethodPost, "/api/v1/users", admin, newUser)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", res.Code, res.Body.String())
	}
	if strings.Contains(res.Body.String(), "staff333") || strings.Contains(res.Body.String(), "$2") {
		t.Fatalf("user response must not carry password material")
	}
	var created struct {
		User domain.UserAccount `json:"user"`
	}
	_ = json.NewDecoder(res.Body).Decode(&created)

	loginAs(t, handler, "staff3", "staff333")

	update := map[string]any{"alias_name": "Nhân viên ba", "username": "staff3", "role": "staff", "branch": 2}
	path := "/api/v1/users/" + strconv.FormatInt(created.User.ID, 10)
	if res := doJSON(t, handler, http.MethodPut, path, admin, update); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}
	loginAs(t, handler, "staff3", "staff333")

	if res := doJSON(t, handler, http.MethodDelete, path, admin, nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res := doJSON(t, handler, http.MethodDelete, path, admin, nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", res.Code)
	}

	res = doJSON(t, handler, http.MethodGet, "/api/v1/users", staff, nil)
	var list struct {
		Users []domain.UserAccount `json:"users"`
	}
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Users) != 1 || list.Users[0].Username != "staff1" {
		t.Fatalf("staff should only list self, got %+v", list.Users)
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	handler := newTestAPI(t).Handler()

	res := doJSON(t, handler, http.MethodGet, "/api/v1/does-not-exist", "", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("expected JSON error body")
	}
}
