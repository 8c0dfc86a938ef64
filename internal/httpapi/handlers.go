package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"quanlydonhang/backend/internal/domain"
	"quanlydonhang/backend/internal/report"
	"quanlydonhang/backend/internal/service"
	"quanlydonhang/backend/internal/store"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Ping(r.Context()); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"error": "storage unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			a.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, store.ErrNotFound):
			a.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, ErrInvalidCredentials):
			a.writeError(w, http.StatusUnauthorized, err)
		default:
			a.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := a.service.ListBranches(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": branches})
}

func (a *API) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := a.service.ListStatuses(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

func (a *API) handleListPayMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := a.service.ListPayMethods(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pay_methods": methods})
}

func (a *API) handleSearchCustomers(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	customers, err := a.service.SearchCustomers(r.Context(), r.URL.Query().Get("search"), branchID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleNextInvoiceName(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.NextInvoiceName(r.Context(), r.URL.Query().Get("scope"), branchID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	branchID, err := queryInt64(r, "branch")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	products, err := a.service.SearchProducts(r.Context(), domain.ProductQuery{
		Search:    q.Get("search"),
		SortField: q.Get("criteria"),
		SortOrder: q.Get("order"),
		BranchID:  branchID,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func orderFilterFromQuery(r *http.Request) (service.OrderFilter, error) {
	branchID, err := queryInt64(r, "branch_id")
	if err != nil {
		return service.OrderFilter{}, err
	}
	statusID, err := queryInt64(r, "status_id")
	if err != nil {
		return service.OrderFilter{}, err
	}
	q := r.URL.Query()
	return service.OrderFilter{
		Search:    q.Get("search"),
		Sort:      q.Get("sort"),
		BranchID:  branchID,
		StatusID:  statusID,
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}, nil
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilterFromQuery(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	orders, err := a.service.ListOrders(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (a *API) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilterFromQuery(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := a.service.ExportOrders(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	day := strings.TrimSpace(filter.StartDate)
	if day == "" {
		day = time.Now().In(a.service.Location()).Format("2006-01-02")
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"orders-%s.xlsx\"", strings.ReplaceAll(day, "\"", "")))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.CreateOrder(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleInvoiceDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	detail, err := a.service.GetInvoiceDetail(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleConfirmInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.InvoiceConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	invoice, err := a.service.ConfirmInvoice(r.Context(), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.service.CreateUser(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req domain.UserUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.DeleteUser(r.Context(), id); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
