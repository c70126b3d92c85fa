package payroll

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/platform/httpx"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Handler wires HTTP endpoints for payroll computation and the month close.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	coa      ledger.ChartOfAccounts
	validate *validator.Validate
}

// NewHandler constructs a payroll HTTP handler. The chart of accounts
// supplies the default bank and salary-expense accounts for closes.
func NewHandler(logger *slog.Logger, service *Service, coa ledger.ChartOfAccounts) *Handler {
	return &Handler{logger: logger, service: service, coa: coa, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/payroll/{year}/{month}", func(r chi.Router) {
		r.Get("/", h.compute)
		r.Put("/", h.save)
		r.Post("/close", h.close)
		r.Get("/archive", h.archive)
	})
}

func periodParams(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, err
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year/month")
		return
	}
	var filter Filter
	for _, raw := range r.URL.Query()["employee"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid employee filter")
			return
		}
		filter.EmployeeIDs = append(filter.EmployeeIDs, id)
	}
	rows, err := h.service.ComputeMonth(r.Context(), year, month, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type saveRequest struct {
	Rows []Row `json:"rows" validate:"required,min=1"`
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year/month")
		return
	}
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SaveMonth(r.Context(), year, month, req.Rows); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"saved": len(req.Rows)})
}

type closeRequest struct {
	BankAccount          int64 `json:"bank_account"`
	SalaryExpenseAccount int64 `json:"salary_expense_account"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year/month")
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.BankAccount == 0 {
		req.BankAccount = h.coa.Bank
	}
	if req.SalaryExpenseAccount == 0 {
		req.SalaryExpenseAccount = h.coa.SalaryExpense
	}
	actor := shared.ActorFromContext(r.Context())
	archived, err := h.service.CloseMonth(r.Context(), CloseInput{
		Year:                 year,
		Month:                month,
		BankAccount:          req.BankAccount,
		SalaryExpenseAccount: req.SalaryExpenseAccount,
		ActorID:              actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"archived": archived})
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	year, month, err := periodParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid year/month")
		return
	}
	rows, err := h.service.Archived(r.Context(), year, month)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoDraftRows):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ledger.ErrDocConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrLockHeld):
		httpx.Problem(w, http.StatusLocked, "Locked", err.Error())
	case errors.Is(err, shared.ErrPeriodReadOnly), errors.Is(err, shared.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Rejected", err.Error())
	default:
		h.logger.Error("payroll request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
