package loans

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MohammedEweedan/gaja-erp/internal/platform/httpx"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Handler wires HTTP endpoints for loan management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a loans HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.create)
		r.Post("/skip-month", h.skipMonth)
		r.Get("/{id}", h.get)
		r.Post("/{id}/payoff", h.payoff)
	})
}

type createRequest struct {
	EmployeeID     int64   `json:"employee_id" validate:"required"`
	Principal      float64 `json:"principal" validate:"required,gt=0"`
	MonthlyPercent float64 `json:"monthly_percent" validate:"required,gt=0,lte=100"`
	CapMultiple    float64 `json:"cap_multiple" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	loan, err := h.service.Create(r.Context(), CreateInput{
		EmployeeID:     req.EmployeeID,
		Principal:      req.Principal,
		MonthlyPercent: req.MonthlyPercent,
		CapMultiple:    req.CapMultiple,
		ActorID:        actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loanResponse(loan))
}

type skipMonthRequest struct {
	LoanID     *int64 `json:"loan_id"`
	EmployeeID *int64 `json:"employee_id"`
	Period     string `json:"period" validate:"required"`
}

func (h *Handler) skipMonth(w http.ResponseWriter, r *http.Request) {
	var req skipMonthRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	marked, err := h.service.SkipMonth(r.Context(), SkipMonthInput{
		LoanID:     req.LoanID,
		EmployeeID: req.EmployeeID,
		PeriodKey:  req.Period,
		ActorID:    actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"marked": marked})
}

type payoffRequest struct {
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
}

func (h *Handler) payoff(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid loan id")
		return
	}
	var req payoffRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	loan, err := h.service.Payoff(r.Context(), PayoffInput{LoanID: id, Amount: req.Amount, ActorID: actor.ID})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loanResponse(loan))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid loan id")
		return
	}
	loan, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loanResponse(loan))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLoanNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrOverCap), errors.Is(err, ErrLoanClosed), errors.Is(err, shared.ErrInvalidPeriod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Rejected", err.Error())
	default:
		h.logger.Error("loan request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func loanResponse(loan Loan) map[string]any {
	return map[string]any{
		"id":              loan.ID,
		"employee_id":     loan.EmployeeID,
		"principal":       loan.Principal,
		"remaining":       loan.Remaining,
		"monthly_percent": loan.MonthlyPercent,
		"cap_multiple":    loan.CapMultiple,
		"skip_months":     loan.SkipMonths,
		"closed":          loan.Closed,
	}
}
