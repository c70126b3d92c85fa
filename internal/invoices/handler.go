package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/platform/httpx"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Handler wires the invoice close endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs an invoice HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices/{ps}/{user}/{no}/close", h.close)
	r.Get("/invoices/{ps}/{no}/revenue", h.revenue)
}

type closeRequest struct {
	MakeCashVoucher bool `json:"make_cash_voucher"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	ps, err := strconv.ParseInt(chi.URLParam(r, "ps"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid point of sale")
		return
	}
	user, err := strconv.ParseInt(chi.URLParam(r, "user"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user")
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	posted, err := h.service.Close(r.Context(), CloseInput{
		PointOfSale:     ps,
		UserID:          user,
		InvoiceNo:       chi.URLParam(r, "no"),
		MakeCashVoucher: req.MakeCashVoucher,
		ActorID:         actor.ID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"posted": posted})
}

func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	ps, err := strconv.ParseInt(chi.URLParam(r, "ps"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid point of sale")
		return
	}
	records, err := h.service.Revenue(r.Context(), ps, chi.URLParam(r, "no"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ledger.ErrDocConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrLockHeld):
		httpx.Problem(w, http.StatusLocked, "Locked", err.Error())
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
