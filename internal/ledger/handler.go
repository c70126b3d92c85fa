package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MohammedEweedan/gaja-erp/internal/platform/httpx"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Handler wires the manual posting and document lookup endpoints. Closes
// post through their own engines; this surface covers corrections and
// opening balances entered by hand.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ledger/postings", h.post)
	r.Get("/ledger/docs/{docNo}", h.document)
}

type postLine struct {
	Account      int64    `json:"account" validate:"required"`
	Debit        float64  `json:"debit"`
	Credit       float64  `json:"credit"`
	OrigAmount   float64  `json:"orig_amount"`
	OrigCurrency Currency `json:"orig_currency"`
}

type postRequest struct {
	DocNo string     `json:"doc_no" validate:"required"`
	Date  string     `json:"date" validate:"required"`
	Note  string     `json:"note"`
	Lines []postLine `json:"lines" validate:"required,min=2"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return
	}

	actor := shared.ActorFromContext(r.Context())
	batch := Batch{
		DocNo:    req.DocNo,
		Date:     date,
		Note:     req.Note,
		PostedBy: actor.ID,
	}
	for _, line := range req.Lines {
		batch.Lines = append(batch.Lines, Line{
			Account:      line.Account,
			Debit:        line.Debit,
			Credit:       line.Credit,
			OrigAmount:   line.OrigAmount,
			OrigCurrency: line.OrigCurrency,
		})
	}

	posted, err := h.service.Post(r.Context(), batch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"doc_no": batch.DocNo, "posted": posted})
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Document(r.Context(), chi.URLParam(r, "docNo"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDocNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDocConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Rejected", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
