package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MohammedEweedan/gaja-erp/internal/invoices"
	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/loans"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
	"github.com/MohammedEweedan/gaja-erp/internal/payroll"
	"github.com/MohammedEweedan/gaja-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	PayrollHandler  *payroll.Handler
	LoansHandler    *loans.Handler
	InvoicesHandler *invoices.Handler
	LedgerHandler   *ledger.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.PayrollHandler != nil {
		params.PayrollHandler.MountRoutes(r)
	}
	if params.LoansHandler != nil {
		params.LoansHandler.MountRoutes(r)
	}
	if params.InvoicesHandler != nil {
		params.InvoicesHandler.MountRoutes(r)
	}
	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
