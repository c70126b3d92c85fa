package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
)

func serveJobs(h *Handler, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Route("/jobs", h.MountRoutes)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	return rr
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())
	rr := serveJobs(h, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"queue":"default"`)
}

func TestEnqueueWithoutClientUnavailable(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())
	rr := serveJobs(h, httptest.NewRequest(http.MethodPost, "/jobs/ledger-integrity", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLedgerIntegrityTaskDefaultsLookback(t *testing.T) {
	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, task.Type())

	var payload LedgerIntegrityPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 35, payload.LookbackDays)
}

type fakeScanner struct {
	docs  []ledger.DocBalance
	since time.Time
}

func (s *fakeScanner) ScanUnbalanced(ctx context.Context, since time.Time) ([]ledger.DocBalance, error) {
	s.since = since
	return s.docs, nil
}

func TestLedgerIntegrityHandlerSetsGauge(t *testing.T) {
	scanner := &fakeScanner{docs: []ledger.DocBalance{
		{DocNo: "BAD-1", Debit: 100, Credit: 90},
		{DocNo: "BAD-2", Debit: 10, Credit: 20},
	}}
	metrics := observability.NewMetrics()
	handler := NewLedgerIntegrityHandler(scanner, metrics, slog.Default())

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{LookbackDays: 7})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	// The scan window honours the requested lookback.
	require.WithinDuration(t, time.Now().AddDate(0, 0, -7), scanner.since, time.Minute)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rr.Body.String(), "gaja_ledger_unbalanced_documents 2")
}
