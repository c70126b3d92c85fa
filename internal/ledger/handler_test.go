package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type memoryLedgerRepo struct {
	rows []Transaction
}

func (r *memoryLedgerRepo) InsertBatch(ctx context.Context, tx pgx.Tx, batch Batch) (int, error) {
	for _, existing := range r.rows {
		if existing.DocNo == batch.DocNo {
			return 0, ErrDocConflict
		}
	}
	for _, line := range batch.Lines {
		r.rows = append(r.rows, Transaction{
			ID:           int64(len(r.rows) + 1),
			Account:      line.Account,
			Date:         batch.Date,
			Debit:        line.Debit,
			Credit:       line.Credit,
			OrigAmount:   line.OrigAmount,
			OrigCurrency: line.OrigCurrency,
			DocNo:        batch.DocNo,
			Note:         batch.Note,
			PostedBy:     batch.PostedBy,
		})
	}
	return len(batch.Lines), nil
}

func (r *memoryLedgerRepo) ListByDoc(ctx context.Context, docNo string) ([]Transaction, error) {
	var out []Transaction
	for _, row := range r.rows {
		if row.DocNo == docNo {
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		return nil, ErrDocNotFound
	}
	return out, nil
}

func (r *memoryLedgerRepo) UnbalancedDocs(ctx context.Context, since time.Time) ([]DocBalance, error) {
	totals := map[string]*DocBalance{}
	var order []string
	for _, row := range r.rows {
		bal, ok := totals[row.DocNo]
		if !ok {
			bal = &DocBalance{DocNo: row.DocNo}
			totals[row.DocNo] = bal
			order = append(order, row.DocNo)
		}
		bal.Debit += row.Debit
		bal.Credit += row.Credit
	}
	var out []DocBalance
	for _, doc := range order {
		if bal := totals[doc]; bal.Debit != bal.Credit {
			out = append(out, *bal)
		}
	}
	return out, nil
}

func newHandlerFixture(repo Repository) *Handler {
	return NewHandler(slog.Default(), NewService(repo, nil, nil, slog.Default()))
}

func serve(h *Handler, r *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.MountRoutes(router)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, r)
	return rr
}

func TestDocumentEndpointReturnsRows(t *testing.T) {
	repo := &memoryLedgerRepo{}
	_, err := repo.InsertBatch(context.Background(), nil, Batch{
		DocNo: "PR-202501-7",
		Date:  time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
		Lines: []Line{
			{Account: 51000, Debit: 1200, OrigAmount: 1200, OrigCurrency: CurrencyLYD},
			{Account: 10200, Credit: 1200, OrigAmount: 1200, OrigCurrency: CurrencyLYD},
		},
	})
	require.NoError(t, err)

	h := newHandlerFixture(repo)
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/ledger/docs/PR-202501-7", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "PR-202501-7")
}

func TestDocumentEndpointUnknownDoc(t *testing.T) {
	h := newHandlerFixture(&memoryLedgerRepo{})
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/ledger/docs/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPostEndpointRejectsUnbalancedBatch(t *testing.T) {
	h := newHandlerFixture(&memoryLedgerRepo{})

	body := `{"doc_no":"ADJ-1","date":"2025-02-01","lines":[
		{"account":51000,"debit":100},
		{"account":10200,"credit":90}]}`
	rr := serve(h, httptest.NewRequest(http.MethodPost, "/ledger/postings", strings.NewReader(body)))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPostEndpointRejectsSingleLine(t *testing.T) {
	h := newHandlerFixture(&memoryLedgerRepo{})

	body := `{"doc_no":"ADJ-2","date":"2025-02-01","lines":[{"account":51000,"debit":100}]}`
	rr := serve(h, httptest.NewRequest(http.MethodPost, "/ledger/postings", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPostEndpointRejectsBadDate(t *testing.T) {
	h := newHandlerFixture(&memoryLedgerRepo{})

	body := `{"doc_no":"ADJ-3","date":"01/02/2025","lines":[
		{"account":51000,"debit":100},
		{"account":10200,"credit":100}]}`
	rr := serve(h, httptest.NewRequest(http.MethodPost, "/ledger/postings", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServiceDocumentUsesRepo(t *testing.T) {
	repo := &memoryLedgerRepo{}
	svc := NewService(repo, nil, nil, slog.Default())

	_, err := svc.PostTx(context.Background(), nil, Batch{
		DocNo: "INV-2-B-20",
		Date:  time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		Lines: []Line{
			{Account: 11000, Debit: 250, OrigAmount: 250, OrigCurrency: CurrencyLYD},
			{Account: 41000, Credit: 250, OrigAmount: 250, OrigCurrency: CurrencyLYD},
		},
	})
	require.NoError(t, err)

	rows, err := svc.Document(context.Background(), "INV-2-B-20")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = svc.Document(context.Background(), "INV-2-XX")
	require.ErrorIs(t, err, ErrDocNotFound)
}

func TestScanUnbalancedReportsDivergingDocs(t *testing.T) {
	repo := &memoryLedgerRepo{rows: []Transaction{
		{ID: 1, Account: 51000, Debit: 100, DocNo: "BAD-1"},
		{ID: 2, Account: 10200, Credit: 90, DocNo: "BAD-1"},
		{ID: 3, Account: 51000, Debit: 50, DocNo: "OK-1"},
		{ID: 4, Account: 10200, Credit: 50, DocNo: "OK-1"},
	}}
	svc := NewService(repo, nil, nil, slog.Default())

	docs, err := svc.ScanUnbalanced(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "BAD-1", docs[0].DocNo)
}
