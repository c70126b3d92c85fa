package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validBatch() Batch {
	return Batch{
		DocNo: "PR-202501-7",
		Date:  time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
		Note:  "salary 2025-01",
		Lines: []Line{
			{Account: 51000, Debit: 1500},
			{Account: 10200, Credit: 1500},
		},
	}
}

func TestBatchValidateBalanced(t *testing.T) {
	require.NoError(t, validBatch().Validate())
}

func TestBatchValidateUnbalanced(t *testing.T) {
	b := validBatch()
	b.Lines[1].Credit = 1400
	require.ErrorIs(t, b.Validate(), ErrUnbalanced)
}

func TestBatchValidateRoundsToTwoDecimals(t *testing.T) {
	b := validBatch()
	b.Lines[0].Debit = 1500.001
	b.Lines[1].Credit = 1500.004
	require.NoError(t, b.Validate())
}

func TestBatchValidateTooFewLines(t *testing.T) {
	b := validBatch()
	b.Lines = b.Lines[:1]
	require.ErrorIs(t, b.Validate(), ErrTooFewLines)
}

func TestBatchValidateRejectsMixedLine(t *testing.T) {
	b := validBatch()
	b.Lines[0].Credit = 10
	b.Lines[1].Credit = 1510
	require.Error(t, b.Validate())
}

func TestBatchValidateRejectsNegativeAmount(t *testing.T) {
	b := validBatch()
	b.Lines[0].Debit = -1500
	b.Lines[1].Credit = -1500
	require.Error(t, b.Validate())
}

func TestBatchValidateRequiresDocNo(t *testing.T) {
	b := validBatch()
	b.DocNo = ""
	require.Error(t, b.Validate())
}

func TestBatchValidateRequiresAccounts(t *testing.T) {
	b := validBatch()
	b.Lines[0].Account = 0
	require.Error(t, b.Validate())
}

func TestChartOfAccountsValidate(t *testing.T) {
	coa := ChartOfAccounts{
		Bank: 10200, CashLYD: 10110, CashUSD: 10120, CashEUR: 10130,
		AccountsReceivable: 11000, Inventory: 12000,
		SalesRevenue: 41000, GiftRevenue: 42000,
		SalaryExpense: 51000, GiftExpense: 52000,
	}
	require.NoError(t, coa.Validate())

	coa.Bank = 0
	require.Error(t, coa.Validate())
}

func TestChartOfAccountsCash(t *testing.T) {
	coa := ChartOfAccounts{CashLYD: 1, CashUSD: 2, CashEUR: 3}
	for cur, want := range map[Currency]int64{CurrencyLYD: 1, CurrencyUSD: 2, CurrencyEUR: 3} {
		got, err := coa.Cash(cur)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := coa.Cash("GBP")
	require.Error(t, err)
}
