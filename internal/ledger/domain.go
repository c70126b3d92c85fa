package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Currency enumerates the currencies the ledger records amounts in. Ledger
// debit/credit columns are always LYD; the original collected currency is
// carried alongside for cash entries.
type Currency string

const (
	CurrencyLYD Currency = "LYD"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Ref carries the optional business references stamped on every row.
type Ref struct {
	EmployeeID  *int64
	ClientID    *int64
	PointOfSale *int64
}

// Line is one debit or credit leg of a posting batch.
type Line struct {
	Account      int64
	Debit        float64
	Credit       float64
	OrigAmount   float64
	OrigCurrency Currency
}

// Batch groups the journal rows of one logical operation (one employee's
// payroll close, one invoice close) under a single document number.
type Batch struct {
	DocNo    string
	Date     time.Time
	Note     string
	Ref      Ref
	PostedBy int64
	Lines    []Line
}

// Transaction is an append-only general-ledger row as stored.
type Transaction struct {
	ID           int64
	Account      int64
	Date         time.Time
	Debit        float64
	Credit       float64
	OrigAmount   float64
	OrigCurrency Currency
	DocNo        string
	Note         string
	Ref          Ref
	PostedBy     int64
	CreatedAt    time.Time
}

// DocBalance summarises one document's totals; used by the integrity scan.
type DocBalance struct {
	DocNo  string
	Debit  float64
	Credit float64
}

var (
	// ErrUnbalanced indicates the batch debits and credits differ.
	ErrUnbalanced = errors.New("ledger: batch debits and credits do not balance")
	// ErrTooFewLines indicates fewer than two journal lines.
	ErrTooFewLines = errors.New("ledger: batch requires at least two lines")
	// ErrDocConflict indicates the document number was already posted.
	ErrDocConflict = errors.New("ledger: document already posted")
	// ErrDocNotFound indicates no rows exist for the document number.
	ErrDocNotFound = errors.New("ledger: document not found")
)

// Validate asserts the batch is postable. Callers are expected to hand over
// balanced batches; the check runs here regardless, before anything commits.
func (b Batch) Validate() error {
	if b.DocNo == "" {
		return errors.New("ledger: document number required")
	}
	if b.Date.IsZero() {
		return errors.New("ledger: posting date required")
	}
	if len(b.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range b.Lines {
		if line.Account == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if fmt.Sprintf("%.2f", debit) != fmt.Sprintf("%.2f", credit) {
		return ErrUnbalanced
	}
	return nil
}
