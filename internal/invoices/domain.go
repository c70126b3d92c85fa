package invoices

import (
	"errors"
	"fmt"
	"time"

	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Row is one line of a sales invoice. Several rows share the same
// (point of sale, user, invoice number) and close together as one unit.
type Row struct {
	ID          int64   `json:"id"`
	PointOfSale int64   `json:"point_of_sale"`
	UserID      int64   `json:"user_id"`
	InvoiceNo   string  `json:"invoice_no"`
	ClientID    int64   `json:"client_id"`
	Item        string  `json:"item"`
	Qty         float64 `json:"qty"`
	UnitCost    float64 `json:"unit_cost"`
	Price       float64 `json:"price"`
	Discount    float64 `json:"discount"`

	// Paid amounts per collected currency. USD and EUR carry the
	// LYD equivalent captured at collection time; the ledger never
	// converts on its own.
	PaidLYD      float64 `json:"paid_lyd"`
	PaidUSD      float64 `json:"paid_usd"`
	PaidEUR      float64 `json:"paid_eur"`
	PaidUSDInLYD float64 `json:"paid_usd_in_lyd"`
	PaidEURInLYD float64 `json:"paid_eur_in_lyd"`

	IsGift bool `json:"is_gift"`
	IsOK   bool `json:"is_ok"`
}

// RevenueRecord is an append-only reporting row written alongside the
// ledger postings of an invoice close.
type RevenueRecord struct {
	ID           int64           `json:"id"`
	PointOfSale  int64           `json:"point_of_sale"`
	UserID       int64           `json:"user_id"`
	InvoiceNo    string          `json:"invoice_no"`
	Kind         string          `json:"kind"`
	AmountLYD    float64         `json:"amount_lyd"`
	OrigAmount   float64         `json:"orig_amount"`
	OrigCurrency ledger.Currency `json:"orig_currency"`
	RecordedBy   int64           `json:"recorded_by"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// Revenue record kinds.
const (
	RevenueSale = "sale"
	RevenueGift = "gift"
	RevenueCash = "cash"
)

// CloseInput identifies the invoice to close and how.
type CloseInput struct {
	PointOfSale     int64
	UserID          int64
	InvoiceNo       string
	MakeCashVoucher bool
	ActorID         int64
}

// Validate checks the close request identifies an invoice group.
func (in CloseInput) Validate() error {
	if in.PointOfSale <= 0 {
		return errors.New("invoices: point of sale required")
	}
	if in.UserID <= 0 {
		return errors.New("invoices: user required")
	}
	if in.InvoiceNo == "" {
		return errors.New("invoices: invoice number required")
	}
	return nil
}

var (
	// ErrInvoiceNotFound indicates no rows share the invoice number.
	ErrInvoiceNotFound = errors.New("invoices: invoice not found")
	// ErrAlreadyClosed indicates the invoice number was closed before.
	ErrAlreadyClosed = errors.New("invoices: invoice already closed")
)

// DocNo derives the ledger document number for an invoice close.
func DocNo(pointOfSale int64, invoiceNo string) string {
	return fmt.Sprintf("INV-%d-%s", pointOfSale, invoiceNo)
}

// allGift reports whether every row is flagged as a gift. A mixed group
// closes through the ordinary branch.
func allGift(rows []Row) bool {
	for _, r := range rows {
		if !r.IsGift {
			return false
		}
	}
	return len(rows) > 0
}

// collectedLYD sums the already-collected paid amounts in LYD terms.
func collectedLYD(rows []Row) float64 {
	var sum float64
	for _, r := range rows {
		sum += r.PaidLYD + r.PaidUSDInLYD + r.PaidEURInLYD
	}
	return shared.Round2(sum)
}

// costOfGoods sums unit cost times quantity across the group.
func costOfGoods(rows []Row) float64 {
	var sum float64
	for _, r := range rows {
		sum += r.UnitCost * r.Qty
	}
	return shared.Round2(sum)
}

// netTotal sums the discount-adjusted line prices.
func netTotal(rows []Row) float64 {
	var sum float64
	for _, r := range rows {
		sum += r.Price - r.Discount
	}
	return shared.Round2(sum)
}

// paidAmount is one currency's collected total with its LYD equivalent.
type paidAmount struct {
	currency ledger.Currency
	orig     float64
	lyd      float64
}

// paidByCurrency aggregates collected amounts per currency, in fixed
// LYD, USD, EUR order, skipping currencies with nothing collected.
func paidByCurrency(rows []Row) []paidAmount {
	var lyd, usd, eur, usdLYD, eurLYD float64
	for _, r := range rows {
		lyd += r.PaidLYD
		usd += r.PaidUSD
		usdLYD += r.PaidUSDInLYD
		eur += r.PaidEUR
		eurLYD += r.PaidEURInLYD
	}
	var out []paidAmount
	if lyd != 0 {
		out = append(out, paidAmount{ledger.CurrencyLYD, shared.Round2(lyd), shared.Round2(lyd)})
	}
	if usd != 0 {
		out = append(out, paidAmount{ledger.CurrencyUSD, shared.Round2(usd), shared.Round2(usdLYD)})
	}
	if eur != 0 {
		out = append(out, paidAmount{ledger.CurrencyEUR, shared.Round2(eur), shared.Round2(eurLYD)})
	}
	return out
}
