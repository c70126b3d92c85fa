package ledger

import "fmt"

// ChartOfAccounts carries the GL account numbers the posting code needs.
// It is resolved once from the environment at startup and passed explicitly
// to the payroll and invoice services.
type ChartOfAccounts struct {
	Bank               int64 `envconfig:"GL_ACCOUNT_BANK" default:"10200"`
	CashLYD            int64 `envconfig:"GL_ACCOUNT_CASH_LYD" default:"10110"`
	CashUSD            int64 `envconfig:"GL_ACCOUNT_CASH_USD" default:"10120"`
	CashEUR            int64 `envconfig:"GL_ACCOUNT_CASH_EUR" default:"10130"`
	AccountsReceivable int64 `envconfig:"GL_ACCOUNT_AR" default:"11000"`
	Inventory          int64 `envconfig:"GL_ACCOUNT_INVENTORY" default:"12000"`
	SalesRevenue       int64 `envconfig:"GL_ACCOUNT_SALES_REVENUE" default:"41000"`
	GiftRevenue        int64 `envconfig:"GL_ACCOUNT_GIFT_REVENUE" default:"42000"`
	SalaryExpense      int64 `envconfig:"GL_ACCOUNT_SALARY_EXPENSE" default:"51000"`
	GiftExpense        int64 `envconfig:"GL_ACCOUNT_GIFT_EXPENSE" default:"52000"`
}

// Validate rejects a chart with missing account numbers.
func (c ChartOfAccounts) Validate() error {
	accounts := map[string]int64{
		"bank":           c.Bank,
		"cash lyd":       c.CashLYD,
		"cash usd":       c.CashUSD,
		"cash eur":       c.CashEUR,
		"ar":             c.AccountsReceivable,
		"inventory":      c.Inventory,
		"sales revenue":  c.SalesRevenue,
		"gift revenue":   c.GiftRevenue,
		"salary expense": c.SalaryExpense,
		"gift expense":   c.GiftExpense,
	}
	for name, acct := range accounts {
		if acct == 0 {
			return fmt.Errorf("ledger: chart of accounts missing %s account", name)
		}
	}
	return nil
}

// Cash returns the cash account for the given collected currency.
func (c ChartOfAccounts) Cash(cur Currency) (int64, error) {
	switch cur {
	case CurrencyLYD:
		return c.CashLYD, nil
	case CurrencyUSD:
		return c.CashUSD, nil
	case CurrencyEUR:
		return c.CashEUR, nil
	default:
		return 0, fmt.Errorf("ledger: no cash account for currency %q", cur)
	}
}
