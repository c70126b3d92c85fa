package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// CommissionType selects how gold commission is computed.
type CommissionType string

const (
	// CommissionFixed pays a fixed rate per gram sold.
	CommissionFixed CommissionType = "fixed"
	// CommissionPercent pays a percentage of the LYD sales total.
	CommissionPercent CommissionType = "percent"
)

// Amounts holds one value per salary currency. Payroll arithmetic runs
// independently per column; there is no FX conversion anywhere in it.
type Amounts struct {
	LYD float64 `json:"lyd"`
	USD float64 `json:"usd"`
	EUR float64 `json:"eur"`
}

// Employee is the master-data read model the computation engine consumes.
// This core never writes employees.
type Employee struct {
	ID                  int64
	Name                string
	Salary              Amounts
	FoodAllowancePerDay float64
	TransportAllowance  float64
	CommissionType      CommissionType
	CommissionRate      float64
}

// Row is one employee's draft payroll for one month. Draft rows exist only
// for the open period and are editable until the month closes.
type Row struct {
	EmployeeID int64 `json:"employee_id"`
	Year       int   `json:"year"`
	Month      int   `json:"month"`

	Base               Amounts `json:"base"`
	FoodAllowance      float64 `json:"food_allowance"`
	TransportAllowance float64 `json:"transport_allowance"`
	HolidayBonus       float64 `json:"holiday_bonus"`
	Commission         float64 `json:"commission"`
	OtherAdditions     float64 `json:"other_additions"`
	AbsenceDeduction   float64 `json:"absence_deduction"`
	MissingDeduction   float64 `json:"missing_deduction"`
	OtherDeductions    float64 `json:"other_deductions"`
	LoanCredit         float64 `json:"loan_credit"`
	Net                Amounts `json:"net"`

	PresentDays       int `json:"present_days"`
	WorkingDays       int `json:"working_days"`
	AbsenceDays       int `json:"absence_days"`
	HolidayWorkedDays int `json:"holiday_worked_days"`
	MissingMinutes    int `json:"missing_minutes"`
}

// Period returns the row's payroll month.
func (r Row) Period() shared.Period {
	return shared.Period{Year: r.Year, Month: r.Month}
}

// DocNo builds the GL document number stamped on the archived row.
func (r Row) DocNo() string {
	return fmt.Sprintf("PR-%s-%d", r.Period().DocStamp(), r.EmployeeID)
}

// ArchivedRow is the immutable copy written at month close. It is created
// once and never mutated afterwards.
type ArchivedRow struct {
	Row
	Locked   bool      `json:"locked"`
	ClosedBy int64     `json:"closed_by"`
	ClosedAt time.Time `json:"closed_at"`
	GLDocNo  string    `json:"gl_doc_no"`
}

var (
	// ErrNoDraftRows indicates a close with nothing to archive.
	ErrNoDraftRows = errors.New("payroll: no draft rows for period")
	// ErrAlreadyClosed indicates the period was archived before.
	ErrAlreadyClosed = errors.New("payroll: month already closed")
)

// Filter narrows which employees a computation covers.
type Filter struct {
	EmployeeIDs []int64
}

// CloseInput carries the parameters of a month close.
type CloseInput struct {
	Year                 int
	Month                int
	BankAccount          int64
	SalaryExpenseAccount int64
	ActorID              int64
}

// Validate ensures the close request is complete.
func (in CloseInput) Validate() error {
	if _, err := shared.NewPeriod(in.Year, in.Month); err != nil {
		return err
	}
	if in.BankAccount == 0 {
		return errors.New("payroll: bank account required")
	}
	if in.SalaryExpenseAccount == 0 {
		return errors.New("payroll: salary expense account required")
	}
	return nil
}
