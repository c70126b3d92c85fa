package payroll

import (
	"github.com/MohammedEweedan/gaja-erp/internal/attendance"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// workMinutesPerDay converts missing minutes into a fraction of the daily rate.
const workMinutesPerDay = 8 * 60

// ComputeInputs bundles the external inputs for one employee's month.
type ComputeInputs struct {
	Summary     attendance.Summary
	Adjustments attendance.Adjustments
	Sales       attendance.SalesMetric
	LoanCredit  float64
}

// ComputeRow derives one draft payroll row. It is a pure function of its
// inputs: same employee, month and inputs always produce the same row.
func ComputeRow(emp Employee, period shared.Period, in ComputeInputs) Row {
	row := Row{
		EmployeeID:        emp.ID,
		Year:              period.Year,
		Month:             period.Month,
		PresentDays:       in.Summary.PresentDays,
		WorkingDays:       in.Summary.WorkingDays,
		AbsenceDays:       in.Summary.AbsenceDays,
		HolidayWorkedDays: in.Summary.HolidayWorkedDays,
		MissingMinutes:    in.Summary.MissingMinutes,
	}

	var ratio, dailyRate, minuteRate float64
	if in.Summary.WorkingDays > 0 {
		ratio = float64(in.Summary.PresentWorkingDays) / float64(in.Summary.WorkingDays)
		dailyRate = emp.Salary.LYD / float64(in.Summary.WorkingDays)
		minuteRate = dailyRate / workMinutesPerDay
	}

	row.Base = Amounts{
		LYD: shared.Round2(emp.Salary.LYD * ratio),
		USD: shared.Round2(emp.Salary.USD * ratio),
		EUR: shared.Round2(emp.Salary.EUR * ratio),
	}

	// Food allowance is paid only for days actually worked inside the
	// working-day calendar; holiday shifts earn the holiday bonus instead.
	row.FoodAllowance = shared.Round2(emp.FoodAllowancePerDay * float64(in.Summary.PresentWorkingDays))
	row.TransportAllowance = shared.Round2(emp.TransportAllowance)
	row.HolidayBonus = shared.Round2(dailyRate * float64(in.Summary.HolidayWorkedDays))
	row.Commission = commission(emp, in.Sales)
	row.OtherAdditions = shared.Round2(in.Adjustments.Bonus)

	row.AbsenceDeduction = shared.Round2(dailyRate * float64(in.Summary.AbsenceDays))
	row.MissingDeduction = shared.Round2(minuteRate * float64(in.Summary.MissingMinutes))
	row.OtherDeductions = shared.Round2(in.Adjustments.Deduction)
	row.LoanCredit = shared.Round2(in.LoanCredit)

	// Net is summed per currency column. Allowances, bonuses, deductions
	// and loan credits are LYD-only; foreign salary columns carry through.
	row.Net = Amounts{
		LYD: shared.Round2(row.Base.LYD +
			row.FoodAllowance + row.TransportAllowance +
			row.HolidayBonus + row.Commission + row.OtherAdditions -
			row.AbsenceDeduction - row.MissingDeduction - row.OtherDeductions -
			row.LoanCredit),
		USD: row.Base.USD,
		EUR: row.Base.EUR,
	}
	return row
}

func commission(emp Employee, sales attendance.SalesMetric) float64 {
	if emp.CommissionRate == 0 {
		return 0
	}
	if emp.CommissionType == CommissionFixed {
		return shared.Round2(sales.Qty * emp.CommissionRate)
	}
	return shared.Round2(sales.TotalLYD * emp.CommissionRate / 100)
}
