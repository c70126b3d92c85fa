package shared

import (
	"errors"
	"fmt"
	"time"
)

// Period identifies one payroll/posting month.
type Period struct {
	Year  int
	Month int
}

// ErrInvalidPeriod indicates a malformed year/month pair or key.
var ErrInvalidPeriod = errors.New("invalid period")

// NewPeriod validates and builds a Period.
func NewPeriod(year, month int) (Period, error) {
	if year < 2000 || year > 2200 || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: %d-%d", ErrInvalidPeriod, year, month)
	}
	return Period{Year: year, Month: month}, nil
}

// CurrentPeriod returns the period containing the given instant.
func CurrentPeriod(now time.Time) Period {
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// Key renders the canonical "YYYY-MM" form used by loan skip lists.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// DocStamp renders the compact "YYYYMM" form used in GL document numbers.
func (p Period) DocStamp() string {
	return fmt.Sprintf("%04d%02d", p.Year, p.Month)
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// IsPast reports whether the period lies strictly before the month of now.
// Past months are read-only even while nominally open.
func (p Period) IsPast(now time.Time) bool {
	return p.Before(CurrentPeriod(now))
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the first day of the following period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// ParsePeriodKey parses the canonical "YYYY-MM" form.
func ParsePeriodKey(key string) (Period, error) {
	var year, month int
	if _, err := fmt.Sscanf(key, "%4d-%2d", &year, &month); err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	p, err := NewPeriod(year, month)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	if p.Key() != key {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, key)
	}
	return p, nil
}
