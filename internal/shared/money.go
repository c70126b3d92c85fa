package shared

import "math"

// Round2 rounds a monetary amount half away from zero to 2 decimal places.
// All ledger and payroll amounts are stored at this precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SameAmount compares two monetary values at 2 decimal places.
func SameAmount(a, b float64) bool {
	return math.Abs(Round2(a)-Round2(b)) < 0.005
}
