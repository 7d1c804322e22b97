package reconcile

import "math"

// matchTolerance is the absolute difference under which two values are
// considered equal. Rounding in translated reports makes exact equality
// too strict.
const matchTolerance = 1.0

// Scale-mismatch detection band: a domestic/foreign ratio in this range
// means the English figure is almost certainly in thousands.
const (
	scaleRatioMin = 500.0
	scaleRatioMax = 2000.0
)

// classify compares a domestic value against the foreign value reported by
// the judge. Both sides are in won by the time they get here, except when
// the English report quietly kept a thousands scale; that case is detected
// and corrected before comparison.
//
// The returned valueEn is the value to store: scale-corrected whenever a
// thousands factor was applied, raw otherwise. Variance is foreign minus
// domestic.
func classify(valueKr, valueEn float64) (isMatch bool, storedEn, variance float64) {
	// Direct match.
	if math.Abs(valueKr-valueEn) <= matchTolerance {
		return true, valueEn, valueEn - valueKr
	}

	// The English side is in thousands and scaling makes it line up.
	scaled := valueEn * 1000
	if math.Abs(valueKr-scaled) <= matchTolerance {
		return true, scaled, scaled - valueKr
	}

	// Thousands scale without a clean match: store the corrected value so
	// the variance is meaningful, but report a mismatch.
	if valueEn != 0 && valueKr != 0 {
		ratio := math.Abs(valueKr / valueEn)
		if ratio >= scaleRatioMin && ratio <= scaleRatioMax {
			return false, scaled, scaled - valueKr
		}
	}

	return false, valueEn, valueEn - valueKr
}
