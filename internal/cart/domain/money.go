package domain

import "math"

// Cent conversion happens only at the wire boundary; everything inside the
// service carries int64 cents. The epsilon absorbs float artifacts like
// 19.99 arriving as 19.989999999999998, so repeated convert/compute cycles
// never drift.
const centEpsilon = 1e-9

// ToCents converts a wire decimal (at most 2 fractional digits) to cents.
func ToCents(amount float64) int64 {
	if amount < 0 {
		return -ToCents(-amount)
	}
	return int64(math.Round((amount + centEpsilon) * 100))
}

// FromCents renders cents back as a decimal for the wire.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
