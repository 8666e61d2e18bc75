package stats

import "math"

// The store keeps cost in thousand-unit currency. Display uses the
// hundred-million unit for period totals and the ten-thousand unit
// for per-patient averages.
const (
	largeUnitDivisor  = 100000
	mediumUnitDivisor = 10
)

func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// ToLargeCurrencyUnit converts a native thousand-unit amount to the
// hundred-million display unit.
func ToLargeCurrencyUnit(x float64) float64 {
	return sanitize(x) / largeUnitDivisor
}

// ToMediumCurrencyUnit converts a native thousand-unit amount to the
// ten-thousand display unit.
func ToMediumCurrencyUnit(x float64) float64 {
	return sanitize(x) / mediumUnitDivisor
}

// ToNativeFromMediumUnit is the inverse of ToMediumCurrencyUnit. It
// translates a user-entered threshold in display units back to the
// native unit before querying.
func ToNativeFromMediumUnit(m float64) float64 {
	return sanitize(m) * mediumUnitDivisor
}
