package series

import "math"

// AxisPolicy is the upper-bound rule of one chart axis.
type AxisPolicy struct {
	// Step is the rounding granularity of the observed maximum.
	Step float64
	// Floor is the lowest bound ever returned.
	Floor float64
	// Default replaces the maximum when no usable value was observed.
	Default float64
	// PositiveOnly excludes zero (no signal) and negative values from the maximum.
	PositiveOnly bool
	// Fixed, when non-zero, is returned as-is regardless of the data.
	Fixed float64
}

// Bound returns the axis upper bound for values under p.
func (p AxisPolicy) Bound(values ...[]float64) float64 {
	if p.Fixed > 0 {
		return p.Fixed
	}
	peak, ok := maxOf(p.PositiveOnly, values...)
	if !ok || peak <= 0 {
		peak = p.Default
	}
	bound := peak
	if p.Step > 0 {
		bound = math.Ceil(peak/p.Step) * p.Step
	}
	return math.Max(p.Floor, bound)
}

func maxOf(positiveOnly bool, values ...[]float64) (float64, bool) {
	peak, found := 0.0, false
	for _, vs := range values {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if positiveOnly && v <= 0 {
				continue
			}
			if !found || v > peak {
				peak, found = v, true
			}
		}
	}
	return peak, found
}
