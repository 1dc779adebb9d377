package score

import "math"

// Better reports whether candidate strictly improves on best for k.
// With no known best any finite candidate is an improvement; equal values
// never are.
func Better(k Kind, candidate, best float64, hasBest bool) bool {
	if math.IsNaN(candidate) || math.IsInf(candidate, 0) {
		return false
	}
	if !hasBest {
		return true
	}
	if k.Direction() == HigherIsBetter {
		return candidate > best
	}
	return candidate < best
}
