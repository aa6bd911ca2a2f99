package analytics

import "math"

// The engine works in float64 and snaps floating-point residue to exact zero
// so that drift from partial sells is never reported as a phantom position.
// All tolerances live here; no other file carries epsilon literals.
const (
	// zeroEps is the shared snapping tolerance for position quantity and cost.
	zeroEps = 1e-10
	// holdingQtyEps / holdingCostEps decide when a position is dropped from
	// the holdings table entirely.
	holdingQtyEps  = 1e-12
	holdingCostEps = 1e-8
	// closedEps decides when a lifetime aggregate counts as fully closed.
	closedEps = 1e-9
)

// snapZero returns 0 for values within zeroEps of zero.
func snapZero(value float64) float64 {
	if math.Abs(value) < zeroEps {
		return 0
	}
	return value
}

// safeDiv divides a by b, returning 0 for a near-zero denominator instead of
// Inf/NaN.
func safeDiv(a, b float64) float64 {
	if math.Abs(b) <= 1e-12 {
		return 0
	}
	return a / b
}
