package drange

// Fixed-ratio entry model.
//
// Entry waits for a 20% retrace back into the inner range, the stop sits
// two points beyond the IDR midpoint, and the target is one standard
// deviation of the formation closes beyond the broken boundary.
const (
	entryRetraceRatio = 0.20
	stopBufferPoints  = 2.0
)

// Levels derives entry, stop and target prices from boundaries and a bias.
func Levels(b Boundaries, bias Bias) (entry, stop, target float64) {
	idrRange := b.IDRRange()
	mid := b.IDRLow + 0.50*idrRange

	if bias == Bullish {
		entry = b.IDRHigh - entryRetraceRatio*idrRange
		stop = mid - stopBufferPoints
		target = b.IDRHigh + b.StdDev
		return entry, stop, target
	}
	entry = b.IDRLow + entryRetraceRatio*idrRange
	stop = mid + stopBufferPoints
	target = b.IDRLow - b.StdDev
	return entry, stop, target
}
