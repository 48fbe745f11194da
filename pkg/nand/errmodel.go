package nand

import "math"

// EstimateBitErrors returns the number of bit errors injected into a read of
// a block with pe program/erase cycles and reads reads.
//
// Only the high band is modelled, with the fitted polynomial
//
//	-2260.8 + 0.1432·pe + 3.499·rc - 1.40e-5·pe² - 0.000953·pe·rc
//	        + 7.27e-10·pe³ + pe²·rc
//
// The low and normal bands inject nothing. The result is clamped to
// [0, math.MaxInt32].
func EstimateBitErrors(pe, reads uint32, band TemperatureBand) int {
	if band != BandHigh {
		return 0
	}

	p := float64(pe)
	rc := float64(reads)

	ber := -2260.8 +
		0.1432*p +
		3.499*rc -
		1.40e-05*p*p -
		0.000953*p*rc +
		7.27e-10*p*p*p +
		p*p*rc

	switch {
	case ber <= 0:
		return 0
	case ber >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int(ber)
	}
}
