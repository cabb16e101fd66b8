package lattice

// H is the hard-threshold excitation indicator: 1 when v >= 0, otherwise 0.
// NaN maps to 0.
func H(v float64) float64 {
	if v >= 0 {
		return 1
	}
	return 0
}
