package audio

import "math"

// ----- Filter ----- //

// lowpassResponse is the magnitude of a second-order lowpass at freq.
// It is applied to harmonic amplitudes directly, so there is no filter state.
func lowpassResponse(freq float64, cutoff float64, q float64) float64 {
	r := freq / cutoff
	d := 1 - r*r
	s := r / q
	return 1 / math.Sqrt(d*d+s*s)
}

type filterParams struct {
	floor float64 // Hz
	peak  float64 // Hz
	q     float64
}

// cutoffAt maps the cutoff envelope level onto [floor, peak].
func (f *filterParams) cutoffAt(level float64) float64 {
	return f.floor + level*(f.peak-f.floor)
}
