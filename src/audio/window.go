package audio

import (
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"
)

// Han ...
func Han(data []float64) {
	n := len(data)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		w := 0.5 - 0.5*math.Cos(2.0*math.Pi*x)
		data[i] = data[i] * w
	}
}

// Spectrum returns the single-sided magnitude spectrum of data, scaled so a
// full-scale sine at a bin center reads close to its amplitude. data is
// windowed in place.
func Spectrum(data []float64) []float64 {
	n := len(data)
	Han(data)
	x := fft.FFTReal(data)
	result := make([]float64, n/2)
	for i := range result {
		// 2 for the single side, 2 for the Han window gain
		result[i] = cmplx.Abs(x[i]) * 4 / float64(n)
	}
	return result
}
