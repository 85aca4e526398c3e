package audio

import "math"

// ----- Harmonic Tables ----- //

const numHarmonics = 24

// normalized so that each table sums to 1
var sawWeights, squareWeights = makeHarmonicTables(numHarmonics)

func makeHarmonicTables(n int) ([]float64, []float64) {
	saw := make([]float64, n)
	square := make([]float64, n)
	sumSaw := 0.0
	sumSquare := 0.0
	for k := 1; k <= n; k++ {
		saw[k-1] = calcPartialSawAmp(k) * 2 / math.Pi
		square[k-1] = calcPartialSquareAmp(k) * 4 / math.Pi
		sumSaw += saw[k-1]
		sumSquare += square[k-1]
	}
	for i := range saw {
		saw[i] /= sumSaw
		square[i] /= sumSquare
	}
	return saw, square
}

func calcPartialSawAmp(n int) float64 {
	return 1 / float64(n)
}

// odd harmonics only
func calcPartialSquareAmp(n int) float64 {
	if n%2 == 1 {
		return 1 / float64(n)
	}
	return 0
}

// blend of the two archetypes at harmonic index k (0-based)
func harmonicAmp(k int, mix float64) float64 {
	return (1-mix)*sawWeights[k] + mix*squareWeights[k]
}
