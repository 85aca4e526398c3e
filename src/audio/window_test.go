package audio

import (
	"math"
	"testing"
)

func expectEqual(t *testing.T, actual, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectNearlyEqual(t *testing.T, actual, expected float64) {
	t.Helper()
	expectNearlyEqualWithin(t, actual, expected, 0.0001)
}

func expectNearlyEqualWithin(t *testing.T, actual, expected float64, tolerance float64) {
	t.Helper()
	if math.Abs(actual-expected) > tolerance {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func TestHan(t *testing.T) {
	data := []float64{1, 1, 1, 1}
	Han(data)
	expectNearlyEqual(t, data[0], 0)
	expectNearlyEqual(t, data[1], 0.5)
	expectNearlyEqual(t, data[2], 1)
	expectNearlyEqual(t, data[3], 0.5)
}

func TestSpectrum(t *testing.T) {
	n := 2048
	data := make([]float64, n)
	for i := range data {
		data[i] = 0.5 * math.Sin(2*math.Pi*64*float64(i)/float64(n))
	}
	result := Spectrum(data)
	expectEqual(t, len(result), n/2)
	expectNearlyEqual(t, result[64], 0.5)
	expectNearlyEqual(t, result[10], 0)
	expectNearlyEqual(t, result[200], 0)
}
