package audio

import (
	"math"
	"math/rand"
)

// ----- Reverb Params ----- //

// length of the impulse response in samples
const irLength = 48000

type reverbParams struct {
	gain  float64
	decay float64
}

// ----- Impulse Response ----- //

// impulseResponse is a decaying noise burst. The noise is drawn once and kept,
// so regenerate depends only on (gain, decay).
type impulseResponse struct {
	noise    []float64
	timeRamp []float64
	ir       []float64
}

func newImpulseResponse(length int, rnd *rand.Rand) *impulseResponse {
	noise := make([]float64, length)
	for i := range noise {
		noise[i] = rnd.Float64()*2 - 1 // [-1, 1)
	}
	if length > 0 {
		noise[0] = 0
	}
	return &impulseResponse{
		noise:    noise,
		timeRamp: make([]float64, length),
		ir:       make([]float64, length),
	}
}

func (r *impulseResponse) prepare(sampleRate float64) {
	for i := range r.timeRamp {
		r.timeRamp[i] = float64(i) / sampleRate
	}
}

func (r *impulseResponse) regenerate(gain float64, decay float64) []float64 {
	for i := range r.ir {
		r.ir[i] = gain * math.Exp(-decay*r.timeRamp[i]) * r.noise[i]
	}
	return r.ir
}
