package audio

import "math"

// ----- OSC ----- //

type osc struct {
	freq  float64
	phase float64 // [0, 2pi)
	delta float64
}

func (o *osc) setFreq(freq float64, sampleRate float64) {
	o.freq = freq
	o.delta = 2.0 * math.Pi * freq / sampleRate
}

func (o *osc) step() float64 {
	o.phase += o.delta
	if o.phase >= 2.0*math.Pi {
		o.phase = math.Mod(o.phase, 2.0*math.Pi)
	}
	return math.Sin(o.phase)
}

// ----- OSC Bank ----- //

// one sine per harmonic per layer
type oscBank struct {
	sampleRate  float64
	fundamental float64
	ratio       float64
	layers      [2][numHarmonics]osc
	// harmonics above nyquist are skipped, per layer
	active [2]int
}

func (b *oscBank) prepare(sampleRate float64) {
	b.sampleRate = sampleRate
	if b.fundamental > 0 {
		b.setFrequencies(b.fundamental, b.ratio)
	}
}

func (b *oscBank) setFrequencies(fundamental float64, ratio float64) {
	b.fundamental = fundamental
	b.ratio = ratio
	for k := 1; k <= numHarmonics; k++ {
		b.layers[0][k-1].setFreq(float64(k)*fundamental, b.sampleRate)
		b.layers[1][k-1].setFreq(float64(k)*fundamental*ratio, b.sampleRate)
	}
	b.active[0] = harmonicsBelowNyquist(fundamental, b.sampleRate)
	b.active[1] = harmonicsBelowNyquist(fundamental*ratio, b.sampleRate)
}

// harmonicsBelowNyquist counts k in 1..numHarmonics with k*freq <= sampleRate/2.
func harmonicsBelowNyquist(freq float64, sampleRate float64) int {
	if freq <= 0 || sampleRate <= 0 {
		return 0
	}
	nyquist := sampleRate / 2
	n := 0
	for k := 1; k <= numHarmonics; k++ {
		if float64(k)*freq > nyquist {
			break
		}
		n++
	}
	return n
}

// step advances the audible oscillators and writes sin(phase) to out, per layer.
// Entries at or above b.active[l] are left untouched.
func (b *oscBank) step(out *[2][numHarmonics]float64) {
	for l := range b.layers {
		for k := 0; k < b.active[l]; k++ {
			out[l][k] = b.layers[l][k].step()
		}
	}
}
