package audio

import "math"

// ----- ADSR Params ----- //

const (
	phaseNone = iota
	phaseAttack
	phaseDecay
	phaseSustain
	phaseRelease
)

// normalized times map to 0-4 sec
const envelopeTimeScale = 4.0

type adsrParams struct {
	attack  float64 // sec
	decay   float64 // sec
	sustain float64 // 0-1
	release float64 // sec
}

// newADSRParams converts normalized control values. Sustain is a level and
// is not scaled.
func newADSRParams(attack, decay, sustain, release float64) adsrParams {
	return adsrParams{
		attack:  clamp01(attack) * envelopeTimeScale,
		decay:   clamp01(decay) * envelopeTimeScale,
		sustain: clamp01(sustain),
		release: clamp01(release) * envelopeTimeScale,
	}
}

// ----- ADSR ----- //

/*
  1 +     x
    |    / \
    |   /   \
  s +  /     x------x
    | /              \
    |/                \
  0 +-----+--+------+---
    |a    |d |      |r |
*/
type adsr struct {
	attack     float64 // sec
	decay      float64 // sec
	sustain    float64 // 0-1
	release    float64 // sec
	sampleRate float64
	phase      int
	tvalue     transitiveValue
}

func (a *adsr) setSampleRate(sampleRate float64) {
	a.sampleRate = sampleRate
}

func (a *adsr) setParams(p adsrParams) {
	a.attack = p.attack
	a.decay = p.decay
	a.sustain = p.sustain
	a.release = p.release
}

// noteOn restarts the attack from the level currently held.
func (a *adsr) noteOn() {
	a.enter(phaseAttack)
}

func (a *adsr) noteOff() {
	if a.phase == phaseNone {
		return
	}
	a.enter(phaseRelease)
}

// reset drops to idle without a release tail.
func (a *adsr) reset() {
	a.phase = phaseNone
	a.tvalue.init(0)
}

func (a *adsr) isActive() bool {
	return a.phase != phaseNone
}

func (a *adsr) getValue() float64 {
	return a.tvalue.value
}

func (a *adsr) samples(sec float64) int {
	return int(math.Round(sec * a.sampleRate))
}

// enter starts a segment. Zero-length segments complete immediately.
func (a *adsr) enter(phase int) {
	a.phase = phase
	switch phase {
	case phaseAttack:
		if n := a.samples(a.attack); n > 0 {
			a.tvalue.linear(n, 1)
			return
		}
		a.tvalue.init(1)
		a.enter(phaseDecay)
	case phaseDecay:
		if n := a.samples(a.decay); n > 0 {
			a.tvalue.linear(n, a.sustain)
			return
		}
		a.tvalue.init(a.sustain)
		a.enter(phaseSustain)
	case phaseSustain:
		a.tvalue.init(a.sustain)
	case phaseRelease:
		if n := a.samples(a.release); n > 0 {
			a.tvalue.linear(n, 0)
			return
		}
		a.reset()
	default:
		a.reset()
	}
}

// getNextSample advances one sample period and returns the output level.
func (a *adsr) getNextSample() float64 {
	switch a.phase {
	case phaseAttack:
		if a.tvalue.step() {
			a.enter(phaseDecay)
		}
	case phaseDecay:
		if a.tvalue.step() {
			a.enter(phaseSustain)
		}
	case phaseSustain:
		a.tvalue.value = a.sustain
	case phaseRelease:
		if a.tvalue.step() {
			a.reset()
		}
	}
	return a.tvalue.value
}
