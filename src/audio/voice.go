package audio

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
)

// Configuration errors returned by PrepareToPlay.
var (
	ErrInvalidSampleRate   = errors.New("invalid sample rate")
	ErrInvalidBlockSize    = errors.New("invalid block size")
	ErrInvalidChannelCount = errors.New("invalid channel count")
)

const (
	envAmp1 = iota
	envAmp2
	envCutoff
)

// ----- Voice ----- //

// Voice is what the dispatcher needs from a synthesizer voice.
type Voice interface {
	CanPlay(freq float64) bool
	NoteOn(freq float64, velocity float64)
	NoteOff()
	ForceStop()
	Render(out [][]float64, start int, numSamples int)
	IsActive() bool
}

// SynthVoice renders two layers of 24 harmonics each, shaped by two amplitude
// envelopes and a cutoff envelope, with an optional convolution reverb.
type SynthVoice struct {
	params     *Params
	prepared   bool
	sampleRate float64
	blockSize  int
	channels   int
	playing    bool
	freq       float64
	velocity   float64

	bank      oscBank
	sines     [2][numHarmonics]float64
	block     blockParams
	envelopes [3]adsr

	reverb        *impulseResponse
	convolver     *fftConvolver
	reverbEnabled bool
	reverbReady   bool
	pendingKernel atomic.Pointer[convolutionKernel]
	kernelFailed  atomic.Bool
	dry           []float64
	wet           []float64

	clips          atomic.Int64
	kernelFailures atomic.Int64
}

var _ Voice = (*SynthVoice)(nil)

// NewSynthVoice creates a voice reading from params. The reverb noise is drawn
// from rnd once here.
func NewSynthVoice(params *Params, rnd *rand.Rand) *SynthVoice {
	return &SynthVoice{
		params: params,
		freq:   440,
		reverb: newImpulseResponse(irLength, rnd),
	}
}

// PrepareToPlay allocates block buffers and pulls every parameter group.
// On error the voice stays unprepared and renders nothing.
func (v *SynthVoice) PrepareToPlay(sampleRate float64, blockSize int, channels int) error {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	if channels <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChannelCount, channels)
	}
	v.prepared = false
	v.sampleRate = sampleRate
	v.blockSize = blockSize
	v.channels = channels
	v.bank.prepare(sampleRate)
	for i := range v.envelopes {
		v.envelopes[i].setSampleRate(sampleRate)
	}
	v.dry = make([]float64, blockSize)
	v.wet = make([]float64, blockSize)
	v.convolver = newFFTConvolver(blockSize)
	v.reverb.prepare(sampleRate)
	v.block = v.params.blockParams()

	v.UpdateLayer1Envelope(v.params.envelope(envAmp1))
	v.UpdateLayer2Envelope(v.params.envelope(envAmp2))
	v.UpdateFilterEnvelope(v.params.envelope(envCutoff))
	r := v.params.reverbParams()
	v.UpdateReverb(r.gain, r.decay)
	v.prepared = true
	return nil
}

// UpdateLayer1Envelope takes normalized times; see newADSRParams.
func (v *SynthVoice) UpdateLayer1Envelope(attack, decay, sustain, release float64) {
	v.envelopes[envAmp1].setParams(newADSRParams(attack, decay, sustain, release))
}

func (v *SynthVoice) UpdateLayer2Envelope(attack, decay, sustain, release float64) {
	v.envelopes[envAmp2].setParams(newADSRParams(attack, decay, sustain, release))
}

func (v *SynthVoice) UpdateFilterEnvelope(attack, decay, sustain, release float64) {
	v.envelopes[envCutoff].setParams(newADSRParams(attack, decay, sustain, release))
}

// UpdateReverb regenerates the impulse response and reloads the convolver
// in place. A load failure disables the reverb until the next update.
func (v *SynthVoice) UpdateReverb(gain float64, decay float64) {
	k, err := v.buildReverbKernel(gain, decay)
	if err != nil {
		v.reverbReady = false
		v.kernelFailures.Add(1)
		return
	}
	v.convolver.install(k)
	v.reverbReady = true
}

// buildReverbKernel does not touch the render state and may run off the
// render goroutine, one call at a time.
func (v *SynthVoice) buildReverbKernel(gain float64, decay float64) (*convolutionKernel, error) {
	ir := v.reverb.regenerate(gain, decay)
	return newConvolutionKernel(ir, v.blockSize)
}

// queueReverbKernel hands a kernel to the render side; it is installed at the
// start of the next Render call.
func (v *SynthVoice) queueReverbKernel(k *convolutionKernel) {
	v.pendingKernel.Store(k)
}

// failReverbKernel disables the reverb from the next Render call on.
func (v *SynthVoice) failReverbKernel() {
	v.kernelFailures.Add(1)
	v.pendingKernel.Store(nil)
	v.kernelFailed.Store(true)
}

func (v *SynthVoice) installPendingKernel() {
	if v.kernelFailed.Swap(false) {
		v.reverbReady = false
	}
	if k := v.pendingKernel.Swap(nil); k != nil {
		v.convolver.install(k)
		v.reverbReady = true
	}
}

// beginBlock sets the mix, ratio and filter values used until the next call.
func (v *SynthVoice) beginBlock(b blockParams) {
	v.block = b
}

func (v *SynthVoice) SetReverbEnabled(enabled bool) {
	v.reverbEnabled = enabled
}

func (v *SynthVoice) CanPlay(freq float64) bool {
	return v.prepared && freq > 0 && !math.IsInf(freq, 0)
}

// NoteOn retunes the oscillators and triggers all three envelopes from their
// current levels. Velocity is kept but does not scale the output.
func (v *SynthVoice) NoteOn(freq float64, velocity float64) {
	if !v.CanPlay(freq) {
		return
	}
	if !v.playing {
		v.convolver.Reset()
	}
	v.freq = freq
	v.velocity = velocity
	v.bank.setFrequencies(freq, v.block.ratio)
	for i := range v.envelopes {
		v.envelopes[i].noteOn()
	}
	v.playing = true
}

func (v *SynthVoice) NoteOff() {
	for i := range v.envelopes {
		v.envelopes[i].noteOff()
	}
	if !v.amplitudeActive() {
		v.clearCurrentNote()
	}
}

// ForceStop silences the voice without a release tail.
func (v *SynthVoice) ForceStop() {
	for i := range v.envelopes {
		v.envelopes[i].reset()
	}
	if v.convolver != nil {
		v.convolver.Reset()
	}
	v.clearCurrentNote()
}

func (v *SynthVoice) IsActive() bool {
	return v.playing
}

func (v *SynthVoice) amplitudeActive() bool {
	return v.envelopes[envAmp1].isActive() || v.envelopes[envAmp2].isActive()
}

func (v *SynthVoice) clearCurrentNote() {
	v.playing = false
}

// Clips returns how many rendered samples exceeded magnitude 1.
func (v *SynthVoice) Clips() int64 {
	return v.clips.Load()
}

// KernelFailures returns how many reverb kernel loads failed.
func (v *SynthVoice) KernelFailures() int64 {
	return v.kernelFailures.Load()
}

// ActiveHarmonics returns the number of harmonics summed per layer for the
// current note.
func (v *SynthVoice) ActiveHarmonics() (int, int) {
	return v.bank.active[0], v.bank.active[1]
}

// Render adds numSamples samples to every channel of out starting at start.
func (v *SynthVoice) Render(out [][]float64, start int, numSamples int) {
	if !v.prepared || !v.playing {
		return
	}
	v.installPendingKernel()
	reverb := v.reverbEnabled && v.reverbReady
	for offset := 0; offset < numSamples; {
		n := numSamples - offset
		if n > v.blockSize {
			n = v.blockSize
		}
		dry := v.dry[:n]
		for i := range dry {
			dry[i] = v.step()
		}
		if reverb {
			wet := v.wet[:n]
			copy(wet, dry)
			v.convolver.Process(wet)
			for i := range dry {
				dry[i] += wet[i]
			}
		}
		for ch := range out {
			writeTo := out[ch][start+offset : start+offset+n]
			for i, value := range dry {
				writeTo[i] += value
			}
		}
		offset += n
	}
	if !v.amplitudeActive() {
		v.clearCurrentNote()
	}
}

func (v *SynthVoice) step() float64 {
	filter := &v.block.filter
	amps := &v.block.amps
	e1 := v.envelopes[envAmp1].getNextSample()
	e2 := v.envelopes[envAmp2].getNextSample()
	cutoff := filter.cutoffAt(v.envelopes[envCutoff].getNextSample())
	v.bank.step(&v.sines)
	n1, n2 := v.bank.active[0], v.bank.active[1]
	value := 0.0
	for k := 0; k < n1; k++ {
		gain := lowpassResponse(float64(k+1)*v.freq, cutoff, filter.q)
		value += e1 * amps[0][k] * v.sines[0][k] * gain
		if k < n2 {
			value += e2 * amps[1][k] * v.sines[1][k] * gain
		}
	}
	if math.Abs(value) > 1 {
		v.clips.Add(1)
	}
	return value
}
