package audio

import (
	"context"
	"log"
	"math/rand"
	"sync/atomic"
)

// ----- MIDI Event ----- //

type midiEvent struct {
	time  float64 // sec
	event interface{}
}

type noteOn struct {
	note     int
	velocity int
}
type noteOff struct {
	note int
}
type allNotesOff struct{}
type reverbSwitch struct {
	enabled bool
}

// ----- Synth ----- //

// Synth dispatches note events to a fixed pool of voices. There is no voice
// stealing: a note arriving while every voice is busy is dropped.
type Synth struct {
	params *Params
	// pooled + active = len(voices)
	voices []*noteVoice
	pooled []*noteVoice
	active []*noteVoice

	reverbRequests chan struct{}
	workerRunning  atomic.Bool
	dropped        atomic.Int64
}

type noteVoice struct {
	*SynthVoice
	note int
}

// NewSynth creates numVoices voices. seed fixes the reverb noise of every voice.
func NewSynth(params *Params, numVoices int, seed int64) *Synth {
	rnd := rand.New(rand.NewSource(seed))
	voices := make([]*noteVoice, numVoices)
	pooled := make([]*noteVoice, numVoices)
	for i := range voices {
		voices[i] = &noteVoice{SynthVoice: NewSynthVoice(params, rnd)}
		pooled[numVoices-1-i] = voices[i]
	}
	return &Synth{
		params:         params,
		voices:         voices,
		pooled:         pooled,
		active:         make([]*noteVoice, 0, numVoices),
		reverbRequests: make(chan struct{}, 1),
	}
}

func (s *Synth) PrepareToPlay(sampleRate float64, blockSize int, channels int) error {
	for _, v := range s.voices {
		if err := v.PrepareToPlay(sampleRate, blockSize, channels); err != nil {
			return err
		}
	}
	// prepare already pulled everything
	for g := 0; g < numGroups; g++ {
		s.params.takeDirty(g)
	}
	return nil
}

func (s *Synth) SetReverbEnabled(enabled bool) {
	for _, v := range s.voices {
		v.SetReverbEnabled(enabled)
	}
}

// ActiveVoices returns the number of voices currently holding a note.
func (s *Synth) ActiveVoices() int {
	return len(s.active)
}

// Clips sums the clip diagnostics of all voices.
func (s *Synth) Clips() int64 {
	var n int64
	for _, v := range s.voices {
		n += v.Clips()
	}
	return n
}

// Dropped returns the number of notes dropped because no voice was free.
func (s *Synth) Dropped() int64 {
	return s.dropped.Load()
}

// applyParams pushes dirty parameter groups to every voice.
func (s *Synth) applyParams() {
	if s.params.takeDirty(groupLayer1Envelope) {
		a, d, su, r := s.params.envelope(envAmp1)
		for _, v := range s.voices {
			v.UpdateLayer1Envelope(a, d, su, r)
		}
	}
	if s.params.takeDirty(groupLayer2Envelope) {
		a, d, su, r := s.params.envelope(envAmp2)
		for _, v := range s.voices {
			v.UpdateLayer2Envelope(a, d, su, r)
		}
	}
	if s.params.takeDirty(groupFilterEnvelope) {
		a, d, su, r := s.params.envelope(envCutoff)
		for _, v := range s.voices {
			v.UpdateFilterEnvelope(a, d, su, r)
		}
	}
	// read as a snapshot at render time
	s.params.takeDirty(groupOscillator)
	s.params.takeDirty(groupFilter)
	if s.params.takeDirty(groupReverb) {
		if s.workerRunning.Load() {
			select {
			case s.reverbRequests <- struct{}{}:
			default:
			}
		} else {
			s.regenerateReverbNow()
		}
	}
}

func (s *Synth) regenerateReverbNow() {
	r := s.params.reverbParams()
	for _, v := range s.voices {
		v.UpdateReverb(r.gain, r.decay)
	}
}

// RunReverbWorker regenerates impulse responses off the render goroutine
// until ctx is done.
func (s *Synth) RunReverbWorker(ctx context.Context) error {
	s.workerRunning.Store(true)
	defer s.workerRunning.Store(false)
	for {
		select {
		case <-ctx.Done():
			log.Println("RunReverbWorker() ended.")
			return nil
		case <-s.reverbRequests:
			r := s.params.reverbParams()
			for _, v := range s.voices {
				k, err := v.buildReverbKernel(r.gain, r.decay)
				if err != nil {
					log.Printf("failed to build reverb kernel: %v\n", err)
					v.failReverbKernel()
					continue
				}
				v.queueReverbKernel(k)
			}
		}
	}
}

// Process renders one block into out, applying events at their sample
// offsets. events must be at least as long as the block.
func (s *Synth) Process(events [][]*midiEvent, out [][]float64) {
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}
	if len(out) == 0 {
		return
	}
	s.applyParams()
	block := s.params.blockParams()
	for _, v := range s.voices {
		v.beginBlock(block)
	}
	n := len(out[0])
	pos := 0
	for i := 0; i < n && i < len(events); i++ {
		if len(events[i]) == 0 {
			continue
		}
		s.render(out, pos, i-pos)
		pos = i
		for _, e := range events[i] {
			s.handle(e)
		}
	}
	s.render(out, pos, n-pos)
	s.reclaim()
}

// reclaim returns finished voices to the pool.
func (s *Synth) reclaim() {
	for j := len(s.active) - 1; j >= 0; j-- {
		o := s.active[j]
		if !o.IsActive() {
			s.active = append(s.active[:j], s.active[j+1:]...)
			s.pooled = append(s.pooled, o)
		}
	}
}

func (s *Synth) render(out [][]float64, start int, numSamples int) {
	if numSamples <= 0 {
		return
	}
	for _, o := range s.active {
		o.Render(out, start, numSamples)
	}
}

func (s *Synth) handle(e *midiEvent) {
	switch data := e.event.(type) {
	case *noteOn:
		freq := noteToFreq(data.note)
		velocity := float64(data.velocity) / 127
		for _, o := range s.active {
			if o.note == data.note && o.IsActive() {
				o.NoteOn(freq, velocity)
				return
			}
		}
		lenPooled := len(s.pooled)
		if lenPooled == 0 {
			s.dropped.Add(1)
			return
		}
		o := s.pooled[lenPooled-1]
		if !o.CanPlay(freq) {
			return
		}
		s.pooled = s.pooled[:lenPooled-1]
		s.active = append(s.active, o)
		o.note = data.note
		o.NoteOn(freq, velocity)
	case *noteOff:
		for _, o := range s.active {
			if o.note == data.note {
				o.NoteOff()
			}
		}
	case *allNotesOff:
		for _, o := range s.active {
			o.ForceStop()
		}
	case *reverbSwitch:
		s.SetReverbEnabled(data.enabled)
	}
}
