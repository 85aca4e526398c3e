package audio

import (
	"fmt"
	"math"
)

// ----- Offline ----- //

// LoadParams creates a parameter source from {"KEY": normalized, ...}.
// Missing keys keep their defaults.
func LoadParams(data []byte) (*Params, error) {
	p := NewParams()
	if len(data) == 0 {
		return p, nil
	}
	if err := p.applyJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// Clone copies every value into a new parameter source with all groups dirty.
func (p *Params) Clone() *Params {
	c := &Params{}
	for i := range p.values {
		c.values[i].Store(p.values[i].Load())
	}
	c.markAllDirty()
	return c
}

// OfflineRenderer renders single notes into memory, one block at a time,
// the same way the realtime engine does.
type OfflineRenderer struct {
	synth      *Synth
	sampleRate float64
	blockSize  int
	channels   int
	events     [][]*midiEvent
}

// NewOfflineRenderer prepares a one-voice synth reading from its own copy of
// params. seed fixes the reverb noise.
func NewOfflineRenderer(params *Params, sampleRate float64, blockSize int, channels int, seed int64) (*OfflineRenderer, error) {
	synth := NewSynth(params.Clone(), 1, seed)
	if err := synth.PrepareToPlay(sampleRate, blockSize, channels); err != nil {
		return nil, err
	}
	return &OfflineRenderer{
		synth:      synth,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		channels:   channels,
		events:     make([][]*midiEvent, blockSize),
	}, nil
}

// SetReverbEnabled switches the reverb for subsequent notes.
func (r *OfflineRenderer) SetReverbEnabled(enabled bool) {
	r.synth.SetReverbEnabled(enabled)
}

// Clips returns how many rendered samples exceeded magnitude 1 so far.
func (r *OfflineRenderer) Clips() int64 {
	return r.synth.Clips()
}

// RenderNote holds note for hold seconds, then releases it and keeps rendering
// for release seconds. The result is channels x samples.
func (r *OfflineRenderer) RenderNote(note int, velocity int, hold float64, release float64) ([][]float64, error) {
	if note < 0 || note > 127 {
		return nil, fmt.Errorf("invalid note number: %d", note)
	}
	if !(hold >= 0) || !(release >= 0) {
		return nil, fmt.Errorf("invalid duration: hold=%v, release=%v", hold, release)
	}
	noteOffAt := int(math.Round(hold * r.sampleRate))
	total := noteOffAt + int(math.Round(release*r.sampleRate))
	result := make([][]float64, r.channels)
	for ch := range result {
		result[ch] = make([]float64, total)
	}
	out := make([][]float64, r.channels)
	for pos := 0; pos < total; pos += r.blockSize {
		n := total - pos
		if n > r.blockSize {
			n = r.blockSize
		}
		if pos == 0 {
			r.schedule(0, &noteOn{note: note, velocity: velocity})
		}
		if noteOffAt >= pos && noteOffAt < pos+n {
			r.schedule(noteOffAt-pos, &noteOff{note: note})
		}
		for ch := range out {
			out[ch] = result[ch][pos : pos+n]
		}
		r.synth.Process(r.events[:n], out)
		for i := range r.events {
			r.events[i] = r.events[i][:0]
		}
	}
	r.synth.handle(&midiEvent{event: &allNotesOff{}})
	r.synth.reclaim()
	return result, nil
}

func (r *OfflineRenderer) schedule(index int, event interface{}) {
	r.events[index] = append(r.events[index], &midiEvent{event: event})
}
