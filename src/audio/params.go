package audio

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
)

// ErrUnknownParameter is returned for keys that are not in the parameter table.
var ErrUnknownParameter = errors.New("unknown parameter")

// ----- Param Range ----- //

type paramRange struct {
	min      float64
	max      float64
	interval float64 // 0 = continuous
}

func (r paramRange) convertFrom0to1(v float64) float64 {
	x := r.min + clamp01(v)*(r.max-r.min)
	if r.interval > 0 {
		x = r.min + math.Round((x-r.min)/r.interval)*r.interval
	}
	return clamp(x, r.min, r.max)
}

func (r paramRange) convertTo0to1(x float64) float64 {
	if r.max <= r.min {
		return 0
	}
	return clamp01((x - r.min) / (r.max - r.min))
}

// ----- Param Group ----- //

const (
	groupLayer1Envelope = iota
	groupLayer2Envelope
	groupFilterEnvelope
	groupOscillator
	groupFilter
	groupReverb
	numGroups
)

// ----- Param Table ----- //

const (
	pPeakA1 = iota
	pAtA1
	pDeA1
	pSuA1
	pReA1
	pPeakA2
	pAtA2
	pDeA2
	pSuA2
	pReA2
	pCutFloor
	pPeakC
	pAtC
	pDeC
	pSuC
	pReC
	pMOsc1
	pMOsc2
	pF0Mult
	pQFilt
	pRevGain
	pRevDec
	numParams
)

type paramDef struct {
	key          string
	name         string
	group        int
	rng          paramRange
	defaultValue float64 // denormalized
}

var (
	levelRange  = paramRange{0.01, 1, 0.001}
	timeRange   = paramRange{0, 1, 0.001} // scaled to seconds by the envelope
	cutoffRange = paramRange{30, 24000, 1}
)

var paramDefs = [numParams]paramDef{
	pPeakA1:   {"PEAK_A_1", "Attack amplitude (ADSR 1)", groupLayer1Envelope, levelRange, 1},
	pAtA1:     {"AT_A_1", "Attack time (ADSR 1)", groupLayer1Envelope, timeRange, 0.005},
	pDeA1:     {"DE_A_1", "Decay time (ADSR 1)", groupLayer1Envelope, timeRange, 0.05},
	pSuA1:     {"SU_A_1", "Sustain level (ADSR 1)", groupLayer1Envelope, paramRange{0, 1, 0.001}, 0.7},
	pReA1:     {"RE_A_1", "Release time (ADSR 1)", groupLayer1Envelope, timeRange, 0.05},
	pPeakA2:   {"PEAK_A_2", "Attack amplitude (ADSR 2)", groupLayer2Envelope, levelRange, 1},
	pAtA2:     {"AT_A_2", "Attack time (ADSR 2)", groupLayer2Envelope, timeRange, 0.005},
	pDeA2:     {"DE_A_2", "Decay time (ADSR 2)", groupLayer2Envelope, timeRange, 0.05},
	pSuA2:     {"SU_A_2", "Sustain level (ADSR 2)", groupLayer2Envelope, paramRange{0, 1, 0.001}, 0.7},
	pReA2:     {"RE_A_2", "Release time (ADSR 2)", groupLayer2Envelope, timeRange, 0.05},
	pCutFloor: {"CUT_FLOOR", "Minimum cutoff (ADSR C)", groupFilterEnvelope, cutoffRange, 500},
	pPeakC:    {"PEAK_C", "Peak cutoff (ADSR C)", groupFilterEnvelope, cutoffRange, 8000},
	pAtC:      {"AT_C", "Attack time (ADSR C)", groupFilterEnvelope, timeRange, 0.005},
	pDeC:      {"DE_C", "Decay time (ADSR C)", groupFilterEnvelope, timeRange, 0.1},
	pSuC:      {"SU_C", "Sustain level (ADSR C)", groupFilterEnvelope, paramRange{0, 1, 0.001}, 0.5},
	pReC:      {"RE_C", "Release time (ADSR C)", groupFilterEnvelope, timeRange, 0.05},
	pMOsc1:    {"M_OSC_1", "Wavetype mix (Saw-Square) 1", groupOscillator, paramRange{0, 1, 0.001}, 0},
	pMOsc2:    {"M_OSC_2", "Wavetype mix (Saw-Square) 2", groupOscillator, paramRange{0, 1, 0.001}, 0},
	pF0Mult:   {"F0_MULT", "Frequency Ratio", groupOscillator, paramRange{1, 8, 0.1}, 2},
	pQFilt:    {"Q_FILT", "Q Factor", groupFilter, paramRange{0.02, 2, 0.001}, 0.707},
	pRevGain:  {"REV_GAIN", "Reverb Gain", groupReverb, paramRange{0.01, 1, 0.001}, 0.1},
	pRevDec:   {"REV_DEC", "Reverb Decay", groupReverb, paramRange{0.01, 1, 0.001}, 1},
}

var paramIndex = func() map[string]int {
	m := make(map[string]int, numParams)
	for i, def := range paramDefs {
		m[def.key] = i
	}
	return m
}()

// ----- Params ----- //

// Params is the parameter source shared by the control side and the render
// side. Every value is a normalized float stored atomically; a write marks its
// group dirty and the render side consumes dirty flags once per block.
type Params struct {
	values [numParams]atomic.Uint64
	dirty  [numGroups]atomic.Bool
}

// NewParams creates the parameter table with default values. All groups
// start dirty so the first block pushes them to the voices.
func NewParams() *Params {
	p := &Params{}
	for i, def := range paramDefs {
		p.store(i, def.rng.convertTo0to1(def.defaultValue))
	}
	for g := range p.dirty {
		p.dirty[g].Store(true)
	}
	return p
}

func (p *Params) store(i int, normalized float64) {
	if math.IsNaN(normalized) {
		normalized = 0
	}
	p.values[i].Store(math.Float64bits(clamp01(normalized)))
	p.dirty[paramDefs[i].group].Store(true)
}

func (p *Params) normalized(i int) float64 {
	return math.Float64frombits(p.values[i].Load())
}

func (p *Params) get(i int) float64 {
	return paramDefs[i].rng.convertFrom0to1(p.normalized(i))
}

func lookupParam(key string) (int, error) {
	i, ok := paramIndex[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, key)
	}
	return i, nil
}

// SetNormalized stores a [0,1] value. Out-of-range values are clamped.
func (p *Params) SetNormalized(key string, value float64) error {
	i, err := lookupParam(key)
	if err != nil {
		return err
	}
	p.store(i, value)
	return nil
}

// Set stores a value in the parameter's own unit. Out-of-range values are clamped.
func (p *Params) Set(key string, value float64) error {
	i, err := lookupParam(key)
	if err != nil {
		return err
	}
	p.store(i, paramDefs[i].rng.convertTo0to1(value))
	return nil
}

// Get returns the value in the parameter's own unit.
func (p *Params) Get(key string) (float64, error) {
	i, err := lookupParam(key)
	if err != nil {
		return 0, err
	}
	return p.get(i), nil
}

// Keys returns all parameter keys in table order.
func Keys() []string {
	keys := make([]string, numParams)
	for i, def := range paramDefs {
		keys[i] = def.key
	}
	return keys
}

func (p *Params) takeDirty(group int) bool {
	return p.dirty[group].CompareAndSwap(true, false)
}

func (p *Params) markAllDirty() {
	for g := range p.dirty {
		p.dirty[g].Store(true)
	}
}

// ----- Snapshots ----- //

var envelopeParamIDs = [3][4]int{
	{pAtA1, pDeA1, pSuA1, pReA1},
	{pAtA2, pDeA2, pSuA2, pReA2},
	{pAtC, pDeC, pSuC, pReC},
}

// envelope returns (attack, decay, sustain, release) as normalized control
// values for envelope 0, 1 or 2.
func (p *Params) envelope(index int) (float64, float64, float64, float64) {
	ids := envelopeParamIDs[index]
	return p.get(ids[0]), p.get(ids[1]), p.get(ids[2]), p.get(ids[3])
}

func (p *Params) filterParams() filterParams {
	return filterParams{
		floor: p.get(pCutFloor),
		peak:  p.get(pPeakC),
		q:     p.get(pQFilt),
	}
}

func (p *Params) reverbParams() reverbParams {
	return reverbParams{
		gain:  p.get(pRevGain),
		decay: p.get(pRevDec),
	}
}

// blockParams is what a voice reads while rendering one block.
type blockParams struct {
	filter filterParams
	amps   [2][numHarmonics]float64
	ratio  float64
}

func (p *Params) blockParams() blockParams {
	b := blockParams{
		filter: p.filterParams(),
		ratio:  p.freqRatio(),
	}
	mix := p.oscMix()
	for l := range b.amps {
		for k := range b.amps[l] {
			b.amps[l][k] = harmonicAmp(k, mix[l])
		}
	}
	return b
}

func (p *Params) oscMix() [2]float64 {
	return [2]float64{p.get(pMOsc1), p.get(pMOsc2)}
}

func (p *Params) freqRatio() float64 {
	return p.get(pF0Mult)
}

// ----- JSON ----- //

func (p *Params) applyJSON(data json.RawMessage) error {
	var j map[string]float64
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to apply JSON to params: %w", err)
	}
	keys := make([]string, 0, len(j))
	for key := range j {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := p.SetNormalized(key, j[key]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Params) toJSON() json.RawMessage {
	j := make(map[string]float64, numParams)
	for i, def := range paramDefs {
		j[def.key] = p.normalized(i)
	}
	return toRawMessage(j)
}
