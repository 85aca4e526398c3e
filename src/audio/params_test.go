package audio

import (
	"errors"
	"testing"
)

func TestParamsDefaults(t *testing.T) {
	p := NewParams()
	v, err := p.Get("F0_MULT")
	expectNoError(t, err)
	expectNearlyEqual(t, v, 2)
	v, err = p.Get("Q_FILT")
	expectNoError(t, err)
	expectNearlyEqual(t, v, 0.707)
	v, err = p.Get("PEAK_C")
	expectNoError(t, err)
	expectNearlyEqual(t, v, 8000)

	a, d, s, r := p.envelope(envAmp1)
	expectNearlyEqual(t, a, 0.005)
	expectNearlyEqual(t, d, 0.05)
	expectNearlyEqual(t, s, 0.7)
	expectNearlyEqual(t, r, 0.05)
}

func TestParamsUnknownKey(t *testing.T) {
	p := NewParams()
	if err := p.SetNormalized("UNKNOWN", 0.5); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, but got: %v", err)
	}
	if err := p.Set("UNKNOWN", 0.5); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, but got: %v", err)
	}
	if _, err := p.Get("UNKNOWN"); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, but got: %v", err)
	}
}

func TestParamsClamp(t *testing.T) {
	p := NewParams()
	expectNoError(t, p.SetNormalized("M_OSC_1", 2))
	expectNearlyEqual(t, p.oscMix()[0], 1)
	expectNoError(t, p.SetNormalized("M_OSC_1", -1))
	expectNearlyEqual(t, p.oscMix()[0], 0)
	expectNoError(t, p.Set("PEAK_C", 100000))
	expectNearlyEqual(t, p.filterParams().peak, 24000)
	expectNoError(t, p.Set("REV_DEC", 0))
	expectNearlyEqual(t, p.reverbParams().decay, 0.01)
}

func TestParamsInterval(t *testing.T) {
	p := NewParams()
	expectNoError(t, p.SetNormalized("F0_MULT", 0.5))
	expectNearlyEqual(t, p.freqRatio(), 4.5)
	expectNoError(t, p.Set("F0_MULT", 2.34))
	expectNearlyEqual(t, p.freqRatio(), 2.3)
}

func TestParamsDirty(t *testing.T) {
	p := NewParams()
	for g := 0; g < numGroups; g++ {
		expectEqual(t, p.takeDirty(g), true)
		expectEqual(t, p.takeDirty(g), false)
	}
	expectNoError(t, p.SetNormalized("REV_GAIN", 0.5))
	expectEqual(t, p.takeDirty(groupFilter), false)
	expectEqual(t, p.takeDirty(groupReverb), true)
	expectEqual(t, p.takeDirty(groupReverb), false)

	expectNoError(t, p.SetNormalized("CUT_FLOOR", 0.5))
	expectEqual(t, p.takeDirty(groupFilterEnvelope), true)

	p.markAllDirty()
	for g := 0; g < numGroups; g++ {
		expectEqual(t, p.takeDirty(g), true)
	}
}

func TestParamsJSON(t *testing.T) {
	p := NewParams()
	expectNoError(t, p.SetNormalized("AT_A_2", 0.25))
	expectNoError(t, p.SetNormalized("M_OSC_2", 0.75))
	q, err := LoadParams(p.toJSON())
	expectNoError(t, err)
	for i := 0; i < numParams; i++ {
		expectNearlyEqual(t, q.normalized(i), p.normalized(i))
	}

	if _, err := LoadParams([]byte(`{"NOPE": 1}`)); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, but got: %v", err)
	}
	if _, err := LoadParams([]byte(`[`)); err == nil {
		t.Errorf("expected error for invalid JSON")
	}
	q, err = LoadParams(nil)
	expectNoError(t, err)
	expectNearlyEqual(t, q.freqRatio(), 2)
}

func TestParamsClone(t *testing.T) {
	p := NewParams()
	expectNoError(t, p.SetNormalized("SU_C", 0.1))
	for g := 0; g < numGroups; g++ {
		p.takeDirty(g)
	}
	c := p.Clone()
	for g := 0; g < numGroups; g++ {
		expectEqual(t, c.takeDirty(g), true)
	}
	expectNoError(t, c.SetNormalized("SU_C", 0.9))
	v, err := p.Get("SU_C")
	expectNoError(t, err)
	expectNearlyEqual(t, v, 0.1)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	expectEqual(t, len(keys), numParams)
	expectEqual(t, keys[0], "PEAK_A_1")
	expectEqual(t, keys[numParams-1], "REV_DEC")
}
