package audio

import "testing"

func TestOfflineRenderer(t *testing.T) {
	p := newTestParams(t)
	expectNoError(t, p.Set("RE_A_1", 0.01))
	r, err := NewOfflineRenderer(p, 48000, 256, 2, 1)
	expectNoError(t, err)
	out, err := r.RenderNote(69, 100, 0.1, 0.05)
	expectNoError(t, err)
	expectEqual(t, len(out), 2)
	expectEqual(t, len(out[0]), 7200)
	expectEqual(t, len(out[1]), 7200)

	loud := false
	for _, x := range out[0][:4800] {
		if x != 0 {
			loud = true
		}
	}
	expectEqual(t, loud, true)
	// released after 4800 + 1920 samples
	for i := 6720; i < 7200; i++ {
		expectEqual(t, out[0][i], 0.0)
	}

	// the voice is free again
	out, err = r.RenderNote(60, 100, 0.01, 0)
	expectNoError(t, err)
	expectEqual(t, len(out[0]), 480)
	expectEqual(t, r.synth.Dropped(), int64(0))
	expectEqual(t, r.synth.ActiveVoices(), 0)
}

func TestOfflineRendererIsDeterministic(t *testing.T) {
	p := newTestParams(t)
	render := func() [][]float64 {
		r, err := NewOfflineRenderer(p, 48000, 256, 1, 7)
		expectNoError(t, err)
		r.SetReverbEnabled(true)
		out, err := r.RenderNote(64, 100, 0.02, 0.02)
		expectNoError(t, err)
		return out
	}
	a := render()
	b := render()
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("differs at %d: %v != %v", i, a[0][i], b[0][i])
		}
	}
}

func TestOfflineRendererErrors(t *testing.T) {
	p := NewParams()
	if _, err := NewOfflineRenderer(p, 0, 256, 2, 1); err == nil {
		t.Errorf("expected error for invalid sample rate")
	}
	r, err := NewOfflineRenderer(p, 48000, 256, 2, 1)
	expectNoError(t, err)
	if _, err := r.RenderNote(128, 100, 1, 1); err == nil {
		t.Errorf("expected error for invalid note")
	}
	if _, err := r.RenderNote(60, 100, -1, 1); err == nil {
		t.Errorf("expected error for negative duration")
	}
}
