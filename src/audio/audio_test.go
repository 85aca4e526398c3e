package audio

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func expectNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
}

func newTestAudio(t *testing.T) *Audio {
	t.Helper()
	a, err := newAudio(nil, 4, 256)
	expectNoError(t, err)
	return a
}

func TestAudioUpdate(t *testing.T) {
	a := newTestAudio(t)
	defer func() { expectNoError(t, a.Close()) }()

	expectNoError(t, a.update([]string{"set", "M_OSC_1", "0.5"}))
	expectNearlyEqual(t, a.params.oscMix()[0], 0.5)
	expectNoError(t, a.update([]string{"infer", `{"SU_A": [0.2, 0.3]}`}))
	_, _, s, _ := a.params.envelope(envAmp2)
	expectNearlyEqual(t, s, 0.3)

	expectNoError(t, a.update([]string{"note_on", "60"}))
	expectNoError(t, a.update([]string{"note_on", "62", "80"}))
	expectNoError(t, a.update([]string{"note_off", "60"}))
	expectNoError(t, a.update([]string{"stop"}))
	expectNoError(t, a.update([]string{"reverb", "on"}))
	expectEqual(t, len(a.eventCh), 5)

	if err := a.update([]string{"poly"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, but got: %v", err)
	}
	if err := a.update(nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, but got: %v", err)
	}
	if err := a.update([]string{"set", "NOPE", "1"}); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, but got: %v", err)
	}
	if err := a.update([]string{"set", "M_OSC_1"}); err == nil {
		t.Errorf("expected error for missing value")
	}
	if err := a.update([]string{"note_on", "x"}); err == nil {
		t.Errorf("expected error for invalid note")
	}
	if err := a.update([]string{"reverb", "maybe"}); err == nil {
		t.Errorf("expected error for invalid switch")
	}
}

func TestAudioJSON(t *testing.T) {
	a := newTestAudio(t)
	defer func() { expectNoError(t, a.Close()) }()
	expectNoError(t, a.ApplyJSON([]byte(`{"F0_MULT": 0.5, "REV_GAIN": 0}`)))
	expectNearlyEqual(t, a.params.freqRatio(), 4.5)

	b := newTestAudio(t)
	defer func() { expectNoError(t, b.Close()) }()
	expectNoError(t, b.ApplyJSON(a.ToJSON()))
	expectNearlyEqual(t, b.params.freqRatio(), 4.5)
	expectNearlyEqual(t, b.params.reverbParams().gain, 0.01)

	if err := a.ApplyJSON([]byte(`{"F0_MULT": "x"}`)); err == nil {
		t.Errorf("expected error for invalid value")
	}
}

func TestAudioRead(t *testing.T) {
	a := newTestAudio(t)
	defer func() { expectNoError(t, a.Close()) }()
	out := make([]byte, bufferSizeInBytes*2)

	n, err := a.Read(out)
	expectNoError(t, err)
	expectEqual(t, n, len(out))
	for _, b := range out {
		expectEqual(t, b, byte(0))
	}

	expectNoError(t, a.update([]string{"note_on", "69"}))
	_, err = a.Read(out)
	expectNoError(t, err)
	loud := false
	for _, b := range out {
		if b != 0 {
			loud = true
		}
	}
	expectEqual(t, loud, true)
	expectEqual(t, a.synth.ActiveVoices(), 1)
	expectEqual(t, len(a.GetFFT()), fftSize/2)

	ctx, cancel := context.WithCancel(context.Background())
	a.ctx = ctx
	cancel()
	if _, err := a.Read(out); err == nil {
		t.Errorf("expected EOF after cancel")
	}
}

func TestAddMidiEvent(t *testing.T) {
	a := newTestAudio(t)
	defer func() { expectNoError(t, a.Close()) }()

	a.AddMidiEvent([]byte{0x90, 60, 100})
	e := <-a.eventCh
	on, ok := e.event.(*noteOn)
	expectEqual(t, ok, true)
	expectEqual(t, on.note, 60)
	expectEqual(t, on.velocity, 100)

	a.AddMidiEvent([]byte{0x91, 60, 0})
	e = <-a.eventCh
	_, ok = e.event.(*noteOff)
	expectEqual(t, ok, true)

	a.AddMidiEvent([]byte{0x80, 60, 64})
	e = <-a.eventCh
	_, ok = e.event.(*noteOff)
	expectEqual(t, ok, true)

	a.AddMidiEvent([]byte{0xB0, 123, 0})
	e = <-a.eventCh
	_, ok = e.event.(*allNotesOff)
	expectEqual(t, ok, true)

	a.AddMidiEvent([]byte{0xF8})
	a.AddMidiEvent([]byte{0xB0, 1, 64})
	expectEqual(t, len(a.eventCh), 0)
}

func TestForwardMidi(t *testing.T) {
	a := newTestAudio(t)
	defer func() { expectNoError(t, a.Close()) }()

	ch := make(chan []byte, 2)
	ch <- []byte{0x90, 64, 90}
	ch <- []byte{0x80, 64, 0}
	close(ch)
	expectNoError(t, a.ForwardMidi(context.Background(), ch))
	expectEqual(t, len(a.eventCh), 2)

	// disabled port
	_, ok := <-ListenToMidiIn(context.Background(), -1)
	expectEqual(t, ok, false)
}

func TestWriteBuffer(t *testing.T) {
	buf := make([]byte, 3*bytesPerSample)
	writeBuffer([]float64{1, -2, 0.5}, buf, 1)
	sample := func(i int) int16 {
		return int16(uint16(buf[bytesPerSample*i+2]) | uint16(buf[bytesPerSample*i+3])<<8)
	}
	expectEqual(t, sample(0), int16(32767))
	expectEqual(t, sample(1), int16(-32767))
	expectEqual(t, sample(2), int16(16383))
	// left channel untouched
	expectEqual(t, buf[0], byte(0))
}

func TestBenchmark(t *testing.T) {
	polyphony := 8
	times := 100

	a, err := newAudio(nil, polyphony, DefaultBlockSize)
	expectNoError(t, err)
	defer func() { expectNoError(t, a.Close()) }()
	out := make([]byte, bufferSizeInBytes)
	expectNoError(t, a.update([]string{"set", "M_OSC_2", "0.5"}))
	_, err = a.Read(out)
	expectNoError(t, err)
	for n := 0; n < polyphony; n++ {
		a.addMidiEvent(&noteOn{note: 60 + n, velocity: 100})
	}
	start := now()
	for n := 0; n < times; n++ {
		_, err = a.Read(out)
		expectNoError(t, err)
	}
	end := now()
	averageProcessTime := (end - start) / float64(times) * 1000
	fmt.Printf("average process time: %.2fms\n", averageProcessTime)
}
