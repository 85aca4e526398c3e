package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestParseNotes(t *testing.T) {
	notes, err := parseNotes("60, 64,67,")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if len(notes) != 3 || notes[0] != 60 || notes[1] != 64 || notes[2] != 67 {
		t.Errorf("unexpected notes: %v", notes)
	}
	for _, s := range []string{"", "128", "-1", "c4"} {
		if _, err := parseNotes(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestToIntBuffer(t *testing.T) {
	buf := toIntBuffer([][]float64{{1, 0.5}, {-2, 0}})
	expected := []int{32767, -32767, 16383, 0}
	if len(buf.Data) != len(expected) {
		t.Fatalf("expected %d samples, but got: %d", len(expected), len(buf.Data))
	}
	for i := range expected {
		if buf.Data[i] != expected[i] {
			t.Errorf("sample %d: expected %v, but got: %v", i, expected[i], buf.Data[i])
		}
	}
	if buf.Format.NumChannels != 2 {
		t.Errorf("expected 2 channels, but got: %d", buf.Format.NumChannels)
	}
}

func TestWriteWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.wav")
	out := [][]float64{make([]float64, 480), make([]float64, 480)}
	out[0][1] = 0.5
	if err := writeWav(path, out); err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		t.Fatal("invalid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != sampleRate {
		t.Errorf("unexpected format: %+v", buf.Format)
	}
	if len(buf.Data) != 960 {
		t.Errorf("expected 960 samples, but got: %d", len(buf.Data))
	}
	if buf.Data[2] != 16383 {
		t.Errorf("expected 16383, but got: %d", buf.Data[2])
	}
}
