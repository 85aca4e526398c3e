package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jinjor/harmonic-synth/src/audio"
	"golang.org/x/sync/errgroup"
)

const (
	sampleRate = 48000
	channelNum = 2
	bitDepth   = 16
	blockSize  = 256
	velocity   = 100
	seed       = 1
)

var (
	outDir     = flag.String("out", ".", "output directory")
	notesFlag  = flag.String("notes", "60", "comma separated MIDI note numbers")
	duration   = flag.Float64("duration", 1.0, "note length in sec")
	release    = flag.Float64("release", 1.0, "time rendered after note off in sec")
	paramsFile = flag.String("params", "", "JSON file of normalized parameter values")
	reverb     = flag.Bool("reverb", false, "enable reverb")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)

	notes, err := parseNotes(*notesFlag)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	params, err := loadParams(*paramsFile)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("error: %v\n", err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, note := range notes {
		note := note
		g.Go(func() error {
			return renderNote(ctx, params, note, filepath.Join(*outDir, fmt.Sprintf("note_%03d.wav", note)))
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Printf("Successfully rendered %d notes.\n", len(notes))
}

func parseNotes(s string) ([]int, error) {
	var notes []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		note, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid note %q: %w", item, err)
		}
		if note < 0 || note > 127 {
			return nil, fmt.Errorf("note out of range: %d", note)
		}
		notes = append(notes, note)
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("no notes given")
	}
	return notes, nil
}

func loadParams(path string) (*audio.Params, error) {
	if path == "" {
		return audio.NewParams(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return audio.LoadParams(data)
}

func renderNote(ctx context.Context, params *audio.Params, note int, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	r, err := audio.NewOfflineRenderer(params, sampleRate, blockSize, channelNum, seed)
	if err != nil {
		return err
	}
	r.SetReverbEnabled(*reverb)
	out, err := r.RenderNote(note, velocity, *duration, *release)
	if err != nil {
		return err
	}
	if clips := r.Clips(); clips > 0 {
		log.Printf("[WARN] note %d: %d samples clipped\n", note, clips)
	}
	if err := writeWav(path, out); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Printf("rendered note %d to %s\n", note, path)
	return nil
}

func writeWav(path string, out [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, bitDepth, len(out), 1)
	if err := enc.Write(toIntBuffer(out)); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// toIntBuffer interleaves channels into 16-bit samples, clamped to full scale.
func toIntBuffer(out [][]float64) *goaudio.IntBuffer {
	const max = 32767
	numChannels := len(out)
	length := 0
	if numChannels > 0 {
		length = len(out[0])
	}
	data := make([]int, length*numChannels)
	for ch, samples := range out {
		for i, value := range samples {
			if value > 1 {
				value = 1
			} else if value < -1 {
				value = -1
			}
			data[i*numChannels+ch] = int(value * max)
		}
	}
	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}
