package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/hajimehoshi/oto"
)

const (
	sampleRate      = 48000
	channelNum      = 2
	bitDepthInBytes = 2
	samplesPerCycle = 1024
	fftSize         = 2048 // multiple of samplesPerCycle
	eventQueueSize  = 1024
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const secPerSample = 1.0 / sampleRate
const baseFreq = 440.0

// Defaults of the realtime engine.
const (
	DefaultVoices    = 8
	DefaultBlockSize = 256
)

// ErrUnknownCommand is returned by update for commands it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ----- Utility ----- //

func now() float64 {
	return float64(time.Now().UnixNano()) / 1000 / 1000 / 1000
}
func noteToFreq(note int) float64 {
	return baseFreq * math.Pow(2, float64(note-69)/12)
}
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
func clamp01(x float64) float64 {
	return clamp(x, 0, 1)
}
func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}

// ----- Audio ----- //

// Audio streams the synth to the sound device. Note events and parameter
// changes reach the render goroutine without locks: events through eventCh,
// parameters through Params.
type Audio struct {
	ctx        context.Context
	otoContext *oto.Context
	CommandCh  chan []string
	params     *Params
	synth      *Synth
	eventCh    chan *midiEvent
	events     [][]*midiEvent // length: samplesPerCycle
	out        [][]float64    // channelNum x samplesPerCycle
	lastRead   float64
	historyMu  sync.Mutex
	history    []float64 // length: fftSize
	pos        int64
	fftResult  []float64 // length: fftSize
}

var _ io.Reader = (*Audio)(nil)

// NewAudio opens the sound device and prepares numVoices voices. blockSize
// is the processing block of each voice and also the reverb partition size.
func NewAudio(numVoices int, blockSize int) (*Audio, error) {
	otoContext, err := oto.NewContext(sampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	audio, err := newAudio(otoContext, numVoices, blockSize)
	if err != nil {
		otoContext.Close()
		return nil, err
	}
	go processCommands(audio, audio.CommandCh)
	return audio, nil
}

func newAudio(otoContext *oto.Context, numVoices int, blockSize int) (*Audio, error) {
	if numVoices <= 0 {
		return nil, fmt.Errorf("invalid number of voices: %d", numVoices)
	}
	params := NewParams()
	synth := NewSynth(params, numVoices, time.Now().UnixNano())
	if err := synth.PrepareToPlay(sampleRate, blockSize, channelNum); err != nil {
		return nil, err
	}
	out := make([][]float64, channelNum)
	for ch := range out {
		out[ch] = make([]float64, samplesPerCycle)
	}
	return &Audio{
		ctx:        context.Background(),
		otoContext: otoContext,
		CommandCh:  make(chan []string, 256),
		params:     params,
		synth:      synth,
		eventCh:    make(chan *midiEvent, eventQueueSize),
		events:     make([][]*midiEvent, samplesPerCycle),
		out:        out,
		lastRead:   now(),
		history:    make([]float64, fftSize),
		fftResult:  make([]float64, fftSize),
	}, nil
}

// ApplyJSON ...
func (a *Audio) ApplyJSON(data []byte) error {
	return a.params.applyJSON(data)
}

// ToJSON ...
func (a *Audio) ToJSON() []byte {
	return a.params.toJSON()
}

func (a *Audio) Read(buf []byte) (int, error) {
	select {
	case <-a.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
	}
	timestamp := now()
	total := len(buf) / bytesPerSample
	for done := 0; done < total; {
		n := total - done
		if n > samplesPerCycle {
			n = samplesPerCycle
		}
		a.receiveEvents(n)
		out := a.out
		for ch := range out {
			out[ch] = out[ch][:n]
		}
		a.synth.Process(a.events[:n], out)
		chunk := buf[done*bytesPerSample : (done+n)*bytesPerSample]
		for ch := range out {
			writeBuffer(out[ch], chunk, ch)
		}
		a.record(out[0])
		for i := range a.events[:n] {
			a.events[i] = a.events[i][:0]
		}
		for ch := range out {
			out[ch] = out[ch][:samplesPerCycle]
		}
		done += n
	}
	a.lastRead = timestamp
	return total * bytesPerSample, nil
}

// receiveEvents places queued events at the sample offset where they arrived
// during the previous block.
func (a *Audio) receiveEvents(n int) {
	for {
		select {
		case e := <-a.eventCh:
			index := int((e.time - a.lastRead) / secPerSample)
			if index < 0 {
				index = 0
			}
			if index >= n {
				index = n - 1
			}
			a.events[index] = append(a.events[index], e)
		default:
			return
		}
	}
}

// record keeps the latest fftSize samples for GetFFT. The render side never
// waits for the lock.
func (a *Audio) record(samples []float64) {
	if !a.historyMu.TryLock() {
		return
	}
	for _, s := range samples {
		a.history[a.pos%fftSize] = s
		a.pos++
	}
	a.historyMu.Unlock()
}

func writeBuffer(out []float64, buf []byte, ch int) {
	sampleLength := len(buf) / bytesPerSample
	for i := 0; i < sampleLength; i++ {
		value := clamp(out[i], -1, 1)
		switch bitDepthInBytes {
		case 1:
			const max = 127
			b := int(value * max)
			buf[bytesPerSample*i+ch] = byte(b + 128)
		case 2:
			const max = 32767
			b := int16(value * max)
			buf[bytesPerSample*i+2*ch] = byte(b)
			buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
		}
	}
}

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			log.Printf("failed to apply command %v: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

func (a *Audio) update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	switch command[0] {
	case "set":
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command[1:])
		}
		value, err := strconv.ParseFloat(command[2], 64)
		if err != nil {
			return err
		}
		return a.params.SetNormalized(command[1], value)
	case "infer":
		if len(command) != 2 {
			return fmt.Errorf("infer takes one JSON argument, got %d", len(command)-1)
		}
		written, err := a.params.ApplyInferenceJSON([]byte(command[1]))
		if err != nil {
			return err
		}
		log.Printf("applied %d inferred parameters\n", written)
	case "note_on":
		if len(command) < 2 {
			return fmt.Errorf("note_on needs a note number")
		}
		note, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		velocity := int64(100)
		if len(command) > 2 {
			velocity, err = strconv.ParseInt(command[2], 10, 32)
			if err != nil {
				return err
			}
		}
		a.addMidiEvent(&noteOn{note: int(note), velocity: int(velocity)})
	case "note_off":
		if len(command) < 2 {
			return fmt.Errorf("note_off needs a note number")
		}
		note, err := strconv.ParseInt(command[1], 10, 32)
		if err != nil {
			return err
		}
		a.addMidiEvent(&noteOff{note: int(note)})
	case "stop":
		a.addMidiEvent(&allNotesOff{})
	case "reverb":
		if len(command) != 2 || (command[1] != "on" && command[1] != "off") {
			return fmt.Errorf("reverb takes on or off")
		}
		a.addMidiEvent(&reverbSwitch{enabled: command[1] == "on"})
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCommand, command[0])
	}
	return nil
}

// Close ...
func (a *Audio) Close() error {
	log.Println("Closing Audio...")
	close(a.CommandCh)
	if a.otoContext == nil {
		return nil
	}
	return a.otoContext.Close()
}

// Start ...
func (a *Audio) Start(ctx context.Context) error {
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	a.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// RunReverbWorker ...
func (a *Audio) RunReverbWorker(ctx context.Context) error {
	return a.synth.RunReverbWorker(ctx)
}

// SetReverbEnabled switches the reverb of every voice at the next block.
func (a *Audio) SetReverbEnabled(enabled bool) {
	a.addMidiEvent(&reverbSwitch{enabled: enabled})
}

// Clips ...
func (a *Audio) Clips() int64 {
	return a.synth.Clips()
}

// Dropped ...
func (a *Audio) Dropped() int64 {
	return a.synth.Dropped()
}

// GetFFT ...
func (a *Audio) GetFFT() []float64 {
	a.historyMu.Lock()
	// history: | 4 | 1 | 2 | 3 |
	// offset:      ^
	// result:  | 1 | 2 | 3 | 4 |
	offset := a.pos % fftSize
	copy(a.fftResult, a.history[offset:])
	copy(a.fftResult[fftSize-offset:], a.history[:offset])
	a.historyMu.Unlock()
	return Spectrum(a.fftResult)
}

// AddMidiEvent ...
func (a *Audio) AddMidiEvent(data []byte) {
	if len(data) < 3 {
		return
	}
	status := data[0] >> 4
	if status == 8 || status == 9 && data[2] == 0 {
		a.addMidiEvent(&noteOff{note: int(data[1])})
	} else if status == 9 && data[2] > 0 {
		a.addMidiEvent(&noteOn{note: int(data[1]), velocity: int(data[2])})
	} else if status == 0xB && (data[1] == 120 || data[1] == 123) {
		a.addMidiEvent(&allNotesOff{})
	}
}

func (a *Audio) addMidiEvent(event interface{}) {
	select {
	case a.eventCh <- &midiEvent{time: now(), event: event}:
	default:
		log.Println("[WARN] event queue is full")
	}
}
