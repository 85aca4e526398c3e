package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/harmonic-synth/src/audio"
	"golang.org/x/sync/errgroup"
)

var (
	sockFileName = flag.String("sock", "/tmp/harmonic-synth.sock", "unix socket to accept commands on")
	numVoices    = flag.Int("voices", audio.DefaultVoices, "number of voices")
	midiPort     = flag.Int("midi", -1, "MIDI IN port index (negative to disable)")
	reverb       = flag.Bool("reverb", false, "enable reverb")
	blockSize    = flag.Int("block", audio.DefaultBlockSize, "processing block size in samples")
	paramsFile   = flag.String("params", "", "JSON file of normalized parameter values")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine, err := audio.NewAudio(*numVoices, *blockSize)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer engine.Close()
	if *paramsFile != "" {
		data, err := os.ReadFile(*paramsFile)
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
		if err := engine.ApplyJSON(data); err != nil {
			log.Fatalf("error: %v\n", err)
		}
		log.Printf("loaded params: %s\n", engine.ToJSON())
	}
	engine.SetReverbEnabled(*reverb)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err = withIPCConnection(ctx, *sockFileName, func(conn net.Conn) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return engine.Start(ctx)
		})
		g.Go(func() error {
			return engine.RunReverbWorker(ctx)
		})
		g.Go(func() error {
			return engine.ForwardMidi(ctx, audio.ListenToMidiIn(ctx, *midiPort))
		})
		g.Go(func() error {
			return receiveCommands(ctx, conn, engine.CommandCh)
		})
		g.Go(func() error {
			return sendReports(ctx, conn, engine)
		})
		return g.Wait()
	})
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closeing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFileName)
	}()
	log.Printf("start listening on %s...\n", sockFileName)
	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			log.Printf("failed to parse command %q: %v\n", string(line), err)
			line = []byte{}
			continue
		}
		commandCh <- command
		log.Printf("received: %s\n", string(line))
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func formatFFT(result []float64) string {
	var b strings.Builder
	b.WriteString("fft")
	for _, value := range result {
		b.WriteString(" ")
		b.WriteString(strconv.FormatFloat(value, 'f', 6, 64))
	}
	return b.String()
}

func sendReports(ctx context.Context, conn net.Conn, audio *audio.Audio) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	var lastClips, lastDropped int64
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			lines := []string{formatFFT(audio.GetFFT())}
			if clips := audio.Clips(); clips != lastClips {
				log.Printf("[WARN] %d samples clipped\n", clips-lastClips)
				lines = append(lines, "clip "+strconv.FormatInt(clips, 10))
				lastClips = clips
			}
			if dropped := audio.Dropped(); dropped != lastDropped {
				log.Printf("[WARN] %d notes dropped: no free voice\n", dropped-lastDropped)
				lastDropped = dropped
			}
			select {
			case <-ctx.Done():
				log.Println("sendReports() interrupted")
				break loop
			default:
				if _, err := conn.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
					return err
				}
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
