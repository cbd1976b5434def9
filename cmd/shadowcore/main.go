package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/lyraflex/shadowcore"
	"github.com/lyraflex/shadowcore/internal/config"
	"github.com/lyraflex/shadowcore/internal/export"
	"github.com/lyraflex/shadowcore/internal/mesh"
	"github.com/lyraflex/shadowcore/internal/midiout"
	"github.com/lyraflex/shadowcore/internal/record"
	"github.com/lyraflex/shadowcore/internal/session"
	"github.com/spf13/pflag"
	"github.com/sqweek/dialog"
	"golang.org/x/sync/errgroup"
)

const outputBuffer = 50 * time.Millisecond

var logger = log.New(os.Stdout, "", log.Ldate|log.Ltime)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "config file (default: user config dir)")
		sessionPath = pflag.StringP("session", "s", "", "session file, JSON or YAML")
		bpm         = pflag.Float64("bpm", 0, "tempo override")
		pattern     = pflag.StringP("pattern", "p", "", "pattern to start on")
		sample      = pflag.String("sample", "", "audio file for the deck (wav, mp3, ogg)")
		pick        = pflag.Bool("pick", false, "choose the deck sample with a file dialog")
		midiOut     = pflag.String("midi-out", "", "MIDI output port name prefix")
		peers       = pflag.StringSlice("peer", nil, "mesh peer address, repeatable")
		rec         = pflag.Bool("record", false, "record the output to a WAV file in the record dir")
		exportMIDI  = pflag.String("export-midi", "", "write the active pattern to a MIDI file and exit")
		render      = pflag.String("render", "", "render offline to a WAV file and exit")
		seconds     = pflag.Float64("seconds", 8, "length of an offline render")
		dump        = pflag.Bool("dump", false, "print the config and session and exit")
		sampleRate  = pflag.Int("sample-rate", 0, "output sample rate override")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	if *midiOut != "" {
		cfg.MIDIOut = *midiOut
	}
	cfg.Peers = append(cfg.Peers, *peers...)

	s, err := loadSession(*sessionPath, cfg)
	if err != nil {
		logger.Fatal(err)
	}
	if *bpm > 0 {
		s.BPM = *bpm
	}
	if *pattern != "" {
		if err := s.QueuePattern(*pattern); err != nil {
			logger.Fatal(err)
		}
		s.CommitQueuedPattern()
	}

	switch {
	case *dump:
		spew.Dump(cfg, s)
		return
	case *exportMIDI != "":
		if err := export.WriteFile(*exportMIDI, session.ActiveTracks(s), s.BPM); err != nil {
			logger.Fatal(err)
		}
		logger.Printf("wrote %s", *exportMIDI)
		return
	case *render != "":
		samples, err := shadowcore.RenderSession(s, cfg.SampleRate, *seconds, time.Now().UnixNano())
		if err != nil {
			logger.Fatal(err)
		}
		if err := os.WriteFile(*render, shadowcore.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2), 0o644); err != nil {
			logger.Fatal(err)
		}
		logger.Printf("rendered %.1fs to %s", *seconds, *render)
		return
	}

	samplePath := *sample
	if *pick {
		samplePath, err = chooseSample()
		if err != nil {
			logger.Fatal(err)
		}
	}
	if err := run(cfg, s, samplePath, *rec); err != nil {
		logger.Fatal(err)
	}
}

// loadSession reads path, or starts from the factory patterns at the
// configured tempo when path is empty.
func loadSession(path string, cfg config.Config) (*session.Session, error) {
	if path == "" {
		s := session.Default()
		s.BPM = cfg.BPM
		s.TimeSignature = cfg.StepsPerBar
		return s, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := session.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// chooseSample asks for a deck sample. A cancelled dialog means no sample.
func chooseSample() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := dialog.File().
		Title("Load deck sample").
		Filter("Audio files", "wav", "mp3", "ogg").
		SetStartDir(cwd).
		Load()
	if errors.Is(err, dialog.ErrCancelled) {
		return "", nil
	}
	return path, err
}

func run(cfg config.Config, s *session.Session, samplePath string, rec bool) error {
	var (
		opts     = []shadowcore.Option{shadowcore.WithLogger(logger), shadowcore.WithOutput(outputBuffer)}
		stOpts   []shadowcore.StudioOption
		closers  []func()
		recorder *record.Recorder
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	if cfg.MIDIOut != "" {
		port, closePort, err := openMIDIOut(cfg.MIDIOut)
		if err != nil {
			logger.Printf("midi out disabled: %v", err)
		} else {
			out := midiout.New(port, logger)
			opts = append(opts, shadowcore.WithNoteSink(out))
			stOpts = append(stOpts, shadowcore.WithParamSink(out))
			closers = append(closers, closePort, out.Close)
			logger.Printf("midi out: %s", port)
		}
	}
	if len(cfg.Peers) > 0 {
		b := mesh.New(cfg.Peers, logger)
		opts = append(opts, shadowcore.WithStepSink(b))
		closers = append(closers, func() { b.Close() })
	}
	if rec {
		path := record.FileName(cfg.RecordDir, time.Now())
		r, err := record.Create(path, cfg.SampleRate, logger)
		if err != nil {
			return err
		}
		recorder = r
		opts = append(opts, shadowcore.WithSampleTap(r.Tap))
		closers = append(closers, func() {
			if err := r.Close(); err != nil {
				logger.Print(err)
				return
			}
			logger.Printf("recorded %d frames to %s", r.Frames(), path)
		})
	}

	e, err := shadowcore.New(cfg.SampleRate, opts...)
	if err != nil {
		return err
	}
	// the engine goes first so the sinks see no further calls
	closers = append(closers, func() { e.Close() })
	e.SetMasterVolume(cfg.Volume)
	st := shadowcore.NewStudio(e, s, stOpts...)

	if samplePath != "" {
		if err := loadSample(e, samplePath); err != nil {
			logger.Printf("deck: %v", err)
		}
	}
	if err := st.Play(); err != nil {
		return err
	}
	logger.Printf("playing %s at %.0f bpm", st.Snapshot().ActivePatternID, st.BPM())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.Run(ctx, printEvent) })
	g.Go(func() error {
		<-ctx.Done()
		st.Stop()
		if recorder != nil && recorder.Dropped() > 0 {
			logger.Printf("recorder dropped %d blocks", recorder.Dropped())
		}
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadSample(e *shadowcore.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := e.LoadSample(f); err != nil {
		return err
	}
	e.SetDeckLoop(true)
	return e.DeckPlay()
}

func printEvent(ev shadowcore.Event) {
	switch ev.Kind {
	case shadowcore.EventStep:
		var b strings.Builder
		for _, on := range ev.Fired {
			if on {
				b.WriteByte('x')
			} else {
				b.WriteByte('.')
			}
		}
		fmt.Printf("%-10s %02d %s\n", ev.PatternID, ev.Step, b.String())
	case shadowcore.EventPatternChanged:
		fmt.Printf("pattern -> %s\n", ev.PatternID)
	case shadowcore.EventDeckEnded:
		fmt.Println("deck ended")
	case shadowcore.EventError:
		logger.Printf("engine: %v", ev.Err)
	}
}
