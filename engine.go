// Package shadowcore is a real-time step sequencer and performance engine:
// procedural drum and synth voices, a sample deck with band-split stems and
// a shared effects chain, all rendered sample-accurately from one callback.
package shadowcore

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viterin/vek/vek32"

	intaudio "github.com/lyraflex/shadowcore/internal/audio"
	"github.com/lyraflex/shadowcore/internal/clock"
	"github.com/lyraflex/shadowcore/internal/deck"
	"github.com/lyraflex/shadowcore/internal/effects"
	"github.com/lyraflex/shadowcore/internal/notify"
	"github.com/lyraflex/shadowcore/internal/sequencer"
	"github.com/lyraflex/shadowcore/internal/session"
	"github.com/lyraflex/shadowcore/internal/voice"
)

// ErrAudioUnavailable reports that the output device could not be opened.
// Editing and export keep working without it.
var ErrAudioUnavailable = intaudio.ErrUnavailable

type EventKind int

const (
	// EventStep is sent once per tick with the effective step and the
	// per-track firing flags.
	EventStep EventKind = iota
	// EventPatternChanged is sent when a queued pattern became active.
	EventPatternChanged
	// EventDeckEnded is sent when the deck reached the end of a
	// non-looping sample.
	EventDeckEnded
	// EventError carries a failure that was absorbed by the render path.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventPatternChanged:
		return "pattern"
	case EventDeckEnded:
		return "deck-ended"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered through Watch.
type Event struct {
	Kind      EventKind
	Tick      int
	Step      int
	Fired     []bool
	PatternID string
	Err       error
}

// NoteSink mirrors instrument firings, for example to a MIDI port. It runs
// on its own goroutine and may block.
type NoteSink interface {
	Note(inst session.Instrument, volume float64)
}

// StepSink receives the step index and firing flags once per tick, for
// example to relay them to mesh peers. It runs on its own goroutine and may
// block.
type StepSink interface {
	Step(step int, fired []bool)
}

type Option func(*engineConfig)

type engineConfig struct {
	logger      *log.Logger
	sampleTap   func([]float32)
	notes       NoteSink
	steps       StepSink
	rng         *rand.Rand
	stepsPerBar int
	output      bool
	buffer      time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:      log.New(os.Stderr, "shadowcore: ", log.LstdFlags),
		stepsPerBar: session.DefaultTimeSignature,
	}
}

func WithLogger(l *log.Logger) Option {
	return func(cfg *engineConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSampleTap installs a callback invoked with each finished stereo
// buffer, after the limiter. The callback runs on the audio thread; keep
// work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *engineConfig) {
		cfg.sampleTap = tap
	}
}

func WithNoteSink(s NoteSink) Option {
	return func(cfg *engineConfig) {
		cfg.notes = s
	}
}

func WithStepSink(s StepSink) Option {
	return func(cfg *engineConfig) {
		cfg.steps = s
	}
}

// WithRandomSource fixes the source used for probability gating, voice
// noise and the reverb impulse. Renders with the same seed are identical.
func WithRandomSource(rng *rand.Rand) Option {
	return func(cfg *engineConfig) {
		cfg.rng = rng
	}
}

func WithStepsPerBar(n int) Option {
	return func(cfg *engineConfig) {
		if n > 0 {
			cfg.stepsPerBar = n
		}
	}
}

// WithOutput makes Play open the system audio device. Without it the
// engine only renders when Process is called by the owner.
func WithOutput(buffer time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.output = true
		cfg.buffer = buffer
	}
}

// graph is the render state. Only Process touches it; other goroutines
// reach it through commands.
type graph struct {
	clock  *clock.Clock
	seq    *sequencer.Sequencer
	bank   *voice.Bank
	deck   *deck.Deck
	master *effects.Master

	playing   bool
	suspended bool
	patternID string
	frames    int64

	// bumped whenever patternID changes
	patternSerial uint64

	deckBuf  []float32
	meterBuf []float32
}

// seconds is the time base of the deck's loop roll. It keeps running while
// the transport is stopped.
func (g *graph) seconds(sampleRate int) float64 {
	return float64(g.frames) / float64(sampleRate)
}

type command func(g *graph)

type livePattern struct {
	id     string
	serial uint64
}

type note struct {
	inst   session.Instrument
	volume float64
}

type stepNote struct {
	step  int
	fired []bool
}

// noteTrigger forwards firings to the note queue.
type noteTrigger struct{ q *notify.Queue[note] }

func (t noteTrigger) Trigger(_ int, tr *session.Track, volume float64) {
	t.q.Post(note{tr.Type, volume})
}

// Engine is the transport and render core. Control methods are safe for
// concurrent use and take effect at the start of the next rendered buffer.
type Engine struct {
	sampleRate int
	logger     *log.Logger
	sampleTap  func([]float32)
	output     bool
	buffer     time.Duration

	renderMu sync.Mutex
	g        *graph

	cmdMu   sync.Mutex
	pending []command
	spare   []command

	notes *notify.Queue[note]
	steps *notify.Queue[stepNote]

	playing     atomic.Bool
	step        atomic.Int64
	bpm         atomic.Uint64
	peak        atomic.Uint32
	voices      atomic.Int32
	deckPos     atomic.Uint64
	deckLoaded  atomic.Bool
	deckPlaying atomic.Bool
	stuttering  atomic.Bool
	live        atomic.Pointer[livePattern]

	audioMu  sync.Mutex
	audio    *intaudio.Player
	audioErr error

	eventCh   chan Event
	eventChMu sync.Mutex

	closeOnce sync.Once
}

func New(sampleRate int, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sampleRate must be positive, got %d", sampleRate)
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		sampleRate: sampleRate,
		logger:     cfg.logger,
		sampleTap:  cfg.sampleTap,
		output:     cfg.output,
		buffer:     cfg.buffer,
	}
	bank := voice.NewBank(sampleRate, cfg.rng)
	trigger := sequencer.NewMultiTrigger(bank)
	if cfg.notes != nil {
		sink := cfg.notes
		e.notes = notify.New(256, func(n note) { sink.Note(n.inst, n.volume) })
		trigger.Add(noteTrigger{e.notes})
	}
	if cfg.steps != nil {
		sink := cfg.steps
		e.steps = notify.New(64, func(s stepNote) { sink.Step(s.step, s.fired) })
	}
	e.g = &graph{
		clock: clock.New(sampleRate, session.DefaultBPM),
		seq: sequencer.NewWithOptions(trigger, sequencer.Options{
			StepsPerBar: cfg.stepsPerBar,
			Rand:        cfg.rng,
		}),
		bank:      bank,
		deck:      deck.New(sampleRate),
		master:    effects.NewMaster(sampleRate, cfg.rng),
		suspended: true,
	}
	e.g.master.SetTempo(session.DefaultBPM)
	e.bpm.Store(math.Float64bits(session.DefaultBPM))
	return e, nil
}

func (e *Engine) SampleRate() int { return e.sampleRate }

// post queues cmd for the render goroutine.
func (e *Engine) post(cmd command) {
	e.cmdMu.Lock()
	e.pending = append(e.pending, cmd)
	e.cmdMu.Unlock()
}

func (e *Engine) drain() {
	e.cmdMu.Lock()
	cmds := e.pending
	e.pending = e.spare[:0]
	e.cmdMu.Unlock()
	for i, cmd := range cmds {
		cmd(e.g)
		cmds[i] = nil
	}
	e.cmdMu.Lock()
	e.spare = cmds[:0]
	e.cmdMu.Unlock()
}

// Process renders interleaved stereo frames into dst. It is the audio
// callback; with WithOutput the device calls it, otherwise the owner does.
func (e *Engine) Process(dst []float32) {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			clear(dst)
			e.g.bank.Reset()
			e.sendEvent(Event{Kind: EventError, Err: fmt.Errorf("render: %v", r)})
		}
	}()

	e.drain()
	g := e.g
	if g.suspended {
		clear(dst)
		e.publish(g, dst)
		return
	}

	frames := len(dst) / 2
	for off := 0; off < frames; {
		n := frames - off
		if g.playing {
			for g.clock.Due() {
				e.tick(g)
			}
			if u := g.clock.FramesUntilTick(); u < n {
				n = u
			}
		}
		e.renderSegment(g, dst[2*off:2*(off+n)])
		if g.playing {
			g.clock.Advance(n)
		}
		g.frames += int64(n)
		off += n
	}
	if len(dst)%2 == 1 {
		dst[len(dst)-1] = 0
	}
	if g.deck.Ended() {
		e.sendEvent(Event{Kind: EventDeckEnded})
	}
	if e.sampleTap != nil {
		e.sampleTap(dst)
	}
	e.publish(g, dst)
}

func (e *Engine) tick(g *graph) {
	n := g.clock.Tick()
	r := g.seq.Step(n)
	if r.PatternChanged {
		g.patternID = r.PatternID
		g.patternSerial++
		e.sendEvent(Event{Kind: EventPatternChanged, Tick: n, Step: r.Step, PatternID: r.PatternID})
	}
	e.step.Store(int64(r.Step))
	fired := append([]bool(nil), r.Fired...)
	e.sendEvent(Event{Kind: EventStep, Tick: n, Step: r.Step, Fired: fired, PatternID: g.patternID})
	if e.steps != nil {
		e.steps.Post(stepNote{r.Step, fired})
	}
}

// renderSegment renders frames that contain no tick boundary.
func (e *Engine) renderSegment(g *graph, buf []float32) {
	g.bank.Render(buf)
	if cap(g.deckBuf) < len(buf) {
		g.deckBuf = make([]float32, len(buf))
	}
	d := g.deckBuf[:len(buf)]
	g.deck.Render(d)
	vek32.Add_Inplace(buf, d)
	g.master.ProcessBuffer(buf)
}

func (e *Engine) publish(g *graph, out []float32) {
	if len(out) > 0 {
		if cap(g.meterBuf) < len(out) {
			g.meterBuf = make([]float32, len(out))
		}
		m := vek32.Abs_Into(g.meterBuf[:len(out)], out)
		e.peak.Store(math.Float32bits(vek32.Max(m)))
	}
	e.voices.Store(int32(g.bank.Active()))
	e.deckPos.Store(math.Float64bits(g.deck.Position()))
	e.deckLoaded.Store(g.deck.Loaded())
	e.deckPlaying.Store(g.deck.Playing())
	e.stuttering.Store(g.seq.Engaged())
	if lp := e.live.Load(); lp == nil || lp.serial != g.patternSerial {
		e.live.Store(&livePattern{g.patternID, g.patternSerial})
	}
}

func (e *Engine) sendEvent(ev Event) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

// Watch returns a channel that receives engine events. The channel is
// buffered; events that do not fit are dropped so the render path never
// waits. Only the most recent Watch channel receives events.
func (e *Engine) Watch() <-chan Event {
	ch := make(chan Event, 64)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

// openOutput starts the device stream once. A failure is logged and
// reported once, then returned to every later caller without retrying.
func (e *Engine) openOutput() error {
	if !e.output {
		return nil
	}
	e.audioMu.Lock()
	defer e.audioMu.Unlock()
	if e.audio != nil || e.audioErr != nil {
		return e.audioErr
	}
	p, err := intaudio.NewPlayer(e.sampleRate, e, e.buffer)
	if err != nil {
		e.audioErr = fmt.Errorf("open output: %w", err)
		e.logger.Printf("%v", e.audioErr)
		e.sendEvent(Event{Kind: EventError, Err: e.audioErr})
		return e.audioErr
	}
	e.audio = p
	p.Play()
	return nil
}

// Play starts or resumes the transport. It is a no-op while playing.
func (e *Engine) Play() error {
	if err := e.openOutput(); err != nil {
		return err
	}
	e.playing.Store(true)
	e.post(func(g *graph) {
		g.playing = true
		g.suspended = false
	})
	return nil
}

// Pause suspends rendering and keeps every position: the step counter,
// sounding voices, effect tails and the deck freeze until Play.
func (e *Engine) Pause() {
	e.playing.Store(false)
	e.post(func(g *graph) {
		g.playing = false
		g.suspended = true
	})
}

// Stop silences the graph and resets sequencing: the next Play starts at
// step 0 with no stutter, no sounding voices and the deck rewound. A queued
// pattern stays queued.
func (e *Engine) Stop() {
	e.playing.Store(false)
	e.step.Store(0)
	e.post(func(g *graph) {
		g.playing = false
		g.suspended = true
		g.clock.Reset()
		g.seq.Reset()
		g.bank.Reset()
		g.deck.Stop()
		g.master.Reset()
	})
}

// Close stops the engine, releases the device and waits for the sinks to
// drain. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.Stop()
		e.audioMu.Lock()
		if e.audio != nil {
			err = e.audio.Close()
			e.audio = nil
		}
		e.audioMu.Unlock()
		if e.notes != nil {
			e.notes.Close()
		}
		if e.steps != nil {
			e.steps.Close()
		}
	})
	return err
}

func (e *Engine) Playing() bool { return e.playing.Load() }

// Step returns the effective step of the most recent tick.
func (e *Engine) Step() int { return int(e.step.Load()) }

func (e *Engine) BPM() float64 { return math.Float64frombits(e.bpm.Load()) }

// Peak returns the absolute peak of the last rendered buffer.
func (e *Engine) Peak() float32 { return math.Float32frombits(e.peak.Load()) }

// Voices returns the number of voices sounding after the last buffer.
func (e *Engine) Voices() int { return int(e.voices.Load()) }

// DroppedNotifications counts sink notifications lost to full queues.
func (e *Engine) DroppedNotifications() uint64 {
	var n uint64
	if e.notes != nil {
		n += e.notes.Dropped()
	}
	if e.steps != nil {
		n += e.steps.Dropped()
	}
	return n
}

// SetBPM changes the tempo with a short ramp; the delay time follows.
// Non-positive values are ignored.
func (e *Engine) SetBPM(bpm float64) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return
	}
	e.bpm.Store(math.Float64bits(bpm))
	e.post(func(g *graph) {
		g.clock.SetBPM(bpm)
		g.master.SetTempo(bpm)
	})
}

func (e *Engine) SetStepsPerBar(n int) {
	e.post(func(g *graph) { g.seq.SetStepsPerBar(n) })
}

// LoadPattern makes tracks the live pattern immediately and drops any
// queued changeover. The engine keeps its own copy.
func (e *Engine) LoadPattern(id string, tracks []session.Track) {
	tracks = session.CloneTracks(tracks)
	e.post(func(g *graph) {
		g.patternID = id
		g.patternSerial++
		g.seq.ClearQueue()
		g.seq.SetTracks(tracks)
	})
}

// LivePattern returns the pattern the engine played as of the last rendered
// buffer, with a serial that grows on every changeover or load. Pattern
// changes show up here even when their event was dropped.
func (e *Engine) LivePattern() (id string, serial uint64) {
	lp := e.live.Load()
	if lp == nil {
		return "", 0
	}
	return lp.id, lp.serial
}

// SetTracks refreshes the track list of pattern id, whether it is live or
// queued. Edits for any other pattern are ignored.
func (e *Engine) SetTracks(id string, tracks []session.Track) {
	tracks = session.CloneTracks(tracks)
	e.post(func(g *graph) {
		switch queued, ok := g.seq.QueuedID(); {
		case id == g.patternID:
			g.seq.SetTracks(tracks)
		case ok && id == queued:
			g.seq.Queue(id, tracks)
		}
	})
}

// QueuePattern schedules tracks to take over at the next bar start.
func (e *Engine) QueuePattern(id string, tracks []session.Track) {
	tracks = session.CloneTracks(tracks)
	e.post(func(g *graph) { g.seq.Queue(id, tracks) })
}

func (e *Engine) ClearQueue() {
	e.post(func(g *graph) { g.seq.ClearQueue() })
}

// EngageStutter starts a loop roll of interval sixteenths on the sequencer
// and, when a sample is playing, on the deck.
func (e *Engine) EngageStutter(interval float64) {
	e.post(func(g *graph) {
		g.seq.Engage(interval)
		g.deck.EngageRoll(interval, g.clock.BPM(), g.seconds(e.sampleRate))
	})
}

// ReleaseStutter ends the loop roll. The deck slips to where it would have
// been had the roll never happened.
func (e *Engine) ReleaseStutter() {
	e.post(func(g *graph) {
		g.seq.Release()
		g.deck.ReleaseRoll(g.seconds(e.sampleRate))
	})
}

// SetMasterFilter sets the tilt filter in [-1, 1]: negative closes the
// lowpass, positive raises the highpass.
func (e *Engine) SetMasterFilter(v float64) {
	e.post(func(g *graph) { g.master.SetMasterFilter(v) })
}

// SetXY applies the performance pad: x drives the tilt filter, y the
// resonance and, above the middle, the bit crusher.
func (e *Engine) SetXY(x, y float64) {
	e.post(func(g *graph) { g.master.SetXY(x, y) })
}

func (e *Engine) SetCrush(amount float64) {
	e.post(func(g *graph) { g.master.SetCrush(amount) })
}

func (e *Engine) SetDelaySend(v float64) {
	e.post(func(g *graph) { g.master.SetDelaySend(v) })
}

func (e *Engine) SetReverbSend(v float64) {
	e.post(func(g *graph) { g.master.SetReverbSend(v) })
}

func (e *Engine) SetDelayFreeze(on bool) {
	e.post(func(g *graph) { g.master.SetDelayFreeze(on) })
}

// SetMasterVolume sets the master gain in [0, 1]. The default is 0.8.
func (e *Engine) SetMasterVolume(v float64) {
	e.post(func(g *graph) { g.master.SetVolume(v) })
}

// LoadSample decodes r into the deck. On failure the deck is left empty and
// the error wraps deck.ErrDecode.
func (e *Engine) LoadSample(r io.Reader) error {
	buf, err := deck.Decode(r, e.sampleRate)
	if err != nil {
		e.post(func(g *graph) { g.deck.Unload() })
		e.deckLoaded.Store(false)
		return err
	}
	e.post(func(g *graph) { g.deck.Load(buf) })
	e.deckLoaded.Store(true)
	return nil
}

func (e *Engine) UnloadSample() {
	e.deckLoaded.Store(false)
	e.post(func(g *graph) { g.deck.Unload() })
}

// DeckPlay starts the deck. Starting the deck also resumes a suspended
// graph, so the deck can run with the transport stopped.
func (e *Engine) DeckPlay() error {
	if err := e.openOutput(); err != nil {
		return err
	}
	e.post(func(g *graph) {
		if g.deck.Loaded() {
			g.suspended = false
			g.deck.Play()
		}
	})
	return nil
}

func (e *Engine) DeckPause() {
	e.post(func(g *graph) { g.deck.Pause() })
}

func (e *Engine) DeckStop() {
	e.post(func(g *graph) { g.deck.Stop() })
}

// DeckToggle pauses a playing deck and starts a paused one.
func (e *Engine) DeckToggle() error {
	if err := e.openOutput(); err != nil {
		return err
	}
	e.post(func(g *graph) {
		if !g.deck.Playing() && g.deck.Loaded() {
			g.suspended = false
		}
		g.deck.Toggle()
	})
	return nil
}

func (e *Engine) DeckSeek(seconds float64) {
	e.post(func(g *graph) { g.deck.Seek(seconds) })
}

func (e *Engine) SetDeckRate(rate float64) {
	e.post(func(g *graph) { g.deck.SetRate(rate) })
}

func (e *Engine) SetDeckDetune(cents float64) {
	e.post(func(g *graph) { g.deck.SetDetune(cents) })
}

func (e *Engine) SetDeckVolume(v float64) {
	e.post(func(g *graph) { g.deck.SetVolume(v) })
}

func (e *Engine) SetDeckLoop(on bool) {
	e.post(func(g *graph) { g.deck.SetLoop(on) })
}

func (e *Engine) SetStemLevel(s deck.Stem, level float64) {
	e.post(func(g *graph) { g.deck.SetStem(s, level) })
}

func (e *Engine) MuteStem(s deck.Stem, muted bool) {
	e.post(func(g *graph) { g.deck.MuteStem(s, muted) })
}

func (e *Engine) SetDeckEQ(band deck.EQBand, db float64) {
	e.post(func(g *graph) { g.deck.SetEQ(band, db) })
}

// SetDeckVibe sets the deck's one-knob filter in [-1, 1].
func (e *Engine) SetDeckVibe(v float64) {
	e.post(func(g *graph) { g.deck.SetVibe(v) })
}

func (e *Engine) SetTapeStop(on bool) {
	e.post(func(g *graph) { g.deck.SetTapeStop(on) })
}

// DeckPosition returns the deck position in seconds as of the last buffer.
func (e *Engine) DeckPosition() float64 { return math.Float64frombits(e.deckPos.Load()) }

func (e *Engine) DeckLoaded() bool  { return e.deckLoaded.Load() }
func (e *Engine) DeckPlaying() bool { return e.deckPlaying.Load() }

// Stuttering reports whether a loop roll was engaged after the last buffer.
func (e *Engine) Stuttering() bool { return e.stuttering.Load() }
