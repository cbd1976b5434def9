package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/lyraflex/shadowcore"
	"github.com/lyraflex/shadowcore/internal/config"
	"github.com/lyraflex/shadowcore/internal/deck"
	"github.com/lyraflex/shadowcore/internal/session"
	"github.com/spf13/pflag"
)

const (
	windowW    = 1180
	windowH    = 760
	minWindowW = 1040
	minWindowH = 700

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	outputBuffer    = 40 * time.Millisecond
	stutterInterval = 4
	nameW           = 190
)

var (
	sessionExts = []string{".json", ".yaml", ".yml"}
	sampleExts  = []string{".wav", ".mp3", ".ogg"}

	// velocity cycle for right clicks on a step
	velocities = []float64{0.8, 1, 0.4}
)

type navEntry struct {
	name  string
	path  string
	isDir bool
}

type dragTarget int

const (
	dragNone dragTarget = iota
	dragVolume
	dragFilter
	dragStem
)

type game struct {
	studio   *shadowcore.Studio
	engine   *shadowcore.Engine
	events   <-chan shadowcore.Event
	analyzer *analyzer
	text     textPainter
	scopeImg *ebiten.Image
	wavePeak float64

	snap   *session.Session
	tracks []session.Track

	volume   float64
	filter   float64
	stems    [deck.NumStems]float64
	drag     dragTarget
	dragStem deck.Stem

	stuttering bool

	status    string
	statusErr bool

	cwd        string
	nav        []navEntry
	navScroll  int
	samplePath string

	viewW int
	viewH int
}

func newGame(cfg config.Config, s *session.Session, cwd string) (*game, error) {
	a := newAnalyzer(cfg.SampleRate)
	e, err := shadowcore.New(cfg.SampleRate,
		shadowcore.WithSampleTap(a.Tap),
		shadowcore.WithOutput(outputBuffer),
	)
	if err != nil {
		return nil, err
	}
	e.SetMasterVolume(cfg.Volume)
	g := &game{
		studio:   shadowcore.NewStudio(e, s),
		engine:   e,
		events:   e.Watch(),
		analyzer: a,
		volume:   cfg.Volume,
		status:   "Ready",
		cwd:      cwd,
		viewW:    windowW,
		viewH:    windowH,
	}
	for i := range g.stems {
		g.stems[i] = 1
	}
	if err := g.refreshNav(); err != nil {
		g.setError(err.Error())
	}
	g.refresh()
	return g, nil
}

func (g *game) Update() error {
	g.pollEvents()
	g.handleKeys()
	g.handleMouse()
	g.refresh()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	drawSunkenPanel(screen, l.nav, sunkenBgColor)
	drawPanel(screen, l.stems)
	drawSunkenPanel(screen, l.grid, sunkenBgColor)
	drawSunkenPanel(screen, l.scope, color.Black)

	g.text.button(screen, l.play, g.playLabel(), g.engine.Playing())
	g.text.button(screen, l.stop, "Stop", false)
	g.text.button(screen, l.pattern, g.patternLabel(), g.snap.NextPatternID != "")
	g.text.button(screen, l.stutter, "Stutter", g.stuttering)
	filterSlider(l.filter).draw(screen, &g.text, fmt.Sprintf("Flt %+.1f", g.filter), (g.filter+1)/2)
	volumeSlider(l.volume).draw(screen, &g.text, fmt.Sprintf("Vol %d%%", int(g.volume*100+0.5)), g.volume)
	drawSunkenPanel(screen, l.status, sunkenBgColor)

	g.drawNavigator(screen, l.nav)
	g.drawStems(screen, l.stems)
	g.drawGrid(screen, l.grid)
	g.drawScope(screen, l.scope)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

func (g *game) Close() { g.engine.Close() }

// refresh takes a fresh copy of the session for drawing.
func (g *game) refresh() {
	g.snap = g.studio.Snapshot()
	g.tracks = session.ActiveTracks(g.snap)
}

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			g.studio.Handle(ev)
			switch ev.Kind {
			case shadowcore.EventPatternChanged:
				g.setStatus("Pattern " + ev.PatternID)
			case shadowcore.EventDeckEnded:
				g.setStatus("Deck ended")
			case shadowcore.EventError:
				g.setError(ev.Err.Error())
			}
		default:
			return
		}
	}
}

func (g *game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.togglePlay()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.nudgeBPM(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.nudgeBPM(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if err := g.studio.RandomizeAll(); err != nil {
			g.setError(err.Error())
			return
		}
		g.setStatus("Randomized " + g.snap.ActivePatternID)
	case inpututil.IsKeyJustPressed(ebiten.KeyS) && ebiten.IsKeyPressed(ebiten.KeyControl):
		g.saveSession()
	case inpututil.IsKeyJustPressed(ebiten.KeyE):
		g.exportMIDI()
	case inpututil.IsKeyJustPressed(ebiten.KeyD):
		if err := g.engine.DeckToggle(); err != nil {
			g.setError(err.Error())
		}
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.togglePlay()
		case pointInRect(mx, my, l.stop):
			g.studio.Stop()
			g.setStatus("Stopped")
		case pointInRect(mx, my, l.pattern):
			g.queueNextPattern()
		case pointInRect(mx, my, l.stutter):
			g.engine.EngageStutter(stutterInterval)
			g.stuttering = true
		case pointInRect(mx, my, l.filter):
			g.drag = dragFilter
		case pointInRect(mx, my, l.volume):
			g.drag = dragVolume
		case pointInRect(mx, my, l.stems):
			if s, ok := g.stemAt(mx, l.stems); ok {
				g.drag, g.dragStem = dragStem, s
			}
		case pointInRect(mx, my, l.grid):
			g.clickGrid(mx, my, l.grid, false)
		case pointInRect(mx, my, l.nav):
			g.clickNavigator(my, l.nav)
		}
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) && pointInRect(mx, my, l.grid) {
		g.clickGrid(mx, my, l.grid, true)
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.drag = dragNone
		if g.stuttering {
			g.engine.ReleaseStutter()
			g.stuttering = false
		}
	}
	switch g.drag {
	case dragFilter:
		g.filter = filterSlider(l.filter).fraction(mx)*2 - 1
		g.engine.SetMasterFilter(g.filter)
	case dragVolume:
		g.volume = volumeSlider(l.volume).fraction(mx)
		g.engine.SetMasterVolume(g.volume)
	case dragStem:
		g.dragStemLevel(my, l.stems)
	}

	if _, wy := ebiten.Wheel(); wy != 0 && pointInRect(mx, my, l.nav) {
		g.navScroll = max(0, g.navScroll-int(wy*2))
	}
}

type uiLayout struct {
	nav, stems, grid, scope image.Rectangle
	play, stop, pattern     image.Rectangle
	stutter, filter, volume image.Rectangle
	status                  image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w, h := max(g.viewW, minWindowW), max(g.viewH, minWindowH)
	const (
		pad     = 20
		rowH    = 44
		statusH = 40
		navW    = 300
		stemsH  = 170
	)
	statusTop := h - pad - statusH
	controlsTop := statusTop - 8 - rowH
	contentBottom := controlsTop - 12

	stemsTop := contentBottom - stemsH
	nav := image.Rect(pad, pad, pad+navW, stemsTop-8)
	stems := image.Rect(pad, stemsTop, pad+navW, contentBottom)

	rightX := nav.Max.X + 12
	rightW := max(w-rightX-pad, 400)
	scopeH := min(max((contentBottom-pad)*30/100, 120), 240)
	grid := image.Rect(rightX, pad, rightX+rightW, contentBottom-scopeH-12)
	scope := image.Rect(rightX, grid.Max.Y+12, rightX+rightW, contentBottom)

	row := func(x, width int) image.Rectangle {
		return image.Rect(x, controlsTop, x+width, controlsTop+rowH)
	}
	play := row(pad, 110)
	stop := row(play.Max.X+12, 100)
	pattern := row(stop.Max.X+12, 170)
	stutter := row(pattern.Max.X+12, 140)
	filter := row(stutter.Max.X+12, 250)
	volume := row(filter.Max.X+12, min(260, w-pad-filter.Max.X-12))

	return uiLayout{
		nav: nav, stems: stems, grid: grid, scope: scope,
		play: play, stop: stop, pattern: pattern,
		stutter: stutter, filter: filter, volume: volume,
		status: image.Rect(pad, statusTop, w-pad, statusTop+statusH),
	}
}

func filterSlider(r image.Rectangle) slider { return slider{rect: r, labelW: 130, centred: true} }
func volumeSlider(r image.Rectangle) slider { return slider{rect: r, labelW: 130} }

// gridGeometry splits the grid panel into a name column and step cells.
func (g *game) gridGeometry(r image.Rectangle) (rowH, cellW, steps int) {
	steps = g.snap.TimeSignature
	if steps <= 0 {
		steps = session.DefaultTimeSignature
	}
	rows := max(1, len(g.tracks))
	rowH = min(lineH+8, (r.Dy()-16)/rows)
	cellW = (r.Dx() - nameW - 16) / steps
	return rowH, cellW, steps
}

func (g *game) drawGrid(dst *ebiten.Image, r image.Rectangle) {
	rowH, cellW, steps := g.gridGeometry(r)
	if rowH <= 2 || cellW <= 2 {
		return
	}
	x0, y0 := r.Min.X+8, r.Min.Y+8
	for i, t := range g.tracks {
		y := y0 + i*rowH
		name := image.Rect(x0, y, x0+nameW-8, y+rowH-2)
		switch {
		case t.Solo:
			fillRect(dst, name, soloColor)
		case t.Mute:
			fillRect(dst, name, mutedColor)
		}
		g.text.draw(dst, shortenEnd(t.Name, (nameW-16)/charW), name.Min.X+4, y+(rowH-lineH)/2)
		for s := 0; s < steps; s++ {
			x := x0 + nameW + s*cellW
			cell := image.Rect(x+1, y+1, x+cellW-1, y+rowH-2)
			st := t.StepAt(s)
			c := stepOffColor
			if st.Active {
				c = stepOnColor
				if st.Accent {
					c = stepAccentColor
				}
				c.A = uint8(90 + 165*clamp(st.Velocity, 0, 1))
			}
			fillRect(dst, cell, c)
			if s%4 == 0 {
				ebitenutil.DrawRect(dst, float64(x), float64(y), 1, float64(rowH-1), borderColor)
			}
		}
	}
	if g.engine.Playing() {
		x := x0 + nameW + g.engine.Step()%steps*cellW
		ebitenutil.DrawRect(dst, float64(x), float64(y0), float64(cellW), float64(len(g.tracks)*rowH), playheadColor)
	}
}

// clickGrid toggles a step, or with alt cycles its velocity. Clicks on the
// name column mute the track, or with alt solo it.
func (g *game) clickGrid(mx, my int, r image.Rectangle, alt bool) {
	rowH, cellW, steps := g.gridGeometry(r)
	if rowH <= 0 || cellW <= 0 {
		return
	}
	x0, y0 := r.Min.X+8, r.Min.Y+8
	track := (my - y0) / rowH
	if my < y0 || track >= len(g.tracks) {
		return
	}
	t := g.tracks[track]
	var err error
	if mx < x0+nameW {
		if alt {
			solo := !t.Solo
			err = g.studio.UpdateTrack(track, session.TrackUpdate{Solo: &solo})
		} else {
			mute := !t.Mute
			err = g.studio.UpdateTrack(track, session.TrackUpdate{Mute: &mute})
		}
	} else {
		step := (mx - x0 - nameW) / cellW
		if step >= steps {
			return
		}
		if alt {
			v := t.StepAt(step).Velocity
			next := velocities[(slices.Index(velocities, v)+1)%len(velocities)]
			err = g.studio.SetStepValue(track, step, session.Velocity, next)
			g.setStatus(fmt.Sprintf("%s step %d velocity %.1f", t.Name, step+1, next))
		} else {
			err = g.studio.ToggleStep(track, step)
		}
	}
	if err != nil {
		g.setError(err.Error())
	}
}

func (g *game) stemAt(mx int, r image.Rectangle) (deck.Stem, bool) {
	bandW := (r.Dx() - 16) / int(deck.NumStems)
	if bandW <= 0 {
		return 0, false
	}
	i := (mx - r.Min.X - 8) / bandW
	if i < 0 || i >= int(deck.NumStems) {
		return 0, false
	}
	return deck.Stem(i), true
}

func (g *game) drawStems(dst *ebiten.Image, r image.Rectangle) {
	bandW := (r.Dx() - 16) / int(deck.NumStems)
	top, bottom := r.Min.Y+8, r.Max.Y-8-lineH
	h := bottom - top
	for s := deck.Stem(0); s < deck.NumStems; s++ {
		bx := r.Min.X + 8 + int(s)*bandW
		bw := bandW - 4
		ebitenutil.DrawRect(dst, float64(bx+bw/2-2), float64(top), 4, float64(h), bevelDarker)
		ky := bottom - int(g.stems[s]*float64(h)) - 4
		knob := image.Rect(bx+2, ky, bx+bw-2, ky+8)
		fillRect(dst, knob, panelColor)
		drawBorder(dst, knob)
		g.text.draw(dst, strings.ToUpper(s.String()[:3]), bx+(bw-3*charW)/2, bottom+2)
	}
}

func (g *game) dragStemLevel(my int, r image.Rectangle) {
	top, bottom := r.Min.Y+8, r.Max.Y-8-lineH
	if bottom <= top {
		return
	}
	level := 1 - clamp(float64(my-top)/float64(bottom-top), 0, 1)
	g.stems[g.dragStem] = level
	g.engine.SetStemLevel(g.dragStem, level)
	g.setStatus(fmt.Sprintf("Stem %s: %d%%", g.dragStem, int(level*100+0.5)))
}

func (g *game) drawScope(dst *ebiten.Image, r image.Rectangle) {
	inner := r.Inset(8)
	w, h := inner.Dx(), inner.Dy()
	if w <= 0 || h <= 0 {
		return
	}
	if g.scopeImg == nil || g.scopeImg.Bounds().Size() != inner.Size() {
		g.scopeImg = ebiten.NewImage(w, h)
	}
	g.scopeImg.Fill(color.RGBA{14, 16, 22, 255})
	snap := g.analyzer.Snapshot(fftSize)

	waveH := h * 45 / 100
	g.drawWaveform(g.scopeImg, snap, w, waveH)
	ebitenutil.DrawRect(g.scopeImg, 0, float64(waveH), float64(w), 1, color.RGBA{50, 54, 68, 180})
	g.drawSpectrumBars(g.scopeImg, snap, w, h-waveH-1, waveH+1)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	dst.DrawImage(g.scopeImg, op)
}

func (g *game) drawWaveform(dst *ebiten.Image, samples []float32, width, height int) {
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := height / 2
	ebitenutil.DrawRect(dst, 0, float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	// auto gain: fast attack, slow release
	target := 0.01
	for _, s := range samples {
		target = max(target, float64(max(s, -s)))
	}
	if target > g.wavePeak {
		g.wavePeak = g.wavePeak*0.3 + target*0.7
	} else {
		g.wavePeak = max(0.01, g.wavePeak*0.995+target*0.005)
	}
	gain := float64(midY-2) / g.wavePeak

	trigger := findZeroCrossing(samples, len(samples)/4)
	visible := max(2, len(samples)-trigger)
	waveColor := color.RGBA{80, 200, 255, 220}
	prevY := midY - int(float64(samples[trigger])*gain)
	for px := 1; px < width; px++ {
		si := min(trigger+px*visible/width, len(samples)-1)
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(dst, float64(px-1), float64(prevY), float64(px), float64(y), waveColor)
		prevY = y
	}
}

func (g *game) drawSpectrumBars(dst *ebiten.Image, samples []float32, width, height, yOffset int) {
	if width < 4 || height < 4 {
		return
	}
	bins := g.analyzer.Spectrum(samples, min(max(width/3, 16), 256))
	barW := float64(width) / float64(max(1, len(bins)))
	for i, v := range bins {
		barH := max(1, v*float64(height-4))
		x := float64(i) * barW
		y := float64(yOffset+height-2) - barH
		r, gr, b := spectrumColor(v)
		ebitenutil.DrawRect(dst, x+1, y, barW-1, barH, color.RGBA{r, gr, b, 220})
	}
}

// spectrumColor runs blue through green to orange as v rises.
func spectrumColor(v float64) (uint8, uint8, uint8) {
	if v < 0.33 {
		t := v / 0.33
		return uint8(30 + 20*t), uint8(80 + 120*t), uint8(200 + 55*t)
	}
	if v < 0.66 {
		t := (v - 0.33) / 0.33
		return uint8(50 + 140*t), uint8(200 + 30*t), uint8(255 - 100*t)
	}
	t := (v - 0.66) / 0.34
	return uint8(190 + 65*t), uint8(230 - 100*t), uint8(155 - 100*t)
}

func (g *game) drawStatus(dst *ebiten.Image, r image.Rectangle) {
	msg := g.status
	if g.statusErr {
		msg = "ERROR - " + msg
	}
	info := fmt.Sprintf("%.0f BPM  %s", g.snap.BPM, g.snap.ActivePatternID)
	if g.engine.DeckLoaded() {
		info += fmt.Sprintf("  deck %.1fs", g.engine.DeckPosition())
	}
	maxChars := max(8, (r.Dx()-16)/charW)
	g.text.draw(dst, shortenEnd(msg+"  |  "+info, maxChars), r.Min.X+8, r.Min.Y+6)
}

func (g *game) drawNavigator(dst *ebiten.Image, r image.Rectangle) {
	maxChars := max(8, (r.Dx()-16)/charW)
	g.text.draw(dst, "Files", r.Min.X+8, r.Min.Y+8)
	g.text.draw(dst, shortenMiddle(g.cwd, maxChars), r.Min.X+8, r.Min.Y+8+lineH)

	top := r.Min.Y + 12 + lineH*2
	rows := max(1, (r.Dy()-lineH*2-18)/lineH)
	g.navScroll = min(g.navScroll, max(0, len(g.nav)-1))
	for i := 0; i < rows; i++ {
		idx := g.navScroll + i
		if idx >= len(g.nav) {
			break
		}
		e := g.nav[idx]
		y := top + i*lineH
		if !e.isDir && filepath.Clean(e.path) == filepath.Clean(g.samplePath) {
			fillRect(dst, image.Rect(r.Min.X+6, y-2, r.Max.X-6, y+lineH), accentColor)
		}
		name := e.name
		if e.isDir && name != ".." {
			name += "/"
		}
		g.text.draw(dst, shortenEnd(name, maxChars-1), r.Min.X+10, y)
	}
}

func (g *game) clickNavigator(my int, r image.Rectangle) {
	row := (my - r.Min.Y - 12 - lineH*2) / lineH
	idx := g.navScroll + row
	if row < 0 || idx >= len(g.nav) {
		return
	}
	e := g.nav[idx]
	if e.isDir {
		g.cwd = e.path
		g.navScroll = 0
		if err := g.refreshNav(); err != nil {
			g.setError(err.Error())
		}
		return
	}
	var err error
	if hasExt(e.path, sampleExts) {
		err = g.loadSample(e.path)
	} else {
		err = g.loadSession(e.path)
	}
	if err != nil {
		g.setError(err.Error())
	}
}

func hasExt(path string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

func (g *game) refreshNav() error {
	items, err := os.ReadDir(g.cwd)
	if err != nil {
		return err
	}
	var dirs, files []navEntry
	if parent := filepath.Dir(g.cwd); parent != g.cwd {
		dirs = append(dirs, navEntry{name: "..", path: parent, isDir: true})
	}
	for _, it := range items {
		name := it.Name()
		full := filepath.Join(g.cwd, name)
		switch {
		case it.IsDir():
			dirs = append(dirs, navEntry{name: name, path: full, isDir: true})
		case hasExt(name, sessionExts), hasExt(name, sampleExts):
			files = append(files, navEntry{name: name, path: full})
		}
	}
	byName := func(a []navEntry) func(i, j int) bool {
		return func(i, j int) bool {
			if a[i].name == ".." {
				return true
			}
			if a[j].name == ".." {
				return false
			}
			return strings.ToLower(a[i].name) < strings.ToLower(a[j].name)
		}
	}
	sort.Slice(dirs, byName(dirs))
	sort.Slice(files, byName(files))
	g.nav = append(dirs, files...)
	return nil
}

func (g *game) loadSample(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := g.engine.LoadSample(f); err != nil {
		g.samplePath = ""
		return err
	}
	g.samplePath = path
	g.engine.SetDeckLoop(true)
	for s, level := range g.stems {
		g.engine.SetStemLevel(deck.Stem(s), level)
	}
	if err := g.engine.DeckPlay(); err != nil {
		return err
	}
	g.setStatus("Deck: " + filepath.Base(path))
	return nil
}

func (g *game) loadSession(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := g.studio.Load(f); err != nil {
		return err
	}
	g.setStatus("Loaded " + filepath.Base(path))
	return nil
}

func (g *game) saveSession() {
	path := filepath.Join(g.cwd, "shadowcore-session.json")
	f, err := os.Create(path)
	if err == nil {
		err = g.studio.Save(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus("Saved " + filepath.Base(path))
	if err := g.refreshNav(); err != nil {
		g.setError(err.Error())
	}
}

func (g *game) exportMIDI() {
	path := filepath.Join(g.cwd, fmt.Sprintf("shadowcore-%s.mid", strings.ToLower(g.snap.ActivePatternID)))
	f, err := os.Create(path)
	if err == nil {
		err = g.studio.ExportMIDI(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus("Exported " + filepath.Base(path))
}

func (g *game) togglePlay() {
	if g.engine.Playing() {
		g.studio.Pause()
		g.setStatus("Paused")
		return
	}
	if err := g.studio.Play(); err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus("Playing")
}

func (g *game) nudgeBPM(delta float64) {
	if err := g.studio.SetBPM(g.snap.BPM + delta); err != nil {
		g.setError(err.Error())
	}
}

// queueNextPattern queues the pattern after the active one, or the one after
// the queued one on repeated clicks.
func (g *game) queueNextPattern() {
	ids := g.snap.PatternIDs()
	if len(ids) == 0 {
		return
	}
	cur := g.snap.NextPatternID
	if cur == "" {
		cur = g.snap.ActivePatternID
	}
	next := ids[(slices.Index(ids, cur)+1)%len(ids)]
	if err := g.studio.QueuePattern(next); err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus("Queued " + next)
}

func (g *game) playLabel() string {
	if g.engine.Playing() {
		return "Pause"
	}
	return "Play"
}

func (g *game) patternLabel() string {
	if next := g.snap.NextPatternID; next != "" {
		return g.snap.ActivePatternID + " > " + next
	}
	return "Pat " + g.snap.ActivePatternID
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func main() {
	configPath := pflag.StringP("config", "c", "", "config file (default: user config dir)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	var s *session.Session
	if pflag.NArg() > 0 {
		p, err := filepath.Abs(pflag.Arg(0))
		if err != nil {
			log.Fatalf("resolve %q: %v", pflag.Arg(0), err)
		}
		f, err := os.Open(p)
		if err != nil {
			log.Fatal(err)
		}
		s, err = session.Load(f)
		f.Close()
		if err != nil {
			log.Fatalf("%s: %v", p, err)
		}
		cwd = filepath.Dir(p)
	} else {
		s = session.Default()
		s.BPM = cfg.BPM
		s.TimeSignature = cfg.StepsPerBar
	}

	g, err := newGame(cfg, s, cwd)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("shadowcore")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
