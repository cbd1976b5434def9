package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

var (
	bgColor       = color.RGBA{192, 192, 192, 255}
	panelColor    = color.RGBA{192, 192, 192, 255}
	borderColor   = color.RGBA{128, 128, 128, 255}
	bevelLight    = color.RGBA{255, 255, 255, 255}
	bevelDarker   = color.RGBA{64, 64, 64, 255}
	sunkenBgColor = color.RGBA{24, 24, 32, 255}
	accentColor   = color.RGBA{0, 0, 128, 255}

	stepOffColor    = color.RGBA{48, 52, 64, 255}
	stepOnColor     = color.RGBA{80, 200, 255, 255}
	stepAccentColor = color.RGBA{255, 170, 60, 255}
	playheadColor   = color.RGBA{255, 255, 255, 40}
	mutedColor      = color.RGBA{110, 40, 40, 255}
	soloColor       = color.RGBA{40, 110, 40, 255}
)

func fillRect(dst *ebiten.Image, r image.Rectangle, c color.Color) {
	ebitenutil.DrawRect(dst, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), c)
}

func drawPanel(dst *ebiten.Image, r image.Rectangle) {
	fillRect(dst, r, panelColor)
	drawBorder(dst, r)
}

func drawSunkenPanel(dst *ebiten.Image, r image.Rectangle, bg color.Color) {
	fillRect(dst, r, bg)
	drawSunkenBorder(dst, r)
}

// drawBorder draws a raised bevel.
func drawBorder(dst *ebiten.Image, r image.Rectangle) {
	x, y := float64(r.Min.X), float64(r.Min.Y)
	w, h := float64(r.Dx()), float64(r.Dy())
	ebitenutil.DrawRect(dst, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(dst, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(dst, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(dst, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(dst, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(dst, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws the inverse bevel of drawBorder.
func drawSunkenBorder(dst *ebiten.Image, r image.Rectangle) {
	x, y := float64(r.Min.X), float64(r.Min.Y)
	w, h := float64(r.Dx()), float64(r.Dy())
	ebitenutil.DrawRect(dst, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(dst, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(dst, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(dst, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(dst, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(dst, x+1, y+2, 1, h-4, bevelDarker)
}

// textPainter renders debug-font strings at twice their size with an
// embossed shadow. Rendered strings are cached.
type textPainter struct {
	cache map[string]*ebiten.Image
}

func (t *textPainter) draw(dst *ebiten.Image, msg string, x, y int) {
	if msg == "" {
		return
	}
	img := t.cache[msg]
	if img == nil {
		if t.cache == nil || len(t.cache) > 2000 {
			t.cache = make(map[string]*ebiten.Image, 512)
		}
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		t.cache[msg] = img
	}
	shadow := &ebiten.DrawImageOptions{}
	shadow.GeoM.Scale(textScale, textScale)
	shadow.GeoM.Translate(float64(x+2), float64(y+2))
	shadow.ColorScale.Scale(0, 0, 0, 1)
	dst.DrawImage(img, shadow)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	dst.DrawImage(img, op)
}

// button draws a raised button with a centred label.
func (t *textPainter) button(dst *ebiten.Image, r image.Rectangle, label string, pressed bool) {
	fillRect(dst, r, panelColor)
	if pressed {
		drawSunkenBorder(dst, r)
	} else {
		drawBorder(dst, r)
	}
	x := r.Min.X + (r.Dx()-len([]rune(label))*charW)/2
	y := r.Min.Y + (r.Dy()-lineH)/2
	t.draw(dst, label, x, y)
}

// slider is a horizontal track laid out inside a labelled panel. Values are
// fractions in [0, 1].
type slider struct {
	rect    image.Rectangle
	labelW  int
	centred bool
}

func (s slider) track() (x, y, w int) {
	return s.rect.Min.X + s.labelW, s.rect.Min.Y + s.rect.Dy()/2 - 4, s.rect.Dx() - s.labelW - 16
}

func (s slider) fraction(mx int) float64 {
	x, _, w := s.track()
	if w <= 0 {
		return 0
	}
	return clamp(float64(mx-x)/float64(w), 0, 1)
}

func (s slider) draw(dst *ebiten.Image, t *textPainter, label string, frac float64) {
	drawPanel(dst, s.rect)
	t.draw(dst, label, s.rect.Min.X+8, s.rect.Min.Y+8)
	x, y, w := s.track()
	if w < 20 {
		return
	}
	fx, fy, fw := float64(x), float64(y), float64(w)
	ebitenutil.DrawRect(dst, fx, fy, fw, 8, bevelDarker)
	ebitenutil.DrawRect(dst, fx, fy, fw-1, 1, borderColor)
	ebitenutil.DrawRect(dst, fx, fy, 1, 7, borderColor)
	fill := int(fw * clamp(frac, 0, 1))
	if s.centred {
		ebitenutil.DrawRect(dst, fx+fw/2-1, fy-2, 2, 12, borderColor)
	} else if fill > 2 {
		ebitenutil.DrawRect(dst, fx+1, fy+1, float64(fill-1), 6, accentColor)
	}
	kx := min(max(x+fill-5, x-5), x+w-5)
	knob := image.Rect(kx, y-4, kx+10, y+12)
	fillRect(dst, knob, panelColor)
	drawBorder(dst, knob)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func shortenMiddle(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 7 {
		return shortenEnd(s, maxChars)
	}
	left := (maxChars - 3) / 2
	right := maxChars - 3 - left
	return string(r[:left]) + "..." + string(r[len(r)-right:])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pointInRect(x, y int, r image.Rectangle) bool {
	return image.Pt(x, y).In(r)
}
