package app

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font"
)

// TextRenderer draws HUD text onto the screen
type TextRenderer struct {
	face font.Face
}

func NewTextRenderer(face font.Face) *TextRenderer {
	return &TextRenderer{face: face}
}

// DrawText draws text with its baseline at y
func (tr *TextRenderer) DrawText(screen *ebiten.Image, textStr string, x, y int, clr color.Color) {
	text.Draw(screen, textStr, tr.face, x, y, clr)
}

// MeasureString returns the pixel width of the given text
func (tr *TextRenderer) MeasureString(str string) int {
	return text.BoundString(tr.face, str).Dx()
}

// LineHeight returns the pixel height of a line of text
func (tr *TextRenderer) LineHeight() int {
	return lineHeight(tr.face)
}

// DrawPanel draws lines over a translucent box anchored at x, y and returns its size
func (tr *TextRenderer) DrawPanel(screen *ebiten.Image, lines []string, x, y int, bg, fg color.Color) (int, int) {
	const pad = 8
	lh := tr.LineHeight()
	w := 0
	for _, l := range lines {
		w = max(w, tr.MeasureString(l))
	}
	w += pad * 2
	h := lh*len(lines) + pad*2
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), bg, false)

	ascent := tr.face.Metrics().Ascent.Ceil()
	for i, l := range lines {
		tr.DrawText(screen, l, x+pad, y+pad+ascent+i*lh, fg)
	}
	return w, h
}
