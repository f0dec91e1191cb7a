package surface

import (
	"errors"
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
)

// ErrTooManyLines is returned when more lines are painted than a surface holds
var ErrTooManyLines = errors.New("more lines than surface capacity")

// Random is the subset of math/rand the renderer needs
type Random interface {
	Float64() float64
}

// Painted describes a surface after a Paint call
type Painted struct {
	Surface   *Surface
	LineCount int
}

var (
	outlineColor = color.RGBA{0, 0, 0, 220}
	shadowColor  = color.RGBA{0, 0, 0, 140}

	outlineOffsets = [8][2]int{
		{-2, -2}, {0, -2}, {2, -2},
		{-2, 0}, {2, 0},
		{-2, 2}, {0, 2}, {2, 2},
	}
)

// Renderer paints wrapped post text onto pooled surfaces
type Renderer struct {
	Face       font.Face
	LineHeight int
	Rand       Random
}

// TextColor picks the fill colour for a message. Ordinary messages get a muted
// band, special ones a paler and brighter band. hue is in [0, 1).
func TextColor(special bool, hue float64) colorful.Color {
	if special {
		return colorful.Hsl(hue*360, 0.65, 0.85).Clamped()
	}
	return colorful.Hsl(hue*360, 0.40, 0.58).Clamped()
}

// Paint clears s and draws lines centred on it. With emphasis set each line gets
// a drop shadow and a dark outline beneath the fill.
func (r *Renderer) Paint(s *Surface, lines []string, special, emphasis bool) (Painted, error) {
	if s == nil {
		return Painted{}, errors.New("paint: nil surface")
	}
	if len(lines) > s.Lines {
		return Painted{}, fmt.Errorf("paint %d lines on %d-line surface %d: %w", len(lines), s.Lines, s.ID, ErrTooManyLines)
	}

	c := s.Canvas
	c.Clear()

	w, h := c.Size()
	ascent := r.Face.Metrics().Ascent.Ceil()
	top := (h - len(lines)*r.LineHeight) / 2
	fill := TextColor(special, r.Rand.Float64())

	for i, line := range lines {
		lineW := font.MeasureString(r.Face, line).Ceil()
		x := (w - lineW) / 2
		y := top + i*r.LineHeight + ascent

		if emphasis {
			c.DrawString(line, r.Face, x+3, y+3, shadowColor)
			for _, off := range outlineOffsets {
				c.DrawString(line, r.Face, x+off[0], y+off[1], outlineColor)
			}
		}
		c.DrawString(line, r.Face, x, y, fill)
	}

	c.Flush()
	return Painted{Surface: s, LineCount: len(lines)}, nil
}
