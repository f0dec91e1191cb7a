package app

import (
	"image/color"

	"firetunnel/surface"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font"
)

// gpuCanvas is a surface.Canvas backed by an offscreen ebiten image, so the
// scene can texture panels straight from it.
type gpuCanvas struct {
	img      *ebiten.Image
	w, h     int
	version  uint64
	disposed bool
}

func newGPUCanvas(width, height int) surface.Canvas {
	return &gpuCanvas{
		img: ebiten.NewImage(width, height),
		w:   width,
		h:   height,
	}
}

func (c *gpuCanvas) Size() (int, int) {
	return c.w, c.h
}

func (c *gpuCanvas) Clear() {
	if c.img != nil {
		c.img.Clear()
	}
}

func (c *gpuCanvas) DrawString(s string, face font.Face, x, y int, clr color.Color) {
	if c.img == nil {
		return
	}
	text.Draw(c.img, s, face, x, y, clr)
}

func (c *gpuCanvas) Flush() {
	c.version++
}

func (c *gpuCanvas) Version() uint64 {
	return c.version
}

func (c *gpuCanvas) Dispose() {
	if c.img != nil {
		c.img.Deallocate()
		c.img = nil
	}
	c.disposed = true
}

func (c *gpuCanvas) Disposed() bool {
	return c.disposed
}

// textureOf returns the image behind a surface, nil if it is not GPU backed
func textureOf(s *surface.Surface) *ebiten.Image {
	if s == nil {
		return nil
	}
	if c, ok := s.Canvas.(*gpuCanvas); ok {
		return c.img
	}
	return nil
}
