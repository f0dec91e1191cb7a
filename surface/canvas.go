package surface

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Canvas is an addressable pixel buffer a surface paints text into.
// The GPU-backed implementation lives with the window code; ImageCanvas is the
// CPU implementation used headless and in tests.
type Canvas interface {
	Size() (w, h int)
	Clear()
	DrawString(s string, face font.Face, x, y int, clr color.Color)
	// Flush ends a paint. Both implementations show new pixels without it;
	// it only advances Version.
	Flush()
	// Version counts completed paints. It is a test and diagnostic hook, the
	// render path never reads it.
	Version() uint64
	Dispose()
	Disposed() bool
}

// CanvasFunc allocates a canvas of the given pixel size
type CanvasFunc func(width, height int) Canvas

// ImageCanvas is a Canvas over an in-memory RGBA image
type ImageCanvas struct {
	img      *image.RGBA
	w, h     int
	version  uint64
	disposed bool
}

// NewImageCanvas creates a transparent RGBA canvas
func NewImageCanvas(width, height int) Canvas {
	return &ImageCanvas{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
		w:   width,
		h:   height,
	}
}

func (c *ImageCanvas) Size() (int, int) {
	return c.w, c.h
}

func (c *ImageCanvas) Clear() {
	if c.img == nil {
		return
	}
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (c *ImageCanvas) DrawString(s string, face font.Face, x, y int, clr color.Color) {
	if c.img == nil {
		return
	}
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (c *ImageCanvas) Flush() {
	c.version++
}

func (c *ImageCanvas) Version() uint64 {
	return c.version
}

func (c *ImageCanvas) Dispose() {
	c.img = nil
	c.disposed = true
}

func (c *ImageCanvas) Disposed() bool {
	return c.disposed
}

// Image exposes the backing pixels, nil once disposed
func (c *ImageCanvas) Image() *image.RGBA {
	return c.img
}
