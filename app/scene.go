package app

import (
	"cmp"
	"slices"

	"firetunnel/tunnel"

	"github.com/hajimehoshi/ebiten/v2"
)

// Scene holds the panels currently in the tunnel and draws them through a camera.
// It implements tunnel.Scene.
type Scene struct {
	panels []*tunnel.Panel
	order  []*tunnel.Panel

	vertices [4]ebiten.Vertex
}

var quadIndices = []uint16{0, 1, 2, 0, 2, 3}

func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) AddPanel(p *tunnel.Panel) {
	s.panels = append(s.panels, p)
}

func (s *Scene) RemovePanel(p *tunnel.Panel) {
	if i := slices.Index(s.panels, p); i >= 0 {
		s.panels = slices.Delete(s.panels, i, i+1)
	}
}

func (s *Scene) Len() int {
	return len(s.panels)
}

// drawOrder returns the panels lowest DrawOrder first. Equal keys keep spawn order.
func (s *Scene) drawOrder() []*tunnel.Panel {
	s.order = append(s.order[:0], s.panels...)
	slices.SortStableFunc(s.order, func(a, b *tunnel.Panel) int {
		return cmp.Compare(a.DrawOrder, b.DrawOrder)
	})
	return s.order
}

// Draw projects every visible panel and paints its surface as a textured quad
func (s *Scene) Draw(screen *ebiten.Image, cam tunnel.Camera) int {
	drawn := 0
	for _, p := range s.drawOrder() {
		tex := textureOf(p.Surface)
		if tex == nil {
			continue
		}
		pts, ok := cam.ProjectPanel(p)
		if !ok {
			continue
		}
		b := tex.Bounds()
		src := [4][2]float32{
			{0, 0},
			{float32(b.Dx()), 0},
			{float32(b.Dx()), float32(b.Dy())},
			{0, float32(b.Dy())},
		}
		for i := range s.vertices {
			s.vertices[i] = ebiten.Vertex{
				DstX:   float32(pts[i][0]),
				DstY:   float32(pts[i][1]),
				SrcX:   src[i][0],
				SrcY:   src[i][1],
				ColorR: 1,
				ColorG: 1,
				ColorB: 1,
				ColorA: 1,
			}
		}
		screen.DrawTriangles(s.vertices[:], quadIndices, tex, &ebiten.DrawTrianglesOptions{
			Filter: ebiten.FilterLinear,
		})
		drawn++
	}
	return drawn
}
