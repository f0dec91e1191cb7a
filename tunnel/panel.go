package tunnel

import (
	"math"

	"firetunnel/surface"
)

// Vec3 is a point or direction in tunnel space. The viewer sits at the origin
// looking down -Z; messages travel toward +Z.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) rotateX(a float64) Vec3 {
	s, c := math.Sincos(a)
	return Vec3{v.X, v.Y*c - v.Z*s, v.Y*s + v.Z*c}
}

func (v Vec3) rotateY(a float64) Vec3 {
	s, c := math.Sincos(a)
	return Vec3{v.X*c + v.Z*s, v.Y, -v.X*s + v.Z*c}
}

func (v Vec3) rotateZ(a float64) Vec3 {
	s, c := math.Sincos(a)
	return Vec3{v.X*c - v.Y*s, v.X*s + v.Y*c, v.Z}
}

// Panel is a textured rectangle placed in the tunnel. It is the only thing the
// scene sees of a message.
type Panel struct {
	Width    float64
	Height   float64
	Position Vec3
	// Rotation holds Euler angles in radians, applied X then Y then Z
	Rotation Vec3
	// DrawOrder sorts overlapping panels, higher draws later
	DrawOrder float64
	Surface   *surface.Surface
}

// Corners returns the panel corners in world space: top-left, top-right,
// bottom-right, bottom-left as seen from the panel's front.
func (p *Panel) Corners() [4]Vec3 {
	hw, hh := p.Width/2, p.Height/2
	local := [4]Vec3{
		{-hw, hh, 0},
		{hw, hh, 0},
		{hw, -hh, 0},
		{-hw, -hh, 0},
	}
	var out [4]Vec3
	for i, v := range local {
		v = v.rotateX(p.Rotation.X).rotateY(p.Rotation.Y).rotateZ(p.Rotation.Z)
		out[i] = v.Add(p.Position)
	}
	return out
}

// Scene is the rendering engine's view of the tunnel
type Scene interface {
	AddPanel(p *Panel)
	RemovePanel(p *Panel)
}

// Ring returns the tunnel cross-section at depth z, clockwise from top-left
func Ring(z float64) [4]Vec3 {
	return [4]Vec3{
		{-tunnelHalfWidth, tunnelHalfHeight, z},
		{tunnelHalfWidth, tunnelHalfHeight, z},
		{tunnelHalfWidth, -tunnelHalfHeight, z},
		{-tunnelHalfWidth, -tunnelHalfHeight, z},
	}
}
