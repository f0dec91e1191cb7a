package tunnel

import "math"

// Camera is a pinhole camera at Position looking down -Z
type Camera struct {
	Position Vec3
	// FocalLength is in pixels; a unit at depth 1 spans FocalLength pixels
	FocalLength float64
	Near        float64
	ScreenW     float64
	ScreenH     float64
}

// Project maps v to screen pixels. ok is false when v is closer than the near plane
// or behind the camera.
func (c Camera) Project(v Vec3) (x, y float64, ok bool) {
	depth := c.Position.Z - v.Z
	if depth < c.Near {
		return 0, 0, false
	}
	x = c.ScreenW/2 + (v.X-c.Position.X)*c.FocalLength/depth
	y = c.ScreenH/2 - (v.Y-c.Position.Y)*c.FocalLength/depth
	return x, y, true
}

// ProjectPanel projects every corner of p, in Corners order.
// Panels crossing the near plane are culled whole.
func (c Camera) ProjectPanel(p *Panel) ([4][2]float64, bool) {
	var out [4][2]float64
	for i, v := range p.Corners() {
		x, y, ok := c.Project(v)
		if !ok {
			return out, false
		}
		out[i] = [2]float64{x, y}
	}
	return out, true
}

// NewCamera returns a camera at the origin with a vertical field of view of fovY
// degrees for a w by h screen.
func NewCamera(fovY float64, w, h int) Camera {
	return Camera{
		FocalLength: float64(h) / 2 / math.Tan(fovY*math.Pi/360),
		Near:        0.1,
		ScreenW:     float64(w),
		ScreenH:     float64(h),
	}
}
