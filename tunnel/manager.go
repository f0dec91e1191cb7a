// Package tunnel runs the life of every message on screen: placement, motion,
// draw ordering, and returning its surface to the pool once it leaves the tunnel.
package tunnel

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"firetunnel/layout"
	"firetunnel/surface"
	"firetunnel/typedef"
)

const (
	// TunnelLength is the spawn depth; messages start at z = -TunnelLength
	TunnelLength = 40.0
	// ExitZ is how far past the camera a message travels before it is retired
	ExitZ = 10.0

	PanelWidth      = 7.0
	LineWorldHeight = 0.75

	// DrawOrderBias lifts focal messages above every wall message
	DrawOrderBias = 10000
	maxOrderKey   = 1000

	FocalClearance = 2.0
	focalSpreadX   = 6.0
	focalSpreadY   = 4.0
	maxFocalTries  = 64

	tunnelHalfWidth  = 10.0
	tunnelHalfHeight = 7.0
	wallJitter       = 0.5

	// speedScale turns the per-second speed bands into tunnel units
	speedScale = 100.0

	// DefaultTextWidth is the wrap budget in pixels
	DefaultTextWidth = 480
)

// ErrClosed is returned by CreateMessage after Dispose
var ErrClosed = errors.New("tunnel closed")

// Placement says where a message travels
type Placement int

const (
	PlacementFocal   Placement = -1
	PlacementRight   Placement = 0
	PlacementLeft    Placement = 1
	PlacementCeiling Placement = 2
	PlacementFloor   Placement = 3
)

func (p Placement) String() string {
	switch p {
	case PlacementFocal:
		return "focal"
	case PlacementRight:
		return "right"
	case PlacementLeft:
		return "left"
	case PlacementCeiling:
		return "ceiling"
	case PlacementFloor:
		return "floor"
	default:
		return fmt.Sprintf("placement(%d)", int(p))
	}
}

// Random is the subset of math/rand/v2 the manager draws from
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Message is one live post in the tunnel
type Message struct {
	Text         string
	Panel        *Panel
	Surface      *surface.Surface
	LineCount    int
	Speed        float64
	Special      bool
	Placement    Placement
	DrawOrderKey int
	exited       bool
}

// Exited reports whether the message left the tunnel and gave back its surface
func (m *Message) Exited() bool {
	return m.exited
}

// Stats counts what happened to messages so far
type Stats struct {
	Live      int
	Spawned   int
	Discarded int
	Dropped   int
	Exited    int
}

// Painter draws wrapped lines onto a surface
type Painter interface {
	Paint(s *surface.Surface, lines []string, special, emphasis bool) (surface.Painted, error)
}

// Options wires a Manager to its collaborators
type Options struct {
	Pool     *surface.Pool
	Renderer Painter
	Measurer layout.Measurer
	Scene    Scene
	Settings *typedef.Settings
	Rand     Random
	// TextWidth is the wrap budget in pixels, DefaultTextWidth when zero
	TextWidth int
}

// Manager owns every live message and the loan of its surface.
// All methods must be called from the render goroutine.
type Manager struct {
	pool      *surface.Pool
	renderer  Painter
	measurer  layout.Measurer
	scene     Scene
	settings  *typedef.Settings
	rand      Random
	textWidth int

	live   []*Message
	stats  Stats
	closed bool
}

// NewManager creates a manager with an empty tunnel
func NewManager(opts Options) *Manager {
	if opts.TextWidth <= 0 {
		opts.TextWidth = DefaultTextWidth
	}
	return &Manager{
		pool:      opts.Pool,
		renderer:  opts.Renderer,
		measurer:  opts.Measurer,
		scene:     opts.Scene,
		settings:  opts.Settings,
		rand:      opts.Rand,
		textWidth: opts.TextWidth,
	}
}

// CreateMessage lays out text, paints it onto a pooled surface and launches it
// from the far end of the tunnel. A nil message with a nil error means the
// discard filter dropped it.
func (m *Manager) CreateMessage(text string) (*Message, error) {
	if m.closed {
		return nil, ErrClosed
	}

	placement := m.drawPlacement()
	if placement != PlacementFocal && m.settings.DiscardFraction > 0 && m.rand.Float64() < m.settings.DiscardFraction {
		m.stats.Discarded++
		return nil, nil
	}

	lines := layout.Truncate(layout.Wrap(text, m.textWidth, m.measurer), surface.MaxLines)

	s, err := m.pool.Acquire(len(lines))
	if err != nil {
		if errors.Is(err, surface.ErrSaturated) {
			m.stats.Dropped++
			return nil, fmt.Errorf("pool saturated, dropping spawn: %w", err)
		}
		return nil, fmt.Errorf("create message: %w", err)
	}

	special := placement == PlacementFocal
	painted, err := m.renderer.Paint(s, lines, special, m.settings.Emphasis)
	if err != nil {
		m.pool.Release(s)
		return nil, fmt.Errorf("create message: %w", err)
	}

	panel := &Panel{
		Width:    PanelWidth,
		Height:   float64(painted.LineCount) * LineWorldHeight,
		Position: Vec3{Z: -TunnelLength},
		Surface:  s,
	}
	m.place(panel, placement)

	msg := &Message{
		Text:         text,
		Panel:        panel,
		Surface:      s,
		LineCount:    painted.LineCount,
		Speed:        m.drawSpeed(special),
		Special:      special,
		Placement:    placement,
		DrawOrderKey: m.rand.IntN(maxOrderKey + 1),
	}
	if special {
		msg.DrawOrderKey += DrawOrderBias
	}
	panel.DrawOrder = float64(msg.DrawOrderKey)

	m.scene.AddPanel(panel)
	m.live = append(m.live, msg)
	m.stats.Spawned++
	return msg, nil
}

// drawPlacement draws u in [0, 4+SpecialFrequency); the four integer slots are
// walls, anything past the last wall is focal.
func (m *Manager) drawPlacement() Placement {
	u := m.rand.Float64() * (4 + m.settings.SpecialFrequency)
	wall := int(math.Floor(u))
	if wall > int(PlacementFloor) {
		return PlacementFocal
	}
	return Placement(wall)
}

func (m *Manager) drawSpeed(special bool) float64 {
	if special {
		return 0.005 + 0.5*(0.08+m.rand.Float64()*0.12)
	}
	return 0.05 + m.rand.Float64()*0.005
}

// between draws uniformly from [lo, hi)
func (m *Manager) between(lo, hi float64) float64 {
	return lo + m.rand.Float64()*(hi-lo)
}

// place positions p for its placement. Wall panels sit a fixed distance off their
// wall, rotated to face the tunnel axis; focal panels face the viewer.
func (m *Manager) place(p *Panel, placement Placement) {
	if placement == PlacementFocal {
		p.Position.X, p.Position.Y = m.focalPoint()
		return
	}

	jitter := m.between(-wallJitter, wallJitter)
	switch placement {
	case PlacementRight:
		p.Position.X = tunnelHalfWidth - 1.0 + jitter
		p.Position.Y = m.between(-5, 5)
		p.Rotation.Y = -math.Pi / 2
	case PlacementLeft:
		p.Position.X = -tunnelHalfWidth + 1.0 + jitter
		p.Position.Y = m.between(-5, 5)
		p.Rotation.Y = math.Pi / 2
	case PlacementCeiling:
		p.Position.X = m.between(-6, 6)
		p.Position.Y = tunnelHalfHeight - 1.5 + jitter
		p.Rotation.X = math.Pi / 2
	case PlacementFloor:
		p.Position.X = m.between(-6, 6)
		p.Position.Y = -tunnelHalfHeight + 1.2 + jitter
		p.Rotation.X = -math.Pi / 2
	}
}

// focalPoint samples an off-centre point at least FocalClearance from the axis.
// After maxFocalTries rejections the last candidate is pushed out to the
// clearance circle.
func (m *Manager) focalPoint() (float64, float64) {
	var x, y float64
	for i := 0; i < maxFocalTries; i++ {
		x = m.between(-focalSpreadX, focalSpreadX)
		y = m.between(-focalSpreadY, focalSpreadY)
		if math.Hypot(x, y) >= FocalClearance {
			return x, y
		}
	}
	d := math.Hypot(x, y)
	if d == 0 {
		return FocalClearance, 0
	}
	return x / d * FocalClearance, y / d * FocalClearance
}

// Advance moves every message dt seconds forward, refreshes draw order and
// retires messages past ExitZ in the same pass.
func (m *Manager) Advance(dt float64) {
	step := speedScale * m.settings.GlobalSpeed * dt

	for i := len(m.live) - 1; i >= 0; i-- {
		msg := m.live[i]
		p := msg.Panel

		p.Position.Z += msg.Speed * step

		p.DrawOrder = float64(msg.DrawOrderKey)
		if msg.Special {
			p.DrawOrder = p.Position.Z + DrawOrderBias
		}

		if p.Position.Z > ExitZ {
			m.retire(msg)
			m.live = slices.Delete(m.live, i, i+1)
		}
	}
}

func (m *Manager) retire(msg *Message) {
	m.scene.RemovePanel(msg.Panel)
	m.pool.Release(msg.Surface)
	msg.exited = true
	m.stats.Exited++
}

// Live returns the messages currently in the tunnel. The slice must not be kept
// across calls to Advance.
func (m *Manager) Live() []*Message {
	return m.live
}

// LatestFocal returns the most recently spawned focal message still live
func (m *Manager) LatestFocal() *Message {
	for i := len(m.live) - 1; i >= 0; i-- {
		if m.live[i].Special {
			return m.live[i]
		}
	}
	return nil
}

// Stats returns counters for the overlay
func (m *Manager) Stats() Stats {
	s := m.stats
	s.Live = len(m.live)
	return s
}

// Pool exposes the surface pool for introspection
func (m *Manager) Pool() *surface.Pool {
	return m.pool
}

// Dispose removes every live panel, returns their surfaces and tears the pool
// down. Later CreateMessage calls fail with ErrClosed.
func (m *Manager) Dispose() {
	m.closed = true
	for _, msg := range m.live {
		m.scene.RemovePanel(msg.Panel)
		m.pool.Release(msg.Surface)
		msg.exited = true
	}
	m.live = nil
	m.pool.Cleanup()
}
