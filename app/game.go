// Package app is the ebiten front end: it pulls posts off the feed queue, hands
// them to the tunnel and draws the result.
package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"firetunnel/feed"
	"firetunnel/layout"
	"firetunnel/storage"
	"firetunnel/surface"
	"firetunnel/tunnel"
	"firetunnel/typedef"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const (
	surfaceWidth = 512
	// surfaceLineHeight keeps one text line at LineWorldHeight on a PanelWidth panel
	surfaceLineHeight = 54
	textFontSize      = 34
	hudFontSize       = 16
	fieldOfView       = 75

	// maxSpawnsPerFrame bounds how much of a burst is absorbed in one tick
	maxSpawnsPerFrame = 16
	// maxFrameDelta stops a stalled window from teleporting every panel
	maxFrameDelta = 0.25

	guideRings = 8
)

var (
	backgroundColor = color.RGBA{6, 6, 14, 255}
	guideColor      = color.RGBA{60, 70, 110, 255}
	hudBackground   = color.RGBA{0, 0, 0, 170}
	hudText         = color.RGBA{200, 220, 255, 255}
)

// Options wires a Game to the feed and its configuration
type Options struct {
	Settings *typedef.Settings
	Keybinds typedef.Keybinds
	Queue    *feed.Queue
	Source   feed.Source
	// Cancel stops the feed; the game calls it before leaving the loop
	Cancel context.CancelFunc
	Seed   uint64
}

// Game implements ebiten.Game
type Game struct {
	settings *typedef.Settings
	keybinds typedef.Keybinds
	queue    *feed.Queue
	source   feed.Source
	cancel   context.CancelFunc

	manager *tunnel.Manager
	scene   *Scene
	camera  tunnel.Camera
	hud     *TextRenderer
	banner  statusBanner
	toasts  *toastList

	last     time.Time
	pending  []string
	actions  []action
	lastWarn time.Time
	quitting bool
	// quitRequested may be set from any goroutine, Update picks it up
	quitRequested atomic.Bool
	disposed      bool
	drawn         int
}

// New creates the game and its surface pool. It must be called before
// ebiten.RunGame since surfaces are GPU images.
func New(opts Options) *Game {
	face := loadFont(textFontSize)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	pool := surface.NewPool(surface.PoolOptions{
		Width:        surfaceWidth,
		LineHeight:   surfaceLineHeight,
		MaxPerBucket: opts.Settings.MaxPerBucket,
		NewCanvas:    newGPUCanvas,
	})
	scene := NewScene()
	renderer := &surface.Renderer{
		Face:       face,
		LineHeight: pool.LineHeight(),
		Rand:       rng,
	}

	g := &Game{
		settings: opts.Settings,
		keybinds: opts.Keybinds,
		queue:    opts.Queue,
		source:   opts.Source,
		cancel:   opts.Cancel,
		scene:    scene,
		hud:      NewTextRenderer(loadFont(hudFontSize)),
		toasts:   newToastList(),
		pending:  make([]string, 0, maxSpawnsPerFrame),
	}
	g.manager = tunnel.NewManager(tunnel.Options{
		Pool:     pool,
		Renderer: renderer,
		Measurer: layout.FaceMeasurer{Face: face},
		Scene:    scene,
		Settings: opts.Settings,
		Rand:     rng,
	})
	return g
}

func (g *Game) Update() error {
	now := time.Now()
	dt := 0.0
	if !g.last.IsZero() {
		dt = min(now.Sub(g.last).Seconds(), maxFrameDelta)
	}
	g.last = now

	if g.quitRequested.Load() || ebiten.IsWindowBeingClosed() {
		g.quitting = true
	} else {
		g.handleInput(now)
	}
	if g.quitting {
		g.stopFeed()
		return ebiten.Termination
	}

	g.spawn(now)
	g.manager.Advance(dt)

	if g.source != nil {
		g.banner.Update(g.source.Status())
	}
	g.toasts.Update(now)
	return nil
}

func (g *Game) spawn(now time.Time) {
	g.pending = g.queue.Drain(g.pending[:0], maxSpawnsPerFrame)
	for _, text := range g.pending {
		_, err := g.manager.CreateMessage(text)
		if err == nil {
			continue
		}
		if errors.Is(err, tunnel.ErrClosed) {
			return
		}
		if now.Sub(g.lastWarn) > time.Second {
			log.Printf("spawn failed: %v", err)
			g.lastWarn = now
		}
	}
}

func (g *Game) handleInput(now time.Time) {
	g.actions = pressedActions(g.keybinds, g.actions[:0])
	for _, a := range g.actions {
		switch a {
		case actionQuit:
			g.quitting = true
		case actionToggleFullscreen:
			ebiten.SetFullscreen(!ebiten.IsFullscreen())
		case actionCopyFocal:
			g.copyFocal(now)
		case actionSaveSettings:
			if err := storage.SaveSettings(*g.settings); err != nil {
				log.Printf("save settings: %v", err)
				g.toasts.Show("Could not save settings", now, 3*time.Second)
			} else {
				g.toasts.Show("Settings saved", now, 2*time.Second)
			}
		default:
			if adjustSettings(g.settings, a) {
				g.toasts.Show(settingsSummary(g.settings), now, 1500*time.Millisecond)
			}
		}
	}
}

func (g *Game) copyFocal(now time.Time) {
	msg := g.manager.LatestFocal()
	if msg == nil {
		g.toasts.Show("No focal message to copy", now, 2*time.Second)
		return
	}
	if err := writeClipboard(msg.Text); err != nil {
		log.Printf("copy to clipboard: %v", err)
		g.toasts.Show("Clipboard unavailable", now, 2*time.Second)
		return
	}
	g.toasts.Show("Copied focal message", now, 2*time.Second)
}

func (g *Game) stopFeed() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	b := screen.Bounds()
	g.camera = tunnel.NewCamera(fieldOfView, b.Dx(), b.Dy())

	g.drawGuides(screen)
	g.drawn = g.scene.Draw(screen, g.camera)

	g.banner.Draw(screen, g.hud)
	g.toasts.Draw(screen, g.hud)
	if g.settings.ShowStats {
		g.drawStats(screen)
	}
}

// drawGuides outlines the tunnel walls at evenly spaced depths
func (g *Game) drawGuides(screen *ebiten.Image) {
	step := tunnel.TunnelLength / guideRings
	for i := 1; i <= guideRings; i++ {
		ring := tunnel.Ring(-float64(i) * step)
		var pts [4][2]float32
		visible := true
		for j, v := range ring {
			x, y, ok := g.camera.Project(v)
			if !ok {
				visible = false
				break
			}
			pts[j] = [2]float32{float32(x), float32(y)}
		}
		if !visible {
			continue
		}
		for j := range pts {
			a, b := pts[j], pts[(j+1)%len(pts)]
			vector.StrokeLine(screen, a[0], a[1], b[0], b[1], 1, guideColor, true)
		}
	}
}

func (g *Game) drawStats(screen *ebiten.Image) {
	st := g.manager.Stats()
	pool := g.manager.Pool()
	lines := []string{
		fmt.Sprintf("FPS %.0f  TPS %.0f", ebiten.ActualFPS(), ebiten.ActualTPS()),
		fmt.Sprintf("live %d  drawn %d", st.Live, g.drawn),
		fmt.Sprintf("spawned %d  exited %d", st.Spawned, st.Exited),
		fmt.Sprintf("discarded %d  dropped %d", st.Discarded, st.Dropped),
		fmt.Sprintf("pool %d/%d in use", pool.TotalActive(), pool.TotalSize()),
		fmt.Sprintf("queue %d  overflow %d", g.queue.Len(), g.queue.Dropped()),
		settingsSummary(g.settings),
	}
	if g.source != nil {
		lines = append(lines, "feed "+g.source.Status().String())
	}
	g.hud.DrawPanel(screen, lines, 10, 10, hudBackground, hudText)
}

func settingsSummary(s *typedef.Settings) string {
	return fmt.Sprintf("speed %.2f  focal %.2f  discard %.2f", s.GlobalSpeed, s.SpecialFrequency, s.DiscardFraction)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// RequestQuit asks the run loop to stop the feed and return on its next tick.
// Safe to call from any goroutine.
func (g *Game) RequestQuit() {
	g.quitRequested.Store(true)
}

// Dispose releases every surface. Call it after the run loop has returned.
func (g *Game) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	g.stopFeed()
	g.manager.Dispose()
}

// Manager exposes the tunnel for diagnostics
func (g *Game) Manager() *tunnel.Manager {
	return g.manager
}
