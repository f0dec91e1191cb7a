package app

import (
	"testing"
	"time"

	"firetunnel/feed"
	"firetunnel/surface"
	"firetunnel/tunnel"
	"firetunnel/typedef"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromBinding(t *testing.T) {
	cases := map[string]ebiten.Key{
		"c":        ebiten.KeyC,
		"F5":       ebiten.KeyF5,
		"esc":      ebiten.KeyEscape,
		"PGUP":     ebiten.KeyPageUp,
		"ArrowUp":  ebiten.KeyArrowUp,
		"pagedown": ebiten.KeyPageDown,
	}
	for in, want := range cases {
		got, ok := keyFromBinding(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "F13", "ctrl+c", "??"} {
		_, ok := keyFromBinding(in)
		assert.False(t, ok, in)
	}
}

func TestAdjustSettings(t *testing.T) {
	s := typedef.DefaultSettings()

	assert.True(t, adjustSettings(&s, actionSpeedUp))
	assert.InDelta(t, 1.25, s.GlobalSpeed, 1e-9)

	s.SpecialFrequency = typedef.MaxSpecialFrequency
	assert.False(t, adjustSettings(&s, actionFocalUp), "clamped at the ceiling")

	s.DiscardFraction = 0
	assert.False(t, adjustSettings(&s, actionDiscardDown))
	assert.True(t, adjustSettings(&s, actionDiscardUp))
	assert.InDelta(t, discardStep, s.DiscardFraction, 1e-9)

	assert.True(t, adjustSettings(&s, actionToggleStats))
	assert.True(t, s.ShowStats)

	assert.False(t, adjustSettings(&s, actionCopyFocal))
}

func TestStatusBanner(t *testing.T) {
	var b statusBanner

	b.Update(feed.StatusConnected)
	assert.False(t, b.visible)

	b.Update(feed.StatusReconnecting)
	assert.True(t, b.visible)
	assert.Contains(t, b.Message(), "reconnecting")

	b.Update(feed.StatusConnected)
	assert.False(t, b.visible)
	assert.Empty(t, b.Message())
}

func TestToastList_Expiry(t *testing.T) {
	tl := newToastList()
	now := time.Now()
	tl.Show("a", now, time.Second)
	tl.Show("b", now, 3*time.Second)
	assert.Equal(t, 2, tl.Len())

	tl.Update(now.Add(2 * time.Second))
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, "b", tl.toasts[0].text)

	for i := 0; i < 10; i++ {
		tl.Show("x", now, time.Minute)
	}
	assert.Equal(t, tl.max, tl.Len())
}

func TestScene_DrawOrder(t *testing.T) {
	s := NewScene()
	a := &tunnel.Panel{DrawOrder: 500}
	b := &tunnel.Panel{DrawOrder: 10020}
	c := &tunnel.Panel{DrawOrder: 3}
	d := &tunnel.Panel{DrawOrder: 500}
	for _, p := range []*tunnel.Panel{a, b, c, d} {
		s.AddPanel(p)
	}

	assert.Equal(t, []*tunnel.Panel{c, a, d, b}, s.drawOrder())

	s.RemovePanel(a)
	s.RemovePanel(a)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []*tunnel.Panel{c, d, b}, s.drawOrder())
}

func TestTextureOf_OnlyGPUCanvases(t *testing.T) {
	assert.Nil(t, textureOf(nil))
	s := &surface.Surface{Lines: 1, Canvas: surface.NewImageCanvas(8, 8)}
	assert.Nil(t, textureOf(s))
}

func TestGame_RequestQuitStopsFeedThenDisposes(t *testing.T) {
	settings := typedef.DefaultSettings()
	queue := feed.NewQueue(8)
	cancelled := 0
	g := New(Options{
		Settings: &settings,
		Keybinds: typedef.DefaultKeybinds(),
		Queue:    queue,
		Cancel:   func() { cancelled++ },
		Seed:     1,
	})

	done := make(chan struct{})
	go func() {
		g.RequestQuit()
		close(done)
	}()
	<-done

	assert.ErrorIs(t, g.Update(), ebiten.Termination)
	assert.Equal(t, 1, cancelled)

	g.Dispose()
	g.Dispose()
	assert.Equal(t, 1, cancelled, "feed is cancelled once")

	_, err := g.Manager().CreateMessage("late")
	assert.ErrorIs(t, err, tunnel.ErrClosed)
	assert.Zero(t, g.Manager().Pool().TotalSize())
}
