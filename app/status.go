package app

import (
	"image/color"
	"slices"
	"time"

	"firetunnel/feed"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	bannerBackground = color.RGBA{60, 60, 60, 230}
	bannerBorder     = color.RGBA{255, 200, 100, 255}
	bannerText       = color.RGBA{255, 255, 100, 255}
	toastBackground  = color.RGBA{40, 40, 50, 220}
	toastText        = color.RGBA{220, 220, 220, 255}
)

// statusBanner shows a persistent notice while the feed is not connected
type statusBanner struct {
	status  feed.Status
	visible bool
}

// Update records the latest feed status. The banner appears on any transition
// away from Connected and hides as soon as the feed recovers.
func (b *statusBanner) Update(s feed.Status) {
	if s == b.status {
		return
	}
	b.status = s
	b.visible = s == feed.StatusReconnecting || s == feed.StatusClosed
}

func (b *statusBanner) Message() string {
	switch b.status {
	case feed.StatusReconnecting:
		return "Feed disconnected, reconnecting..."
	case feed.StatusClosed:
		return "Feed closed"
	}
	return ""
}

func (b *statusBanner) Draw(screen *ebiten.Image, tr *TextRenderer) {
	if !b.visible {
		return
	}
	msg := b.Message()
	sw := screen.Bounds().Dx()
	w := tr.MeasureString(msg) + 30
	h := tr.LineHeight() + 20
	x := (sw - w) / 2
	y := 20
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), bannerBackground, false)
	vector.StrokeRect(screen, float32(x), float32(y), float32(w), float32(h), 2, bannerBorder, false)
	tr.DrawText(screen, msg, x+15, y+10+tr.face.Metrics().Ascent.Ceil(), bannerText)
}

type toast struct {
	text    string
	expires time.Time
}

// toastList is a short stack of self-expiring notices in the top-right corner
type toastList struct {
	toasts []toast
	max    int
}

func newToastList() *toastList {
	return &toastList{max: 5}
}

func (tl *toastList) Show(text string, now time.Time, d time.Duration) {
	if len(tl.toasts) >= tl.max {
		tl.toasts = tl.toasts[1:]
	}
	tl.toasts = append(tl.toasts, toast{text: text, expires: now.Add(d)})
}

func (tl *toastList) Update(now time.Time) {
	tl.toasts = slices.DeleteFunc(tl.toasts, func(t toast) bool {
		return now.After(t.expires)
	})
}

func (tl *toastList) Len() int {
	return len(tl.toasts)
}

func (tl *toastList) Draw(screen *ebiten.Image, tr *TextRenderer) {
	const margin = 15
	sw := screen.Bounds().Dx()
	y := margin
	for _, t := range tl.toasts {
		w := tr.MeasureString(t.text) + 16
		_, h := tr.DrawPanel(screen, []string{t.text}, sw-w-margin, y, toastBackground, toastText)
		y += h + margin
	}
}
