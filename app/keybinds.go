package app

import (
	"strconv"
	"strings"

	"firetunnel/typedef"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	speedStep   = 0.25
	focalStep   = 0.01
	discardStep = 0.05
)

// keyFromBinding converts a canonical binding (letter, F-key, or named key) to an ebiten.Key.
func keyFromBinding(binding string) (ebiten.Key, bool) {
	canonical, ok := typedef.CanonicalizeBinding(binding)
	if !ok || canonical == "" {
		return 0, false
	}

	if len(canonical) == 1 {
		return ebiten.KeyA + ebiten.Key(canonical[0]-'A'), true
	}

	if strings.HasPrefix(canonical, "F") {
		if n, err := strconv.Atoi(canonical[1:]); err == nil && n >= 1 && n <= 12 {
			return ebiten.KeyF1 + ebiten.Key(n-1), true
		}
	}

	switch canonical {
	case "SPACE":
		return ebiten.KeySpace, true
	case "ESCAPE":
		return ebiten.KeyEscape, true
	case "ENTER":
		return ebiten.KeyEnter, true
	case "TAB":
		return ebiten.KeyTab, true
	case "BACKSPACE":
		return ebiten.KeyBackspace, true
	case "DELETE":
		return ebiten.KeyDelete, true
	case "INSERT":
		return ebiten.KeyInsert, true
	case "HOME":
		return ebiten.KeyHome, true
	case "END":
		return ebiten.KeyEnd, true
	case "PAGEUP":
		return ebiten.KeyPageUp, true
	case "PAGEDOWN":
		return ebiten.KeyPageDown, true
	case "UP":
		return ebiten.KeyArrowUp, true
	case "DOWN":
		return ebiten.KeyArrowDown, true
	case "LEFT":
		return ebiten.KeyArrowLeft, true
	case "RIGHT":
		return ebiten.KeyArrowRight, true
	}
	return 0, false
}

// bindingJustPressed reports whether the configured binding was just pressed this frame.
func bindingJustPressed(binding string) bool {
	if k, ok := keyFromBinding(binding); ok {
		return inpututil.IsKeyJustPressed(k)
	}
	return false
}

// action is something a keybind does to the running visualizer
type action int

const (
	actionNone action = iota
	actionSpeedUp
	actionSpeedDown
	actionFocalUp
	actionFocalDown
	actionDiscardUp
	actionDiscardDown
	actionCopyFocal
	actionToggleStats
	actionToggleFullscreen
	actionSaveSettings
	actionQuit
)

// pressedActions polls every binding once and returns the actions triggered this frame
func pressedActions(k typedef.Keybinds, dst []action) []action {
	bindings := [...]struct {
		binding string
		act     action
	}{
		{k.SpeedUp, actionSpeedUp},
		{k.SpeedDown, actionSpeedDown},
		{k.FocalUp, actionFocalUp},
		{k.FocalDown, actionFocalDown},
		{k.DiscardUp, actionDiscardUp},
		{k.DiscardDown, actionDiscardDown},
		{k.CopyFocal, actionCopyFocal},
		{k.ToggleStats, actionToggleStats},
		{k.ToggleFull, actionToggleFullscreen},
		{k.SaveSettings, actionSaveSettings},
		{k.Quit, actionQuit},
	}
	for _, b := range bindings {
		if bindingJustPressed(b.binding) {
			dst = append(dst, b.act)
		}
	}
	return dst
}

// adjustSettings applies a tuning action and reports whether it changed anything
func adjustSettings(s *typedef.Settings, a action) bool {
	before := *s
	switch a {
	case actionSpeedUp:
		s.GlobalSpeed += speedStep
	case actionSpeedDown:
		s.GlobalSpeed -= speedStep
	case actionFocalUp:
		s.SpecialFrequency += focalStep
	case actionFocalDown:
		s.SpecialFrequency -= focalStep
	case actionDiscardUp:
		s.DiscardFraction += discardStep
	case actionDiscardDown:
		s.DiscardFraction -= discardStep
	case actionToggleStats:
		s.ShowStats = !s.ShowStats
	default:
		return false
	}
	typedef.NormalizeSettings(s)
	return *s != before
}
