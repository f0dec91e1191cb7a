package typedef

import (
	"strconv"
	"strings"
)

// Keybinds stores user-configurable keyboard shortcuts for the visualizer.
type Keybinds struct {
	SpeedUp      string `json:"speedUp,omitempty"`
	SpeedDown    string `json:"speedDown,omitempty"`
	FocalUp      string `json:"focalUp,omitempty"`
	FocalDown    string `json:"focalDown,omitempty"`
	DiscardUp    string `json:"discardUp,omitempty"`
	DiscardDown  string `json:"discardDown,omitempty"`
	CopyFocal    string `json:"copyFocal,omitempty"`
	ToggleStats  string `json:"toggleStats,omitempty"`
	ToggleFull   string `json:"toggleFullscreen,omitempty"`
	SaveSettings string `json:"saveSettings,omitempty"`
	Quit         string `json:"quit,omitempty"`
}

// DefaultKeybinds returns the baseline key configuration.
func DefaultKeybinds() Keybinds {
	return Keybinds{
		SpeedUp:      "UP",
		SpeedDown:    "DOWN",
		FocalUp:      "RIGHT",
		FocalDown:    "LEFT",
		DiscardUp:    "PAGEUP",
		DiscardDown:  "PAGEDOWN",
		CopyFocal:    "C",
		ToggleStats:  "S",
		ToggleFull:   "F",
		SaveSettings: "F5",
		Quit:         "ESCAPE",
	}
}

// CanonicalizeBinding trims, uppercases, and validates supported key names.
// Allowed values: empty string (disabled), single letters A-Z, function keys F1-F12, and common names like SPACE, ESCAPE, ENTER, TAB, BACKSPACE, DELETE, INSERT, HOME, END, PAGEUP, PAGEDOWN, and arrow keys (UP/DOWN/LEFT/RIGHT).
// Returns the canonical uppercase name and true when valid.
func CanonicalizeBinding(binding string) (string, bool) {
	val := strings.TrimSpace(binding)
	if val == "" {
		return "", true // empty means unbound/disabled
	}
	upper := strings.ToUpper(val)

	if len(upper) == 1 {
		ch := upper[0]
		if ch >= 'A' && ch <= 'Z' {
			return upper, true
		}
	}

	if strings.HasPrefix(upper, "F") && len(upper) > 1 {
		if n, err := strconv.Atoi(upper[1:]); err == nil && n >= 1 && n <= 12 {
			return "F" + strconv.Itoa(n), true
		}
	}

	switch upper {
	case "SPACE", "SPACEBAR":
		return "SPACE", true
	case "ESC", "ESCAPE":
		return "ESCAPE", true
	case "ENTER", "RETURN":
		return "ENTER", true
	case "TAB":
		return "TAB", true
	case "BACKSPACE":
		return "BACKSPACE", true
	case "DELETE", "DEL":
		return "DELETE", true
	case "INSERT", "INS":
		return "INSERT", true
	case "HOME":
		return "HOME", true
	case "END":
		return "END", true
	case "PAGEUP", "PGUP":
		return "PAGEUP", true
	case "PAGEDOWN", "PGDN":
		return "PAGEDOWN", true
	case "UP", "ARROWUP":
		return "UP", true
	case "DOWN", "ARROWDOWN":
		return "DOWN", true
	case "LEFT", "ARROWLEFT":
		return "LEFT", true
	case "RIGHT", "ARROWRIGHT":
		return "RIGHT", true
	default:
		return "", false
	}
}

// NormalizeKeybinds uppercases, canonicalizes, and fills defaults when missing or invalid.
func NormalizeKeybinds(k *Keybinds) {
	if k == nil {
		return
	}
	defaults := DefaultKeybinds()
	normalize := func(target *string, fallback string) {
		if *target == "" {
			*target = fallback
			return
		}
		if val, ok := CanonicalizeBinding(*target); ok {
			*target = val
			return
		}
		*target = fallback
	}

	normalize(&k.SpeedUp, defaults.SpeedUp)
	normalize(&k.SpeedDown, defaults.SpeedDown)
	normalize(&k.FocalUp, defaults.FocalUp)
	normalize(&k.FocalDown, defaults.FocalDown)
	normalize(&k.DiscardUp, defaults.DiscardUp)
	normalize(&k.DiscardDown, defaults.DiscardDown)
	normalize(&k.CopyFocal, defaults.CopyFocal)
	normalize(&k.ToggleStats, defaults.ToggleStats)
	normalize(&k.ToggleFull, defaults.ToggleFull)
	normalize(&k.SaveSettings, defaults.SaveSettings)
	normalize(&k.Quit, defaults.Quit)
}
