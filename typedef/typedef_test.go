package typedef

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeBinding(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "", true},
		{" c ", "C", true},
		{"f5", "F5", true},
		{"F13", "", false},
		{"esc", "ESCAPE", true},
		{"pgup", "PAGEUP", true},
		{"ArrowLeft", "LEFT", true},
		{"ctrl", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalizeBinding(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeKeybinds(t *testing.T) {
	k := Keybinds{SpeedUp: "w", Quit: "not-a-key"}
	NormalizeKeybinds(&k)

	defaults := DefaultKeybinds()
	assert.Equal(t, "W", k.SpeedUp)
	assert.Equal(t, defaults.Quit, k.Quit)
	assert.Equal(t, defaults.CopyFocal, k.CopyFocal)

	NormalizeKeybinds(nil)
}

func TestNormalizeSettings(t *testing.T) {
	s := Settings{
		DiscardFraction:  1.5,
		SpecialFrequency: -1,
		GlobalSpeed:      math.NaN(),
		MaxPerBucket:     -4,
	}
	NormalizeSettings(&s)

	assert.Equal(t, 1.0, s.DiscardFraction)
	assert.Equal(t, 0.0, s.SpecialFrequency)
	assert.Equal(t, 0.0, s.GlobalSpeed)
	assert.Equal(t, 0, s.MaxPerBucket)
	assert.Equal(t, DefaultFeedURL, s.FeedURL)

	s = Settings{SpecialFrequency: 0.9, GlobalSpeed: 2, FeedURL: "ws://x"}
	NormalizeSettings(&s)
	assert.Equal(t, MaxSpecialFrequency, s.SpecialFrequency)
	assert.Equal(t, 2.0, s.GlobalSpeed)
	assert.Equal(t, "ws://x", s.FeedURL)
}
