package typedef

// Settings is the runtime configuration of the visualizer. The render loop reads
// it on every frame and keybinds mutate it on the same goroutine.
type Settings struct {
	// DiscardFraction is the probability a wall message is dropped before rendering
	DiscardFraction float64 `json:"discardFraction"`
	// SpecialFrequency widens the placement draw toward the focal category
	SpecialFrequency float64 `json:"specialFrequency"`
	// GlobalSpeed multiplies all motion
	GlobalSpeed float64 `json:"globalSpeed"`

	FeedURL      string `json:"feedUrl,omitempty"`
	MaxPerBucket int    `json:"maxPerBucket,omitempty"`
	ShowStats    bool   `json:"showStats"`
	Emphasis     bool   `json:"emphasis"`
}

const (
	MaxSpecialFrequency = 0.2
	MaxGlobalSpeed      = 10.0

	DefaultFeedURL = "ws://localhost:8080/subscribe"
)

// DefaultSettings returns the baseline configuration.
func DefaultSettings() Settings {
	return Settings{
		DiscardFraction:  0,
		SpecialFrequency: 0.05,
		GlobalSpeed:      1,
		FeedURL:          DefaultFeedURL,
		ShowStats:        false,
		Emphasis:         true,
	}
}

// NormalizeSettings clamps every knob into its valid range.
func NormalizeSettings(s *Settings) {
	if s == nil {
		return
	}
	s.DiscardFraction = clamp(s.DiscardFraction, 0, 1)
	s.SpecialFrequency = clamp(s.SpecialFrequency, 0, MaxSpecialFrequency)
	s.GlobalSpeed = clamp(s.GlobalSpeed, 0, MaxGlobalSpeed)
	if s.MaxPerBucket < 0 {
		s.MaxPerBucket = 0
	}
	if s.FeedURL == "" {
		s.FeedURL = DefaultFeedURL
	}
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
