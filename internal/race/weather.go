package race

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// Weather is the track condition bucket used by the grip model.
type Weather int

const (
	WeatherDry Weather = iota
	WeatherDamp
	WeatherWet
	WeatherStorm
)

func (w Weather) String() string {
	switch w {
	case WeatherDry:
		return "dry"
	case WeatherDamp:
		return "damp"
	case WeatherWet:
		return "wet"
	case WeatherStorm:
		return "storm"
	default:
		return "unknown"
	}
}

// Grip reports the track grip fraction for the condition.
func (w Weather) Grip() float64 {
	switch w {
	case WeatherDry:
		return 1.0
	case WeatherDamp:
		return 0.8
	case WeatherWet:
		return 0.65
	case WeatherStorm:
		return 0.5
	default:
		return 1.0
	}
}

// Wet reports whether drivers should switch to their wet-weather skill.
func (w Weather) Wet() bool {
	return w == WeatherWet || w == WeatherStorm
}

// ParseWeather maps a configuration string onto a Weather value.
func ParseWeather(raw string) (Weather, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dry", "":
		return WeatherDry, nil
	case "damp":
		return WeatherDamp, nil
	case "wet":
		return WeatherWet, nil
	case "storm":
		return WeatherStorm, nil
	default:
		return WeatherDry, fmt.Errorf("unknown weather %q", raw)
	}
}

// WeatherModel optionally drifts conditions over a session. Transitions only
// move one bucket at a time, so a dry race never jumps straight to a storm.
type WeatherModel struct {
	mu      sync.Mutex
	current Weather
	dynamic bool
	rng     *rand.Rand
	clock   float64
}

// checkInterval is how often, in seconds, the sky rolls for a change.
const weatherCheckInterval = 30.0

// NewWeatherModel starts from the given condition. When dynamic is false the
// condition never changes and the seed is unused.
func NewWeatherModel(start Weather, dynamic bool, seed int64) *WeatherModel {
	return &WeatherModel{
		current: start,
		dynamic: dynamic,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Current returns the live condition.
func (m *WeatherModel) Current() Weather {
	if m == nil {
		return WeatherDry
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Step advances the model by dt seconds and returns the condition after any
// transition. The drift is deterministic for a fixed seed and step sequence.
func (m *WeatherModel) Step(dt float64) Weather {
	if m == nil {
		return WeatherDry
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dynamic {
		return m.current
	}
	m.clock += dt
	for m.clock >= weatherCheckInterval {
		m.clock -= weatherCheckInterval
		roll := m.rng.Float64()
		switch {
		case roll < 0.15 && m.current < WeatherStorm:
			m.current++
		case roll > 0.85 && m.current > WeatherDry:
			m.current--
		}
	}
	return m.current
}
