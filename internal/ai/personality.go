// Package ai turns track and traffic observations into per-tick control
// inputs. Each driver runs a pure-pursuit steering model and a PID speed
// controller, shaped by a personality profile and a small behavior state
// machine. All randomness is drawn from a per-driver seeded source so a
// session replays identically from the same seed.
package ai

import "math"

// Personality tunes how a driver uses the car.
type Personality struct {
	Name string
	// Skill scales how close to the grip limit the driver corners, 0..1.
	Skill float64
	// Aggression controls how readily the driver attacks a car ahead, 0..1.
	Aggression float64
	// Consistency damps lap-to-lap noise in the control outputs, 0..1.
	Consistency float64
	// WetSkill replaces Skill when the track is wet, 0..1.
	WetSkill float64
	// ReactionTime delays every decision by this many seconds.
	ReactionTime float64
}

// Clamped returns the personality with all fields forced into range.
func (p Personality) Clamped() Personality {
	p.Skill = clamp01(p.Skill)
	p.Aggression = clamp01(p.Aggression)
	p.Consistency = clamp01(p.Consistency)
	p.WetSkill = clamp01(p.WetSkill)
	p.ReactionTime = math.Max(0, math.Min(1.0, p.ReactionTime))
	return p
}

// EffectiveSkill picks the dry or wet skill for the current conditions.
func (p Personality) EffectiveSkill(wet bool) float64 {
	if wet {
		return p.WetSkill
	}
	return p.Skill
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Preset profiles spanning the grid from front-runners to backmarkers.
var (
	PresetAce = Personality{
		Name: "ace", Skill: 0.97, Aggression: 0.9, Consistency: 0.92,
		WetSkill: 0.98, ReactionTime: 0.18,
	}
	PresetCharger = Personality{
		Name: "charger", Skill: 0.93, Aggression: 0.95, Consistency: 0.8,
		WetSkill: 0.85, ReactionTime: 0.2,
	}
	PresetProfessor = Personality{
		Name: "professor", Skill: 0.94, Aggression: 0.6, Consistency: 0.97,
		WetSkill: 0.9, ReactionTime: 0.22,
	}
	PresetMidfielder = Personality{
		Name: "midfielder", Skill: 0.82, Aggression: 0.65, Consistency: 0.78,
		WetSkill: 0.72, ReactionTime: 0.28,
	}
	PresetRookie = Personality{
		Name: "rookie", Skill: 0.7, Aggression: 0.55, Consistency: 0.6,
		WetSkill: 0.55, ReactionTime: 0.35,
	}
)

// GridPresets returns a spread of personalities for a grid of the given
// size, front-runners first, repeating the midfield for large grids.
func GridPresets(size int) []Personality {
	base := []Personality{PresetAce, PresetCharger, PresetProfessor, PresetMidfielder, PresetRookie}
	if size <= 0 {
		return nil
	}
	out := make([]Personality, 0, size)
	for i := 0; i < size; i++ {
		if i < len(base) {
			out = append(out, base[i])
			continue
		}
		out = append(out, PresetMidfielder)
	}
	return out
}
