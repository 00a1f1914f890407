package car

import "math"

// Compound enumerates the dry tire compounds available to a stint.
type Compound int

const (
	CompoundSoft Compound = iota
	CompoundMedium
	CompoundHard
)

func (c Compound) String() string {
	switch c {
	case CompoundSoft:
		return "soft"
	case CompoundMedium:
		return "medium"
	case CompoundHard:
		return "hard"
	default:
		return "unknown"
	}
}

// GripMultiplier reports the fresh-rubber grip offered by the compound.
func (c Compound) GripMultiplier() float64 {
	switch c {
	case CompoundSoft:
		return 1.0
	case CompoundMedium:
		return 0.97
	case CompoundHard:
		return 0.94
	default:
		return 0.97
	}
}

// DegradationRate reports the wear accumulated per kilometre of hard running.
func (c Compound) DegradationRate() float64 {
	switch c {
	case CompoundSoft:
		return 0.012
	case CompoundMedium:
		return 0.008
	case CompoundHard:
		return 0.005
	default:
		return 0.008
	}
}

// TireSet tracks the wear state of the four fitted tires.
type TireSet struct {
	compound Compound
	// wear is 0 for a fresh tire and 1 for fully spent rubber, order FL FR RL RR.
	wear [4]float64
}

// NewTireSet fits a fresh set of the given compound.
func NewTireSet(compound Compound) *TireSet {
	return &TireSet{compound: compound}
}

// Compound returns the fitted compound.
func (t *TireSet) Compound() Compound {
	if t == nil {
		return CompoundMedium
	}
	return t.compound
}

// Wear returns the per-tire wear fractions.
func (t *TireSet) Wear() [4]float64 {
	if t == nil {
		return [4]float64{}
	}
	return t.wear
}

// AverageWear returns the mean wear across the set.
func (t *TireSet) AverageWear() float64 {
	if t == nil {
		return 0
	}
	total := 0.0
	for _, w := range t.wear {
		total += w
	}
	return total / 4
}

// GripMultiplier reports the grip fraction the set currently offers; fresh
// rubber returns the compound multiplier and a spent set loses up to 40%.
func (t *TireSet) GripMultiplier() float64 {
	if t == nil {
		return CompoundMedium.GripMultiplier()
	}
	return t.compound.GripMultiplier() * (1.0 - 0.4*t.AverageWear())
}

// Update accumulates wear over the tick from distance covered and cornering
// load. The rears wear slightly faster under traction.
func (t *TireSet) Update(speedMps, lateralG, dt float64) {
	if t == nil || dt <= 0 {
		return
	}
	distanceKm := speedMps * dt / 1000
	//1.- Cornering load multiplies the base degradation so flat-out laps cost
	// more rubber than cruising.
	load := 1.0 + math.Abs(lateralG)*0.5
	base := t.compound.DegradationRate() * distanceKm * load
	for i := range t.wear {
		rate := base
		if i >= 2 {
			rate *= 1.15
		}
		t.wear[i] = math.Min(1.0, t.wear[i]+rate)
	}
}

// Service replaces the set with fresh rubber of the requested compound.
func (t *TireSet) Service(compound Compound) {
	if t == nil {
		return
	}
	t.compound = compound
	t.wear = [4]float64{}
}
