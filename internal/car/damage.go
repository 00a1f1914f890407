package car

import "math"

// Component enumerates the parts of the car that accumulate damage.
type Component int

const (
	ComponentEngine Component = iota
	ComponentGearbox
	ComponentFrontWing
	ComponentRearWing
	ComponentSuspension
	componentCount
)

func (c Component) String() string {
	switch c {
	case ComponentEngine:
		return "engine"
	case ComponentGearbox:
		return "gearbox"
	case ComponentFrontWing:
		return "front wing"
	case ComponentRearWing:
		return "rear wing"
	case ComponentSuspension:
		return "suspension"
	default:
		return "unknown"
	}
}

// DamageState tracks per-component damage between 0 (pristine) and 1 (failed).
type DamageState struct {
	levels [componentCount]float64
}

// NewDamageState returns a pristine damage model.
func NewDamageState() *DamageState {
	return &DamageState{}
}

// Level returns the damage fraction for the component.
func (d *DamageState) Level(c Component) float64 {
	if d == nil || c < 0 || c >= componentCount {
		return 0
	}
	return d.levels[c]
}

// Apply adds damage to the component, clamped to the failed state.
func (d *DamageState) Apply(c Component, amount float64) {
	if d == nil || c < 0 || c >= componentCount || amount <= 0 {
		return
	}
	d.levels[c] = math.Min(1.0, d.levels[c]+amount)
}

// ApplyImpact spreads collision energy across the bodywork. Impact severity is
// expressed as the closing speed in metres per second.
func (d *DamageState) ApplyImpact(closingSpeedMps float64) {
	if d == nil || closingSpeedMps <= 0 {
		return
	}
	severity := math.Min(1.0, closingSpeedMps/60)
	d.Apply(ComponentFrontWing, severity*0.35)
	d.Apply(ComponentRearWing, severity*0.15)
	d.Apply(ComponentSuspension, severity*0.25)
}

// Wear accrues mechanical fatigue on the drivetrain. rpmFraction is the
// current RPM over the redline; reliability 0..1 scales how fast parts tire.
func (d *DamageState) Wear(rpmFraction, reliability, dt float64) {
	if d == nil || dt <= 0 {
		return
	}
	reliability = math.Max(0, math.Min(1, reliability))
	fragility := 1.5 - reliability
	//1.- Sustained running near the limiter is what kills engines.
	stress := math.Max(0, rpmFraction-0.85) * 4
	d.Apply(ComponentEngine, (0.00002+stress*0.0004)*fragility*dt)
	d.Apply(ComponentGearbox, 0.00001*fragility*dt)
}

// PowerMultiplier reports the fraction of engine power still available.
func (d *DamageState) PowerMultiplier() float64 {
	if d == nil {
		return 1
	}
	engine := 1.0 - 0.5*d.levels[ComponentEngine]
	gearbox := 1.0 - 0.2*d.levels[ComponentGearbox]
	return engine * gearbox
}

// DownforceMultiplier reports the fraction of aerodynamic load retained.
func (d *DamageState) DownforceMultiplier() float64 {
	if d == nil {
		return 1
	}
	front := 1.0 - 0.4*d.levels[ComponentFrontWing]
	rear := 1.0 - 0.4*d.levels[ComponentRearWing]
	return front * rear
}

// GripMultiplier reports the handling penalty from bent suspension.
func (d *DamageState) GripMultiplier() float64 {
	if d == nil {
		return 1
	}
	return 1.0 - 0.3*d.levels[ComponentSuspension]
}

// FailedComponent returns the first component past the failure threshold, or
// false when the car is still fit to run.
func (d *DamageState) FailedComponent() (Component, bool) {
	if d == nil {
		return 0, false
	}
	for c := Component(0); c < componentCount; c++ {
		if d.levels[c] >= 1.0 {
			return c, true
		}
	}
	return 0, false
}

// Repair restores every component during a pit stop.
func (d *DamageState) Repair() {
	if d == nil {
		return
	}
	d.levels = [componentCount]float64{}
}
