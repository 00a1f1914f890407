package ai

import (
	"math"
	"math/rand"

	"apexgp/sim/internal/car"
	"apexgp/sim/internal/physics"
	"apexgp/sim/internal/track"
)

// Behavior labels the driver state machine.
type Behavior int

const (
	BehaviorRacing Behavior = iota
	BehaviorOvertaking
	BehaviorDefending
	BehaviorRecovering
	BehaviorPitting
)

func (b Behavior) String() string {
	switch b {
	case BehaviorRacing:
		return "racing"
	case BehaviorOvertaking:
		return "overtaking"
	case BehaviorDefending:
		return "defending"
	case BehaviorRecovering:
		return "recovering"
	case BehaviorPitting:
		return "pitting"
	default:
		return "unknown"
	}
}

const (
	overtakeRange = 25.0
	defendRange   = 15.0
	// blueFlagYieldRange is how close the lapping car must be before a
	// flagged driver actually lifts and moves over.
	blueFlagYieldRange = 60.0
	passOffset         = 2.6
	defendOffset       = 2.0
	behaviorTimeout    = 480 // ticks at 60 Hz, 8 seconds

	pitWearThreshold   = 0.75
	pitDamageThreshold = 0.6
)

// NearbyCar is a rival snapshot handed to the driver each tick.
type NearbyCar struct {
	// Gap is the along-track distance to the rival, positive when ahead.
	Gap float64
	// Lateral is the rival's signed centerline offset.
	Lateral float64
	// Speed is the rival's speed in m/s.
	Speed   float64
	Retired bool
}

// Observation is everything a driver can see for one decision.
type Observation struct {
	Self   *physics.CarState
	Nearby []NearbyCar
	// BlueFlag tells the driver to let the lapping car through.
	BlueFlag bool
	// WeatherGrip is the track grip fraction for the current conditions.
	WeatherGrip float64
	// Wet switches the driver to its wet-weather skill.
	Wet bool
	// RaceActive gates throttle until the start lights go out.
	RaceActive bool
}

// Driver owns the per-car racing brain. Not safe for concurrent use; the
// world calls every driver from the single tick goroutine.
type Driver struct {
	personality Personality
	geo         *track.Geometry
	ctrl        speedController
	rng         *rand.Rand

	behavior      Behavior
	behaviorTicks int

	// delayed is a FIFO simulating human reaction time.
	delayed    []physics.ControlInput
	delayTicks int

	pitRequested bool
}

// NewDriver builds a driver for the track with a deterministic noise stream.
func NewDriver(personality Personality, geo *track.Geometry, seed int64, dt float64) *Driver {
	p := personality.Clamped()
	delay := 0
	if dt > 0 {
		delay = int(math.Round(p.ReactionTime / dt))
	}
	return &Driver{
		personality: p,
		geo:         geo,
		rng:         rand.New(rand.NewSource(seed)),
		behavior:    BehaviorRacing,
		delayTicks:  delay,
	}
}

// Personality returns the driver's profile.
func (d *Driver) Personality() Personality {
	if d == nil {
		return Personality{}
	}
	return d.personality
}

// Behavior returns the current state machine label.
func (d *Driver) Behavior() Behavior {
	if d == nil {
		return BehaviorRacing
	}
	return d.behavior
}

// WantsPitService reports whether the driver intends to stop at the line.
func (d *Driver) WantsPitService() bool {
	return d != nil && d.behavior == BehaviorPitting
}

// NotifyPitService resets the pit intent after the crew has serviced the car.
func (d *Driver) NotifyPitService() {
	if d == nil {
		return
	}
	d.pitRequested = false
	d.transition(BehaviorRacing)
	d.ctrl.reset()
}

// Decide produces the control input for this tick. The output lags the
// observation by the personality's reaction time.
func (d *Driver) Decide(obs Observation, dt float64) physics.ControlInput {
	if d == nil || obs.Self == nil || obs.Self.Retired {
		return physics.ControlInput{}
	}
	if !obs.RaceActive {
		//1.- Lights are still red: hold the brakes and clear stale state.
		d.ctrl.reset()
		d.delayed = d.delayed[:0]
		return physics.ControlInput{Brake: 1}
	}

	d.updateBehavior(obs)
	raw := d.plan(obs, dt)

	//2.- Push through the reaction FIFO so decisions land late, like a human.
	if d.delayTicks <= 0 {
		return raw
	}
	d.delayed = append(d.delayed, raw)
	if len(d.delayed) <= d.delayTicks {
		return physics.ControlInput{}
	}
	out := d.delayed[0]
	d.delayed = d.delayed[1:]
	return out
}

// updateBehavior advances the state machine from the current observation.
func (d *Driver) updateBehavior(obs Observation) {
	d.behaviorTicks++
	state := obs.Self

	//1.- Recovery preempts everything: off the racing surface or pointing
	// the wrong way, nothing else matters.
	if d.needsRecovery(state) {
		d.transition(BehaviorRecovering)
		return
	}
	if d.behavior == BehaviorRecovering {
		d.transition(BehaviorRacing)
	}

	//2.- A worn or wounded car heads for the pit and stays committed.
	if !d.pitRequested && d.shouldPit(state) {
		d.pitRequested = true
	}
	if d.pitRequested {
		d.transition(BehaviorPitting)
		return
	}

	ahead, hasAhead := closestAhead(obs.Nearby)
	behind, hasBehind := closestBehind(obs.Nearby)

	switch d.behavior {
	case BehaviorOvertaking:
		//3.- Done once the rival is no longer in front, or on timeout.
		if !hasAhead || ahead.Gap > overtakeRange || d.behaviorTicks > behaviorTimeout {
			d.transition(BehaviorRacing)
		}
	case BehaviorDefending:
		if !hasBehind || -behind.Gap > defendRange || d.behaviorTicks > behaviorTimeout {
			d.transition(BehaviorRacing)
		}
	default:
		if hasAhead && ahead.Gap < overtakeRange && ahead.Speed < state.Speed()+2 {
			//4.- Attack rolls against aggression so timid drivers sit back.
			if d.rng.Float64() < d.personality.Aggression {
				d.transition(BehaviorOvertaking)
			}
		} else if hasBehind && -behind.Gap < defendRange && behind.Speed > state.Speed()-1 {
			d.transition(BehaviorDefending)
		}
	}
}

// plan turns the behavior and observation into raw controls.
func (d *Driver) plan(obs Observation, dt float64) physics.ControlInput {
	state := obs.Self
	skill := d.personality.EffectiveSkill(obs.Wet)
	grip := obs.WeatherGrip
	if grip <= 0 {
		grip = 1
	}

	lineOffset := d.lineOffset(obs)
	steering := pursuitSteering(d.geo, state, lineOffset)

	target := cornerSpeedLimit(d.geo, state.Arc, grip, skill)
	switch {
	case d.behavior == BehaviorRecovering:
		//1.- Crawl back to the track before picking the pace up again.
		target = math.Min(target, 15)
	case d.behavior == BehaviorPitting:
		target = math.Min(target, 28)
	case obs.BlueFlag && shouldYield(obs.Nearby):
		//2.- Lift and give the lapping car the racing line.
		target *= 0.9
	case d.behavior == BehaviorOvertaking:
		target *= 1.0 + 0.04*d.personality.Aggression
	}

	axis := d.ctrl.update(target, state.Speed(), dt)
	input := physics.ControlInput{Steering: steering}
	if axis >= 0 {
		input.Throttle = math.Min(1, axis)
	} else {
		input.Brake = math.Min(1, -axis)
	}

	//3.- Consistency noise: sloppier drivers scatter their inputs more.
	jitter := (1 - d.personality.Consistency) * 0.04
	if jitter > 0 {
		input.Steering += d.rng.NormFloat64() * jitter
		input.Throttle += d.rng.NormFloat64() * jitter * 0.5
	}
	return input.Clamped()
}

// lineOffset picks where the driver places the car relative to the centerline.
func (d *Driver) lineOffset(obs Observation) float64 {
	if obs.BlueFlag && shouldYield(obs.Nearby) {
		//1.- Yield off the racing line for the leaders.
		return passOffset
	}
	switch d.behavior {
	case BehaviorOvertaking:
		if ahead, ok := closestAhead(obs.Nearby); ok {
			//2.- Take the opposite side of the car ahead.
			if ahead.Lateral >= 0 {
				return -passOffset
			}
			return passOffset
		}
	case BehaviorDefending:
		if behind, ok := closestBehind(obs.Nearby); ok {
			//3.- Cover the side the attacker is lining up on.
			if behind.Lateral >= 0 {
				return defendOffset
			}
			return -defendOffset
		}
	}
	return 0
}

// needsRecovery reports whether the car is off the surface or badly rotated.
func (d *Driver) needsRecovery(state *physics.CarState) bool {
	if state.Surface == track.SurfaceGrass || state.Surface == track.SurfaceGravel {
		return true
	}
	tangent := d.geo.TangentAt(state.Arc)
	heading := state.Orientation.Forward()
	//1.- A dot product below zero means facing more backwards than forwards.
	return heading.X*tangent.X+heading.Z*tangent.Z < 0
}

// shouldPit checks tire and bodywork condition against the stop thresholds.
func (d *Driver) shouldPit(state *physics.CarState) bool {
	if state.Tires.AverageWear() > pitWearThreshold {
		return true
	}
	for _, component := range []car.Component{car.ComponentFrontWing, car.ComponentRearWing, car.ComponentSuspension} {
		if state.Damage.Level(component) > pitDamageThreshold {
			return true
		}
	}
	return false
}

func (d *Driver) transition(next Behavior) {
	if d.behavior == next {
		return
	}
	d.behavior = next
	d.behaviorTicks = 0
}

// shouldYield reports whether the lapping car is close enough behind that
// moving over matters; a flag with the leaders half a track away changes
// nothing about this lap.
func shouldYield(nearby []NearbyCar) bool {
	behind, ok := closestBehind(nearby)
	return ok && -behind.Gap <= blueFlagYieldRange
}

// closestAhead returns the nearest live rival in front of the car.
func closestAhead(nearby []NearbyCar) (NearbyCar, bool) {
	best := NearbyCar{Gap: math.MaxFloat64}
	found := false
	for _, n := range nearby {
		if n.Retired || n.Gap <= 0 {
			continue
		}
		if n.Gap < best.Gap {
			best = n
			found = true
		}
	}
	return best, found
}

// closestBehind returns the nearest live rival behind the car.
func closestBehind(nearby []NearbyCar) (NearbyCar, bool) {
	best := NearbyCar{Gap: -math.MaxFloat64}
	found := false
	for _, n := range nearby {
		if n.Retired || n.Gap >= 0 {
			continue
		}
		if n.Gap > best.Gap {
			best = n
			found = true
		}
	}
	return best, found
}
