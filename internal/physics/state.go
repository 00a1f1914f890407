package physics

import (
	"math"

	"apexgp/sim/internal/car"
	"apexgp/sim/internal/track"
)

// ControlInput is one tick of driver commands, produced by the AI layer or a
// human input source. Values outside the documented ranges are clamped at the
// physics boundary so upstream bugs cannot destabilize the integrator.
type ControlInput struct {
	// Throttle is the requested drive fraction in [0, 1].
	Throttle float64
	// Brake is the requested braking fraction in [0, 1].
	Brake float64
	// Steering is the requested steer fraction in [-1, 1], positive right.
	Steering float64
	// GearUp and GearDown request a single manual shift this tick.
	GearUp   bool
	GearDown bool
}

// Clamped returns the input with every channel forced into its legal range.
func (c ControlInput) Clamped() ControlInput {
	c.Throttle = clamp(c.Throttle, 0, 1)
	c.Brake = clamp(c.Brake, 0, 1)
	c.Steering = clamp(c.Steering, -1, 1)
	return c
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// CarState is the full dynamic state of one car. The physics engine owns
// every field; other layers read snapshots and submit ControlInputs.
type CarState struct {
	Spec   *car.Spec
	Tires  *car.TireSet
	Damage *car.DamageState

	Position    Vec3
	Orientation Quat
	Velocity    Vec3

	// Gear is -1 for reverse, 0 for neutral, 1..TopGear forward.
	Gear int
	// RPM stays clamped between the spec idle and redline.
	RPM float64
	// TireTempC holds per-tire temperatures in Celsius, order FL FR RL RR.
	TireTempC [4]float64
	// SlipRatio is the lateral grip deficit from the last step, 0 when the
	// tires held everything the driver asked for.
	SlipRatio float64

	// Arc is the distance along the track centerline, Lateral the signed
	// offset from it; both refreshed every step from the track geometry.
	Arc     float64
	Lateral float64
	Surface track.Surface
	Lap     int

	Retired      bool
	RetireReason string

	// shiftCooldown blocks gear changes for a few ticks after each shift.
	shiftCooldown int
}

// NewCarState places a car at the given arc position on the track, gridded at
// the given lateral offset and pointed along the racing direction.
func NewCarState(spec *car.Spec, geo *track.Geometry, arc, lateral float64) *CarState {
	state := &CarState{
		Spec:        spec,
		Tires:       car.NewTireSet(car.CompoundMedium),
		Damage:      car.NewDamageState(),
		Orientation: IdentityQuat(),
		Gear:        1,
		Arc:         arc,
		Lateral:     lateral,
		Surface:     track.SurfaceTarmac,
	}
	if spec != nil {
		state.RPM = spec.Engine.IdleRPM
	}
	for i := range state.TireTempC {
		state.TireTempC[i] = tireTempMin
	}
	if geo != nil {
		center := geo.PointAt(arc)
		tangent := geo.TangentAt(arc)
		//1.- Offset sideways from the centerline along the positive-lateral
		// normal used by the track locator.
		normal := track.Point{X: -tangent.Z, Z: tangent.X}
		state.Position = Vec3{X: center.X + normal.X*lateral, Z: center.Z + normal.Z*lateral}
		state.Orientation = QuatFromYaw(math.Atan2(tangent.X, tangent.Z))
	}
	return state
}

// Speed returns the current speed in metres per second.
func (s *CarState) Speed() float64 {
	if s == nil {
		return 0
	}
	return s.Velocity.Length()
}

// AverageTireTempC returns the mean tire temperature.
func (s *CarState) AverageTireTempC() float64 {
	if s == nil {
		return 0
	}
	total := 0.0
	for _, t := range s.TireTempC {
		total += t
	}
	return total / 4
}

// Retire marks the car out of the race; position holds but the car no longer
// accepts inputs or accumulates progress.
func (s *CarState) Retire(reason string) {
	if s == nil || s.Retired {
		return
	}
	s.Retired = true
	s.RetireReason = reason
	s.Velocity = Vec3{}
}
