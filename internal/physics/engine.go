// Package physics advances car state with a fixed-timestep, semi-implicit
// Euler integrator. Orientation is a unit quaternion integrated through the
// exponential map; the force model covers engine power, brakes, aerodynamic
// drag and downforce, rolling resistance, and a temperature and surface aware
// tire grip budget. Every step is deterministic for identical inputs.
package physics

import (
	"math"

	"apexgp/sim/internal/track"
)

const (
	gravity = 9.81

	tireTempMin     = 40.0
	tireTempMax     = 120.0
	tireTempOptimal = 85.0

	// wheelbase and the steering lock shape the kinematic yaw response.
	wheelbase       = 3.2
	maxSteerRad     = 0.35
	minSteerSpeed   = 2.0
	maxBrakeDecel   = 4.8 * gravity
	shiftDwellTicks = 12

	upshiftRPMFraction   = 0.95
	downshiftRPMFraction = 0.45

	// slipGripFalloff is how much of the lateral budget a fully sliding
	// tire sheds: grip peaks at the limit and decays past it.
	slipGripFalloff = 0.3
)

// StepOutcome summarizes one integration step for the layers above.
type StepOutcome struct {
	// LateralG is the cornering load in g experienced this step.
	LateralG float64
	// Slip is the fraction of requested cornering the tires could not hold.
	Slip float64
	// Retired is set when the step itself retired the car.
	Retired bool
}

// Engine integrates car states over a shared track. The zero value is not
// usable; construct with NewEngine.
type Engine struct {
	geo *track.Geometry
}

// NewEngine builds an integrator bound to the given track geometry.
func NewEngine(geo *track.Geometry) *Engine {
	return &Engine{geo: geo}
}

// Step advances one car by dt seconds. weatherGrip scales tire grip for the
// current conditions, 1.0 in the dry. Inputs are clamped before use.
func (e *Engine) Step(state *CarState, input ControlInput, weatherGrip, dt float64) StepOutcome {
	if e == nil || state == nil || state.Spec == nil || dt <= 0 {
		return StepOutcome{}
	}
	if state.Retired {
		return StepOutcome{Retired: true}
	}
	input = input.Clamped()
	if weatherGrip <= 0 {
		weatherGrip = 1.0
	}
	spec := state.Spec

	e.applyGearShift(state, input)

	//1.- Signed longitudinal speed keeps reverse gear coherent across ticks.
	speed := state.Velocity.Dot(state.Orientation.Forward())
	sample := e.geo.Locate(track.Point{X: state.Position.X, Z: state.Position.Z})

	//2.- Effective grip combines surface, weather, rubber, temperature, and
	// chassis condition into a single friction budget.
	tempGrip := tireTemperatureGrip(state.AverageTireTempC())
	grip := sample.Grip * weatherGrip * tempGrip * state.Tires.GripMultiplier() * state.Damage.GripMultiplier()
	if grip < 0.05 {
		grip = 0.05
	}

	state.RPM = e.updateRPM(state, input, speed)

	//3.- Normal load grows quadratically with speed through downforce.
	downforce := spec.Aero.DownforceCoefficient * speed * speed * state.Damage.DownforceMultiplier()
	normalLoad := spec.MassKg*gravity + downforce

	//4.- Longitudinal forces along the heading.
	driveForce := e.driveForce(state, input, speed)
	if traction := grip * normalLoad; driveForce > traction {
		// Wheelspin: the tires can only transmit the friction budget.
		driveForce = traction
	}
	brakeForce := input.Brake * spec.MassKg * maxBrakeDecel * grip
	dragForce := spec.Aero.DragCoefficient * speed * speed
	rollForce := sample.RollingResistance * normalLoad

	accel := driveForce / spec.MassKg
	decel := (brakeForce + dragForce + rollForce) / spec.MassKg

	direction := 1.0
	if state.Gear == -1 {
		direction = -1.0
	}
	newSpeed := speed + (accel*direction-decel*sign(speed))*dt
	if state.Gear != -1 && newSpeed < 0 {
		newSpeed = 0
	}

	//5.- Steering requests a yaw rate; the grip budget caps the matching
	// centripetal acceleration and the excess shows up as slip.
	outcome := StepOutcome{}
	yawRate := 0.0
	if math.Abs(newSpeed) > minSteerSpeed {
		yawRate = input.Steering * maxSteerRad * newSpeed / wheelbase
		latRequired := math.Abs(newSpeed * yawRate)
		latAvailable := grip * normalLoad / spec.MassKg
		if state.SlipRatio > 0 {
			// A tire already past its optimal slip holds less than the
			// static budget, so sustained overdriving keeps costing grip.
			latAvailable *= 1 - slipGripFalloff*math.Min(1, state.SlipRatio)
		}
		if latRequired > latAvailable {
			outcome.Slip = (latRequired - latAvailable) / latRequired
			yawRate = sign(yawRate) * latAvailable / math.Abs(newSpeed)
			latRequired = latAvailable
		}
		outcome.LateralG = latRequired / gravity
	}

	//6.- Exponential-map quaternion integration keeps long runs drift free.
	if yawRate != 0 {
		delta := QuatFromScaledAxis(Vec3{Y: yawRate * dt})
		state.Orientation = delta.Mul(state.Orientation).Normalized()
	}

	//7.- Semi-implicit Euler: the updated velocity moves the position.
	forward := state.Orientation.Forward()
	state.Velocity = forward.Scale(newSpeed)
	state.Position = state.Position.Add(state.Velocity.Scale(dt))

	e.updateTireTemps(state, input, outcome, math.Abs(newSpeed), dt)
	state.Tires.Update(math.Abs(newSpeed), outcome.LateralG, dt)
	state.SlipRatio = outcome.Slip

	//8.- Drivetrain fatigue; a failed component parks the car.
	state.Damage.Wear(state.RPM/spec.Engine.RedlineRPM, spec.ReliabilityRating, dt)
	if component, failed := state.Damage.FailedComponent(); failed {
		state.Retire(component.String() + " failure")
		outcome.Retired = true
	}

	//9.- Refresh track-relative coordinates for the race and AI layers.
	located := e.geo.Locate(track.Point{X: state.Position.X, Z: state.Position.Z})
	state.Arc = located.Arc
	state.Lateral = located.Lateral
	state.Surface = located.Surface

	if !state.Position.IsFinite() || !state.Velocity.IsFinite() || !state.Orientation.IsFinite() {
		state.Position = Vec3{}
		state.Retire("numerical instability")
		outcome.Retired = true
	}
	return outcome
}

// driveForce converts engine power at the current RPM into tractive force.
func (e *Engine) driveForce(state *CarState, input ControlInput, speed float64) float64 {
	if state.Gear == 0 || input.Throttle == 0 {
		return 0
	}
	spec := state.Spec
	powerW := spec.PowerAt(state.RPM) * 1000 * state.Damage.PowerMultiplier() * input.Throttle
	//1.- Force = P/v diverges at rest, so clamp the divisor to walking pace.
	divisor := math.Max(math.Abs(speed), 4.0)
	force := powerW / divisor
	if state.Gear == -1 {
		//2.- Reverse is deliberately weak and capped.
		force = math.Min(force*0.25, spec.MassKg*2.0)
	}
	return force
}

// updateRPM derives engine speed from wheel speed and the selected ratio.
func (e *Engine) updateRPM(state *CarState, input ControlInput, speed float64) float64 {
	spec := state.Spec
	if state.Gear == 0 {
		//1.- Neutral revs follow the throttle alone.
		return clamp(spec.Engine.IdleRPM+input.Throttle*(spec.Engine.RedlineRPM-spec.Engine.IdleRPM), spec.Engine.IdleRPM, spec.Engine.RedlineRPM)
	}
	ratio := spec.RatioFor(state.Gear)
	wheelRPS := math.Abs(speed) / (2 * math.Pi * spec.WheelRadiusM)
	rpm := wheelRPS * ratio * 60
	return clamp(rpm, spec.Engine.IdleRPM, spec.Engine.RedlineRPM)
}

// applyGearShift handles manual shift requests and the automatic gearbox.
func (e *Engine) applyGearShift(state *CarState, input ControlInput) {
	if state.shiftCooldown > 0 {
		state.shiftCooldown--
		return
	}
	spec := state.Spec
	shift := 0
	switch {
	case input.GearUp && !input.GearDown:
		shift = 1
	case input.GearDown && !input.GearUp:
		shift = -1
	default:
		//1.- No manual request: drive the automatic gearbox on RPM bands.
		redline := spec.Engine.RedlineRPM
		if state.Gear >= 1 && state.Gear < spec.TopGear() && state.RPM >= redline*upshiftRPMFraction {
			shift = 1
		} else if state.Gear > 1 && state.RPM <= redline*downshiftRPMFraction {
			shift = -1
		}
	}
	if shift == 0 {
		return
	}
	next := state.Gear + shift
	if next < -1 || next > spec.TopGear() {
		return
	}
	//2.- Reverse is only reachable from a standstill.
	if next == -1 && state.Speed() > 1.0 {
		return
	}
	state.Gear = next
	state.shiftCooldown = shiftDwellTicks
}

// updateTireTemps relaxes each tire toward a workload-driven target.
func (e *Engine) updateTireTemps(state *CarState, input ControlInput, outcome StepOutcome, speed, dt float64) {
	//1.- Cornering, braking, and raw speed all put energy into the rubber.
	workload := outcome.LateralG*12 + input.Brake*20 + speed*0.35 + outcome.Slip*30
	target := clamp(tireTempMin+workload, tireTempMin, tireTempMax)
	rate := 0.35 * dt
	for i := range state.TireTempC {
		bias := 1.0
		if i >= 2 {
			//2.- Traction work runs the rears slightly hotter.
			bias = 1.05
		}
		state.TireTempC[i] += (target*bias - state.TireTempC[i]) * rate
		state.TireTempC[i] = clamp(state.TireTempC[i], tireTempMin, tireTempMax)
	}
}

// tireTemperatureGrip maps tire temperature to a grip fraction, peaking at
// the optimal temperature and never dropping below half grip.
func tireTemperatureGrip(tempC float64) float64 {
	return math.Max(0.5, 1.0-math.Abs(tempC-tireTempOptimal)/50.0)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
