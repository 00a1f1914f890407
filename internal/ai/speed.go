package ai

import (
	"math"

	"apexgp/sim/internal/track"
)

const (
	pidKp            = 0.05
	pidKi            = 0.01
	pidKd            = 0.02
	pidIntegralLimit = 10.0

	// latAccelBudget is the cornering acceleration a perfect driver plans
	// for on full grip, in m/s^2. Skill scales it down.
	latAccelBudget = 24.0
	brakeDecel     = 32.0
	minCornerSpeed = 12.0
	topSpeedCap    = 95.0
)

// speedController is a PID loop from speed error to a single throttle/brake
// axis. Positive output opens the throttle, negative output brakes.
type speedController struct {
	integral  float64
	lastError float64
	primed    bool
}

// update advances the loop and returns the raw control axis.
func (c *speedController) update(targetMps, currentMps, dt float64) float64 {
	if c == nil || dt <= 0 {
		return 0
	}
	err := targetMps - currentMps
	//1.- Anti-windup: the integral term is clamped, not the output.
	c.integral = math.Max(-pidIntegralLimit, math.Min(pidIntegralLimit, c.integral+err*dt))
	derivative := 0.0
	if c.primed {
		derivative = (err - c.lastError) / dt
	}
	c.lastError = err
	c.primed = true
	return pidKp*err + pidKi*c.integral + pidKd*derivative
}

// reset clears the loop state, used when the car is repositioned or serviced.
func (c *speedController) reset() {
	if c == nil {
		return
	}
	c.integral = 0
	c.lastError = 0
	c.primed = false
}

// cornerSpeedLimit walks the track ahead of the car and returns the highest
// speed from which every upcoming corner is still reachable under braking.
func cornerSpeedLimit(geo *track.Geometry, arc, grip, skill float64) float64 {
	if geo == nil {
		return topSpeedCap
	}
	budget := latAccelBudget * grip * (0.55 + 0.45*skill)
	limit := topSpeedCap
	//1.- Sample curvature at increasing distances; a far corner caps the
	// current speed through the braking-distance relation v^2 = vc^2 + 2ad.
	for dist := 5.0; dist <= 160.0; dist += 5.0 {
		curvature := geo.CurvatureAt(geo.WrapArc(arc + dist))
		if curvature < 1e-6 {
			continue
		}
		cornerSpeed := math.Max(math.Sqrt(budget/curvature), minCornerSpeed)
		allowed := math.Sqrt(cornerSpeed*cornerSpeed + 2*brakeDecel*dist)
		if allowed < limit {
			limit = allowed
		}
	}
	return limit
}
