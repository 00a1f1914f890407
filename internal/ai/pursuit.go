package ai

import (
	"math"

	"apexgp/sim/internal/physics"
	"apexgp/sim/internal/track"
)

const (
	lookaheadBase    = 8.0
	lookaheadPerMps  = 0.35
	lookaheadMax     = 45.0
	pursuitWheelbase = 3.2
	pursuitSteerLock = 0.35
)

// pursuitSteering computes a steering fraction that curves the car onto the
// point lookahead metres further along the centerline, offset sideways by
// lineOffset metres. This is the classic pure-pursuit law: the chord to the
// goal point implies a curvature of 2*x/L^2 in car-local coordinates.
func pursuitSteering(geo *track.Geometry, state *physics.CarState, lineOffset float64) float64 {
	if geo == nil || state == nil {
		return 0
	}
	speed := state.Speed()
	lookahead := math.Min(lookaheadBase+speed*lookaheadPerMps, lookaheadMax)

	targetArc := geo.WrapArc(state.Arc + lookahead)
	center := geo.PointAt(targetArc)
	tangent := geo.TangentAt(targetArc)
	//1.- Offset the goal point off the centerline for overtaking and defending.
	normal := track.Point{X: -tangent.Z, Z: tangent.X}
	goal := physics.Vec3{X: center.X + normal.X*lineOffset, Z: center.Z + normal.Z*lineOffset}

	//2.- Express the goal in car-local coordinates, x right and z forward.
	delta := goal.Sub(state.Position)
	yaw := state.Orientation.Yaw()
	sin, cos := math.Sin(yaw), math.Cos(yaw)
	localX := delta.X*cos - delta.Z*sin
	localZ := delta.X*sin + delta.Z*cos

	if localZ <= 0 {
		//3.- Goal behind the car, e.g. after a spin: steer hard toward it.
		if localX >= 0 {
			return 1
		}
		return -1
	}
	distSq := localX*localX + localZ*localZ
	if distSq == 0 {
		return 0
	}
	curvature := 2 * localX / distSq
	steer := curvature * pursuitWheelbase / pursuitSteerLock
	return math.Max(-1, math.Min(1, steer))
}
