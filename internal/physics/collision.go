package physics

import (
	"math"
	"sort"

	"apexgp/sim/internal/track"
)

const (
	// carRadius approximates the car footprint for contact tests.
	carRadius = 1.7
	// contactRestitution keeps car-to-car bounces inelastic.
	contactRestitution = 0.3
)

// ResolveWallContact pushes a car that left the runoff back inside the wall
// line. The velocity component into the wall is absorbed; the component along
// the wall survives, so glancing hits scrub speed instead of stopping dead.
func (e *Engine) ResolveWallContact(state *CarState) {
	if e == nil || state == nil || state.Retired {
		return
	}
	sample := e.geo.Locate(track.Point{X: state.Position.X, Z: state.Position.Z})
	limit := e.geo.WallDistance(sample.SegmentIndex)
	if math.Abs(sample.Lateral) <= limit {
		return
	}
	tangent := e.geo.TangentAt(sample.Arc)
	//1.- The outward normal points toward the side the car escaped on.
	normal := Vec3{X: -tangent.Z, Z: tangent.X}
	if sample.Lateral < 0 {
		normal = normal.Scale(-1)
	}
	//2.- Project the car back onto the wall line.
	overshoot := math.Abs(sample.Lateral) - limit
	state.Position = state.Position.Sub(normal.Scale(overshoot))

	//3.- Absorb the normal velocity, keep the tangential share.
	into := state.Velocity.Dot(normal)
	if into > 0 {
		state.Velocity = state.Velocity.Sub(normal.Scale(into))
		state.Damage.ApplyImpact(into)
	}
	located := e.geo.Locate(track.Point{X: state.Position.X, Z: state.Position.Z})
	state.Arc = located.Arc
	state.Lateral = located.Lateral
	state.Surface = located.Surface
}

type contact struct {
	a, b    int
	normal  Vec3
	overlap float64
	closing float64
}

// ResolveCarContacts detects and resolves every overlapping car pair. All
// contacts are gathered from the same snapshot before any state changes, so
// the result does not depend on slot order.
func (e *Engine) ResolveCarContacts(states []*CarState) {
	if e == nil || len(states) < 2 {
		return
	}
	//1.- Detection phase against the immutable tick snapshot.
	var contacts []contact
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			a, b := states[i], states[j]
			if a == nil || b == nil || a.Retired || b.Retired {
				continue
			}
			delta := b.Position.Sub(a.Position)
			dist := delta.Length()
			minDist := 2 * carRadius
			if dist >= minDist {
				continue
			}
			normal := delta.Normalized()
			if dist == 0 {
				//2.- Coincident centers get a deterministic separation axis.
				normal = a.Orientation.Forward()
			}
			closing := a.Velocity.Sub(b.Velocity).Dot(normal)
			contacts = append(contacts, contact{a: i, b: j, normal: normal, overlap: minDist - dist, closing: closing})
		}
	}
	sort.Slice(contacts, func(x, y int) bool {
		if contacts[x].a != contacts[y].a {
			return contacts[x].a < contacts[y].a
		}
		return contacts[x].b < contacts[y].b
	})

	//3.- Resolution phase applies mass-proportional separation and impulse.
	for _, c := range contacts {
		a, b := states[c.a], states[c.b]
		massA, massB := a.Spec.MassKg, b.Spec.MassKg
		total := massA + massB
		if total <= 0 {
			continue
		}
		a.Position = a.Position.Sub(c.normal.Scale(c.overlap * massB / total))
		b.Position = b.Position.Add(c.normal.Scale(c.overlap * massA / total))

		if c.closing <= 0 {
			continue
		}
		impulse := (1 + contactRestitution) * c.closing * massA * massB / total
		a.Velocity = a.Velocity.Sub(c.normal.Scale(impulse / massA))
		b.Velocity = b.Velocity.Add(c.normal.Scale(impulse / massB))
		a.Damage.ApplyImpact(c.closing)
		b.Damage.ApplyImpact(c.closing)
	}
}
