// Package track models the immutable circuit geometry shared by the physics
// engine, the AI drivers, and the race session. A Geometry is built once from
// loader output and never mutated afterwards, so it is safe to share across
// cars without locking.
package track

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTooFewSegments is returned when a circuit cannot form a closed loop.
	ErrTooFewSegments = errors.New("track needs at least three segments")
	// ErrZeroLengthSegment indicates two consecutive centerline samples coincide.
	ErrZeroLengthSegment = errors.New("track segment has zero length")
	// ErrInvalidWidth indicates a non-positive segment width.
	ErrInvalidWidth = errors.New("track segment width must be positive")
)

// Surface enumerates the drivable surface types a tire can touch.
type Surface int

const (
	SurfaceTarmac Surface = iota
	SurfaceKerb
	SurfacePitLane
	SurfaceGrass
	SurfaceGravel
)

func (s Surface) String() string {
	switch s {
	case SurfaceTarmac:
		return "tarmac"
	case SurfaceKerb:
		return "kerb"
	case SurfacePitLane:
		return "pitlane"
	case SurfaceGrass:
		return "grass"
	case SurfaceGravel:
		return "gravel"
	default:
		return "unknown"
	}
}

// GripMultiplier reports the fraction of nominal tire grip the surface offers.
func (s Surface) GripMultiplier() float64 {
	switch s {
	case SurfaceTarmac:
		return 1.0
	case SurfaceKerb:
		return 0.85
	case SurfacePitLane:
		return 0.95
	case SurfaceGrass:
		return 0.3
	case SurfaceGravel:
		return 0.2
	default:
		return 1.0
	}
}

// RollingResistance reports the rolling drag coefficient for the surface.
func (s Surface) RollingResistance() float64 {
	switch s {
	case SurfaceTarmac, SurfacePitLane:
		return 0.015
	case SurfaceKerb:
		return 0.02
	case SurfaceGrass:
		return 0.08
	case SurfaceGravel:
		return 0.15
	default:
		return 0.015
	}
}

// Point is a 2D position on the horizontal plane of the circuit.
type Point struct {
	X float64
	Z float64
}

// Sub returns the component wise difference between two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Z: p.Z - other.Z}
}

// Length computes the Euclidean norm of the point treated as a vector.
func (p Point) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Z*p.Z)
}

// Segment describes one centerline sample of the circuit polyline.
type Segment struct {
	Center  Point
	Width   float64
	Surface Surface
}

// Sample reports everything the physics engine needs to know about a position
// relative to the circuit.
type Sample struct {
	// Arc is the arc-length coordinate of the projected centerline point.
	Arc float64
	// Lateral is the signed offset from the centerline; positive is to the
	// left of the direction of travel.
	Lateral float64
	// SegmentIndex identifies the closest polyline segment.
	SegmentIndex int
	// Surface is the surface type under the position.
	Surface Surface
	// OnTrack reports whether the position lies within the paved width.
	OnTrack bool
	// Grip is the surface grip multiplier, including off-track tiers.
	Grip float64
	// RollingResistance is the rolling drag coefficient for the surface.
	RollingResistance float64
}

// Geometry is an immutable closed circuit described by an ordered sequence of
// centerline segments with a strictly increasing arc-length coordinate that
// wraps at the start/finish line.
type Geometry struct {
	name     string
	segments []Segment
	// arcs[i] holds the cumulative arc-length at the start of segment i; the
	// closing edge back to segment 0 completes the loop.
	arcs   []float64
	length float64
	runoff float64
}

// Option customises optional geometry parameters at construction time.
type Option func(*Geometry)

// WithRunoff overrides the drivable runoff width beyond the paved edge before
// the boundary wall is reached.
func WithRunoff(width float64) Option {
	return func(g *Geometry) {
		//1.- Ignore non-positive widths so the default stays in effect.
		if width > 0 {
			g.runoff = width
		}
	}
}

// defaultRunoff leaves room for grass and a gravel trap before the wall.
const defaultRunoff = 12.0

// New validates the supplied segments and assembles the immutable geometry.
// Inconsistent track data is rejected here so a race can never start on it.
func New(name string, segments []Segment, opts ...Option) (*Geometry, error) {
	//1.- A closed loop needs at least three distinct centerline samples.
	if len(segments) < 3 {
		return nil, ErrTooFewSegments
	}
	geometry := &Geometry{
		name:     name,
		segments: append([]Segment(nil), segments...),
		arcs:     make([]float64, len(segments)),
		runoff:   defaultRunoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(geometry)
		}
	}
	//2.- Accumulate the arc-length coordinate, rejecting degenerate segments
	// so the coordinate is strictly increasing along the sequence.
	total := 0.0
	for i, segment := range geometry.segments {
		if segment.Width <= 0 {
			return nil, fmt.Errorf("%w: segment %d", ErrInvalidWidth, i)
		}
		next := geometry.segments[(i+1)%len(geometry.segments)]
		edge := next.Center.Sub(segment.Center).Length()
		if edge <= 0 {
			return nil, fmt.Errorf("%w: segment %d", ErrZeroLengthSegment, i)
		}
		geometry.arcs[i] = total
		total += edge
	}
	geometry.length = total
	return geometry, nil
}

// Circle builds a circular test circuit with evenly spaced segments. It stands
// in for loader output during development and in tests.
func Circle(name string, radius, width float64, samples int) (*Geometry, error) {
	if samples < 3 {
		samples = 32
	}
	segments := make([]Segment, 0, samples)
	for i := 0; i < samples; i++ {
		angle := float64(i) / float64(samples) * 2 * math.Pi
		segments = append(segments, Segment{
			Center:  Point{X: radius * math.Cos(angle), Z: radius * math.Sin(angle)},
			Width:   width,
			Surface: SurfaceTarmac,
		})
	}
	return New(name, segments)
}

// Name returns the circuit name supplied by the loader.
func (g *Geometry) Name() string {
	if g == nil {
		return ""
	}
	return g.name
}

// Length returns the total centerline length of the closed circuit.
func (g *Geometry) Length() float64 {
	if g == nil {
		return 0
	}
	return g.length
}

// SegmentCount returns the number of centerline samples.
func (g *Geometry) SegmentCount() int {
	if g == nil {
		return 0
	}
	return len(g.segments)
}

// Runoff returns the drivable width beyond the paved edge before the wall.
func (g *Geometry) Runoff() float64 {
	if g == nil {
		return 0
	}
	return g.runoff
}

// WrapArc normalises an arc-length coordinate into [0, Length).
func (g *Geometry) WrapArc(arc float64) float64 {
	if g == nil || g.length <= 0 {
		return 0
	}
	wrapped := math.Mod(arc, g.length)
	if wrapped < 0 {
		wrapped += g.length
	}
	return wrapped
}

// PointAt returns the centerline point at the given arc-length, wrapping past
// the start/finish line.
func (g *Geometry) PointAt(arc float64) Point {
	if g == nil || len(g.segments) == 0 {
		return Point{}
	}
	wrapped := g.WrapArc(arc)
	idx := g.segmentAtArc(wrapped)
	start := g.segments[idx].Center
	end := g.segments[(idx+1)%len(g.segments)].Center
	edge := end.Sub(start)
	edgeLen := edge.Length()
	t := 0.0
	if edgeLen > 0 {
		t = (wrapped - g.arcs[idx]) / edgeLen
	}
	return Point{X: start.X + edge.X*t, Z: start.Z + edge.Z*t}
}

// TangentAt returns the unit direction of travel at the given arc-length.
func (g *Geometry) TangentAt(arc float64) Point {
	if g == nil || len(g.segments) == 0 {
		return Point{}
	}
	idx := g.segmentAtArc(g.WrapArc(arc))
	start := g.segments[idx].Center
	end := g.segments[(idx+1)%len(g.segments)].Center
	edge := end.Sub(start)
	length := edge.Length()
	if length == 0 {
		return Point{}
	}
	return Point{X: edge.X / length, Z: edge.Z / length}
}

// CurvatureAt estimates the centerline curvature (1/m) at the given
// arc-length from the heading change between adjacent polyline edges.
func (g *Geometry) CurvatureAt(arc float64) float64 {
	if g == nil || len(g.segments) < 3 {
		return 0
	}
	idx := g.segmentAtArc(g.WrapArc(arc))
	next := (idx + 1) % len(g.segments)
	t0 := g.edgeTangent(idx)
	t1 := g.edgeTangent(next)
	//1.- The turn angle between consecutive edges divided by the edge length
	// approximates 1/R along the polyline.
	cross := t0.X*t1.Z - t0.Z*t1.X
	dot := t0.X*t1.X + t0.Z*t1.Z
	angle := math.Abs(math.Atan2(cross, dot))
	edgeLen := g.edgeLength(idx)
	if edgeLen <= 0 {
		return 0
	}
	return angle / edgeLen
}

// Locate projects a position onto the circuit and reports the surface sample
// used for grip lookups, lap progress, and boundary checks.
func (g *Geometry) Locate(p Point) Sample {
	if g == nil || len(g.segments) == 0 {
		return Sample{Grip: 1.0, RollingResistance: SurfaceTarmac.RollingResistance()}
	}
	bestDist := math.MaxFloat64
	bestIdx := 0
	bestArc := 0.0
	bestLateral := 0.0
	//1.- Project onto every polyline edge and keep the closest, mirroring the
	// clamped segment projection used for guidance splines.
	for idx := range g.segments {
		a := g.segments[idx].Center
		b := g.segments[(idx+1)%len(g.segments)].Center
		ab := b.Sub(a)
		abLenSq := ab.X*ab.X + ab.Z*ab.Z
		if abLenSq == 0 {
			continue
		}
		ap := p.Sub(a)
		t := (ap.X*ab.X + ap.Z*ab.Z) / abLenSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		closest := Point{X: a.X + ab.X*t, Z: a.Z + ab.Z*t}
		delta := p.Sub(closest)
		dist := delta.Length()
		if dist < bestDist {
			bestDist = dist
			bestIdx = idx
			edgeLen := math.Sqrt(abLenSq)
			bestArc = g.arcs[idx] + edgeLen*t
			//2.- Sign the lateral offset with the 2D cross product of the edge
			// tangent and the offset vector; positive means left of travel.
			cross := (ab.X/edgeLen)*delta.Z - (ab.Z/edgeLen)*delta.X
			if cross >= 0 {
				bestLateral = dist
			} else {
				bestLateral = -dist
			}
		}
	}

	segment := g.segments[bestIdx]
	halfWidth := segment.Width / 2
	sample := Sample{
		Arc:          g.WrapArc(bestArc),
		Lateral:      bestLateral,
		SegmentIndex: bestIdx,
	}
	if bestDist <= halfWidth {
		sample.Surface = segment.Surface
		sample.OnTrack = true
		sample.Grip = segment.Surface.GripMultiplier()
	} else {
		//3.- Grade the runoff: a strip of grass right at the edge, wider grass
		// beyond it, then the gravel trap before the wall.
		off := bestDist - halfWidth
		switch {
		case off < 2.0:
			sample.Surface = SurfaceGrass
			sample.Grip = 0.4
		case off < 5.0:
			sample.Surface = SurfaceGrass
			sample.Grip = SurfaceGrass.GripMultiplier()
		default:
			sample.Surface = SurfaceGravel
			sample.Grip = SurfaceGravel.GripMultiplier()
		}
	}
	sample.RollingResistance = sample.Surface.RollingResistance()
	return sample
}

// WallDistance reports the lateral distance from the centerline to the
// boundary wall for the given segment.
func (g *Geometry) WallDistance(segmentIndex int) float64 {
	if g == nil || segmentIndex < 0 || segmentIndex >= len(g.segments) {
		return 0
	}
	return g.segments[segmentIndex].Width/2 + g.runoff
}

// CrossedStartLine reports whether moving from prevArc to arc wrapped past the
// start/finish line in the direction of travel.
func (g *Geometry) CrossedStartLine(prevArc, arc float64) bool {
	if g == nil || g.length <= 0 {
		return false
	}
	prev := g.WrapArc(prevArc)
	curr := g.WrapArc(arc)
	//1.- A genuine wrap moves from near the end of the lap to near the start;
	// require more than half a lap of backwards jump to reject jitter at the line.
	return prev > curr && prev-curr > g.length/2
}

func (g *Geometry) segmentAtArc(arc float64) int {
	//1.- Walk the cumulative table; circuits are small enough that a linear
	// scan beats maintaining a search structure.
	for idx := len(g.arcs) - 1; idx >= 0; idx-- {
		if arc >= g.arcs[idx] {
			return idx
		}
	}
	return 0
}

func (g *Geometry) edgeTangent(idx int) Point {
	a := g.segments[idx].Center
	b := g.segments[(idx+1)%len(g.segments)].Center
	edge := b.Sub(a)
	length := edge.Length()
	if length == 0 {
		return Point{}
	}
	return Point{X: edge.X / length, Z: edge.Z / length}
}

func (g *Geometry) edgeLength(idx int) float64 {
	a := g.segments[idx].Center
	b := g.segments[(idx+1)%len(g.segments)].Center
	return b.Sub(a).Length()
}
