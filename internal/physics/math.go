package physics

import "math"

// Vec3 is the vector type shared by the physics and AI layers. The simulation
// runs on the XZ plane with Y up; Y stays zero for everything except aero load.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Add returns the component-wise sum.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns the component-wise difference.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns the vector multiplied by the scalar.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the scalar product.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the vector product.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean magnitude.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns a unit vector, or the zero vector for degenerate input.
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length == 0 {
		return Vec3{}
	}
	return v.Scale(1.0 / length)
}

// ClampMagnitude limits the vector length without changing its direction.
func (v Vec3) ClampMagnitude(limit float64) Vec3 {
	//1.- Skip the guard when disabled or already within bounds.
	if !(limit > 0) {
		return v
	}
	lengthSq := v.Dot(v)
	if lengthSq <= limit*limit {
		return v
	}
	return v.Scale(limit / math.Sqrt(lengthSq))
}

// IsFinite reports whether every component is a real number.
func (v Vec3) IsFinite() bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Quat is a unit quaternion encoding the car orientation.
type Quat struct {
	W float64
	X float64
	Y float64
	Z float64
}

// IdentityQuat returns the no-rotation quaternion.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// QuatFromScaledAxis builds the rotation whose axis is the vector direction
// and whose angle is the vector magnitude in radians (the exponential map).
func QuatFromScaledAxis(v Vec3) Quat {
	angle := v.Length()
	if angle < 1e-12 {
		//1.- First-order expansion keeps tiny per-tick rotations stable.
		return Quat{W: 1, X: v.X * 0.5, Y: v.Y * 0.5, Z: v.Z * 0.5}.Normalized()
	}
	half := angle * 0.5
	s := math.Sin(half) / angle
	return Quat{W: math.Cos(half), X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// QuatFromYaw builds a rotation about the Y axis, positive turning left to
// right when looking down the +Z heading.
func QuatFromYaw(radians float64) Quat {
	half := radians * 0.5
	return Quat{W: math.Cos(half), Y: math.Sin(half)}
}

// Mul composes two rotations; the receiver is applied after the argument.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Rotate applies the rotation to the vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	//1.- v' = v + 2*qv x (qv x v + w*v), cheaper than the full sandwich product.
	qv := Vec3{X: q.X, Y: q.Y, Z: q.Z}
	t := qv.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(qv.Cross(t))
}

// Normalized rescales to unit length so repeated composition does not drift.
func (q Quat) Normalized() Quat {
	length := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if length == 0 {
		return IdentityQuat()
	}
	inv := 1.0 / length
	return Quat{W: q.W * inv, X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv}
}

// Forward returns the +Z heading rotated into world space.
func (q Quat) Forward() Vec3 {
	return q.Rotate(Vec3{Z: 1})
}

// Yaw extracts the heading angle about the Y axis in radians.
func (q Quat) Yaw() float64 {
	forward := q.Forward()
	return math.Atan2(forward.X, forward.Z)
}

// IsFinite reports whether every component is a real number.
func (q Quat) IsFinite() bool {
	for _, c := range []float64{q.W, q.X, q.Y, q.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
