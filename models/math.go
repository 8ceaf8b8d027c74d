package models

import (
	"math"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Down is the direction every occupancy sample ray is cast along.
var Down = Vector3{0, -1, 0}

func Add(a Vector3, b Vector3) Vector3 {
	return Vector3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func Sub(a Vector3, b Vector3) Vector3 {
	return Vector3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func Mul(a Vector3, s float64) Vector3 {
	return Vector3{a.X * s, a.Y * s, a.Z * s}
}

func (a Vector3) Length() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

func Normalized(a Vector3) Vector3 {
	length := a.Length()
	if length == 0 {
		return a
	}
	return Vector3{a.X / length, a.Y / length, a.Z / length}
}

func (a Vector3) Dot(b Vector3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Bounds is an axis aligned box described by its center and full size.
type Bounds struct {
	Center Vector3 `json:"center" yaml:"center"`
	Size   Vector3 `json:"size"   yaml:"size"`
}

func NewBounds(center Vector3, size Vector3) Bounds {
	return Bounds{Center: center, Size: size}
}

// NewBoundsFromMinMax returns the box spanning min and max.
func NewBoundsFromMinMax(min, max Vector3) Bounds {
	return Bounds{
		Center: Mul(Add(min, max), 0.5),
		Size:   Sub(max, min),
	}
}

func (b Bounds) Extents() Vector3 {
	return Mul(b.Size, 0.5)
}

func (b Bounds) Min() Vector3 {
	return Sub(b.Center, b.Extents())
}

func (b Bounds) Max() Vector3 {
	return Add(b.Center, b.Extents())
}

// ContainsXZ reports whether p lies within the box footprint. Y is ignored.
func (b Bounds) ContainsXZ(p Vector3) bool {
	min := b.Min()
	max := b.Max()
	return p.X >= min.X && p.X <= max.X && p.Z >= min.Z && p.Z <= max.Z
}

// Ray is a half line starting at Origin. Direction is expected to be
// normalized.
type Ray struct {
	Origin    Vector3
	Direction Vector3
}

func (r Ray) At(distance float64) Vector3 {
	return Add(r.Origin, Mul(r.Direction, distance))
}

// IntersectBounds returns the distance along the ray where it enters b. A ray
// starting inside b intersects at distance 0.
func IntersectBounds(r Ray, b Bounds) (bool, float64) {
	min := b.Min()
	max := b.Max()

	tMin := math.Inf(-1)
	tMax := math.Inf(1)

	origin := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float64{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float64{min.X, min.Y, min.Z}
	hi := [3]float64{max.X, max.Y, max.Z}

	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			if origin[i] < lo[i] || origin[i] > hi[i] {
				return false, -1
			}
			continue
		}

		t1 := (lo[i] - origin[i]) / dir[i]
		t2 := (hi[i] - origin[i]) / dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false, -1
		}
	}

	if tMax < 0 {
		return false, -1
	}
	if tMin < 0 {
		return true, 0
	}
	return true, tMin
}
