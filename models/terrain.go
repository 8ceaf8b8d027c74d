package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SplatLayer holds the paint weights of one terrain layer. Weights are indexed
// [z][x] and hold values in the [0, 1] range.
type SplatLayer struct {
	Name    string      `json:"name"    yaml:"name"`
	Weights [][]float64 `json:"weights" yaml:"weights"`
}

// Terrain is a height field laid over a rectangular footprint starting at
// Position.
//
// Size.X and Size.Z are the footprint width and depth in world units, Size.Y
// the height reached by a normalized height of 1. Heights is indexed [z][x]
// and holds normalized heights; an empty height field is a flat terrain at
// Position.Y.
type Terrain struct {
	ID               TerrainID    `json:"id"                yaml:"-"`
	Name             string       `json:"name"              yaml:"name"`
	Position         Vector3      `json:"position"          yaml:"position"`
	Size             Vector3      `json:"size"              yaml:"size"`
	Heights          [][]float64  `json:"heights,omitempty" yaml:"heights"`
	Layers           []SplatLayer `json:"layers,omitempty"  yaml:"layers"`
	WaterLevel       float64      `json:"water_level"       yaml:"water_level"`
	DetailResolution int          `json:"detail_resolution" yaml:"detail_resolution"`
}

// Normalize converts a world position to the terrain's normalized XZ space.
func (t *Terrain) Normalize(p Vector3) (nx, nz float64) {
	return (p.X - t.Position.X) / t.Size.X, (p.Z - t.Position.Z) / t.Size.Z
}

// WorldPosition returns the point on the terrain surface at the normalized
// coordinates.
func (t *Terrain) WorldPosition(nx, nz float64) Vector3 {
	return Vector3{
		X: t.Position.X + nx*t.Size.X,
		Y: t.SampleHeight(nx, nz),
		Z: t.Position.Z + nz*t.Size.Z,
	}
}

// ContainsXZ reports whether p lies over the terrain footprint.
func (t *Terrain) ContainsXZ(p Vector3) bool {
	nx, nz := t.Normalize(p)
	return nx >= 0 && nx <= 1 && nz >= 0 && nz <= 1
}

// SampleHeight returns the world height of the surface at the normalized
// coordinates. Coordinates are clamped to the terrain.
func (t *Terrain) SampleHeight(nx, nz float64) float64 {
	return t.Position.Y + t.normalizedHeight(Clamp01(nx), Clamp01(nz))*t.Size.Y
}

func (t *Terrain) normalizedHeight(nx, nz float64) float64 {
	rows := len(t.Heights)
	if rows == 0 || len(t.Heights[0]) == 0 {
		return 0
	}
	cols := len(t.Heights[0])
	if rows == 1 && cols == 1 {
		return t.Heights[0][0]
	}

	fx := nx * float64(cols-1)
	fz := nz * float64(rows-1)
	x0 := int(math.Floor(fx))
	z0 := int(math.Floor(fz))
	x1 := min(x0+1, cols-1)
	z1 := min(z0+1, rows-1)
	tx := fx - float64(x0)
	tz := fz - float64(z0)

	h00 := t.Heights[z0][x0]
	h10 := t.Heights[z0][x1]
	h01 := t.Heights[z1][x0]
	h11 := t.Heights[z1][x1]

	h0 := h00 + (h10-h00)*tx
	h1 := h01 + (h11-h01)*tx
	return h0 + (h1-h0)*tz
}

// sampleStep returns the normalized distance between two height field
// samples along each axis.
func (t *Terrain) sampleStep() (dx, dz float64) {
	rows := len(t.Heights)
	if rows < 2 || len(t.Heights[0]) < 2 {
		return 0, 0
	}
	return 1 / float64(len(t.Heights[0])-1), 1 / float64(rows-1)
}

// Normal returns the unit surface normal at the normalized coordinates.
func (t *Terrain) Normal(nx, nz float64) r3.Vec {
	dx, dz := t.sampleStep()
	if dx == 0 || dz == 0 {
		return r3.Vec{Y: 1}
	}

	left := t.SampleHeight(nx-dx, nz)
	right := t.SampleHeight(nx+dx, nz)
	down := t.SampleHeight(nx, nz-dz)
	up := t.SampleHeight(nx, nz+dz)

	tangentX := r3.Vec{X: 2 * dx * t.Size.X, Y: right - left}
	tangentZ := r3.Vec{Y: up - down, Z: 2 * dz * t.Size.Z}
	return r3.Unit(r3.Cross(tangentZ, tangentX))
}

// Steepness returns the surface slope in degrees, 0 being flat.
func (t *Terrain) Steepness(nx, nz float64) float64 {
	n := t.Normal(nx, nz)
	return math.Acos(math.Max(-1, math.Min(1, n.Y))) * 180 / math.Pi
}

// Curvature returns the discrete laplacian of the surface in world units.
// Positive values are concave (valleys), negative values convex (ridges).
func (t *Terrain) Curvature(nx, nz float64) float64 {
	dx, dz := t.sampleStep()
	if dx == 0 || dz == 0 {
		return 0
	}

	center := t.SampleHeight(nx, nz)
	left := t.SampleHeight(nx-dx, nz)
	right := t.SampleHeight(nx+dx, nz)
	down := t.SampleHeight(nx, nz-dz)
	up := t.SampleHeight(nx, nz+dz)

	stepX := dx * t.Size.X
	stepZ := dz * t.Size.Z
	return (left+right-2*center)/(stepX*stepX) + (up+down-2*center)/(stepZ*stepZ)
}

// SplatWeight returns the weight of the given layer at the normalized
// coordinates using nearest sampling. Unknown layers weigh 0.
func (t *Terrain) SplatWeight(layer int, nx, nz float64) float64 {
	if layer < 0 || layer >= len(t.Layers) {
		return 0
	}

	weights := t.Layers[layer].Weights
	rows := len(weights)
	if rows == 0 || len(weights[0]) == 0 {
		return 0
	}
	cols := len(weights[0])

	x := int(math.Round(Clamp01(nx) * float64(cols-1)))
	z := int(math.Round(Clamp01(nz) * float64(rows-1)))
	return weights[z][x]
}

// IsUnderwater reports whether the surface height is below the water level.
func (t *Terrain) IsUnderwater(worldHeight float64) bool {
	return worldHeight < t.WaterLevel
}
