package physics

import (
	"math"

	"github.com/aukilabs/vegetation-spawner/models"
)

// LayerMask selects physics layers by bit. Layer n is selected by bit n.
type LayerMask uint32

const (
	// AllLayers selects every layer.
	AllLayers LayerMask = math.MaxUint32

	MaxLayer = 31

	// Rays whose horizontal direction is below this are cast vertically.
	directionEpsilon = 1e-9
)

// Contains reports whether layer is selected by the mask.
func (m LayerMask) Contains(layer int) bool {
	if layer < 0 || layer > MaxLayer {
		return false
	}
	return m&(1<<uint(layer)) != 0
}

// LayerMaskOf returns the mask selecting the given layers.
func LayerMaskOf(layers ...int) LayerMask {
	var m LayerMask
	for _, l := range layers {
		if l >= 0 && l <= MaxLayer {
			m |= 1 << uint(l)
		}
	}
	return m
}

// Collider is a solid shape rays can hit.
type Collider interface {
	// Returns the physics layer the collider belongs to.
	PhysicsLayer() int

	// Reports whether the collider takes part in raycasts.
	IsEnabled() bool

	SetEnabled(bool)

	// Returns the distance along r where it first hits the collider, if it
	// does within maxDistance.
	Intersect(r models.Ray, maxDistance float64) (bool, float64)
}

// BoxCollider is an axis aligned solid box.
type BoxCollider struct {
	Name     string
	Bounds   models.Bounds
	Layer    int
	Disabled bool
}

func (c *BoxCollider) PhysicsLayer() int {
	return c.Layer
}

func (c *BoxCollider) IsEnabled() bool {
	return !c.Disabled
}

func (c *BoxCollider) SetEnabled(v bool) {
	c.Disabled = !v
}

func (c *BoxCollider) Intersect(r models.Ray, maxDistance float64) (bool, float64) {
	hit, d := models.IntersectBounds(r, c.Bounds)
	if !hit || d > maxDistance {
		return false, -1
	}
	return true, d
}

// TerrainCollider is the ground collider of a terrain. Rays only hit its top
// surface: a ray starting below the surface passes through.
type TerrainCollider struct {
	Terrain  *models.Terrain
	Layer    int
	Disabled bool
}

func (c *TerrainCollider) PhysicsLayer() int {
	return c.Layer
}

func (c *TerrainCollider) IsEnabled() bool {
	return !c.Disabled
}

func (c *TerrainCollider) SetEnabled(v bool) {
	c.Disabled = !v
}

// Owner returns the id of the terrain the collider belongs to.
func (c *TerrainCollider) Owner() models.TerrainID {
	return c.Terrain.ID
}

func (c *TerrainCollider) Intersect(r models.Ray, maxDistance float64) (bool, float64) {
	if models.EqualWithEpsilon(r.Direction.X, 0, directionEpsilon) &&
		models.EqualWithEpsilon(r.Direction.Z, 0, directionEpsilon) {
		return c.intersectVertical(r, maxDistance)
	}
	return c.intersectMarching(r, maxDistance)
}

func (c *TerrainCollider) intersectVertical(r models.Ray, maxDistance float64) (bool, float64) {
	// Rays going up never meet the surface from above.
	down := r.Direction.Dot(models.Down)
	if !c.Terrain.ContainsXZ(r.Origin) || down <= 0 {
		return false, -1
	}

	nx, nz := c.Terrain.Normalize(r.Origin)
	above := r.Origin.Y - c.Terrain.SampleHeight(nx, nz)
	if above < 0 {
		return false, -1
	}

	d := above / down
	if d > maxDistance {
		return false, -1
	}
	return true, d
}

func (c *TerrainCollider) heightAbove(p models.Vector3) (float64, bool) {
	if !c.Terrain.ContainsXZ(p) {
		return 0, false
	}
	nx, nz := c.Terrain.Normalize(p)
	return p.Y - c.Terrain.SampleHeight(nx, nz), true
}

func (c *TerrainCollider) intersectMarching(r models.Ray, maxDistance float64) (bool, float64) {
	step := c.marchStep()

	prevDistance := 0.0
	prevAbove, prevInside := c.heightAbove(r.Origin)

	for d := step; d <= maxDistance+step; d += step {
		d = math.Min(d, maxDistance)
		above, inside := c.heightAbove(r.At(d))

		if inside && prevInside && prevAbove >= 0 && above < 0 {
			lo, hi := prevDistance, d
			for i := 0; i < 24; i++ {
				mid := (lo + hi) / 2
				if a, _ := c.heightAbove(r.At(mid)); a >= 0 {
					lo = mid
				} else {
					hi = mid
				}
			}
			return true, lo
		}

		if d >= maxDistance {
			break
		}
		prevDistance, prevAbove, prevInside = d, above, inside
	}
	return false, -1
}

// marchStep returns half the height field sample spacing.
func (c *TerrainCollider) marchStep() float64 {
	t := c.Terrain
	rows := len(t.Heights)
	if rows < 2 || len(t.Heights[0]) < 2 {
		return math.Max(math.Min(t.Size.X, t.Size.Z)/64, 0.01)
	}
	stepX := t.Size.X / float64(len(t.Heights[0])-1)
	stepZ := t.Size.Z / float64(rows-1)
	return math.Max(math.Min(stepX, stepZ)/2, 0.01)
}
