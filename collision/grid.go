package collision

import (
	"context"
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/physics"
)

// Grid is the partition of one terrain into top level cells indexed [z][x].
type Grid struct {
	TerrainID   models.TerrainID
	BuildID     string
	BuiltAt     time.Time
	TerrainSize models.Vector3
	CellSize    float64
	Divisions   int
	Cells       [][]*Cell
}

func (g *Grid) XCount() int {
	if len(g.Cells) == 0 {
		return 0
	}
	return len(g.Cells[0])
}

func (g *Grid) ZCount() int {
	return len(g.Cells)
}

// cellIndex maps a normalized terrain coordinate to a top level cell index.
// A coordinate of exactly 1 resolves to the last cell.
func cellIndex(normalized, terrainSize, cellSize float64, count int) (int, bool) {
	if normalized < 0 || normalized > 1 || math.IsNaN(normalized) {
		return 0, false
	}

	i := int(math.Floor((terrainSize / cellSize) * normalized))
	if i >= count {
		i = count - 1
	}
	return i, i >= 0
}

// Cell returns the top level cell holding the normalized coordinates.
func (g *Grid) Cell(nx, nz float64) (*Cell, error) {
	x, okX := cellIndex(nx, g.TerrainSize.X, g.CellSize, g.XCount())
	z, okZ := cellIndex(nz, g.TerrainSize.Z, g.CellSize, g.ZCount())
	if !okX || !okZ {
		return nil, errors.New("position is outside of the terrain grid").
			WithType(ErrTypeOutOfGrid).
			WithTag("terrain_id", g.TerrainID).
			WithTag("normalized_x", nx).
			WithTag("normalized_z", nz)
	}

	cell := g.Cells[z][x]
	if cell == nil {
		return nil, errors.New("top level cell is missing").
			WithType(ErrTypeOutOfGrid).
			WithTag("terrain_id", g.TerrainID).
			WithTag("cell_x", x).
			WithTag("cell_z", z)
	}
	return cell, nil
}

// gridBuilder samples one terrain against the physics world.
type gridBuilder struct {
	terrain  *models.Terrain
	world    Raycaster
	options  Options
	progress func()
}

func (b *gridBuilder) build(ctx context.Context) (*Grid, error) {
	t := b.terrain
	cellSize := b.options.CellSize
	xCount, zCount := gridDimensions(t, cellSize)

	grid := &Grid{
		TerrainID:   t.ID,
		TerrainSize: t.Size,
		CellSize:    cellSize,
		Divisions:   b.options.CellDivisions,
		Cells:       make([][]*Cell, zCount),
	}

	for z := 0; z < zCount; z++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.New("collision cache build canceled").
				WithType(ErrTypeBuildCanceled).
				WithTag("terrain_id", t.ID).
				Wrap(err)
		}

		grid.Cells[z] = make([]*Cell, xCount)
		for x := 0; x < xCount; x++ {
			cell, err := b.buildCell(x, z)
			if err != nil {
				return nil, err
			}
			grid.Cells[z][x] = cell

			if b.progress != nil {
				b.progress()
			}
		}
	}

	return grid, nil
}

func gridDimensions(t *models.Terrain, cellSize float64) (xCount, zCount int) {
	return int(math.Ceil(t.Size.X / cellSize)), int(math.Ceil(t.Size.Z / cellSize))
}

func (b *gridBuilder) buildCell(x, z int) (*Cell, error) {
	t := b.terrain
	cellSize := b.options.CellSize

	center := models.Vector3{
		X: t.Position.X + float64(x)*cellSize + cellSize/2,
		Z: t.Position.Z + float64(z)*cellSize + cellSize/2,
	}
	nx, nz := t.Normalize(center)
	center.Y = t.SampleHeight(nx, nz)

	cell := NewCell(center, models.Vector3{X: cellSize, Y: cellSize, Z: cellSize})
	if err := cell.Subdivide(b.options.CellDivisions); err != nil {
		return nil, err
	}

	for _, row := range cell.SubCells {
		for _, sub := range row {
			if b.options.HighPrecision {
				sub.Occupancy = b.sampleCorners(sub)
			} else {
				sub.Occupancy = b.sampleCenter(sub)
			}
		}
	}
	return cell, nil
}

// sampleCorners casts one ray per footprint corner. The subcell is only
// blocked when no corner lands on the terrain's own ground.
func (b *gridBuilder) sampleCorners(sub *Cell) Occupancy {
	min := sub.Bounds.Min()
	max := sub.Bounds.Max()
	y := sub.Bounds.Center.Y

	corners := [4]models.Vector3{
		{X: min.X, Y: y, Z: min.Z},
		{X: max.X, Y: y, Z: min.Z},
		{X: min.X, Y: y, Z: max.Z},
		{X: max.X, Y: y, Z: max.Z},
	}

	hitCount := len(corners)
	for _, corner := range corners {
		if !b.hitsOwnGround(corner) {
			hitCount--
		}
	}

	// Remove the cell only when all rays missed the ground.
	if hitCount == 0 {
		return Blocked
	}
	return Free
}

func (b *gridBuilder) sampleCenter(sub *Cell) Occupancy {
	if !b.hitsOwnGround(sub.Bounds.Center) {
		return Blocked
	}
	return Free
}

func (b *gridBuilder) hitsOwnGround(p models.Vector3) bool {
	origin := models.Vector3{X: p.X, Y: p.Y + RayStartOffset, Z: p.Z}
	hit, ok := b.world.Raycast(origin, models.Down, RayMaxDistance, b.options.LayerMask)
	if !ok {
		return false
	}

	ground, ok := hit.Collider.(*physics.TerrainCollider)
	return ok && ground.Owner() == b.terrain.ID
}
