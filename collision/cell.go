package collision

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/vegetation-spawner/models"
)

// Occupancy is the sampled state of a subcell.
type Occupancy uint8

const (
	// Unsampled is the state of a subcell nothing was cast against yet.
	Unsampled Occupancy = iota

	// Free marks ground where vegetation may spawn.
	Free

	// Blocked marks a subregion covered by a solid collider.
	Blocked
)

func (o Occupancy) String() string {
	switch o {
	case Free:
		return "free"
	case Blocked:
		return "blocked"
	default:
		return "unsampled"
	}
}

// Cell is a square region of space. A cell is either a leaf or fully
// subdivided into a divisions x divisions grid of subcells indexed [z][x].
type Cell struct {
	Bounds    models.Bounds
	Occupancy Occupancy
	SubCells  [][]*Cell
}

// NewCell returns a leaf cell.
func NewCell(center models.Vector3, size models.Vector3) *Cell {
	return &Cell{
		Bounds: models.NewBounds(center, size),
	}
}

func (c *Cell) IsLeaf() bool {
	return len(c.SubCells) == 0
}

// Divisions returns the number of subcells along each axis.
func (c *Cell) Divisions() int {
	return len(c.SubCells)
}

// Subdivide replaces any previous subdivision with a divisions x divisions
// grid of free subcells tiling the cell footprint at the cell's height. Each
// subcell keeps the cell's Y size.
func (c *Cell) Subdivide(divisions int) error {
	if divisions < 1 {
		return errors.New("cell divisions must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("divisions", divisions)
	}

	min := c.Bounds.Min()
	sizeX := c.Bounds.Size.X / float64(divisions)
	sizeZ := c.Bounds.Size.Z / float64(divisions)
	size := models.Vector3{X: sizeX, Y: c.Bounds.Size.Y, Z: sizeZ}

	subCells := make([][]*Cell, divisions)
	for z := 0; z < divisions; z++ {
		subCells[z] = make([]*Cell, divisions)
		for x := 0; x < divisions; x++ {
			center := models.Vector3{
				X: min.X + (float64(x)+0.5)*sizeX,
				Y: c.Bounds.Center.Y,
				Z: min.Z + (float64(z)+0.5)*sizeZ,
			}
			sub := NewCell(center, size)
			sub.Occupancy = Free
			subCells[z][x] = sub
		}
	}

	c.SubCells = subCells
	return nil
}

// ContainsXZ reports whether p lies within the cell footprint.
func (c *Cell) ContainsXZ(p models.Vector3) bool {
	return c.Bounds.ContainsXZ(p)
}

// SubCell returns the subcell at the given index, nil when out of range.
func (c *Cell) SubCell(x, z int) *Cell {
	if z < 0 || z >= len(c.SubCells) || x < 0 || x >= len(c.SubCells[z]) {
		return nil
	}
	return c.SubCells[z][x]
}

// SubCellIndex maps a position inside the cell footprint to the index of the
// subcell holding it. Positions on the high edge of the cell belong to the
// last subcell.
func (c *Cell) SubCellIndex(p models.Vector3) (x, z int, err error) {
	if c.IsLeaf() {
		return 0, 0, errors.New("cell is not subdivided").
			WithType(ErrTypeOutOfGrid)
	}
	if !c.ContainsXZ(p) {
		return 0, 0, errors.New("position is outside of the cell").
			WithType(ErrTypeOutOfGrid).
			WithTag("position", p).
			WithTag("cell_center", c.Bounds.Center)
	}

	divisions := c.Divisions()
	min := c.Bounds.Min()
	x = subIndex(p.X-min.X, c.Bounds.Size.X, divisions)
	z = subIndex(p.Z-min.Z, c.Bounds.Size.Z, divisions)
	return x, z, nil
}

// LocateSubcell returns the subcell holding p. p must be within the cell
// footprint; callers find the cell by grid index first.
func (c *Cell) LocateSubcell(p models.Vector3) (*Cell, error) {
	x, z, err := c.SubCellIndex(p)
	if err != nil {
		return nil, err
	}
	return c.SubCells[z][x], nil
}

func subIndex(offset, size float64, divisions int) int {
	i := int(math.Floor(float64(divisions) * offset / size))
	if i < 0 {
		return 0
	}
	if i >= divisions {
		return divisions - 1
	}
	return i
}
