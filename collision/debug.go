package collision

import (
	"time"

	"github.com/aukilabs/vegetation-spawner/models"
)

type DebugInfo struct {
	TerrainID    models.TerrainID `json:"terrain_id"`
	BuildID      string           `json:"build_id"`
	BuiltAt      time.Time        `json:"built_at"`
	CellSize     float64          `json:"cell_size"`
	Divisions    int              `json:"divisions"`
	ColCount     int              `json:"col_count"`
	RowCount     int              `json:"row_count"`
	FreeCount    int              `json:"free_count"`
	BlockedCount int              `json:"blocked_count"`

	// Number of blocked subcells per top level cell, row major.
	Occupancy []uint32 `json:"occupancy"`
}

// DebugInfo summarizes the grid of a terrain. It returns false when the
// terrain has no grid.
func (c *Cache) DebugInfo(id models.TerrainID) (DebugInfo, bool) {
	grid, ok := c.grid(id)
	if !ok {
		return DebugInfo{}, false
	}

	result := DebugInfo{
		TerrainID: id,
		BuildID:   grid.BuildID,
		BuiltAt:   grid.BuiltAt,
		CellSize:  grid.CellSize,
		Divisions: grid.Divisions,
		ColCount:  grid.XCount(),
		RowCount:  grid.ZCount(),
	}
	result.FreeCount, result.BlockedCount = grid.count()

	result.Occupancy = make([]uint32, result.RowCount*result.ColCount)
	for z, row := range grid.Cells {
		for x, cell := range row {
			var blocked uint32
			for _, subRow := range cell.SubCells {
				for _, sub := range subRow {
					if sub.Occupancy == Blocked {
						blocked++
					}
				}
			}
			result.Occupancy[z*result.ColCount+x] = blocked
		}
	}
	return result, true
}
