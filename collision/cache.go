package collision

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/physics"
	"github.com/google/uuid"
)

// State is the lifecycle stage of a cache.
type State int

const (
	Empty State = iota
	Building
	Built
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Built:
		return "built"
	default:
		return "empty"
	}
}

// Raycaster is the physics collaborator occupancy is sampled from.
type Raycaster interface {
	Raycast(origin, direction models.Vector3, maxDistance float64, mask physics.LayerMask) (physics.Hit, bool)

	// Enables caller owned colliders and returns the function disabling them
	// again.
	EnableTemporary(colliders []physics.Collider) (release func())
}

// TerrainSource lists the terrains a cache is built for.
type TerrainSource interface {
	All() []*models.Terrain
	Get(id models.TerrainID) (*models.Terrain, bool)
}

// Cache holds, for every registered terrain, a grid of cells telling whether a
// position is covered by a solid collider.
//
// Builds are synchronous and sample the physics world with one ray per
// subcell, or four in high precision. A terrain's grid is only replaced once
// its build completes, so queries keep seeing the previous grid meanwhile.
type Cache struct {
	terrains TerrainSource
	world    Raycaster
	options  Options

	mutex      sync.RWMutex
	grids      map[models.TerrainID]*Grid
	buildLocks map[models.TerrainID]*sync.Mutex
	building   int
}

func NewCache(terrains TerrainSource, world Raycaster, options Options) *Cache {
	return &Cache{
		terrains:   terrains,
		world:      world,
		options:    options,
		grids:      make(map[models.TerrainID]*Grid),
		buildLocks: make(map[models.TerrainID]*sync.Mutex),
	}
}

func (c *Cache) Options() Options {
	return c.options
}

func (c *Cache) State() State {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	switch {
	case c.building > 0:
		return Building
	case len(c.grids) > 0:
		return Built
	default:
		return Empty
	}
}

// Clear drops every grid.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for id := range c.grids {
		instrumentSubcells(id, 0, 0)
	}
	c.grids = make(map[models.TerrainID]*Grid)
}

// Rebuild discards the cache and builds a grid for every registered terrain.
//
// The previous grids are not cleared when the build starts: they keep
// answering queries until every terrain is built and are then swapped out at
// once. A failed or canceled build leaves them in place, so queries never see
// a half built cache.
func (c *Cache) Rebuild(ctx context.Context) error {
	if err := c.options.Validate(); err != nil {
		return err
	}

	terrains := c.terrains.All()
	total := 0
	for _, t := range terrains {
		xCount, zCount := gridDimensions(t, c.options.CellSize)
		total += xCount * zCount
	}

	c.beginBuild()
	defer c.endBuild()

	release := c.world.EnableTemporary(c.options.TempColliders)
	defer release()

	progress := c.progress(total)
	grids := make(map[models.TerrainID]*Grid, len(terrains))
	for _, t := range terrains {
		grid, err := c.buildTerrain(ctx, t, progress)
		if err != nil {
			return err
		}
		grids[t.ID] = grid
	}

	c.mutex.Lock()
	for id := range c.grids {
		if _, ok := grids[id]; !ok {
			instrumentSubcells(id, 0, 0)
		}
	}
	c.grids = grids
	c.mutex.Unlock()
	return nil
}

// RebuildTerrain rebuilds the grid of a single terrain and replaces its
// previous grid.
func (c *Cache) RebuildTerrain(ctx context.Context, id models.TerrainID) error {
	if err := c.options.Validate(); err != nil {
		return err
	}

	t, ok := c.terrains.Get(id)
	if !ok {
		return errors.New("terrain is not registered").
			WithType(ErrTypeNoCache).
			WithTag("terrain_id", id)
	}

	c.beginBuild()
	defer c.endBuild()

	release := c.world.EnableTemporary(c.options.TempColliders)
	defer release()

	xCount, zCount := gridDimensions(t, c.options.CellSize)
	grid, err := c.buildTerrain(ctx, t, c.progress(xCount*zCount))
	if err != nil {
		return err
	}

	c.mutex.Lock()
	c.grids[id] = grid
	c.mutex.Unlock()
	return nil
}

func (c *Cache) beginBuild() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.building++
}

func (c *Cache) endBuild() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.building--
}

func (c *Cache) buildLock(id models.TerrainID) *sync.Mutex {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	l, ok := c.buildLocks[id]
	if !ok {
		l = &sync.Mutex{}
		c.buildLocks[id] = l
	}
	return l
}

func (c *Cache) progress(total int) func() {
	if c.options.Progress == nil {
		return nil
	}

	done := 0
	return func() {
		done++
		c.options.Progress(done, total)
	}
}

func (c *Cache) buildTerrain(ctx context.Context, t *models.Terrain, progress func()) (*Grid, error) {
	lock := c.buildLock(t.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	builder := gridBuilder{
		terrain:  t,
		world:    c.world,
		options:  c.options,
		progress: progress,
	}

	grid, err := builder.build(ctx)
	if err != nil {
		instrumentBuildError(err)
		return nil, err
	}
	grid.BuildID = uuid.NewString()
	grid.BuiltAt = time.Now()

	free, blocked := grid.count()
	instrumentBuild(start)
	instrumentSubcells(t.ID, free, blocked)

	logs.WithTag("terrain_id", t.ID).
		WithTag("terrain_name", t.Name).
		WithTag("build_id", grid.BuildID).
		WithTag("cells_x", grid.XCount()).
		WithTag("cells_z", grid.ZCount()).
		WithTag("free_subcells", free).
		WithTag("blocked_subcells", blocked).
		WithTag("duration", time.Since(start).String()).
		Info("collision cache built")
	return grid, nil
}

func (g *Grid) count() (free, blocked int) {
	for _, row := range g.Cells {
		for _, cell := range row {
			for _, subRow := range cell.SubCells {
				for _, sub := range subRow {
					if sub.Occupancy == Blocked {
						blocked++
					} else {
						free++
					}
				}
			}
		}
	}
	return free, blocked
}

// grid returns the grid of a registered terrain. Grids left behind by removed
// terrains are never returned.
func (c *Cache) grid(id models.TerrainID) (*Grid, bool) {
	if _, ok := c.terrains.Get(id); !ok {
		return nil, false
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	g, ok := c.grids[id]
	return g, ok
}

// Lookup returns the occupancy of the subcell holding worldPos. nx and nz are
// the same position normalized to the terrain footprint.
func (c *Cache) Lookup(id models.TerrainID, worldPos models.Vector3, nx, nz float64) (Occupancy, error) {
	if _, ok := c.terrains.Get(id); !ok {
		return Unsampled, errors.New("terrain is not registered").
			WithType(ErrTypeNoCache).
			WithTag("terrain_id", id)
	}

	grid, ok := c.grid(id)
	if !ok {
		return Unsampled, errors.New("no collision cache for terrain").
			WithType(ErrTypeNoCache).
			WithTag("terrain_id", id)
	}

	cell, err := grid.Cell(nx, nz)
	if err != nil {
		return Unsampled, err
	}

	sub, err := cell.LocateSubcell(worldPos)
	if err != nil {
		return Unsampled, errors.New("position does not match its normalized coordinates").
			WithType(ErrTypeOutOfGrid).
			WithTag("terrain_id", id).
			Wrap(err)
	}
	return sub.Occupancy, nil
}

// IsBlocked reports whether worldPos lies in a blocked subcell. Missing caches
// and positions outside the grid are logged and reported as not blocked.
func (c *Cache) IsBlocked(id models.TerrainID, worldPos models.Vector3, nx, nz float64) bool {
	occupancy, err := c.Lookup(id, worldPos, nx, nz)
	switch {
	case err == nil:
		instrumentQuery(occupancy.String())
		return occupancy == Blocked

	case errors.IsType(err, ErrTypeNoCache):
		instrumentQuery(ErrTypeNoCache)
		logs.Warn(err)
		return false

	default:
		instrumentQuery(errors.Type(err))
		logs.Error(err)
		return false
	}
}

// SubcellIndex locates a subcell within a terrain grid.
type SubcellIndex struct {
	CellX int `json:"cell_x"`
	CellZ int `json:"cell_z"`
	SubX  int `json:"sub_x"`
	SubZ  int `json:"sub_z"`
}

// SubcellInfo is a read only view of a sampled subcell.
type SubcellInfo struct {
	Index     SubcellIndex
	Bounds    models.Bounds
	Occupancy Occupancy
}

// Subcells calls visit for every subcell of a terrain grid, row by row. It
// returns false when the terrain has no grid.
func (c *Cache) Subcells(id models.TerrainID, visit func(SubcellInfo)) bool {
	grid, ok := c.grid(id)
	if !ok {
		return false
	}

	for cz, row := range grid.Cells {
		for cx, cell := range row {
			for sz, subRow := range cell.SubCells {
				for sx, sub := range subRow {
					visit(SubcellInfo{
						Index:     SubcellIndex{CellX: cx, CellZ: cz, SubX: sx, SubZ: sz},
						Bounds:    sub.Bounds,
						Occupancy: sub.Occupancy,
					})
				}
			}
		}
	}
	return true
}

// Blocked returns the indexes of every blocked subcell of a terrain, sorted.
func (c *Cache) Blocked(id models.TerrainID) []SubcellIndex {
	var blocked []SubcellIndex
	c.Subcells(id, func(s SubcellInfo) {
		if s.Occupancy == Blocked {
			blocked = append(blocked, s.Index)
		}
	})

	sort.Slice(blocked, func(i, j int) bool {
		a, b := blocked[i], blocked[j]
		if a.CellZ != b.CellZ {
			return a.CellZ < b.CellZ
		}
		if a.CellX != b.CellX {
			return a.CellX < b.CellX
		}
		if a.SubZ != b.SubZ {
			return a.SubZ < b.SubZ
		}
		return a.SubX < b.SubX
	})
	return blocked
}

// TerrainIDs returns the ids of the registered terrains having a grid.
func (c *Cache) TerrainIDs() []models.TerrainID {
	c.mutex.RLock()
	ids := make([]models.TerrainID, 0, len(c.grids))
	for id := range c.grids {
		ids = append(ids, id)
	}
	c.mutex.RUnlock()

	registered := ids[:0]
	for _, id := range ids {
		if _, ok := c.terrains.Get(id); ok {
			registered = append(registered, id)
		}
	}
	ids = registered

	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
