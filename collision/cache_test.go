package collision

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/physics"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type testScene struct {
	terrains models.TerrainStore
	world    physics.World
}

func newTestScene(terrains ...*models.Terrain) *testScene {
	s := &testScene{}
	for _, t := range terrains {
		s.terrains.Register(t)
		s.world.Add(&physics.TerrainCollider{Terrain: t})
	}
	return s
}

func flatTerrain(x, z, size float64) *models.Terrain {
	return &models.Terrain{
		Name:     fmt.Sprintf("flat_%v_%v", x, z),
		Position: models.Vector3{X: x, Y: 0, Z: z},
		Size:     models.Vector3{X: size, Y: 50, Z: size},
	}
}

func box(minX, minZ, maxX, maxZ float64) *physics.BoxCollider {
	return &physics.BoxCollider{
		Bounds: models.NewBoundsFromMinMax(
			models.Vector3{X: minX, Y: 0, Z: minZ},
			models.Vector3{X: maxX, Y: 10, Z: maxZ},
		),
		Layer: 1,
	}
}

func highPrecision() Options {
	return Options{
		CellSize:      64,
		CellDivisions: 4,
		HighPrecision: true,
		LayerMask:     physics.AllLayers,
	}
}

func captureLogs(t *testing.T) func() []string {
	var mutex sync.Mutex
	var entries []string

	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		var b strings.Builder
		fmt.Fprint(&b, e)
		entries = append(entries, b.String())
	})
	t.Cleanup(func() {
		logs.SetLogger(func(logs.Entry) {})
	})

	return func() []string {
		mutex.Lock()
		defer mutex.Unlock()
		return append([]string(nil), entries...)
	}
}

func queryAt(c *Cache, t *models.Terrain, x, z float64) bool {
	p := models.Vector3{X: x, Y: 0, Z: z}
	nx, nz := t.Normalize(p)
	return c.IsBlocked(t.ID, p, nx, nz)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.CellSize = 0
	require.True(t, errors.IsType(o.Validate(), ErrTypeInvalidConfig))

	o = DefaultOptions()
	o.CellDivisions = 0
	require.True(t, errors.IsType(o.Validate(), ErrTypeInvalidConfig))
}

func TestCacheStates(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.Equal(t, Empty, cache.State())

	require.NoError(t, cache.Rebuild(context.Background()))
	require.Equal(t, Built, cache.State())
	require.Equal(t, []models.TerrainID{terrain.ID}, cache.TerrainIDs())

	cache.Clear()
	require.Equal(t, Empty, cache.State())
}

func TestCacheStateWhileBuilding(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)

	options := highPrecision()
	var cache *Cache
	var states []State
	options.Progress = func(done, total int) {
		if done == 1 {
			states = append(states, cache.State())
		}
	}
	cache = NewCache(&scene.terrains, &scene.world, options)

	require.NoError(t, cache.Rebuild(context.Background()))
	require.Equal(t, []State{Building}, states)
}

func TestCacheQueriesDuringRebuild(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)

	options := highPrecision()
	var cache *Cache
	var during []bool
	options.Progress = func(done, total int) {
		if done == total {
			during = append(during, queryAt(cache, terrain, 100, 100))
		}
	}
	cache = NewCache(&scene.terrains, &scene.world, options)
	require.NoError(t, cache.Rebuild(context.Background()))

	scene.world.Add(box(92, 92, 116, 116))
	require.NoError(t, cache.Rebuild(context.Background()))

	// The first build has no grid to answer from yet; the second one still
	// answers from the grid built without the box.
	require.Equal(t, []bool{false, false}, during)
	require.True(t, queryAt(cache, terrain, 100, 100))
}

func TestCacheFlatTerrain(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))

	info, ok := cache.DebugInfo(terrain.ID)
	require.True(t, ok)
	require.Equal(t, 4, info.ColCount)
	require.Equal(t, 4, info.RowCount)
	require.Equal(t, 4*4*4*4, info.FreeCount)
	require.Equal(t, 0, info.BlockedCount)
	require.NotEmpty(t, info.BuildID)
	require.Len(t, info.Occupancy, 16)

	require.Empty(t, cache.Blocked(terrain.ID))
	for x := 0.0; x <= 256; x += 3.5 {
		for z := 0.0; z <= 256; z += 3.5 {
			require.False(t, queryAt(cache, terrain, x, z), "x=%v z=%v", x, z)
		}
	}
	require.False(t, queryAt(cache, terrain, 256, 256))
}

func TestCacheBoxCollider(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	scene.world.Add(box(92, 92, 116, 116))

	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))

	t.Run("subcell fully covered is blocked", func(t *testing.T) {
		// Subcell (96,96)-(112,112) lies in top level cell (1,1).
		require.Equal(t, []SubcellIndex{
			{CellX: 1, CellZ: 1, SubX: 2, SubZ: 2},
		}, cache.Blocked(terrain.ID))

		require.True(t, queryAt(cache, terrain, 100, 100))
		require.True(t, queryAt(cache, terrain, 96, 96))
		require.True(t, queryAt(cache, terrain, 111.9, 111.9))
	})

	t.Run("straddling subcells stay free", func(t *testing.T) {
		require.False(t, queryAt(cache, terrain, 90, 100))
		require.False(t, queryAt(cache, terrain, 114, 114))
		require.False(t, queryAt(cache, terrain, 100, 115))
	})

	t.Run("debug info counts blocked subcells", func(t *testing.T) {
		info, ok := cache.DebugInfo(terrain.ID)
		require.True(t, ok)
		require.Equal(t, 1, info.BlockedCount)
		require.Equal(t, uint32(1), info.Occupancy[1*info.ColCount+1])
	})
}

func TestCacheLowPrecision(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	scene.world.Add(box(100, 100, 110, 110))

	options := highPrecision()
	options.HighPrecision = false
	cache := NewCache(&scene.terrains, &scene.world, options)
	require.NoError(t, cache.Rebuild(context.Background()))

	// Only the subcell centered on (104, 104) has its center on the box.
	require.Equal(t, []SubcellIndex{
		{CellX: 1, CellZ: 1, SubX: 2, SubZ: 2},
	}, cache.Blocked(terrain.ID))

	highCache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, highCache.Rebuild(context.Background()))
	require.Empty(t, highCache.Blocked(terrain.ID))
}

func TestCacheRebuildIsIdempotent(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	scene.world.Add(box(40, 40, 90, 70), box(150, 10, 240, 250))

	for _, precise := range []bool{true, false} {
		options := highPrecision()
		options.HighPrecision = precise
		cache := NewCache(&scene.terrains, &scene.world, options)

		require.NoError(t, cache.Rebuild(context.Background()))
		first := cache.Blocked(terrain.ID)
		require.NotEmpty(t, first)

		require.NoError(t, cache.Rebuild(context.Background()))
		second := cache.Blocked(terrain.ID)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("occupancy changed between builds (-first +second):\n%s", diff)
		}
	}
}

func TestCacheMonotonicPermissiveness(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	scene.world.Add(box(92, 92, 116, 116))

	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))
	before := cache.Blocked(terrain.ID)
	require.Len(t, before, 1)

	// A second ground collider of the same terrain sitting above the box
	// confirms one corner as open ground again.
	raised := *terrain
	raised.Position = models.Vector3{X: 110, Y: 20, Z: 110}
	raised.Size = models.Vector3{X: 10, Y: 1, Z: 10}
	scene.world.Add(&physics.TerrainCollider{Terrain: &raised})

	require.NoError(t, cache.Rebuild(context.Background()))
	after := cache.Blocked(terrain.ID)
	require.Empty(t, after)

	for _, idx := range after {
		require.Contains(t, before, idx)
	}
}

func TestCacheUnregisteredTerrain(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())

	entries := captureLogs(t)

	var blocked bool
	require.NotPanics(t, func() {
		blocked = queryAt(cache, terrain, 10, 10)
	})
	require.False(t, blocked)
	require.Len(t, entries(), 1)
	require.Contains(t, entries()[0], "no collision cache for terrain")

	_, err := cache.Lookup(99, models.Vector3{}, 0, 0)
	require.True(t, errors.IsType(err, ErrTypeNoCache))
}

func TestCacheRemovedTerrain(t *testing.T) {
	a := flatTerrain(0, 0, 256)
	scene := newTestScene(a)
	scene.world.Add(box(92, 92, 116, 116))
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))
	require.True(t, queryAt(cache, a, 100, 100))

	scene.terrains.Remove(a.ID)

	t.Run("removed terrain fails open with one warning", func(t *testing.T) {
		entries := captureLogs(t)
		require.False(t, queryAt(cache, a, 100, 100))
		require.Len(t, entries(), 1)
		require.Contains(t, entries()[0], "terrain is not registered")

		_, err := cache.Lookup(a.ID, models.Vector3{X: 100, Z: 100}, 100.0/256, 100.0/256)
		require.True(t, errors.IsType(err, ErrTypeNoCache))
	})

	t.Run("stale grid is hidden", func(t *testing.T) {
		require.Empty(t, cache.TerrainIDs())
		require.Empty(t, cache.Blocked(a.ID))

		_, ok := cache.DebugInfo(a.ID)
		require.False(t, ok)
	})

	t.Run("terrain registered later does not inherit the grid", func(t *testing.T) {
		b := flatTerrain(0, 0, 256)
		scene.terrains.Register(b)
		require.NotEqual(t, a.ID, b.ID)

		entries := captureLogs(t)
		require.False(t, queryAt(cache, b, 100, 100))
		require.Len(t, entries(), 1)
		require.Contains(t, entries()[0], "no collision cache for terrain")
	})
}

func TestCacheOutOfGrid(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))

	t.Run("normalized position outside the terrain", func(t *testing.T) {
		_, err := cache.Lookup(terrain.ID, models.Vector3{X: -10}, -10.0/256, 0)
		require.True(t, errors.IsType(err, ErrTypeOutOfGrid))
	})

	t.Run("world position not matching normalized position", func(t *testing.T) {
		_, err := cache.Lookup(terrain.ID, models.Vector3{X: 200, Z: 10}, 10.0/256, 10.0/256)
		require.True(t, errors.IsType(err, ErrTypeOutOfGrid))
	})

	t.Run("is blocked logs an error and fails open", func(t *testing.T) {
		entries := captureLogs(t)
		require.False(t, cache.IsBlocked(terrain.ID, models.Vector3{X: -10}, -10.0/256, 0))
		require.Len(t, entries(), 1)
		require.Contains(t, entries()[0], "position is outside of the terrain grid")
	})
}

func TestCacheCellBoundary(t *testing.T) {
	terrain := flatTerrain(0, 0, 512)
	scene := newTestScene(terrain)
	scene.world.Add(box(64, 0, 128, 64))

	options := highPrecision()
	options.CellDivisions = 1
	cache := NewCache(&scene.terrains, &scene.world, options)
	require.NoError(t, cache.Rebuild(context.Background()))

	// Cell 1 is covered by the box, cell 0 is not; x 64 sits on their shared
	// edge and must resolve to cell 1.
	require.Equal(t, []SubcellIndex{{CellX: 1}}, cache.Blocked(terrain.ID))
	require.True(t, queryAt(cache, terrain, 64, 32))
	require.False(t, queryAt(cache, terrain, 63.99, 32))
}

func TestCacheGridCoversTerrain(t *testing.T) {
	terrain := &models.Terrain{
		Position: models.Vector3{X: -50, Y: 3, Z: 20},
		Size:     models.Vector3{X: 200, Y: 10, Z: 130},
	}
	scene := newTestScene(terrain)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))

	info, ok := cache.DebugInfo(terrain.ID)
	require.True(t, ok)
	require.Equal(t, 4, info.ColCount)
	require.Equal(t, 3, info.RowCount)

	// The last row and column reach past the terrain: the subcells beyond it
	// have no ground under any corner.
	require.NotEmpty(t, cache.Blocked(terrain.ID))
	require.False(t, queryAt(cache, terrain, 150, 150))
	require.False(t, queryAt(cache, terrain, -50, 20))

	visited := 0
	cache.Subcells(terrain.ID, func(s SubcellInfo) {
		require.Equal(t, 3.0, s.Bounds.Center.Y)
		visited++
	})
	require.Equal(t, 4*3*16, visited)
}

func TestCacheNeighborTerrainIsNotGround(t *testing.T) {
	// Terrain b sits above terrain a's east half: rays cast for a hit b first.
	a := flatTerrain(0, 0, 128)
	b := flatTerrain(64, 0, 128)
	b.Position.Y = 5

	scene := newTestScene(a, b)
	options := highPrecision()
	options.CellDivisions = 1
	cache := NewCache(&scene.terrains, &scene.world, options)
	require.NoError(t, cache.Rebuild(context.Background()))

	require.Equal(t, []SubcellIndex{{CellX: 1, CellZ: 0}, {CellX: 1, CellZ: 1}}, cache.Blocked(a.ID))
	require.Empty(t, cache.Blocked(b.ID))
}

func TestCacheTempColliders(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	temp := box(92, 92, 116, 116)
	temp.Disabled = true
	scene.world.Add(temp)

	options := highPrecision()
	options.TempColliders = []physics.Collider{temp}
	cache := NewCache(&scene.terrains, &scene.world, options)
	require.NoError(t, cache.Rebuild(context.Background()))

	require.Len(t, cache.Blocked(terrain.ID), 1)
	require.False(t, temp.IsEnabled())
}

func TestCacheProgress(t *testing.T) {
	scene := newTestScene(flatTerrain(0, 0, 256), flatTerrain(300, 0, 128))

	var calls [][2]int
	options := highPrecision()
	options.Progress = func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}
	cache := NewCache(&scene.terrains, &scene.world, options)
	require.NoError(t, cache.Rebuild(context.Background()))

	require.Len(t, calls, 16+4)
	require.Equal(t, [2]int{1, 20}, calls[0])
	require.Equal(t, [2]int{20, 20}, calls[len(calls)-1])
}

func TestCacheRebuildCanceled(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))
	previous, _ := cache.DebugInfo(terrain.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cache.Rebuild(ctx)
	require.True(t, errors.IsType(err, ErrTypeBuildCanceled))

	current, ok := cache.DebugInfo(terrain.ID)
	require.True(t, ok)
	require.Equal(t, previous.BuildID, current.BuildID)
	require.Equal(t, Built, cache.State())
}

func TestCacheRebuildTerrain(t *testing.T) {
	a := flatTerrain(0, 0, 128)
	b := flatTerrain(500, 0, 128)
	scene := newTestScene(a, b)
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())

	require.NoError(t, cache.RebuildTerrain(context.Background(), b.ID))
	require.Equal(t, []models.TerrainID{b.ID}, cache.TerrainIDs())
	require.Equal(t, Built, cache.State())

	err := cache.RebuildTerrain(context.Background(), 42)
	require.True(t, errors.IsType(err, ErrTypeNoCache))

	t.Run("full rebuild drops unregistered terrains", func(t *testing.T) {
		scene.terrains.Remove(b.ID)
		require.NoError(t, cache.Rebuild(context.Background()))
		require.Equal(t, []models.TerrainID{a.ID}, cache.TerrainIDs())
	})
}

func TestCacheInvalidOptions(t *testing.T) {
	scene := newTestScene(flatTerrain(0, 0, 256))
	options := highPrecision()
	options.CellDivisions = 0

	cache := NewCache(&scene.terrains, &scene.world, options)
	require.True(t, errors.IsType(cache.Rebuild(context.Background()), ErrTypeInvalidConfig))
	require.Equal(t, Empty, cache.State())
}

func TestCacheConcurrentQueries(t *testing.T) {
	terrain := flatTerrain(0, 0, 256)
	scene := newTestScene(terrain)
	scene.world.Add(box(92, 92, 116, 116))
	cache := NewCache(&scene.terrains, &scene.world, highPrecision())
	require.NoError(t, cache.Rebuild(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !queryAt(cache, terrain, 100, 100) {
					t.Error("expected blocked subcell")
				}
			}
		}()
	}

	require.NoError(t, cache.RebuildTerrain(context.Background(), terrain.ID))
	wg.Wait()
}
