package trees

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/vegetation-spawner/models"
	"github.com/aukilabs/vegetation-spawner/modules"
	"github.com/aukilabs/vegetation-spawner/modules/filter"
	"github.com/stretchr/testify/require"
)

type blockedEverywhere struct{}

func (blockedEverywhere) IsBlocked(id models.TerrainID, worldPos models.Vector3, nx, nz float64) bool {
	return true
}

func flatTerrain() *models.Terrain {
	return &models.Terrain{
		ID:       1,
		Name:     "flat",
		Position: models.Vector3{X: 200, Y: 5, Z: -100},
		Size:     models.Vector3{X: 100, Y: 20, Z: 100},
	}
}

func TestPoissonDisc(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	points := poissonDisc(rnd, 100, 60, 8)

	// Disc packing caps a 100x60 area well below 200 points at 8 units apart.
	require.Greater(t, len(points), 30)
	require.Less(t, len(points), 200)

	for i, a := range points {
		require.True(t, a.X >= 0 && a.X < 100)
		require.True(t, a.Z >= 0 && a.Z < 60)

		for _, b := range points[i+1:] {
			require.GreaterOrEqual(t, math.Hypot(a.X-b.X, a.Z-b.Z), 8.0)
		}
	}

	again := poissonDisc(rand.New(rand.NewSource(3)), 100, 60, 8)
	require.Equal(t, points, again)
}

func TestPoissonDiscWholeCellDimensions(t *testing.T) {
	// Rectangles spanning a whole number of grid cells put samples right
	// next to the far edges.
	for _, size := range []float64{0.3, 0.7, 1.1, 3.3, 9.9} {
		for cells := 1; cells <= 12; cells++ {
			radius := size / float64(cells) * math.Sqrt2
			rnd := rand.New(rand.NewSource(int64(cells)))

			var points []point
			require.NotPanics(t, func() {
				points = poissonDisc(rnd, size, size, radius)
			}, "size=%v cells=%v", size, cells)
			require.NotEmpty(t, points)

			for _, a := range points {
				require.True(t, a.X >= 0 && a.X < size)
				require.True(t, a.Z >= 0 && a.Z < size)
			}
		}
	}
}

func TestPoissonDiscInvalid(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	require.Empty(t, poissonDisc(rnd, 0, 10, 1))
	require.Empty(t, poissonDisc(rnd, 10, 10, 0))
}

func TestTreesSpawn(t *testing.T) {
	p := modules.NewPass(flatTerrain(), nil, 9)
	m := &Module{Items: []Item{{
		Name:     "oak",
		Distance: 10,
		MinScale: 0.8,
		MaxScale: 1.2,
		Rules:    filter.Rules{Probability: 100},
	}}}
	m.Init(p)
	require.NoError(t, m.Spawn(context.Background()))

	out := p.Output()
	require.NotEmpty(t, out.Trees)
	require.Equal(t, out.Stats["oak"].Candidates, len(out.Trees))
	require.Equal(t, out.Stats["oak"].Instances, len(out.Trees))

	for _, tree := range out.Trees {
		require.Equal(t, "oak", tree.Item)
		require.True(t, tree.Position.X >= 0 && tree.Position.X < 1)
		require.True(t, tree.Position.Z >= 0 && tree.Position.Z < 1)
		require.Zero(t, tree.Position.Y)
		require.True(t, tree.Scale >= 0.8 && tree.Scale <= 1.2)
		require.True(t, tree.Rotation >= 0 && tree.Rotation < 2*math.Pi)
	}
}

func TestTreesSpawnAvoidsColliders(t *testing.T) {
	p := modules.NewPass(flatTerrain(), blockedEverywhere{}, 9)
	m := &Module{Items: []Item{{
		Name:     "oak",
		Distance: 10,
		Rules:    filter.Rules{Probability: 100, CollisionCheck: true},
	}}}
	m.Init(p)
	require.NoError(t, m.Spawn(context.Background()))

	out := p.Output()
	require.Empty(t, out.Trees)

	stats := out.Stats["oak"]
	require.NotZero(t, stats.Candidates)
	require.Equal(t, stats.Candidates, stats.Rejections[filter.ReasonCollision])
}

func TestTreesDefaultScale(t *testing.T) {
	require.Equal(t, 1.0, scale(Item{}, 0.3))
	require.InDelta(t, 1.5, scale(Item{MinScale: 1, MaxScale: 2}, 0.5), 1e-9)
}

func TestTreesInvalidItem(t *testing.T) {
	items := []Item{
		{Name: "no distance"},
		{Name: "bad scale", Distance: 1, MinScale: 2, MaxScale: 1},
	}

	for _, item := range items {
		t.Run(item.Name, func(t *testing.T) {
			p := modules.NewPass(flatTerrain(), nil, 1)
			m := &Module{Items: []Item{item}}
			m.Init(p)

			err := m.Spawn(context.Background())
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidItem))
		})
	}
}

func TestTreesSpawnCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := modules.NewPass(flatTerrain(), nil, 1)
	m := &Module{Items: []Item{{Name: "oak", Distance: 5, Rules: filter.Rules{Probability: 100}}}}
	m.Init(p)

	err := m.Spawn(ctx)
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeSpawnCanceled))
}
